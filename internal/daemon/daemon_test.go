package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"medannotate/internal/api"
	"medannotate/internal/daemon"
	"medannotate/internal/directory"
	"medannotate/internal/logging"
	"medannotate/internal/testsupport"
)

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLeaseTimeout(60))
	store, err := directory.Open(cfg)
	if err != nil {
		t.Fatalf("directory.Open: %v", err)
	}
	testsupport.AddItem(t, store, "radiology", "", "", "a")

	d, err := daemon.New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running || !status.LeaseEnabled {
		t.Fatalf("unexpected status: %#v", status)
	}
	if len(status.Progress) != 2 || status.Progress[0].Counter != "0/1" {
		t.Fatalf("unexpected progress: %#v", status.Progress)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + status.APIAddress + "/api/progress")
	if err != nil {
		t.Fatalf("GET progress: %v", err)
	}
	defer resp.Body.Close()
	var progress api.ProgressResponse
	if err := json.NewDecoder(resp.Body).Decode(&progress); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if len(progress.Tracks) != 2 {
		t.Fatalf("unexpected progress response: %#v", progress)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := daemon.New(nil, nil, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
