package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"medannotate/internal/directory"
	"medannotate/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckBindAddress(t *testing.T) {
	cases := []struct {
		addr string
		ok   bool
	}{
		{"127.0.0.1:7590", true},
		{":8080", true},
		{"localhost:0", true},
		{"[::1]:7590", true},
		{"127.0.0.1", false},
		{"127.0.0.1:http", false},
		{"example.com:80", false},
	}
	for _, tc := range cases {
		if got := CheckBindAddress(tc.addr); got.Passed != tc.ok {
			t.Errorf("CheckBindAddress(%q) passed=%v, want %v (%s)", tc.addr, got.Passed, tc.ok, got.Detail)
		}
	}
}

func TestCheckLease(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLeaseTimeout(30))
	cfg.Assignment.ReclaimIntervalSeconds = 60
	if CheckLease(cfg).Passed {
		t.Fatal("expected failure when interval exceeds timeout")
	}
	cfg.Assignment.ReclaimIntervalSeconds = 10
	if !CheckLease(cfg).Passed {
		t.Fatal("expected pass when interval is within timeout")
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results := RunAll(context.Background(), cfg)
	if len(results) != 2 {
		t.Fatalf("expected 2 results with leases disabled, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %#v", failed)
	}
}

func TestCheckDatabase(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if result := CheckDatabase(context.Background(), store); !result.Passed {
		t.Fatalf("expected healthy database, got: %s", result.Detail)
	}
}

type brokenStore struct{}

func (brokenStore) CheckHealth(context.Context) (directory.DatabaseHealth, error) {
	return directory.DatabaseHealth{DBPath: "/tmp/x.db"}, errors.New("disk on fire")
}

func TestCheckDatabase_Error(t *testing.T) {
	result := CheckDatabase(context.Background(), brokenStore{})
	if result.Passed {
		t.Fatal("expected failure")
	}
}
