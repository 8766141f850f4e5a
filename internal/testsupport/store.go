package testsupport

import (
	"context"
	"testing"

	"medannotate/internal/config"
	"medannotate/internal/directory"
	"medannotate/internal/workitem"
)

// MustOpenStore opens a directory.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *directory.Store {
	t.Helper()

	store, err := directory.Open(cfg)
	if err != nil {
		t.Fatalf("directory.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// AddItem inserts a work item with the given scheduling attributes and
// keywords.
func AddItem(t testing.TB, store *directory.Store, specialty, region, modality string, keywordList ...string) *workitem.WorkItem {
	t.Helper()

	item, err := store.AddItem(context.Background(), &workitem.WorkItem{
		Specialty:  specialty,
		BodyRegion: region,
		Modality:   modality,
		Keywords:   keywordList,
	})
	if err != nil {
		t.Fatalf("store.AddItem: %v", err)
	}
	return item
}
