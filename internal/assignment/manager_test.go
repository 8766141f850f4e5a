package assignment_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"medannotate/internal/assignment"
	"medannotate/internal/directory"
	"medannotate/internal/keywords"
	"medannotate/internal/logging"
	"medannotate/internal/metrics"
	"medannotate/internal/testsupport"
	"medannotate/internal/workitem"
)

var _ assignment.Repository = (*directory.Store)(nil)

func newManager(t *testing.T) (*assignment.Manager, *directory.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	return assignment.NewManager(store, logging.NewNop(), assignment.WithMetrics(metrics.NewCollector())), store
}

func expert(id string) workitem.Annotator {
	return workitem.Annotator{ID: id, Track: workitem.TrackExpert, Specialty: "Radiology"}
}

func trainee(id string) workitem.Annotator {
	return workitem.Annotator{ID: id, Track: workitem.TrackTrainee, Specialty: "Radiology"}
}

func TestRequestWorkClaimsLowestEligible(t *testing.T) {
	mgr, store := newManager(t)
	ctx := context.Background()

	testsupport.AddItem(t, store, "dermatology", "", "", "a")
	first := testsupport.AddItem(t, store, "radiology", "", "", "a")
	testsupport.AddItem(t, store, "radiology", "", "", "b")

	item, counter, err := mgr.RequestWork(ctx, expert("dr-a"))
	if err != nil {
		t.Fatalf("RequestWork failed: %v", err)
	}
	if item == nil || item.ID != first.ID {
		t.Fatalf("expected item %d, got %#v", first.ID, item)
	}
	if counter != "0/3" {
		t.Fatalf("counter = %q, want 0/3", counter)
	}
}

func TestRequestWorkRejectsInvalidAnnotator(t *testing.T) {
	mgr, _ := newManager(t)
	_, _, err := mgr.RequestWork(context.Background(), workitem.Annotator{ID: "x", Track: "surgeon", Specialty: "radiology"})
	if !errors.Is(err, workitem.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestConcurrentRequestsNeverShareItem(t *testing.T) {
	mgr, store := newManager(t)
	ctx := context.Background()

	const items = 8
	for i := 0; i < items; i++ {
		testsupport.AddItem(t, store, "radiology", "", "", "k")
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]string)
		errs []error
	)
	for i := 0; i < items*2; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			item, _, err := mgr.RequestWork(ctx, expert(id))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if item == nil {
				return
			}
			if other, ok := seen[item.ID]; ok {
				errs = append(errs, fmt.Errorf("item %d given to %s and %s", item.ID, other, id))
				return
			}
			seen[item.ID] = id
		}(fmt.Sprintf("dr-%02d", i))
	}
	wg.Wait()

	for _, err := range errs {
		t.Error(err)
	}
	if len(seen) != items {
		t.Fatalf("expected %d distinct claims, got %d", items, len(seen))
	}
}

func TestResumptionIsIdempotent(t *testing.T) {
	mgr, store := newManager(t)
	ctx := context.Background()

	testsupport.AddItem(t, store, "radiology", "", "", "a", "b", "c")
	testsupport.AddItem(t, store, "radiology", "", "", "d")

	first, _, err := mgr.RequestWork(ctx, expert("dr-a"))
	if err != nil || first == nil {
		t.Fatalf("first RequestWork: %#v, %v", first, err)
	}
	if _, err := mgr.Save(ctx, first.ID, 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	second, _, err := mgr.RequestWork(ctx, expert("dr-a"))
	if err != nil {
		t.Fatalf("second RequestWork: %v", err)
	}
	third, _, err := mgr.RequestWork(ctx, expert("dr-a"))
	if err != nil {
		t.Fatalf("third RequestWork: %v", err)
	}
	if second.ID != first.ID || third.ID != first.ID {
		t.Fatalf("expected resumption of %d, got %d and %d", first.ID, second.ID, third.ID)
	}
	if !reflect.DeepEqual(second.Track(workitem.TrackExpert).Progress, third.Track(workitem.TrackExpert).Progress) {
		t.Fatalf("progress differs between resumptions: %v vs %v",
			second.Track(workitem.TrackExpert).Progress, third.Track(workitem.TrackExpert).Progress)
	}
}

func TestAbandonmentFreesItem(t *testing.T) {
	for _, tc := range []struct {
		name      string
		annotator func(string) workitem.Annotator
		started   bool
	}{
		{"expert not started", expert, false},
		{"trainee started", trainee, true},
		{"trainee not started", trainee, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			mgr, store := newManager(t)
			ctx := context.Background()
			only := testsupport.AddItem(t, store, "radiology", "", "", "a", "b")

			a := tc.annotator("user-a")
			claimed, _, err := mgr.RequestWork(ctx, a)
			if err != nil || claimed == nil {
				t.Fatalf("RequestWork A: %#v, %v", claimed, err)
			}
			if err := mgr.EndSession(ctx, claimed.ID, a.Track, tc.started, nil); err != nil {
				t.Fatalf("EndSession failed: %v", err)
			}

			next, _, err := mgr.RequestWork(ctx, tc.annotator("user-b"))
			if err != nil {
				t.Fatalf("RequestWork B: %v", err)
			}
			if next == nil || next.ID != only.ID {
				t.Fatalf("expected B to claim %d, got %#v", only.ID, next)
			}
			if next.Track(workitem.TrackExpert).Progress != nil {
				t.Fatalf("expected no leftover progress, got %v", next.Track(workitem.TrackExpert).Progress)
			}
		})
	}
}

func TestPartialProgressSurvivesReconnect(t *testing.T) {
	mgr, store := newManager(t)
	ctx := context.Background()
	testsupport.AddItem(t, store, "radiology", "", "", "k0", "k1", "k2")

	item, _, err := mgr.RequestWork(ctx, expert("dr-a"))
	if err != nil || item == nil {
		t.Fatalf("RequestWork: %#v, %v", item, err)
	}
	progress, err := mgr.Save(ctx, item.ID, 0)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := mgr.EndSession(ctx, item.ID, workitem.TrackExpert, true, progress); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	other, _, err := mgr.RequestWork(ctx, expert("dr-b"))
	if err != nil {
		t.Fatalf("RequestWork B: %v", err)
	}
	if other != nil {
		t.Fatalf("paused claim must stay locked, got %#v", other)
	}

	resumed, _, err := mgr.RequestWork(ctx, expert("dr-a"))
	if err != nil || resumed == nil {
		t.Fatalf("RequestWork resume: %#v, %v", resumed, err)
	}
	want := keywords.Progress{keywords.Done, keywords.Current, keywords.Pending}
	if got := resumed.Track(workitem.TrackExpert).Progress; !reflect.DeepEqual(got, want) {
		t.Fatalf("resumed progress = %v, want %v", got, want)
	}
}

func TestEndSessionRejectsMalformedProgress(t *testing.T) {
	mgr, store := newManager(t)
	ctx := context.Background()
	item := testsupport.AddItem(t, store, "radiology", "", "", "a", "b")
	if _, _, err := mgr.RequestWork(ctx, expert("dr-a")); err != nil {
		t.Fatalf("RequestWork: %v", err)
	}

	bad := keywords.Progress{keywords.Current, keywords.Current}
	if err := mgr.EndSession(ctx, item.ID, workitem.TrackExpert, true, bad); !errors.Is(err, workitem.ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
}

func TestCursorScanOrderThroughManager(t *testing.T) {
	mgr, store := newManager(t)
	ctx := context.Background()
	testsupport.AddItem(t, store, "radiology", "", "", "k0", "k1", "k2")

	item, _, err := mgr.RequestWork(ctx, expert("dr-a"))
	if err != nil || item == nil {
		t.Fatalf("RequestWork: %#v, %v", item, err)
	}
	if _, err := mgr.Skip(ctx, item.ID, 0); err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	progress, err := mgr.Save(ctx, item.ID, 1)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if want := (keywords.Progress{keywords.Skipped, keywords.Done, keywords.Current}); !reflect.DeepEqual(progress, want) {
		t.Fatalf("progress = %v, want %v", progress, want)
	}
	progress, err = mgr.Save(ctx, item.ID, 2)
	if err != nil {
		t.Fatalf("Save final failed: %v", err)
	}
	if want := (keywords.Progress{keywords.Skipped, keywords.Done, keywords.Done}); !reflect.DeepEqual(progress, want) {
		t.Fatalf("progress = %v, want %v", progress, want)
	}
	if !progress.ReadyToFinalize() || progress.Cursor() != -1 {
		t.Fatalf("expected terminal vector, got %v", progress)
	}

	if _, err := mgr.Save(ctx, item.ID, 2); !errors.Is(err, workitem.ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation after terminal, got %v", err)
	}
}

func TestMarkAbsentLeavesKeywordBehindCursor(t *testing.T) {
	mgr, store := newManager(t)
	ctx := context.Background()
	testsupport.AddItem(t, store, "radiology", "", "", "k0", "k1")

	item, _, _ := mgr.RequestWork(ctx, expert("dr-a"))
	progress, err := mgr.MarkAbsent(ctx, item.ID, 0)
	if err != nil {
		t.Fatalf("MarkAbsent failed: %v", err)
	}
	if want := (keywords.Progress{keywords.Pending, keywords.Current}); !reflect.DeepEqual(progress, want) {
		t.Fatalf("progress = %v, want %v", progress, want)
	}
}

func TestKeywordActionsRequireClaim(t *testing.T) {
	mgr, store := newManager(t)
	ctx := context.Background()
	item := testsupport.AddItem(t, store, "radiology", "", "", "a")

	if _, err := mgr.Save(ctx, item.ID, 0); !errors.Is(err, workitem.ErrNotClaimed) {
		t.Fatalf("expected ErrNotClaimed, got %v", err)
	}
	if _, err := mgr.Skip(ctx, 999, 0); !errors.Is(err, workitem.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApplyKeywordStoresRecord(t *testing.T) {
	mgr, store := newManager(t)
	ctx := context.Background()
	testsupport.AddItem(t, store, "radiology", "", "", "nodule", "effusion")

	item, _, _ := mgr.RequestWork(ctx, expert("dr-a"))
	record := &workitem.Record{Payload: json.RawMessage(`{"x":1}`), Comment: "left lobe"}
	if _, err := mgr.ApplyKeyword(ctx, item.ID, keywords.ActionSave, 0, record); err != nil {
		t.Fatalf("ApplyKeyword failed: %v", err)
	}

	records, err := store.ListRecords(ctx, item.ID, workitem.TrackExpert)
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.AnnotatorID != "dr-a" || got.Keyword != "nodule" || got.Action != "save" || got.Comment != "left lobe" {
		t.Fatalf("unexpected record: %#v", got)
	}

	foreign := &workitem.Record{AnnotatorID: "dr-b"}
	if _, err := mgr.ApplyKeyword(ctx, item.ID, keywords.ActionSave, 1, foreign); !errors.Is(err, workitem.ErrNotLockHolder) {
		t.Fatalf("expected ErrNotLockHolder, got %v", err)
	}
}

func TestPerTrackIndependence(t *testing.T) {
	mgr, store := newManager(t)
	ctx := context.Background()
	only := testsupport.AddItem(t, store, "radiology", "", "", "a")

	ex, _, _ := mgr.RequestWork(ctx, expert("dr-a"))
	tr, _, _ := mgr.RequestWork(ctx, trainee("student-a"))
	if ex == nil || tr == nil || ex.ID != only.ID || tr.ID != only.ID {
		t.Fatalf("expected both tracks to claim %d concurrently, got %#v / %#v", only.ID, ex, tr)
	}

	if err := mgr.FinalizeItem(ctx, only.ID, workitem.TrackExpert); err != nil {
		t.Fatalf("FinalizeItem failed: %v", err)
	}
	fetched, _ := store.GetByID(ctx, only.ID)
	if got := fetched.Track(workitem.TrackTrainee); got.Completed || got.LockedBy != "student-a" {
		t.Fatalf("trainee state changed by expert finalize: %#v", got)
	}

	again, _, _ := mgr.RequestWork(ctx, trainee("student-a"))
	if again == nil || again.ID != only.ID {
		t.Fatalf("expected trainee to resume %d, got %#v", only.ID, again)
	}
}

func TestCounterReflectsFinalize(t *testing.T) {
	mgr, store := newManager(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		testsupport.AddItem(t, store, "radiology", "", "", "a")
	}

	item, counter, _ := mgr.RequestWork(ctx, expert("dr-a"))
	if counter != "0/3" {
		t.Fatalf("counter = %q, want 0/3", counter)
	}
	if err := mgr.FinalizeItem(ctx, item.ID, workitem.TrackExpert); err != nil {
		t.Fatalf("FinalizeItem failed: %v", err)
	}
	got, err := mgr.Counter(ctx, workitem.TrackExpert)
	if err != nil || got != "1/3" {
		t.Fatalf("Counter = %q, %v; want 1/3", got, err)
	}
	got, _ = mgr.Counter(ctx, workitem.TrackTrainee)
	if got != "0/3" {
		t.Fatalf("trainee counter = %q, want 0/3", got)
	}

	summary, err := mgr.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if len(summary) != 2 || summary[0].Counter != "1/3" || summary[1].Counter != "0/3" {
		t.Fatalf("unexpected summary: %#v", summary)
	}
}

func TestExhaustedTrackReturnsNoWork(t *testing.T) {
	mgr, store := newManager(t)
	ctx := context.Background()
	item := testsupport.AddItem(t, store, "radiology", "", "", "a")
	if err := mgr.FinalizeItem(ctx, item.ID, workitem.TrackExpert); err != nil {
		t.Fatalf("FinalizeItem failed: %v", err)
	}

	got, counter, err := mgr.RequestWork(ctx, expert("dr-a"))
	if err != nil {
		t.Fatalf("RequestWork failed: %v", err)
	}
	if got != nil || counter != "1/1" {
		t.Fatalf("expected no work with 1/1, got %#v %q", got, counter)
	}
}

func TestFinalizeUnknownItem(t *testing.T) {
	mgr, _ := newManager(t)
	if err := mgr.FinalizeItem(context.Background(), 404, workitem.TrackTrainee); !errors.Is(err, workitem.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mgr.EndSession(context.Background(), 404, workitem.TrackTrainee, false, nil); !errors.Is(err, workitem.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from EndSession, got %v", err)
	}
}

func TestSubmitTrainee(t *testing.T) {
	mgr, store := newManager(t)
	ctx := context.Background()
	testsupport.AddItem(t, store, "radiology", "", "", "a")

	item, _, _ := mgr.RequestWork(ctx, trainee("student-a"))
	if _, err := mgr.SubmitTrainee(ctx, item.ID, "student-b", nil); !errors.Is(err, workitem.ErrNotLockHolder) {
		t.Fatalf("expected ErrNotLockHolder, got %v", err)
	}

	stored, err := mgr.SubmitTrainee(ctx, item.ID, "student-a", []workitem.Record{
		{Keyword: "a", Payload: json.RawMessage(`[1,2]`)},
		{Keyword: "b"},
	})
	if err != nil {
		t.Fatalf("SubmitTrainee failed: %v", err)
	}
	if len(stored) != 2 || stored[0].Track != workitem.TrackTrainee || stored[1].AnnotatorID != "student-a" {
		t.Fatalf("unexpected stored records: %#v", stored)
	}

	fetched, _ := store.GetByID(ctx, item.ID)
	if state := fetched.Track(workitem.TrackTrainee); !state.Completed || state.Locked() {
		t.Fatalf("expected trainee completed and unlocked, got %#v", state)
	}
	if _, err := mgr.SubmitTrainee(ctx, item.ID, "student-a", nil); !errors.Is(err, workitem.ErrNotClaimed) {
		t.Fatalf("expected ErrNotClaimed on resubmit, got %v", err)
	}
}

type conflictRepo struct {
	assignment.Repository
}

func (conflictRepo) CountTotal(context.Context) (int, error) { return 5, nil }

func (conflictRepo) CountCompleted(context.Context, workitem.Track) (int, error) { return 2, nil }

func (conflictRepo) FindActiveClaim(context.Context, workitem.Track, string) (*workitem.WorkItem, error) {
	return nil, nil
}

func (conflictRepo) ClaimNext(context.Context, workitem.Track, string, []string, []string, string) (*workitem.WorkItem, error) {
	return nil, workitem.ErrClaimConflict
}

func TestClaimConflictIsNoWork(t *testing.T) {
	mgr := assignment.NewManager(conflictRepo{}, logging.NewNop())
	item, counter, err := mgr.RequestWork(context.Background(), expert("dr-a"))
	if err != nil {
		t.Fatalf("expected conflict to be swallowed, got %v", err)
	}
	if item != nil || counter != "2/5" {
		t.Fatalf("expected nil item and 2/5, got %#v %q", item, counter)
	}
}

// handoffRepo lets another annotator take over the claim right after the
// manager has read the item.
type handoffRepo struct {
	*directory.Store
	afterRead func()
}

func (r *handoffRepo) GetByID(ctx context.Context, id int64) (*workitem.WorkItem, error) {
	item, err := r.Store.GetByID(ctx, id)
	if r.afterRead != nil {
		hook := r.afterRead
		r.afterRead = nil
		hook()
	}
	return item, err
}

func TestKeywordActionLosesToReassignedClaim(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	item := testsupport.AddItem(t, store, "radiology", "", "", "k0", "k1", "k2")

	repo := &handoffRepo{Store: store}
	mgr := assignment.NewManager(repo, logging.NewNop())
	if claimed, _, err := mgr.RequestWork(ctx, expert("dr-a")); err != nil || claimed == nil {
		t.Fatalf("RequestWork A: %#v, %v", claimed, err)
	}

	repo.afterRead = func() {
		if err := store.ReleaseLock(ctx, item.ID, workitem.TrackExpert); err != nil {
			t.Errorf("ReleaseLock: %v", err)
		}
		if got, err := store.ClaimNext(ctx, workitem.TrackExpert, "radiology", nil, nil, "dr-b"); err != nil || got == nil {
			t.Errorf("ClaimNext B: %#v, %v", got, err)
		}
	}
	comment := workitem.Record{Comment: "lesion outline"}
	if _, err := mgr.ApplyKeyword(ctx, item.ID, keywords.ActionSave, 0, &comment); !errors.Is(err, workitem.ErrNotLockHolder) {
		t.Fatalf("expected ErrNotLockHolder after handoff, got %v", err)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	state := fetched.Track(workitem.TrackExpert)
	if state.LockedBy != "dr-b" {
		t.Fatalf("expected dr-b to hold the claim, got %q", state.LockedBy)
	}
	if state.Progress != nil {
		t.Fatalf("dr-b must start fresh, got %v", state.Progress)
	}
	if records, _ := store.ListRecords(ctx, item.ID, workitem.TrackExpert); len(records) != 0 {
		t.Fatalf("stale annotation must not be stored, got %#v", records)
	}
}

func TestPausedSessionRequiresLiveClaim(t *testing.T) {
	mgr, store := newManager(t)
	ctx := context.Background()

	unclaimed := testsupport.AddItem(t, store, "radiology", "", "", "a", "b")
	progress, _ := keywords.Start(2).Save(0)
	for _, p := range []keywords.Progress{progress, nil} {
		if err := mgr.EndSession(ctx, unclaimed.ID, workitem.TrackExpert, true, p); !errors.Is(err, workitem.ErrNotClaimed) {
			t.Fatalf("expected ErrNotClaimed for unclaimed item (progress %v), got %v", p, err)
		}
	}

	claimed, _, err := mgr.RequestWork(ctx, expert("dr-a"))
	if err != nil || claimed == nil || claimed.ID != unclaimed.ID {
		t.Fatalf("RequestWork: %#v, %v", claimed, err)
	}
	if err := mgr.FinalizeItem(ctx, claimed.ID, workitem.TrackExpert); err != nil {
		t.Fatalf("FinalizeItem: %v", err)
	}
	if err := mgr.EndSession(ctx, claimed.ID, workitem.TrackExpert, true, progress); !errors.Is(err, workitem.ErrNotClaimed) {
		t.Fatalf("expected ErrNotClaimed for completed item, got %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	for _, s := range stats {
		if s.InProgress != 0 {
			t.Fatalf("no track should report in-progress items, got %#v", s)
		}
	}
}
