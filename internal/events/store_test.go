package events_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"blackbox/internal/events"
	"blackbox/internal/recorder"
	"blackbox/internal/services"
	"blackbox/internal/testsupport"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestOpenCreatesSchemaOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	if store.Path() != cfg.LedgerPath() {
		t.Fatalf("path = %q, want %q", store.Path(), cfg.LedgerPath())
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	reopened, err := events.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
}

func TestOpenRejectsNewerLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	store, err := events.OpenPath(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	if _, err := events.OpenPath(path); !errors.Is(err, events.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestMotionEventsAndJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	accepted, err := store.RecordMotionEvent(ctx, events.MotionEvent{CameraID: 0, TriggeredAt: t0, TotalArea: 9000, ComponentCount: 1, PreRollFrames: 270})
	if err != nil {
		t.Fatalf("RecordMotionEvent: %v", err)
	}
	if accepted.ID == "" || accepted.Status != events.EventAccepted {
		t.Fatalf("accepted = %+v", accepted)
	}
	if _, err := store.RecordMotionEvent(ctx, events.MotionEvent{CameraID: 0, TriggeredAt: t0.Add(2 * time.Second), Status: events.EventSuppressed}); err != nil {
		t.Fatal(err)
	}

	listed, err := store.ListMotionEvents(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 2 || listed[0].Status != events.EventSuppressed || !listed[1].TriggeredAt.Equal(t0) {
		t.Fatalf("listed = %+v", listed)
	}
	if listed[1].TotalArea != 9000 || listed[1].PreRollFrames != 270 {
		t.Fatalf("round trip lost fields: %+v", listed[1])
	}
	if other, _ := store.ListMotionEvents(ctx, 1, 10); len(other) != 0 {
		t.Fatalf("camera 1 events = %+v", other)
	}

	job, err := store.CreateJob(ctx, accepted.ID, 0, "/events/2026-03/a.mp4", t0, 180*time.Second)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.State != events.JobPending || job.ExpectedSeconds != 180 {
		t.Fatalf("job = %+v", job)
	}
	if err := store.CompleteJob(ctx, job.ID, "/events/2026-03/a.mp4", "/events/2026-03/a.jpg", 4096, t0.Add(3*time.Minute)); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != events.JobSucceeded || got.SizeBytes != 4096 || got.Thumbnail == "" || !got.FinishedAt.Equal(t0.Add(3*time.Minute)) {
		t.Fatalf("completed job = %+v", got)
	}

	failed, err := store.CreateJob(ctx, accepted.ID, 0, "", t0.Add(time.Hour), 180*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	cause := &recorder.Error{CameraID: 0, Reason: recorder.ReasonEmpty}
	if err := store.FailJob(ctx, failed.ID, cause, t0.Add(time.Hour+time.Minute)); err != nil {
		t.Fatal(err)
	}
	gotFailed, err := store.GetJob(ctx, failed.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotFailed.State != events.JobFailed || gotFailed.ErrorKind != "recording_empty_output" {
		t.Fatalf("failed job = %+v", gotFailed)
	}

	jobs, err := store.ListJobs(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 || jobs[0].ID != failed.ID {
		t.Fatalf("jobs = %+v, want newest first", jobs)
	}
	onlyFailed, err := store.ListJobs(ctx, 0, events.JobFailed)
	if err != nil || len(onlyFailed) != 1 {
		t.Fatalf("failed jobs = %+v, %v", onlyFailed, err)
	}

	stats, err := store.JobStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Events[events.EventAccepted] != 1 || stats.Events[events.EventSuppressed] != 1 {
		t.Fatalf("event stats = %+v", stats.Events)
	}
	if stats.Jobs[events.JobSucceeded] != 1 || stats.Jobs[events.JobFailed] != 1 || stats.TotalBytes != 4096 {
		t.Fatalf("job stats = %+v", stats)
	}
}

func TestUnknownJob(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if err := store.CompleteJob(ctx, "missing", "p", "", 1, t0); !errors.Is(err, events.ErrJobNotFound) {
		t.Fatalf("CompleteJob err = %v", err)
	}
	if _, err := store.GetJob(ctx, "missing"); !errors.Is(err, events.ErrJobNotFound) {
		t.Fatalf("GetJob err = %v", err)
	}
	if _, err := store.CreateJob(ctx, "", 0, "", t0, time.Second); err == nil {
		t.Fatal("expected error without event id")
	}
}

func TestReconcileInFlight(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()
	event, err := store.RecordMotionEvent(ctx, events.MotionEvent{CameraID: 1, TriggeredAt: t0})
	if err != nil {
		t.Fatal(err)
	}
	pending, err := store.CreateJob(ctx, event.ID, 1, "", t0, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	done, err := store.CreateJob(ctx, event.ID, 1, "", t0, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.CompleteJob(ctx, done.ID, "/x.mp4", "", 10, t0); err != nil {
		t.Fatal(err)
	}

	n, err := store.ReconcileInFlight(ctx, t0.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("reconciled %d, want 1", n)
	}
	got, _ := store.GetJob(ctx, pending.ID)
	if got.State != events.JobFailed || got.ErrorKind != events.ReasonInterrupted {
		t.Fatalf("pending job after reconcile = %+v", got)
	}
	if again, _ := store.ReconcileInFlight(ctx, t0.Add(2*time.Hour)); again != 0 {
		t.Fatalf("second reconcile touched %d rows", again)
	}
}

func TestMarkImportant(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()
	event, err := store.RecordMotionEvent(ctx, events.MotionEvent{CameraID: 0, TriggeredAt: t0})
	if err != nil {
		t.Fatal(err)
	}
	job, err := store.CreateJob(ctx, event.ID, 0, "", t0, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.CompleteJob(ctx, job.ID, "/events/keep.mp4", "", 1, t0); err != nil {
		t.Fatal(err)
	}

	if err := store.MarkImportant(ctx, "/events/keep.mp4", true); err != nil {
		t.Fatalf("MarkImportant: %v", err)
	}
	paths, err := store.ImportantPaths(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := paths["/events/keep.mp4"]; !ok || len(paths) != 1 {
		t.Fatalf("important paths = %v", paths)
	}
	if err := store.MarkImportant(ctx, "/events/keep.mp4", false); err != nil {
		t.Fatal(err)
	}
	if paths, _ := store.ImportantPaths(ctx); len(paths) != 0 {
		t.Fatalf("important paths after clear = %v", paths)
	}
	if err := store.MarkImportant(ctx, "/events/none.mp4", true); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("MarkImportant unknown err = %v", err)
	}
}
