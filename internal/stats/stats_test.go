package stats

import (
	"testing"
	"time"
)

func TestSnapshotPercentiles(t *testing.T) {
	r := NewRecorder(time.Hour)
	for _, ms := range []int64{300, 100, 500, 200, 400} {
		r.Record("json_save", time.Duration(ms)*time.Millisecond, false)
	}
	r.Record("json_save", 0, true)

	snap, ok := r.Snapshot()["json_save"]
	if !ok {
		t.Fatal("expected json_save stats")
	}
	if snap.Count != 6 || snap.Errors != 1 {
		t.Fatalf("expected count=6 errors=1, got %d/%d", snap.Count, snap.Errors)
	}
	if snap.MinMs != 0 || snap.MaxMs != 500 {
		t.Errorf("expected min=0 max=500, got %d/%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 250 {
		t.Errorf("expected avg=250, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 250 {
		t.Errorf("expected p50=250, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 475 {
		t.Errorf("expected p95=475, got %f", snap.P95Ms)
	}
}

func TestSnapshotPerOperation(t *testing.T) {
	r := NewRecorder(time.Hour)
	r.Record("page_move", 10*time.Millisecond, false)
	r.Record("page_new", 20*time.Millisecond, false)

	snaps := r.Snapshot()
	if len(snaps) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(snaps))
	}
	if snaps["page_new"].MaxMs != 20 {
		t.Errorf("expected page_new max=20, got %d", snaps["page_new"].MaxMs)
	}
}

func TestPrunesExpiredSamples(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRecorder(time.Minute)
	r.now = func() time.Time { return now }

	r.Record("href", 100*time.Millisecond, false)
	now = now.Add(2 * time.Minute)
	if snaps := r.Snapshot(); len(snaps) != 0 {
		t.Fatalf("expected expired samples to be dropped, got %+v", snaps)
	}

	r.Record("href", 200*time.Millisecond, false)
	snap := r.Snapshot()["href"]
	if snap.Count != 1 || snap.MinMs != 200 {
		t.Errorf("expected one fresh sample of 200ms, got %+v", snap)
	}
}

func TestRecordClampsNegativeDuration(t *testing.T) {
	r := NewRecorder(time.Hour)
	r.Record("get", -time.Second, false)
	if snap := r.Snapshot()["get"]; snap.MaxMs != 0 {
		t.Errorf("expected clamped duration 0, got %d", snap.MaxMs)
	}
}
