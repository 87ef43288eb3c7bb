package orchestrator

import "testing"

func TestDeterministicBatchIDStableAcrossCalls(t *testing.T) {
	a := deterministicBatchID("moneyfacts", "scrape", "/data/feeds/moneyfacts-2026-08-01.json")
	b := deterministicBatchID("moneyfacts", "scrape", "/data/feeds/moneyfacts-2026-08-01.json")
	if a != b {
		t.Fatalf("batch id not stable: %s != %s", a, b)
	}
}

func TestDeterministicBatchIDDiffersByMethod(t *testing.T) {
	a := deterministicBatchID("moneyfacts", "scrape", "/data/feeds/moneyfacts.json")
	b := deterministicBatchID("moneyfacts", "manual_upload", "/data/feeds/moneyfacts.json")
	if a == b {
		t.Fatal("batch id should differ when method differs")
	}
}

func TestProgressForOrdersStagesAscending(t *testing.T) {
	prev := -1
	for _, s := range stageOrder {
		p := progressFor(s)
		if p < prev {
			t.Errorf("progressFor(%s) = %d, expected >= previous %d", s, p, prev)
		}
		prev = p
	}
}

func TestProgressForUnknownStageReturns100(t *testing.T) {
	if got := progressFor(Stage("not_a_stage")); got != 100 {
		t.Errorf("progressFor(unknown) = %d, want 100", got)
	}
}

func TestProgressTrackerReturnsLatestUpdate(t *testing.T) {
	tr := newProgressTracker(nil)
	tr.update(Progress{BatchID: "b1", Stage: StageMatch, Percent: 50, Message: "halfway", Status: ProgressRunning})
	tr.update(Progress{BatchID: "b1", Stage: StageDedup, Percent: 80, Message: "almost", Status: ProgressRunning})

	got, ok := tr.Get("b1")
	if !ok {
		t.Fatal("expected progress entry for b1")
	}
	if got.Stage != StageDedup || got.Percent != 80 {
		t.Errorf("got %+v, want latest update", got)
	}

	if _, ok := tr.Get("unknown"); ok {
		t.Error("expected no entry for unknown batch id")
	}
}
