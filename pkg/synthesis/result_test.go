package synthesis

import "testing"

func TestResultSetAddMergesByMax(t *testing.T) {
	rs := NewResultSet()

	rs.Add(Result{RecordID: "rec1", VectorScore: 0.2, Score: 0.2, FromVector: true})
	rs.Add(Result{RecordID: "rec1", VectorScore: 0.5, Score: 0.5, FromVector: true})
	rs.Add(Result{RecordID: "rec1", VectorScore: 0.3, Score: 0.3, FromVector: true})

	if rs.Count() != 1 {
		t.Fatalf("Expected 1 merged result, got %d", rs.Count())
	}
	r := rs.Results[0]
	if r.VectorScore != 0.5 {
		t.Errorf("Per-backend score should be the maximum seen, got %f", r.VectorScore)
	}
	if r.Score != 0.5 {
		t.Errorf("Combined score should equal the single backend maximum, got %f", r.Score)
	}
}

func TestResultSetAddCombinesBackends(t *testing.T) {
	rs := NewResultSet()

	rs.Add(Result{RecordID: "rec1", VectorScore: 0.4, Score: 0.4, FromVector: true})
	rs.Add(Result{RecordID: "rec1", GraphScore: 0.3, Score: 0.3, FromGraph: true})
	rs.Add(Result{RecordID: "rec1", KeywordScore: 0.2, Score: 0.2, FromKeyword: true})

	r := rs.Results[0]
	if !r.FromVector || !r.FromGraph || !r.FromKeyword {
		t.Error("Contribution flags should accumulate across backends")
	}
	want := 0.4 + 0.3 + 0.2
	if diff := r.Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Combined score should sum per-backend scores: want %f, got %f", want, r.Score)
	}
}

func TestResultSetAddBackfillsContent(t *testing.T) {
	rs := NewResultSet()

	rs.Add(Result{RecordID: "rec1", VectorScore: 0.4, Score: 0.4, FromVector: true})
	rs.Add(Result{RecordID: "rec1", Content: "the cat sat", KeywordScore: 0.2, Score: 0.2, FromKeyword: true})
	rs.Add(Result{RecordID: "rec1", Content: "should not overwrite", GraphScore: 0.1, Score: 0.1, FromGraph: true})

	if rs.Results[0].Content != "the cat sat" {
		t.Errorf("First non-empty content should stick, got %q", rs.Results[0].Content)
	}
}

func TestResultSetDistinctRecords(t *testing.T) {
	rs := NewResultSet()
	rs.Add(Result{RecordID: "rec1", VectorScore: 0.5, Score: 0.5, FromVector: true})
	rs.Add(Result{RecordID: "rec2", VectorScore: 0.4, Score: 0.4, FromVector: true})

	if rs.Count() != 2 {
		t.Errorf("Distinct records should not merge, got %d", rs.Count())
	}
}
