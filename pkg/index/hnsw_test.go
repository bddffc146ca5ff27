package index

import (
	"context"
	"fmt"
	"testing"

	"github.com/engramdb/engram/pkg/embedding"
	"github.com/engramdb/engram/pkg/vectorstore"
)

func buildSnapshot(t *testing.T, n int) ([]*embedding.Embedding, *embedding.Generator) {
	t.Helper()
	gen := embedding.NewGenerator(64, embedding.MethodHash)
	store, err := vectorstore.New("ci_index", gen)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("rec%d", i)
		text := fmt.Sprintf("memory record %d about topic %d", i, i%7)
		if err := store.Store(ctx, id, text); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}
	return store.Snapshot(), gen
}

func TestBuildEmptySnapshot(t *testing.T) {
	idx, err := Build(nil, DefaultConfig())
	if err != nil {
		t.Fatalf("Build of empty snapshot failed: %v", err)
	}
	if idx.Size() != 0 {
		t.Errorf("Expected empty index, got %d nodes", idx.Size())
	}

	q := embedding.NewGenerator(64, embedding.MethodHash).EmbedQuery(context.Background(), "query")
	if results := idx.Search(q, 5); len(results) != 0 {
		t.Errorf("Empty index should yield no results, got %d", len(results))
	}
}

func TestBuildInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.M = 0
	if _, err := Build(nil, cfg); err == nil {
		t.Error("Build should reject a non-positive M")
	}
}

func TestBuildDimensionMismatch(t *testing.T) {
	gen64 := embedding.NewGenerator(64, embedding.MethodHash)
	gen32 := embedding.NewGenerator(32, embedding.MethodHash)
	ctx := context.Background()

	snapshot := []*embedding.Embedding{
		gen64.EmbedQuery(ctx, "sixty four dimensions"),
		gen32.EmbedQuery(ctx, "thirty two dimensions"),
	}
	if _, err := Build(snapshot, DefaultConfig()); err != ErrDimensionMismatch {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSingleNodeIndex(t *testing.T) {
	snapshot, gen := buildSnapshot(t, 1)
	idx, err := Build(snapshot, DefaultConfig())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if idx.Size() != 1 {
		t.Fatalf("Expected 1 node, got %d", idx.Size())
	}

	q := gen.EmbedQuery(context.Background(), "anything at all")
	results := idx.Search(q, 3)
	if len(results) != 1 {
		t.Fatalf("Single-node index should always yield that node, got %d results", len(results))
	}
	if results[0].RecordID != "rec0" {
		t.Errorf("Expected rec0, got %s", results[0].RecordID)
	}
}

func TestSelfRetrieval(t *testing.T) {
	snapshot, gen := buildSnapshot(t, 50)
	idx, err := Build(snapshot, DefaultConfig())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Hash embeddings are deterministic, so the query for a stored text is
	// the stored vector and the nearest neighbor is the record itself.
	q := gen.EmbedQuery(context.Background(), "memory record 17 about topic 3")
	results := idx.Search(q, 5)
	if len(results) == 0 {
		t.Fatal("Expected results")
	}
	if results[0].RecordID != "rec17" {
		t.Errorf("Expected rec17 as nearest neighbor, got %s", results[0].RecordID)
	}
	if results[0].Distance > 1e-5 {
		t.Errorf("Self distance should be ~0, got %f", results[0].Distance)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Error("Distances not in ascending order")
		}
	}
}

func TestDeterministicBuild(t *testing.T) {
	snapshot, gen := buildSnapshot(t, 80)

	cfg := DefaultConfig()
	cfg.Seed = 42

	a, err := Build(snapshot, cfg)
	if err != nil {
		t.Fatalf("First build failed: %v", err)
	}
	b, err := Build(snapshot, cfg)
	if err != nil {
		t.Fatalf("Second build failed: %v", err)
	}

	if a.MaxLayer() != b.MaxLayer() {
		t.Errorf("Max layer differs across builds: %d vs %d", a.MaxLayer(), b.MaxLayer())
	}
	if a.Connections() != b.Connections() {
		t.Errorf("Connection count differs across builds: %d vs %d", a.Connections(), b.Connections())
	}

	q := gen.EmbedQuery(context.Background(), "memory record 42 about topic 0")
	ra := a.Search(q, 10)
	rb := b.Search(q, 10)
	if len(ra) != len(rb) {
		t.Fatalf("Result counts differ: %d vs %d", len(ra), len(rb))
	}
	for i := range ra {
		if ra[i].RecordID != rb[i].RecordID || ra[i].Distance != rb[i].Distance {
			t.Errorf("Result %d differs: %v vs %v", i, ra[i], rb[i])
		}
	}
}

func TestSearchKLargerThanIndex(t *testing.T) {
	snapshot, gen := buildSnapshot(t, 5)
	idx, err := Build(snapshot, DefaultConfig())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	q := gen.EmbedQuery(context.Background(), "memory record 1 about topic 1")
	results := idx.Search(q, 100)
	if len(results) != 5 {
		t.Errorf("Expected all 5 nodes, got %d", len(results))
	}
}

func TestSearchDegenerateArgs(t *testing.T) {
	snapshot, gen := buildSnapshot(t, 5)
	idx, err := Build(snapshot, DefaultConfig())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if results := idx.Search(nil, 3); results != nil {
		t.Error("Nil query should yield no results")
	}
	q := gen.EmbedQuery(context.Background(), "query")
	if results := idx.Search(q, 0); results != nil {
		t.Error("k=0 should yield no results")
	}
}

func TestRecallAgainstLinearScan(t *testing.T) {
	gen := embedding.NewGenerator(64, embedding.MethodHash)
	store, err := vectorstore.New("ci_recall", gen)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("rec%d", i)
		if err := store.Store(ctx, id, fmt.Sprintf("note %d on subject %d", i, i%13)); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}

	idx, err := Build(store.Snapshot(), DefaultConfig())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// The exact nearest neighbor should be found for stored texts; the
	// approximate index may miss deeper ranks but not the top hit for an
	// exact-duplicate query.
	query := "note 123 on subject 6"
	exact, err := store.Search(ctx, query, 1)
	if err != nil {
		t.Fatalf("Linear search failed: %v", err)
	}
	approx := idx.Search(gen.EmbedQuery(ctx, query), 1)
	if len(approx) == 0 {
		t.Fatal("Expected an approximate result")
	}
	if approx[0].RecordID != exact[0].RecordID {
		t.Errorf("Approximate top hit %s differs from exact %s", approx[0].RecordID, exact[0].RecordID)
	}
}
