package graphstore

import (
	"context"
	"errors"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Failed to open graph store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenValidation(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Error("Empty path should be rejected")
	}
}

func TestNodeLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	node := &Node{RecordID: "rec1", CIID: "ci_test", Content: "the cat sat"}
	if err := s.UpsertNode(ctx, node); err != nil {
		t.Fatalf("UpsertNode failed: %v", err)
	}

	got, err := s.GetNode(ctx, "rec1")
	if err != nil {
		t.Fatalf("GetNode failed: %v", err)
	}
	if got.Content != "the cat sat" || got.CIID != "ci_test" {
		t.Errorf("Unexpected node: %+v", got)
	}

	// Upsert replaces content.
	node.Content = "the cat slept"
	if err := s.UpsertNode(ctx, node); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}
	got, err = s.GetNode(ctx, "rec1")
	if err != nil {
		t.Fatalf("GetNode after upsert failed: %v", err)
	}
	if got.Content != "the cat slept" {
		t.Errorf("Upsert should replace content, got %q", got.Content)
	}

	if err := s.DeleteNode(ctx, "rec1"); err != nil {
		t.Fatalf("DeleteNode failed: %v", err)
	}
	if _, err := s.GetNode(ctx, "rec1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Deleted node should return ErrNotFound, got %v", err)
	}
	if err := s.DeleteNode(ctx, "rec1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Deleting a missing node should return ErrNotFound, got %v", err)
	}
}

func TestGetRelatedOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"seed", "a", "b", "c"} {
		if err := s.UpsertNode(ctx, &Node{RecordID: id, CIID: "ci_test", Content: "node " + id}); err != nil {
			t.Fatalf("UpsertNode %s failed: %v", id, err)
		}
	}
	edges := []Edge{
		{FromID: "seed", ToID: "a", Relation: "similar", Strength: 0.5},
		{FromID: "seed", ToID: "b", Relation: "similar", Strength: 0.9},
		{FromID: "seed", ToID: "c", Relation: "causes", Strength: 0.7},
	}
	for _, e := range edges {
		edge := e
		if err := s.UpsertEdge(ctx, &edge); err != nil {
			t.Fatalf("UpsertEdge failed: %v", err)
		}
	}

	related, err := s.GetRelated(ctx, "seed", "similar")
	if err != nil {
		t.Fatalf("GetRelated failed: %v", err)
	}
	if len(related) != 2 {
		t.Fatalf("Expected 2 similar edges, got %d", len(related))
	}
	if related[0].ToID != "b" || related[1].ToID != "a" {
		t.Errorf("Edges should be ordered by descending strength: %+v", related)
	}

	// Other relation classes are invisible to this query.
	for _, e := range related {
		if e.Relation != "similar" {
			t.Errorf("Unexpected relation %q in results", e.Relation)
		}
	}

	none, err := s.GetRelated(ctx, "a", "similar")
	if err != nil {
		t.Fatalf("GetRelated on leaf failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Leaf node should have no outgoing edges, got %d", len(none))
	}
}

func TestEdgeUpsertReplacesStrength(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"x", "y"} {
		s.UpsertNode(ctx, &Node{RecordID: id, CIID: "ci_test", Content: "node"})
	}
	s.UpsertEdge(ctx, &Edge{FromID: "x", ToID: "y", Relation: "similar", Strength: 0.2})
	s.UpsertEdge(ctx, &Edge{FromID: "x", ToID: "y", Relation: "similar", Strength: 0.8})

	related, err := s.GetRelated(ctx, "x", "similar")
	if err != nil {
		t.Fatalf("GetRelated failed: %v", err)
	}
	if len(related) != 1 {
		t.Fatalf("Duplicate edge should upsert, got %d edges", len(related))
	}
	if related[0].Strength != 0.8 {
		t.Errorf("Upsert should replace strength, got %f", related[0].Strength)
	}
}

func TestDeleteNodeCascadesEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"from", "to"} {
		s.UpsertNode(ctx, &Node{RecordID: id, CIID: "ci_test", Content: "node"})
	}
	s.UpsertEdge(ctx, &Edge{FromID: "from", ToID: "to", Relation: "similar", Strength: 1.0})

	if err := s.DeleteNode(ctx, "to"); err != nil {
		t.Fatalf("DeleteNode failed: %v", err)
	}
	related, err := s.GetRelated(ctx, "from", "similar")
	if err != nil {
		t.Fatalf("GetRelated failed: %v", err)
	}
	if len(related) != 0 {
		t.Errorf("Edges to a deleted node should cascade away, got %d", len(related))
	}
}

func TestNodesForCI(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.UpsertNode(ctx, &Node{RecordID: "a1", CIID: "ci_a", Content: "alpha one"})
	s.UpsertNode(ctx, &Node{RecordID: "a2", CIID: "ci_a", Content: "alpha two"})
	s.UpsertNode(ctx, &Node{RecordID: "b1", CIID: "ci_b", Content: "beta one"})

	nodes, err := s.NodesForCI(ctx, "ci_a")
	if err != nil {
		t.Fatalf("NodesForCI failed: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("Expected 2 nodes for ci_a, got %d", len(nodes))
	}
	for _, n := range nodes {
		if n.CIID != "ci_a" {
			t.Errorf("Node %s belongs to %s, not ci_a", n.RecordID, n.CIID)
		}
	}

	empty, err := s.NodesForCI(ctx, "ci_missing")
	if err != nil {
		t.Fatalf("NodesForCI for unknown CI failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Unknown CI should have no nodes, got %d", len(empty))
	}
}
