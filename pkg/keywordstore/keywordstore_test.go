package keywordstore

import (
	"context"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Failed to open keyword store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenValidation(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Error("Empty path should be rejected")
	}
}

func TestRememberValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Remember(ctx, "", "rec1", "text"); err == nil {
		t.Error("Empty CI id should be rejected")
	}
	if err := s.Remember(ctx, "ci", "", "text"); err == nil {
		t.Error("Empty record id should be rejected")
	}
	if err := s.Remember(ctx, "ci", "rec1", ""); err == nil {
		t.Error("Empty content should be rejected")
	}
}

func TestRecallAboutMatches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	memories := map[string]string{
		"rec1": "the cat sat on the mat",
		"rec2": "a dog chased the cat",
		"rec3": "quantum computing advances rapidly",
	}
	for id, content := range memories {
		if err := s.Remember(ctx, "ci_test", id, content); err != nil {
			t.Fatalf("Remember %s failed: %v", id, err)
		}
	}

	contents, err := s.RecallAbout(ctx, "ci_test", "cat")
	if err != nil {
		t.Fatalf("RecallAbout failed: %v", err)
	}
	if len(contents) != 2 {
		t.Fatalf("Expected 2 matches for cat, got %d", len(contents))
	}
	for _, c := range contents {
		if c == memories["rec3"] {
			t.Error("Unrelated memory should not match")
		}
	}

	none, err := s.RecallAbout(ctx, "ci_test", "zebra")
	if err != nil {
		t.Fatalf("RecallAbout with no matches failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no matches for zebra, got %d", len(none))
	}
}

func TestRecallAboutCIIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Remember(ctx, "ci_a", "rec1", "shared topic cats")
	s.Remember(ctx, "ci_b", "rec1", "shared topic cats and more")

	contents, err := s.RecallAbout(ctx, "ci_a", "cats")
	if err != nil {
		t.Fatalf("RecallAbout failed: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("Expected only ci_a's memory, got %d", len(contents))
	}
	if contents[0] != "shared topic cats" {
		t.Errorf("Got another CI's memory: %q", contents[0])
	}
}

func TestRememberReplacesContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Remember(ctx, "ci_test", "rec1", "original about dogs")
	s.Remember(ctx, "ci_test", "rec1", "revised about cats")

	if got, _ := s.RecallAbout(ctx, "ci_test", "dogs"); len(got) != 0 {
		t.Errorf("Replaced content should not match old terms, got %d", len(got))
	}
	got, err := s.RecallAbout(ctx, "ci_test", "cats")
	if err != nil {
		t.Fatalf("RecallAbout failed: %v", err)
	}
	if len(got) != 1 || got[0] != "revised about cats" {
		t.Errorf("Expected the revised content, got %v", got)
	}
}

func TestForget(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Remember(ctx, "ci_test", "rec1", "forgettable fact about llamas")
	if err := s.Forget(ctx, "ci_test", "rec1"); err != nil {
		t.Fatalf("Forget failed: %v", err)
	}
	if got, _ := s.RecallAbout(ctx, "ci_test", "llamas"); len(got) != 0 {
		t.Errorf("Forgotten memory should not match, got %d", len(got))
	}
}

func TestRecallAboutDegenerateQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Remember(ctx, "ci_test", "rec1", "some content")

	for _, q := range []string{"", "!!! ???", "   "} {
		got, err := s.RecallAbout(ctx, "ci_test", q)
		if err != nil {
			t.Fatalf("Degenerate query %q failed: %v", q, err)
		}
		if len(got) != 0 {
			t.Errorf("Degenerate query %q should match nothing", q)
		}
	}
}

func TestFTSQuerySanitization(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"cat", `"cat"`},
		{"cat mat", `"cat" OR "mat"`},
		{`cat" OR evil(`, `"cat" OR "OR" OR "evil"`},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := ftsQuery(tt.text); got != tt.want {
			t.Errorf("ftsQuery(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
