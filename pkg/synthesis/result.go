package synthesis

import "time"

// Result is one synthesized memory: its record id, the independent
// per-backend scores, which backends contributed it, and the combined score.
type Result struct {
	RecordID string
	Content  string
	Score    float64

	// Per-backend scores, already weighted at collection time
	VectorScore  float64
	GraphScore   float64
	KeywordScore float64
	WorkingScore float64

	// Contribution flags per backend
	FromVector  bool
	FromGraph   bool
	FromKeyword bool
	FromWorking bool

	Timestamp  time.Time
	Importance float64
}

// ResultSet is a growable collection of Results with per-backend match
// counters. Record ids are unique within a set for its whole lifetime:
// adding a duplicate merges scores, never appends.
type ResultSet struct {
	Results []Result

	VectorMatches  int
	GraphMatches   int
	KeywordMatches int
	WorkingMatches int
}

// NewResultSet creates an empty result set.
func NewResultSet() *ResultSet {
	return &ResultSet{Results: make([]Result, 0, 32)}
}

// Count returns the number of distinct results.
func (rs *ResultSet) Count() int { return len(rs.Results) }

// find returns the index of recordID, or -1.
func (rs *ResultSet) find(recordID string) int {
	for i := range rs.Results {
		if rs.Results[i].RecordID == recordID {
			return i
		}
	}
	return -1
}

// Add inserts a result, merging by record id. On a duplicate sighting each
// backend-dimension score is raised to the maximum seen so far, never summed,
// and the combined score is recomputed as the sum of the per-backend weighted
// scores.
func (rs *ResultSet) Add(r Result) {
	if at := rs.find(r.RecordID); at >= 0 {
		existing := &rs.Results[at]

		if r.VectorScore > existing.VectorScore {
			existing.VectorScore = r.VectorScore
			existing.FromVector = true
		}
		if r.GraphScore > existing.GraphScore {
			existing.GraphScore = r.GraphScore
			existing.FromGraph = true
		}
		if r.KeywordScore > existing.KeywordScore {
			existing.KeywordScore = r.KeywordScore
			existing.FromKeyword = true
		}
		if r.WorkingScore > existing.WorkingScore {
			existing.WorkingScore = r.WorkingScore
			existing.FromWorking = true
		}
		if existing.Content == "" && r.Content != "" {
			existing.Content = r.Content
		}

		existing.Score = existing.VectorScore + existing.GraphScore +
			existing.KeywordScore + existing.WorkingScore
		return
	}

	rs.Results = append(rs.Results, r)
}
