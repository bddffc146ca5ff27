package embedding

import "math"

// Tokenizer bounds. Tokens outside the length range carry little signal
// (stop-word fragments, hashes) and are dropped.
const (
	minTokenLen = 2
	maxTokenLen = 32
	maxTokens   = 256

	termHashMultiplier = 31
)

// token is one distinct term with its in-document frequency.
type token struct {
	text string
	freq int
}

// tokenize splits text into lower-cased alphanumeric runs, merging repeats
// into frequency counts. At most maxTokens distinct terms are kept.
func tokenize(text string) []token {
	var tokens []token
	idx := make(map[string]int)

	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		length := end - start
		word := text[start:end]
		start = -1
		if length < minTokenLen || length > maxTokenLen {
			return
		}
		lowered := make([]byte, length)
		for i := 0; i < length; i++ {
			lowered[i] = lowerByte(word[i])
		}
		term := string(lowered)
		if at, ok := idx[term]; ok {
			tokens[at].freq++
			return
		}
		if len(tokens) >= maxTokens {
			return
		}
		idx[term] = len(tokens)
		tokens = append(tokens, token{text: term, freq: 1})
	}

	for i := 0; i < len(text); i++ {
		if isAlnum(lowerByte(text[i])) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))

	return tokens
}

// IDFStats holds corpus document-frequency statistics for TF-IDF weighting,
// scoped to one CI. It is an explicit, injectable component rather than a
// hidden global: construct one per CI and share it across that CI's
// embeddings.
//
// IDFStats is not internally locked. Concurrent document-store calls for the
// same CI must be serialized externally; query embeddings never touch it.
type IDFStats struct {
	docFreq   map[string]int
	totalDocs int
}

// NewIDFStats creates empty corpus statistics.
func NewIDFStats() *IDFStats {
	return &IDFStats{docFreq: make(map[string]int)}
}

// AddDocument updates the statistics with the distinct terms of one stored
// document. Called after the document has been embedded, never for queries.
func (s *IDFStats) AddDocument(text string) {
	for _, t := range tokenize(text) {
		s.docFreq[t.text]++
	}
	s.totalDocs++
}

// Reset clears all accumulated statistics.
func (s *IDFStats) Reset() {
	s.docFreq = make(map[string]int)
	s.totalDocs = 0
}

// DocCount returns the number of documents folded into the statistics.
func (s *IDFStats) DocCount() int {
	return s.totalDocs
}

// VocabSize returns the number of distinct terms seen.
func (s *IDFStats) VocabSize() int {
	return len(s.docFreq)
}

// StatsSnapshot is a copied view of IDFStats, used to assert that an
// operation left the corpus statistics untouched.
type StatsSnapshot struct {
	TotalDocs int
	DocFreq   map[string]int
}

// Snapshot returns a deep copy of the current statistics.
func (s *IDFStats) Snapshot() StatsSnapshot {
	freq := make(map[string]int, len(s.docFreq))
	for term, df := range s.docFreq {
		freq[term] = df
	}
	return StatsSnapshot{TotalDocs: s.totalDocs, DocFreq: freq}
}

// idf computes the inverse document frequency for a term. Known terms use
// Laplace-smoothed ln((docs+1)/df); unknown terms fall back to ln(docs+1)
// when the corpus is non-empty, else a neutral 1.0.
func (s *IDFStats) idf(term string) float32 {
	df, known := s.docFreq[term]
	if known && s.totalDocs > 0 && df > 0 {
		return float32(math.Log(float64(s.totalDocs+1) / float64(df)))
	}
	if s.totalDocs > 0 {
		return float32(math.Log(float64(s.totalDocs + 1)))
	}
	return 1.0
}

// hashTerm maps a term to a vector dimension with a multiplicative hash.
func hashTerm(term string, dims int) int {
	var h uint32
	for i := 0; i < len(term); i++ {
		h = h*termHashMultiplier + uint32(term[i])
	}
	return int(h % uint32(dims))
}

// tfidfVector embeds text against the current corpus statistics. The stats
// are read, never written: document-frequency updates are the caller's
// responsibility and happen strictly after embedding.
func tfidfVector(text string, dims int, stats *IDFStats) []float32 {
	values := make([]float32, dims)

	tokens := tokenize(text)
	total := 0
	for _, t := range tokens {
		total += t.freq
	}
	if total == 0 {
		// Degenerate document: zero vector, similarity 0 downstream.
		return values
	}

	for _, t := range tokens {
		tf := float32(t.freq) / float32(total)
		weight := tf * stats.idf(t.text)

		dim := hashTerm(t.text, dims)
		values[dim] += weight
		if dim > 0 {
			values[dim-1] += weight * 0.5
		}
		if dim < dims-1 {
			values[dim+1] += weight * 0.5
		}
	}

	normalize(values)
	return values
}
