// Package engram is an embedding-based retrieval engine for CI session
// memory. Each CI (conversational intelligence) owns an exact vector store
// over its memory records; recall combines that store with SQLite-backed
// graph and keyword collaborators through a synthesis engine, and an HNSW
// index can be built from a store snapshot for approximate search.
//
// Quick start:
//
//	mem, err := engram.Open(engram.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer mem.Close()
//
//	ctx := context.Background()
//	mem.Store(ctx, "ci_alpha", "", "the cat sat on the mat")
//	results, _ := mem.RecallSynthesized(ctx, "ci_alpha", "cat", nil)
package engram
