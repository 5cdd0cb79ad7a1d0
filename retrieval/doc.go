// Package retrieval contains concrete Retriever implementations. The
// retriever contract and Passage type reside in the core package. Import
// github.com/hupe1980/agentcrew/core and depend on core.Retriever in your
// code; select an implementation at wiring time.
//
// ChromemIndex embeds a chromem-go vector store (persistent or in-memory)
// with pluggable embedding backends and is the production choice for the
// retrieval-augmented agent variant. StaticIndex is a substring matcher for
// tests and offline demos.
package retrieval
