// Package strategy decides how much of a document a consumer receives.
//
// A consumer cannot accept responses above a hard ceiling, so every
// document is sized by the byte length of its flattened text and delivered
// in one of three tiers:
//
//	L <= FullLimit                   full: whole tree plus all text
//	FullLimit < L <= ChunkThreshold  structured: bounded overview only
//	L > ChunkThreshold               chunked: overview plus chunk map
//
// The default FullLimit equals ChunkThreshold, which leaves the structured
// band empty until a smaller full_limit is configured.
//
// A full envelope whose encoding still exceeds the hard ceiling is
// downgraded to structured. Chunk content is never cached; Chunk recomputes
// the split from the document on every request.
package strategy
