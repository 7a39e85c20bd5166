// Package chunker splits a document's flattened text into overlapping chunks.
//
// Chunks are byte windows over the text produced by types.Document.FlatText.
// Each window is at most ChunkSize bytes and prefers to end on a natural
// break so a consumer reading chunk N and chunk N+1 sees whole lines where
// possible.
//
// # Basic Usage
//
//	c, err := chunker.New(chunker.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	chunks := c.Split(doc.FlatText())
//	for _, ch := range chunks {
//	    fmt.Printf("chunk %d/%d: bytes %d-%d\n", ch.Index, ch.TotalChunks, ch.Start, ch.End)
//	}
//
// # Boundary Search
//
// For every chunk but the last, the naive cut at cursor+ChunkSize is moved:
//   - back to just after the last "\n" within ParagraphWindow bytes, or
//   - back to just after the last ". " within SentenceWindow bytes, or
//   - nowhere, keeping the naive cut.
//
// The next chunk starts Overlap bytes before the previous end. Breaks closer
// to the cursor than Overlap are ignored, which keeps the cursor moving and
// the split finite for any text.
//
// # Guarantees
//
//   - Chunks are ordered and their union covers the whole text
//   - Neighbouring chunks share at most Overlap bytes
//   - No chunk splits a UTF-8 encoded character
//   - Every chunk records the same TotalChunks
package chunker
