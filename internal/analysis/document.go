package analysis

// Document is the canonical in-memory shape of an analysis payload. Older
// schema versions lack some fields; Normalize fills them in as empty so the
// pipeline never branches on version.
type Document struct {
	SchemaVersion int
	Topics        []Topic
	Chunks        []Chunk
	Summaries     []ChunkSummary
}

type Topic struct {
	Title            string
	Code             string
	Description      string
	SupportingChunks []int
	KeyTerms         []string
}

type Chunk struct {
	Index int
	Kind  string
	Page  int
	Text  string
}

type ChunkSummary struct {
	Index    int
	Summary  string
	KeyTerms []string
}
