package model

// Chunk is a bounded segment of a source document.
// Text is always source[StartOffset:EndOffset].
type Chunk struct {
	Text          string `json:"text"`
	Index         int    `json:"index"`
	TotalChunks   int    `json:"total_chunks"`
	EstimatedSize int    `json:"estimated_size"`
	StartOffset   int    `json:"start_offset"` // Byte offset into the source text
	EndOffset     int    `json:"end_offset"`   // Exclusive
	SectionLabel  string `json:"section_label,omitempty"`
	SectionIndex  int    `json:"section_index"`
}
