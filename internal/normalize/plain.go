package normalize

// Plain passes text through, only cleaning line endings.
// Encoding problems are left for the analyzer to report.
type Plain struct{}

// NewPlain creates the plain-text normalizer
func NewPlain() *Plain {
	return &Plain{}
}

// Name returns the format name
func (p *Plain) Name() string {
	return "text"
}

// CanHandle always returns true (fallback normalizer)
func (p *Plain) CanHandle(path string, contentType string) bool {
	return true
}

// Normalize implements Normalizer
func (p *Plain) Normalize(data []byte) (string, error) {
	return cleanText(data), nil
}
