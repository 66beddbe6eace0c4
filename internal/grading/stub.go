package grading

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var supportedExtensions = map[string]struct{}{
	".pdf": {}, ".jpg": {}, ".jpeg": {}, ".png": {}, ".tiff": {}, ".bmp": {},
}

// StubOCR returns canned text for any readable document. Placeholder for a
// real OCR backend (Tesseract, a vision API, ...).
type StubOCR struct{}

// NewStubOCR constructs a stub OCR client.
func NewStubOCR() *StubOCR {
	return &StubOCR{}
}

// ExtractText validates the file and returns placeholder text.
func (s *StubOCR) ExtractText(_ context.Context, filePath string) (*OCRResult, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	if _, ok := supportedExtensions[ext]; !ok {
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("file not found for OCR processing: %w", err)
	}

	text := "Question 1: What is the capital of France?\n" +
		"Answer: Paris is the capital of France.\n\n" +
		"Question 2: Explain photosynthesis.\n" +
		"Answer: Photosynthesis is the process by which plants convert sunlight into energy."

	return &OCRResult{Text: text, Confidence: 0.95, Language: "en"}, nil
}

// StubGrader produces a uniformly random score within max marks.
type StubGrader struct {
	model string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewStubGrader constructs a stub grader reporting the given model name.
func NewStubGrader(model string, seed int64) *StubGrader {
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	return &StubGrader{model: model, rng: rand.New(rand.NewSource(seed))}
}

// Grade returns a random score in [0, maxMarks] with placeholder feedback.
func (g *StubGrader) Grade(_ context.Context, text string, criteria Criteria) (*Result, error) {
	if criteria.MaxMarks <= 0 {
		return nil, fmt.Errorf("max marks must be positive, got %v", criteria.MaxMarks)
	}

	g.mu.Lock()
	score := g.rng.Float64() * criteria.MaxMarks
	g.mu.Unlock()

	return &Result{
		Score:    float64(int(score*100)) / 100,
		Feedback: "AI feedback placeholder.",
		Model:    g.model,
	}, nil
}
