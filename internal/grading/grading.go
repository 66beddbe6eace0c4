// Package grading defines the external text-extraction and scoring
// collaborators invoked by the paper pipeline. The bundled implementations
// are stand-ins for a future real integration; only the interfaces are part
// of the system's contract.
package grading

import "context"

// OCRResult is the output of a text-extraction pass over one document.
type OCRResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

// OCRClient extracts text from a stored document.
type OCRClient interface {
	ExtractText(ctx context.Context, filePath string) (*OCRResult, error)
}

// Criteria parameterises a grading request.
type Criteria struct {
	Subject  string  `json:"subject"`
	MaxMarks float64 `json:"maxMarks"`
	Rubric   string  `json:"rubric"`
}

// Result is the outcome of a grading request.
type Result struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
	Model    string  `json:"model"`
}

// Grader scores extracted answer text against the criteria.
type Grader interface {
	Grade(ctx context.Context, text string, criteria Criteria) (*Result, error)
}
