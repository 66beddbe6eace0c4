package grading

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubOCRExtractText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "answers.pdf")
	require.NoError(t, os.WriteFile(path, []byte("doc"), 0o644))

	result, err := NewStubOCR().ExtractText(context.Background(), path)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Text)
	assert.Equal(t, 0.95, result.Confidence)
	assert.Equal(t, "en", result.Language)
}

func TestStubOCRRejectsUnsupportedType(t *testing.T) {
	_, err := NewStubOCR().ExtractText(context.Background(), "answers.docx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestStubOCRMissingFile(t *testing.T) {
	_, err := NewStubOCR().ExtractText(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
}

func TestStubGraderScoreWithinBounds(t *testing.T) {
	grader := NewStubGrader("test-model", 42)

	for i := 0; i < 50; i++ {
		result, err := grader.Grade(context.Background(), "some answer text", Criteria{Subject: "Physics", MaxMarks: 80})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.Score, 0.0)
		assert.LessOrEqual(t, result.Score, 80.0)
		assert.Equal(t, "test-model", result.Model)
	}
}

func TestStubGraderRequiresPositiveMaxMarks(t *testing.T) {
	grader := NewStubGrader("", 1)
	_, err := grader.Grade(context.Background(), "text", Criteria{MaxMarks: 0})
	require.Error(t, err)
}

func TestStubGraderDefaultModel(t *testing.T) {
	grader := NewStubGrader("", 1)
	result, err := grader.Grade(context.Background(), "text", Criteria{MaxMarks: 10})
	require.NoError(t, err)
	assert.Equal(t, "gpt-3.5-turbo", result.Model)
}
