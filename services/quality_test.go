package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreImageBytes(t *testing.T) {
	assert.Equal(t, 0.1, ScoreImageBytes(4*1024))
	assert.Equal(t, 0.4, ScoreImageBytes(5*1024))
	assert.Equal(t, 0.4, ScoreImageBytes(19*1024))
	assert.Equal(t, 0.7, ScoreImageBytes(20*1024))
	assert.Equal(t, 0.7, ScoreImageBytes(99*1024))
	assert.Equal(t, 0.9, ScoreImageBytes(100*1024))
	assert.Equal(t, 0.9, ScoreImageBytes(499*1024))
	assert.Equal(t, 1.0, ScoreImageBytes(500*1024))
}

func TestScoreImageFileMissing(t *testing.T) {
	// unreadable files score 0.3, which still passes the low quality gate
	score := ScoreImageFile(filepath.Join(t.TempDir(), "nope.jpg"))
	assert.Equal(t, 0.3, score)
	assert.GreaterOrEqual(t, score, LowQualityThreshold)
}

func TestScoreImageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	err := os.WriteFile(path, make([]byte, 30*1024), 0644)
	assert.NoError(t, err)

	assert.Equal(t, 0.7, ScoreImageFile(path))
}
