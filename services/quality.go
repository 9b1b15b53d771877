package services

import "os"

// LowQualityThreshold is the score below which an image is rejected without
// spending a model call on it.
const LowQualityThreshold = 0.3

// ScoreImageBytes rates an image purely by its byte size. Tiny files are
// almost always thumbnails or broken uploads and analysis on them is noise.
func ScoreImageBytes(sizeBytes int64) float64 {
	sizeKB := float64(sizeBytes) / 1024
	switch {
	case sizeKB < 5:
		return 0.1
	case sizeKB < 20:
		return 0.4
	case sizeKB < 100:
		return 0.7
	case sizeKB < 500:
		return 0.9
	default:
		return 1.0
	}
}

// ScoreImageFile stats the file at path and scores it. Unreadable files get a
// middling score so a transient filesystem error does not hard-reject an item.
func ScoreImageFile(path string) float64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0.3
	}
	return ScoreImageBytes(info.Size())
}
