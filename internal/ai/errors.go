package ai

import "errors"

var (
	ErrInvalidVideo     = errors.New("invalid video file")
	ErrUploadFailed     = errors.New("failed to upload video")
	ErrAssetFailed      = errors.New("remote file processing failed")
	ErrGenerationFailed = errors.New("failed to analyze video")
)
