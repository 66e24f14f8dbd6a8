// Package models contains shared data models used across the vidlens codebase.
package models

import "context"

// AssetState is the remote processing state of an uploaded video.
type AssetState string

const (
	AssetProcessing AssetState = "PROCESSING"
	AssetActive     AssetState = "ACTIVE"
	AssetFailed     AssetState = "FAILED"
)

// Asset is the inference service's handle to an uploaded file.
type Asset struct {
	Name     string     `json:"name"`
	URI      string     `json:"uri"`
	MIMEType string     `json:"mime_type"`
	State    AssetState `json:"state"`
}

// AssetProvider is the remote video-understanding boundary. Never call a
// concrete vendor client directly, always inject this interface.
type AssetProvider interface {
	// Upload sends a local file and returns the remote handle.
	Upload(ctx context.Context, path, mimeType string) (Asset, error)
	// Status fetches the current remote state of an asset.
	Status(ctx context.Context, asset Asset) (AssetState, error)
	// Generate runs the prompt against the asset and returns the model text.
	Generate(ctx context.Context, asset Asset, prompt string) (string, error)
	// Name returns the provider identifier (e.g. "gemini").
	Name() string
	// Model returns the model the provider generates with.
	Model() string
}

// ProgressFunc receives advisory progress fractions in [0, 1].
type ProgressFunc func(fraction float64)
