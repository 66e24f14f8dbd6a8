// Package gemini adapts the Gemini Files and generateContent APIs to
// models.AssetProvider.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kiranshivaraju/vidlens/internal/config"
	"github.com/kiranshivaraju/vidlens/pkg/models"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

// filesAPI is the part of genai.Files the provider uses.
type filesAPI interface {
	UploadFromPath(ctx context.Context, path string, cfg *genai.UploadFileConfig) (*genai.File, error)
	Get(ctx context.Context, name string, cfg *genai.GetFileConfig) (*genai.File, error)
}

// modelsAPI is the part of genai.Models the provider uses.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Provider implements models.AssetProvider using the Gemini API.
type Provider struct {
	model string
	files filesAPI
	gen   modelsAPI
}

// NewProvider creates a Gemini provider. Request deadlines come from the
// caller's context.
func NewProvider(cfg config.GeminiConfig) (*Provider, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/"
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newProvider(cfg.Model, client.Files, client.Models), nil
}

func newProvider(model string, files filesAPI, gen modelsAPI) *Provider {
	if model == "" {
		model = defaultModel
	}
	return &Provider{model: model, files: files, gen: gen}
}

func (p *Provider) Name() string  { return "gemini" }
func (p *Provider) Model() string { return p.model }

// Upload sends the local file and returns its remote handle.
func (p *Provider) Upload(ctx context.Context, path, mimeType string) (models.Asset, error) {
	f, err := p.files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: filepath.Base(path),
	})
	if err != nil {
		return models.Asset{}, apiError(err)
	}
	if f == nil || f.Name == "" {
		return models.Asset{}, fmt.Errorf("upload response has no file name")
	}
	return toAsset(f), nil
}

// Status fetches the file resource and returns its processing state.
func (p *Provider) Status(ctx context.Context, asset models.Asset) (models.AssetState, error) {
	f, err := p.files.Get(ctx, asset.Name, nil)
	if err != nil {
		return "", apiError(err)
	}
	return toState(f.State), nil
}

// Generate sends the asset reference and prompt in one user turn and returns
// the concatenated text of the first candidate.
func (p *Provider) Generate(ctx context.Context, asset models.Asset, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromURI(asset.URI, asset.MIMEType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	resp, err := p.gen.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		return "", apiError(err)
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("response has no candidates")
	}

	var sb strings.Builder
	if c := resp.Candidates[0].Content; c != nil {
		for _, part := range c.Parts {
			if part != nil && !part.Thought {
				sb.WriteString(part.Text)
			}
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("response has no text (finish reason %s)", resp.Candidates[0].FinishReason)
	}
	return sb.String(), nil
}

func toAsset(f *genai.File) models.Asset {
	return models.Asset{
		Name:     f.Name,
		URI:      f.URI,
		MIMEType: f.MIMEType,
		State:    toState(f.State),
	}
}

func toState(s genai.FileState) models.AssetState {
	switch s {
	case genai.FileStateActive:
		return models.AssetActive
	case genai.FileStateFailed:
		return models.AssetFailed
	default:
		return models.AssetProcessing
	}
}

// apiError flattens genai API errors into "API error (status N): STATUS: message".
func apiError(err error) error {
	var val genai.APIError
	if errors.As(err, &val) {
		return fmt.Errorf("API error (status %d): %s: %s", val.Code, val.Status, val.Message)
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return fmt.Errorf("API error (status %d): %s: %s", ptr.Code, ptr.Status, ptr.Message)
	}
	return err
}

var _ models.AssetProvider = (*Provider)(nil)
