package ai

import (
	"fmt"

	"github.com/kiranshivaraju/vidlens/internal/ai/gemini"
	"github.com/kiranshivaraju/vidlens/internal/config"
	"github.com/kiranshivaraju/vidlens/pkg/models"
)

// NewProvider constructs the appropriate AI provider based on config.
// Called once at startup.
func NewProvider(cfg config.AIConfig) (models.AssetProvider, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.NewProvider(cfg.Gemini)
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be gemini", cfg.Provider)
	}
}
