package downloader

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/vidlens/internal/cache"
	"github.com/kiranshivaraju/vidlens/pkg/models"
)

// Prober inspects a URL without downloading it.
type Prober interface {
	Probe(ctx context.Context, rawURL string) (models.MediaInfo, error)
}

// CachedProber memoizes successful probes in the cache. Cache failures are
// logged and fall through to the wrapped prober.
type CachedProber struct {
	next  Prober
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedProber(next Prober, c cache.Cache, ttl time.Duration) *CachedProber {
	return &CachedProber{next: next, cache: c, ttl: ttl}
}

func (p *CachedProber) Probe(ctx context.Context, rawURL string) (models.MediaInfo, error) {
	key := cache.ProbeKey(rawURL)

	raw, found, err := p.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("probe cache read failed", "error", err)
	}
	if found {
		var info models.MediaInfo
		if err := json.Unmarshal(raw, &info); err == nil {
			return info, nil
		}
		slog.Warn("dropping unreadable probe cache entry", "key", key)
		if err := p.cache.Delete(ctx, key); err != nil {
			slog.Warn("probe cache delete failed", "error", err)
		}
	}

	info, err := p.next.Probe(ctx, rawURL)
	if err != nil {
		return models.MediaInfo{}, err
	}

	if raw, err := json.Marshal(info); err == nil {
		if err := p.cache.Set(ctx, key, raw, p.ttl); err != nil {
			slog.Warn("probe cache write failed", "error", err)
		}
	}
	return info, nil
}

var (
	_ Prober = (*Downloader)(nil)
	_ Prober = (*CachedProber)(nil)
)
