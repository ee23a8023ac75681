// Package dedupe decides whether an incoming article has been seen before.
// The cache is an accelerator only; the store is authoritative, and the
// database unique constraints remain the final arbiter under races.
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/newspulse/newspulse/internal/cache"
	"github.com/newspulse/newspulse/internal/news"
	"github.com/newspulse/newspulse/internal/storage"
)

// Store is the article lookup surface the gate needs.
type Store interface {
	FindBySourceID(source, sourceID string) (news.Article, error)
	FindByURL(url string) (news.Article, error)
}

// Gate answers "seen before?" for incoming articles and records markers for
// the ones that get stored.
type Gate struct {
	store  Store
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewGate creates a Gate. ttl bounds how long seen-markers live in the
// cache; values <= 0 default to one week.
func NewGate(store Store, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Gate {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: store, cache: c, ttl: ttl, logger: logger}
}

func markerKey(source, sourceID string) string {
	return fmt.Sprintf("seen:%s:%s", source, sourceID)
}

// Seen reports whether an article with this identity already exists. The
// cache marker is checked first; on a miss the store is consulted by natural
// key and then by URL, and a hit backfills the marker so the next check is
// cheap. Cache errors degrade to store lookups instead of failing ingestion.
func (g *Gate) Seen(ctx context.Context, source, sourceID, url string) (bool, error) {
	key := markerKey(source, sourceID)

	if _, ok, err := g.cache.Get(ctx, key); err != nil {
		g.logger.Warn("dedupe cache unavailable, falling back to store", "error", err)
	} else if ok {
		return true, nil
	}

	if _, err := g.store.FindBySourceID(source, sourceID); err == nil {
		g.backfill(ctx, key)
		return true, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("looking up article by source id: %w", err)
	}

	if url != "" {
		if _, err := g.store.FindByURL(url); err == nil {
			g.backfill(ctx, key)
			return true, nil
		} else if !errors.Is(err, storage.ErrNotFound) {
			return false, fmt.Errorf("looking up article by url: %w", err)
		}
	}

	return false, nil
}

// MarkSeen records the cache marker for a stored article. Best-effort; the
// store lookup path covers cache losses.
func (g *Gate) MarkSeen(ctx context.Context, source, sourceID string) {
	g.backfill(ctx, markerKey(source, sourceID))
}

func (g *Gate) backfill(ctx context.Context, key string) {
	if err := g.cache.SetTTL(ctx, key, "1", g.ttl); err != nil {
		g.logger.Warn("failed to write dedupe marker", "key", key, "error", err)
	}
}
