package semantic

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/kirillkom/lexrag/internal/core/domain"
)

type Config struct {
	SimilarityThreshold float64
	TTL                 time.Duration
	Capacity            int
}

func (c Config) normalize() Config {
	out := c
	if out.SimilarityThreshold <= 0 || out.SimilarityThreshold > 1 {
		out.SimilarityThreshold = 0.95
	}
	if out.TTL <= 0 {
		out.TTL = time.Hour
	}
	if out.Capacity <= 0 {
		out.Capacity = 512
	}
	return out
}

type entry struct {
	key       []float32 // unit-normalized
	answer    domain.Answer
	createdAt time.Time
	hits      int64
}

// Cache is the semantic response cache: lookups are similarity searches
// over the stored embedding keys, implemented as a bounded linear scan.
// Cache sizes are small relative to the document index, so no index
// structure is warranted.
type Cache struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	entries []*entry // append order doubles as age order
}

func New(cfg Config, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{cfg: cfg.normalize(), logger: logger}
}

// Lookup scans for the most similar non-expired entry and returns a copy
// of its answer when similarity clears the threshold. Entries whose key
// dimension does not match the probe are corrupt relative to the current
// embedding model and are treated as misses.
func (c *Cache) Lookup(_ context.Context, embedding domain.QueryEmbedding) (*domain.Answer, bool) {
	probe := normalize(embedding.Vector)
	if probe == nil {
		return nil, false
	}

	now := time.Now()
	c.mu.RLock()
	var best *entry
	bestScore := 0.0
	for _, e := range c.entries {
		if now.Sub(e.createdAt) > c.cfg.TTL {
			continue
		}
		if len(e.key) != len(probe) {
			c.logger.Warn("cache_entry_corrupt", "reason", "dimension mismatch", "have", len(e.key), "want", len(probe))
			continue
		}
		score := dot(e.key, probe)
		if score > bestScore {
			bestScore = score
			best = e
		}
	}
	c.mu.RUnlock()

	if best == nil || bestScore < c.cfg.SimilarityThreshold {
		return nil, false
	}

	c.mu.Lock()
	best.hits++
	answer := best.answer
	c.mu.Unlock()
	return &answer, true
}

// Store appends the answer under its embedding key, evicting expired
// entries and, at capacity, the oldest one. Callers gate on confidence;
// the cache itself stores whatever it is handed.
func (c *Cache) Store(_ context.Context, embedding domain.QueryEmbedding, answer domain.Answer) {
	key := normalize(embedding.Vector)
	if key == nil {
		return
	}

	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropExpiredLocked(now)
	if len(c.entries) >= c.cfg.Capacity {
		c.entries = c.entries[1:]
	}
	c.entries = append(c.entries, &entry{
		key:       key,
		answer:    answer,
		createdAt: now,
	})
}

// PurgeDocument removes every entry whose answer cites the document.
// Driven by the ingestion pipeline's invalidation feed; best effort.
func (c *Cache) PurgeDocument(documentID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.entries[:0]
	purged := 0
	for _, e := range c.entries {
		if answerCites(e.answer, documentID) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	c.entries = kept
	if purged > 0 {
		c.logger.Info("cache_purged_document", "document_id", documentID, "entries", purged)
	}
	return purged
}

// StartJanitor sweeps expired entries until the context ends.
func (c *Cache) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				c.dropExpiredLocked(time.Now())
				c.mu.Unlock()
			}
		}
	}()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) dropExpiredLocked(now time.Time) {
	kept := c.entries[:0]
	for _, e := range c.entries {
		if now.Sub(e.createdAt) <= c.cfg.TTL {
			kept = append(kept, e)
		}
	}
	c.entries = kept
}

func answerCites(answer domain.Answer, documentID string) bool {
	for _, src := range answer.Sources {
		if src.DocumentID == documentID {
			return true
		}
	}
	return false
}

func normalize(v []float32) []float32 {
	if len(v) == 0 {
		return nil
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return nil
	}
	inv := 1.0 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
