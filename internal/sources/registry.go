package sources

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/pkg/logger"
)

// Registry manages scrapers in registration order. Batches built from a
// registry list platforms in that same order.
type Registry struct {
	mu       sync.RWMutex
	scrapers []Scraper
	index    map[string]int
	logger   *logger.Logger
}

// NewRegistry creates a new scraper registry
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		index:  make(map[string]int),
		logger: log.WithComponent("scraper-registry"),
	}
}

// Register adds a scraper. Platform names are unique, case-insensitive.
func (r *Registry) Register(s Scraper) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(s.Platform())
	if _, exists := r.index[key]; exists {
		return fmt.Errorf("scraper already registered: %s", s.Platform())
	}

	r.index[key] = len(r.scrapers)
	r.scrapers = append(r.scrapers, s)
	r.logger.Info().
		Str("platform", s.Platform()).
		Bool("enabled", s.IsEnabled()).
		Msg("registered scraper")

	return nil
}

// Get returns a scraper by platform name
func (r *Registry) Get(platform string) (Scraper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[strings.ToLower(platform)]
	if !ok {
		return nil, false
	}
	return r.scrapers[i], true
}

// List returns all registered scrapers in registration order
func (r *Registry) List() []Scraper {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Scraper, len(r.scrapers))
	copy(out, r.scrapers)
	return out
}

// ListEnabled returns enabled scrapers in registration order. A non-empty
// platforms filter restricts the result to those names.
func (r *Registry) ListEnabled(platforms ...string) []Scraper {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var want map[string]bool
	if len(platforms) > 0 {
		want = make(map[string]bool, len(platforms))
		for _, p := range platforms {
			want[strings.ToLower(p)] = true
		}
	}

	out := make([]Scraper, 0, len(r.scrapers))
	for _, s := range r.scrapers {
		if !s.IsEnabled() {
			continue
		}
		if want != nil && !want[strings.ToLower(s.Platform())] {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Count returns the number of registered scrapers
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scrapers)
}

// Fetch runs a single platform's scraper
func (r *Registry) Fetch(ctx context.Context, platform, term string) ([]models.RawProfile, error) {
	s, ok := r.Get(platform)
	if !ok {
		return nil, fmt.Errorf("scraper not found: %s", platform)
	}
	if !s.IsEnabled() {
		return nil, fmt.Errorf("%s: %w", platform, ErrScraperDisabled)
	}
	return s.Fetch(ctx, term)
}
