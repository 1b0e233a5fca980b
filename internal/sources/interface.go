package sources

import (
	"context"
	"errors"

	"hyaluron-watch/internal/domain/models"
)

// ErrScraperDisabled is returned when fetching through a disabled scraper
var ErrScraperDisabled = errors.New("scraper is disabled")

// Scraper fetches raw profile records for one platform
type Scraper interface {
	// Platform returns the platform name used as the batch key
	Platform() string

	// Fetch retrieves raw records matching a search term. Records whose
	// platform field is empty are stamped with Platform().
	Fetch(ctx context.Context, term string) ([]models.RawProfile, error)

	// IsEnabled returns whether this scraper should be used
	IsEnabled() bool
}

// BaseScraper provides the common platform/enabled bookkeeping
type BaseScraper struct {
	platform string
	enabled  bool
}

// NewBaseScraper creates a new base scraper
func NewBaseScraper(platform string, enabled bool) *BaseScraper {
	return &BaseScraper{
		platform: platform,
		enabled:  enabled,
	}
}

// Platform returns the platform name
func (b *BaseScraper) Platform() string {
	return b.platform
}

// IsEnabled returns whether this scraper is enabled
func (b *BaseScraper) IsEnabled() bool {
	return b.enabled
}

// SetEnabled toggles the scraper
func (b *BaseScraper) SetEnabled(enabled bool) {
	b.enabled = enabled
}

// Stamp fills in the platform on records that lack one
func (b *BaseScraper) Stamp(profiles []models.RawProfile) []models.RawProfile {
	for i := range profiles {
		if profiles[i].Platform == "" {
			profiles[i].Platform = b.platform
		}
	}
	return profiles
}

// TermProvider is implemented by scrapers that bring their own targets,
// such as a fixed list of websites. Monitors use these terms instead of
// the configured search terms.
type TermProvider interface {
	Terms() []string
}
