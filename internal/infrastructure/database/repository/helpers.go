package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"hyaluron-watch/internal/domain/models"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// oneOrNil maps "no rows" to a nil result
func oneOrNil[T any](v *T, err error) (*T, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// ProfileFromRaw maps a scored raw profile onto its persisted form. The
// e-mail and phone fall back to the first address found in the text.
func ProfileFromRaw(platform string, raw models.RawProfile) models.Profile {
	p := models.Profile{
		Platform:    platform,
		ProfileName: strings.TrimSpace(raw.ProfileName),
		ProfileLink: raw.ProfileLink,
		Description: raw.Description,
		Email:       strings.TrimSpace(raw.Email),
		Location:    strings.TrimSpace(raw.Location),
	}
	if p.Platform == "" {
		p.Platform = raw.Platform
	}
	if raw.Analysis != nil {
		p.RiskScore = raw.Analysis.RiskScore
		if p.Email == "" {
			p.Email = first(raw.Analysis.Extraction.Emails)
		}
		p.Phone = first(raw.Analysis.Extraction.Phones)
		if p.Location == "" {
			p.Location = first(raw.Analysis.Extraction.Locations)
		}
	}
	if p.ProfileName == "" {
		p.ProfileName = p.ProfileLink
	}
	return p
}
