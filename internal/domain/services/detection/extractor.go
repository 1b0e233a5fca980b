package detection

import (
	"fmt"
	"slices"
	"strconv"

	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/pkg/logger"
)

// PriceMatch is one amount matched by one price pattern
type PriceMatch struct {
	Value   float64
	Offset  int // byte offset of the amount digits
	Raw     string
	Pattern int
}

// Extractor pulls trigger keywords, prices, contacts and cities out of text.
// All methods are pure and return empty results for empty input.
type Extractor struct {
	patterns      *PatternLibrary
	maxTextLength int
	logger        *logger.Logger
}

// NewExtractor creates a feature extractor. Text longer than maxTextLength
// bytes is truncated before evaluation; zero disables the limit.
func NewExtractor(patterns *PatternLibrary, maxTextLength int, log *logger.Logger) *Extractor {
	return &Extractor{
		patterns:      patterns,
		maxTextLength: maxTextLength,
		logger:        log.WithComponent("extractor"),
	}
}

// Extract runs every extraction on text
func (e *Extractor) Extract(text string) models.ExtractionResult {
	return models.ExtractionResult{
		ContainsTriggerKeyword: e.DetectTrigger(text),
		Prices:                 nonNil(e.ExtractPrices(text)),
		Emails:                 nonNil(e.ExtractEmails(text)),
		Phones:                 nonNil(e.ExtractPhones(text)),
		Locations:              nonNil(e.ExtractLocations(text)),
	}
}

// DetectTrigger reports whether any trigger keyword occurs in text
func (e *Extractor) DetectTrigger(text string) bool {
	text = e.prepare(text)
	if text == "" {
		return false
	}
	hit := evaluate(e.logger, "trigger", func() []bool {
		return []bool{e.patterns.trigger.Contains([]byte(lowerGerman(text)))}
	})
	return len(hit) == 1 && hit[0]
}

// MatchedKeywords returns the distinct trigger keywords found in text
func (e *Extractor) MatchedKeywords(text string) []string {
	text = e.prepare(text)
	if text == "" {
		return nil
	}
	return evaluate(e.logger, "trigger", func() []string {
		hits := e.patterns.trigger.MatchThreadSafe([]byte(lowerGerman(text)))
		slices.Sort(hits)
		out := make([]string, 0, len(hits))
		for _, idx := range hits {
			out = append(out, e.patterns.keywords[idx])
		}
		return out
	})
}

// PriceMatches applies every price pattern independently and returns the
// matches in pattern order, then position order. The same amount can appear
// once per pattern that matches it.
func (e *Extractor) PriceMatches(text string) []PriceMatch {
	text = e.prepare(text)
	if text == "" {
		return nil
	}

	var out []PriceMatch
	for i, re := range e.patterns.prices {
		matches := evaluate(e.logger, fmt.Sprintf("price[%d]", i), func() []PriceMatch {
			var found []PriceMatch
			for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
				if loc[2] < 0 {
					continue
				}
				whole := text[loc[2]:loc[3]]
				cents := "00"
				if loc[4] >= 0 {
					cents = text[loc[4]:loc[5]]
				}
				value, err := strconv.ParseFloat(whole+"."+cents, 64)
				if err != nil {
					continue
				}
				found = append(found, PriceMatch{
					Value:   value,
					Offset:  loc[2],
					Raw:     text[loc[0]:loc[1]],
					Pattern: i,
				})
			}
			return found
		})
		out = append(out, matches...)
	}
	return out
}

// ExtractPrices returns the amount of every price match in pattern order,
// then position order. A mention matched by two patterns appears twice.
func (e *Extractor) ExtractPrices(text string) []float64 {
	matches := e.PriceMatches(text)
	if len(matches) == 0 {
		return nil
	}

	prices := make([]float64, len(matches))
	for i, m := range matches {
		prices[i] = m.Value
	}
	return prices
}

// PriceMentions returns one amount per price mention, in text order.
// Matches from different patterns that start on the same digits count once.
func (e *Extractor) PriceMentions(text string) []float64 {
	matches := e.PriceMatches(text)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[int]struct{}, len(matches))
	unique := make([]PriceMatch, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m.Offset]; ok {
			continue
		}
		seen[m.Offset] = struct{}{}
		unique = append(unique, m)
	}
	slices.SortStableFunc(unique, func(a, b PriceMatch) int {
		return a.Offset - b.Offset
	})

	prices := make([]float64, len(unique))
	for i, m := range unique {
		prices[i] = m.Value
	}
	return prices
}

// ExtractEmails returns every e-mail address in order of occurrence
func (e *Extractor) ExtractEmails(text string) []string {
	text = e.prepare(text)
	if text == "" {
		return nil
	}
	return evaluate(e.logger, "email", func() []string {
		return e.patterns.email.FindAllString(text, -1)
	})
}

// ExtractPhones returns raw phone matches, pattern by pattern
func (e *Extractor) ExtractPhones(text string) []string {
	text = e.prepare(text)
	if text == "" {
		return nil
	}
	var out []string
	for i, re := range e.patterns.phones {
		out = append(out, evaluate(e.logger, fmt.Sprintf("phone[%d]", i), func() []string {
			return re.FindAllString(text, -1)
		})...)
	}
	return out
}

// ExtractLocations returns the canonical city name for every token that
// names a known city. Repeats are kept.
func (e *Extractor) ExtractLocations(text string) []string {
	text = e.prepare(text)
	if text == "" {
		return nil
	}
	return evaluate(e.logger, "locations", func() []string {
		var out []string
		for _, tok := range tokenize(lowerGerman(text)) {
			if city, ok := e.patterns.city(tok); ok {
				out = append(out, city)
			}
		}
		return out
	})
}

func (e *Extractor) prepare(text string) string {
	clipped, cut := clip(text, e.maxTextLength)
	if cut {
		e.logger.Warn().
			Int("length", len(text)).
			Int("max_length", e.maxTextLength).
			Msg("text truncated before extraction")
	}
	return clipped
}

// evaluate runs one pattern and turns a panic into "no match" for that
// pattern only.
func evaluate[T any](log *logger.Logger, pattern string, fn func() []T) (out []T) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("pattern", pattern).
				Interface("panic", r).
				Msg("pattern evaluation failed")
			out = nil
		}
	}()
	return fn()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
