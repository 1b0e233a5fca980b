package detection

import (
	"math"

	"hyaluron-watch/pkg/logger"
)

// DefaultAmplification scales the raw commercial density, since commercial
// words are a small share even of plainly commercial posts.
const DefaultAmplification = 3.0

// CommercialScorer measures how densely text uses commercial vocabulary
type CommercialScorer struct {
	patterns      *PatternLibrary
	amplification float64
	maxTextLength int
	logger        *logger.Logger
}

// NewCommercialScorer creates a scorer. A non-positive amplification falls
// back to DefaultAmplification.
func NewCommercialScorer(patterns *PatternLibrary, amplification float64, maxTextLength int, log *logger.Logger) *CommercialScorer {
	if amplification <= 0 {
		amplification = DefaultAmplification
	}
	return &CommercialScorer{
		patterns:      patterns,
		amplification: amplification,
		maxTextLength: maxTextLength,
		logger:        log.WithComponent("commercial_scorer"),
	}
}

// Score returns the share of non-stopword tokens that are commercial
// indicators, amplified and capped to [0, 1]. Tokens must equal an indicator
// exactly; compounds that merely contain one do not count.
func (s *CommercialScorer) Score(text string) float64 {
	text, _ = clip(text, s.maxTextLength)
	if text == "" {
		return 0
	}

	counts := evaluate(s.logger, "commercial", func() []int {
		total, commercial := 0, 0
		for _, tok := range tokenize(lowerGerman(text)) {
			if s.patterns.isStopword(tok) {
				continue
			}
			total++
			if s.patterns.isCommercial(tok) {
				commercial++
			}
		}
		return []int{total, commercial}
	})
	if len(counts) != 2 || counts[0] == 0 {
		return 0
	}

	raw := float64(counts[1]) / float64(counts[0])
	return math.Min(raw*s.amplification, 1.0)
}
