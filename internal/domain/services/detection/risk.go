package detection

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"hyaluron-watch/internal/config"
	"hyaluron-watch/internal/domain/models"
)

// ErrInvalidWeights is returned for negative signal weights
var ErrInvalidWeights = errors.New("invalid risk weights")

// ProfileWeights are the contributions of each signal to a profile score
type ProfileWeights struct {
	Trigger    float64
	Price      float64
	Contact    float64
	Commercial float64
}

// PostWeights are the contributions of each signal to a post score
type PostWeights struct {
	Trigger    float64
	Price      float64
	Commercial float64
}

// Weights groups both weight tables
type Weights struct {
	Profile ProfileWeights
	Post    PostWeights
}

// DefaultWeights gives a single post more weight for a trigger keyword than
// a profile bio, since a post is more likely the advertisement itself.
func DefaultWeights() Weights {
	return Weights{
		Profile: ProfileWeights{Trigger: 0.5, Price: 0.2, Contact: 0.1, Commercial: 0.2},
		Post:    PostWeights{Trigger: 0.6, Price: 0.2, Commercial: 0.2},
	}
}

// WeightsFromConfig maps the detection config section onto Weights
func WeightsFromConfig(cfg config.DetectionConfig) Weights {
	return Weights{
		Profile: ProfileWeights{
			Trigger:    cfg.ProfileWeights.Trigger,
			Price:      cfg.ProfileWeights.Price,
			Contact:    cfg.ProfileWeights.Contact,
			Commercial: cfg.ProfileWeights.Commercial,
		},
		Post: PostWeights{
			Trigger:    cfg.PostWeights.Trigger,
			Price:      cfg.PostWeights.Price,
			Commercial: cfg.PostWeights.Commercial,
		},
	}
}

// Validate rejects negative weights, which would break monotonic scoring
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"profile.trigger":    w.Profile.Trigger,
		"profile.price":      w.Profile.Price,
		"profile.contact":    w.Profile.Contact,
		"profile.commercial": w.Profile.Commercial,
		"post.trigger":       w.Post.Trigger,
		"post.price":         w.Post.Price,
		"post.commercial":    w.Post.Commercial,
	} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s = %v", ErrInvalidWeights, name, v)
		}
	}
	return nil
}

// RiskEngine turns extracted features into 0-100 risk scores
type RiskEngine struct {
	extractor *Extractor
	scorer    *CommercialScorer
	weights   Weights
	now       func() time.Time
}

// NewRiskEngine creates a risk engine
func NewRiskEngine(extractor *Extractor, scorer *CommercialScorer, weights Weights) (*RiskEngine, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &RiskEngine{
		extractor: extractor,
		scorer:    scorer,
		weights:   weights,
		now:       time.Now,
	}, nil
}

// Extractor exposes the engine's feature extractor
func (r *RiskEngine) Extractor() *Extractor {
	return r.extractor
}

// AnalyzeProfile scores the profile description and post text together.
// Only contact details found in that text count; the record's own email
// field does not.
func (r *RiskEngine) AnalyzeProfile(p models.RawProfile) models.RiskAssessment {
	text := joinNonEmpty(p.Description, p.PostText)
	extraction := r.extractor.Extract(text)
	commercial := r.scorer.Score(text)

	w := r.weights.Profile
	risk := 0.0
	if extraction.ContainsTriggerKeyword {
		risk += w.Trigger
	}
	if len(extraction.Prices) > 0 {
		risk += w.Price
	}
	if extraction.HasContact() {
		risk += w.Contact
	}
	risk += commercial * w.Commercial

	return models.RiskAssessment{
		RiskScore:       scale(risk),
		Extraction:      extraction,
		CommercialScore: commercial,
		AnalyzedAt:      r.now(),
	}
}

// AnalyzePost scores a single post text
func (r *RiskEngine) AnalyzePost(postText string) models.PostAssessment {
	extraction := r.extractor.Extract(postText)
	commercial := r.scorer.Score(postText)

	w := r.weights.Post
	risk := 0.0
	if extraction.ContainsTriggerKeyword {
		risk += w.Trigger
	}
	if len(extraction.Prices) > 0 {
		risk += w.Price
	}
	risk += commercial * w.Commercial

	return models.PostAssessment{
		RiskAssessment: models.RiskAssessment{
			RiskScore:       scale(risk),
			Extraction:      extraction,
			CommercialScore: commercial,
			AnalyzedAt:      r.now(),
		},
		ContainsHyaluronPen: extraction.ContainsTriggerKeyword,
		ContainsPrice:       len(extraction.Prices) > 0,
		PriceMentioned:      FormatPrices(r.extractor.PriceMentions(postText)),
	}
}

// FormatPrices renders amounts as "79.00€, 99.00€"; empty input yields ""
func FormatPrices(prices []float64) string {
	if len(prices) == 0 {
		return ""
	}
	parts := make([]string, len(prices))
	for i, p := range prices {
		parts[i] = fmt.Sprintf("%.2f€", p)
	}
	return strings.Join(parts, ", ")
}

func scale(risk float64) float64 {
	return math.Max(0, math.Min(risk*100, 100))
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
