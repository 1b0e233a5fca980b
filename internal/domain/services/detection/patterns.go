package detection

import (
	"errors"
	"fmt"
	"regexp"
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// ErrEmptyPatternSet is returned when a pattern set lacks trigger keywords
var ErrEmptyPatternSet = errors.New("pattern set has no trigger keywords")

// PatternSet holds the raw pattern resources. Each list can be replaced
// independently before building a PatternLibrary.
type PatternSet struct {
	TriggerKeywords      []string
	PricePatterns        []string
	EmailPattern         string
	PhonePatterns        []string
	Cities               []string
	CommercialIndicators []string
	Stopwords            []string
}

// DefaultPatternSet returns the built-in German pattern resources
func DefaultPatternSet() PatternSet {
	return PatternSet{
		TriggerKeywords: []string{
			"hyaluron pen", "hyaluronpen", "hyaluron-pen",
			"hyaluronstift", "hyaluron stift",
			"hyaluronpistole", "hyaluron pistole",
			"needlefreefiller", "needle free filler",
			"lippenaufspritzen", "lippen aufspritzen",
			"lippenunterspritzung", "lippen unterspritzung",
			"faltenaufspritzen", "falten aufspritzen",
			"lippenvergrößerung", "lippen vergrößerung",
			"lippenaufbau", "lippen aufbau",
			"lippenkorrektur", "lippen korrektur",
			"hyaluronsäurepen", "hyaluronsäure pen", "hyaluronsäure-pen",
		},
		// Order matters: raw matches are reported pattern by pattern
		PricePatterns: []string{
			`(\d+)[.,]?(\d{2})?\s*€`,
			`(\d+)[.,]?(\d{2})?\s*Euro`,
			`€\s*(\d+)[.,]?(\d{2})?`,
			`Euro\s*(\d+)[.,]?(\d{2})?`,
			`ab\s*(\d+)[.,]?(\d{2})?\s*€`,
			`ab\s*(\d+)[.,]?(\d{2})?\s*Euro`,
			`nur\s*(\d+)[.,]?(\d{2})?\s*€`,
			`nur\s*(\d+)[.,]?(\d{2})?\s*Euro`,
			`(\d+)[.,]?(\d{2})?\s*EUR`,
		},
		EmailPattern: `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`,
		PhonePatterns: []string{
			`(\+49|0)[- ]?(\d{3,5})[- ]?(\d{5,8})`,
			`(\+49|0)[- ]?(\d{2})[- ]?(\d{2})[- ]?(\d{2})[- ]?(\d{2})`,
			`(\+49|0)[- ]?(\d{4})[- ]?(\d{6})`,
		},
		Cities: []string{
			"Berlin", "Hamburg", "München", "Köln", "Frankfurt",
			"Stuttgart", "Düsseldorf", "Leipzig", "Dresden", "Hannover",
			"Nürnberg", "Dortmund", "Essen", "Bremen", "Duisburg",
			"Bochum", "Wuppertal", "Bielefeld", "Bonn", "Münster",
			"Karlsruhe", "Mannheim", "Augsburg", "Wiesbaden", "Gelsenkirchen",
			"Mönchengladbach", "Braunschweig", "Kiel", "Chemnitz", "Aachen",
			"Halle", "Magdeburg", "Freiburg", "Krefeld", "Lübeck",
			"Oberhausen", "Erfurt", "Mainz", "Rostock", "Kassel",
			"Hagen", "Hamm", "Saarbrücken", "Mülheim", "Potsdam",
			"Ludwigshafen", "Oldenburg", "Leverkusen", "Osnabrück", "Solingen",
		},
		CommercialIndicators: []string{
			"angebot", "preis", "kosten", "termin", "vereinbaren",
			"buchen", "buchung", "behandlung", "behandlungen",
			"studio", "salon", "kosmetik", "kosmetikstudio",
			"beauty", "beautysalon", "schönheit", "schönheitssalon",
			"rabatt", "sparen", "aktion", "sonderangebot",
			"gutschein", "geschenkgutschein", "jetzt", "neu",
			"vorher", "nachher", "ergebnis", "ergebnisse",
			"vorher-nachher", "beratung",
		},
		Stopwords: germanStopwords,
	}
}

// PatternLibrary is the compiled, read-only form of a PatternSet. It holds no
// mutable state and is safe for concurrent use.
type PatternLibrary struct {
	keywords   []string
	trigger    *ahocorasick.Matcher
	prices     []*regexp.Regexp
	email      *regexp.Regexp
	phones     []*regexp.Regexp
	cities     map[string]string
	commercial map[string]struct{}
	stopwords  map[string]struct{}
}

// NewPatternLibrary compiles a pattern set. Any invalid pattern fails the
// whole library.
func NewPatternLibrary(set PatternSet) (*PatternLibrary, error) {
	lib := &PatternLibrary{
		cities:     make(map[string]string, len(set.Cities)),
		commercial: make(map[string]struct{}, len(set.CommercialIndicators)),
		stopwords:  make(map[string]struct{}, len(set.Stopwords)),
	}

	for _, kw := range set.TriggerKeywords {
		if kw = lowerGerman(kw); kw != "" {
			lib.keywords = append(lib.keywords, kw)
		}
	}
	if len(lib.keywords) == 0 {
		return nil, ErrEmptyPatternSet
	}
	lib.trigger = ahocorasick.NewStringMatcher(lib.keywords)

	for i, expr := range set.PricePatterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("failed to compile price pattern %d: %w", i, err)
		}
		if re.NumSubexp() < 2 {
			return nil, fmt.Errorf("price pattern %d needs amount and cents groups", i)
		}
		lib.prices = append(lib.prices, re)
	}

	email, err := regexp.Compile(set.EmailPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile email pattern: %w", err)
	}
	lib.email = email

	for i, expr := range set.PhonePatterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("failed to compile phone pattern %d: %w", i, err)
		}
		lib.phones = append(lib.phones, re)
	}

	for _, city := range set.Cities {
		lib.cities[lowerGerman(city)] = city
	}
	for _, word := range set.CommercialIndicators {
		lib.commercial[lowerGerman(word)] = struct{}{}
	}
	for _, word := range set.Stopwords {
		lib.stopwords[lowerGerman(word)] = struct{}{}
	}

	return lib, nil
}

var defaultLibrary = sync.OnceValues(func() (*PatternLibrary, error) {
	return NewPatternLibrary(DefaultPatternSet())
})

// DefaultPatterns returns the shared library built from DefaultPatternSet
func DefaultPatterns() (*PatternLibrary, error) {
	return defaultLibrary()
}

// Keywords returns the normalized trigger keywords
func (l *PatternLibrary) Keywords() []string {
	out := make([]string, len(l.keywords))
	copy(out, l.keywords)
	return out
}

func (l *PatternLibrary) isStopword(token string) bool {
	_, ok := l.stopwords[token]
	return ok
}

func (l *PatternLibrary) isCommercial(token string) bool {
	_, ok := l.commercial[token]
	return ok
}

func (l *PatternLibrary) city(token string) (string, bool) {
	c, ok := l.cities[token]
	return c, ok
}
