package sources

// DefaultHashtags are the hashtag search terms used on social platforms
var DefaultHashtags = []string{
	"#hyaluronpen",
	"#lippenaufspritzen",
	"#needlefreefiller",
	"#faltenaufspritzen",
	"#hyaluronpistole",
	"#hyaluronstift",
	"#lipfiller",
	"#lippenfiller",
	"#lippenunterspritzung",
	"#lippenohnenadel",
	"#hyaluronsäurepen",
	"#hyaluronbehandlung",
	"#hyaluronpenkurs",
	"#hyaluronpenkaufen",
}

// DefaultKeywords are plain-text search terms used with web search
var DefaultKeywords = []string{
	"Hyaluron Pen Behandlung",
	"Lippen aufspritzen ohne Nadel",
	"Hyaluron Stift kaufen",
	"Hyaluron Pen Schulung",
	"Hyaluron Pen Vorher Nachher",
	"Lippen aufspritzen Kosten",
	"Hyaluron Pistole",
	"Lippenunterspritzung ohne Nadel",
	"Kosmetikstudio Hyaluron",
	"Hyaluron Pen Angebot",
	"Hyaluron Pen Preis",
}

// DefaultTerms returns the configured terms or the built-in keyword list
func DefaultTerms(configured []string) []string {
	if len(configured) > 0 {
		return configured
	}
	out := make([]string, len(DefaultKeywords))
	copy(out, DefaultKeywords)
	return out
}
