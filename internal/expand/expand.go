// Package expand turns a free-text symptom description plus structured
// context into an expanded retrieval term set.
package expand

import (
	"strings"
	"unicode"

	"github.com/cropsage/cropsage/internal/models"
)

// defaultTerm is used when expansion produces nothing at all, so retrieval
// always has a query to work with.
const defaultTerm = "plant health"

// stopwords are discarded before synonym lookup.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "has": {}, "have": {}, "had": {},
	"was": {}, "were": {}, "with": {}, "this": {}, "that": {}, "from": {},
	"they": {}, "some": {}, "what": {}, "there": {}, "about": {}, "into": {},
	"very": {}, "also": {}, "just": {}, "its": {}, "our": {}, "their": {},
}

// synonyms maps a symptom token to additional retrieval terms. Phrases are
// added whole so multi-word agronomy vocabulary survives expansion.
var synonyms = map[string][]string{
	"chlorosis":   {"yellowing leaves", "nutrient deficiency"},
	"yellowing":   {"chlorosis", "nutrient deficiency"},
	"blight":      {"fungal disease", "leaf spot"},
	"wilt":        {"wilting", "water stress", "vascular disease"},
	"wilting":     {"water stress", "drought stress"},
	"necrosis":    {"dead tissue", "leaf burn"},
	"lesion":      {"leaf spot", "fungal disease"},
	"lesions":     {"leaf spot", "fungal disease"},
	"spots":       {"leaf spot", "fungal disease"},
	"stunted":     {"poor growth", "nutrient deficiency"},
	"stunting":    {"poor growth", "root damage"},
	"curling":     {"leaf curl", "virus", "herbicide injury"},
	"curl":        {"leaf curl", "virus"},
	"rust":        {"fungal disease", "pustules"},
	"mildew":      {"fungal disease", "powdery mildew"},
	"mold":        {"fungal disease"},
	"rot":         {"root rot", "fungal disease"},
	"aphid":       {"insect pest", "sap feeding"},
	"aphids":      {"insect pest", "sap feeding"},
	"mite":        {"insect pest", "stippling"},
	"mites":       {"insect pest", "stippling"},
	"caterpillar": {"insect pest", "defoliation"},
	"holes":       {"insect feeding", "pest damage"},
	"interveinal": {"iron deficiency", "magnesium deficiency"},
	"purple":      {"phosphorus deficiency"},
	"purpling":    {"phosphorus deficiency"},
	"drought":     {"water stress", "irrigation"},
	"scorch":      {"heat stress", "leaf burn"},
	"frost":       {"cold injury", "freeze damage"},
	"salinity":    {"salt stress", "soil salinity"},
}

// Context is the structured part of a grower observation used for expansion.
type Context struct {
	Crop        string
	Region      string
	GrowthStage string
}

// Expander builds expanded queries. It is stateless and safe for concurrent use.
type Expander struct{}

// NewExpander returns an Expander.
func NewExpander() *Expander {
	return &Expander{}
}

// Expand tokenizes text, applies the synonym table, and appends context terms.
// Term order is first-seen discovery order with duplicates removed. Expansion
// never fails; empty input falls back to a generic query term.
func (e *Expander) Expand(text string, ctx Context) *models.QueryExpansionResult {
	seen := make(map[string]struct{})
	terms := make([]string, 0, 16)
	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}

	for _, tok := range tokenize(text) {
		if len(tok) < 3 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		add(tok)
		for _, syn := range synonyms[tok] {
			add(syn)
		}
	}

	add(ctx.Crop)
	add(ctx.Region)
	add(ctx.GrowthStage)

	if len(terms) == 0 {
		add(defaultTerm)
	}

	return &models.QueryExpansionResult{
		ExpandedQuery: strings.Join(terms, " "),
		Terms:         terms,
	}
}

// tokenize lowercases and splits on non-alphanumeric boundaries.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
