package service

import (
	"strings"
	"time"

	"github.com/connexus-ai/hybridsearch/internal/model"
)

// minTokenLen is the shortest token considered for field/taxonomy matching;
// shorter tokens ("a", "to", "is") are too common to carry signal (§4.9).
const minTokenLen = 3

// computeBoosts derives the field, freshness, and taxonomy multipliers for
// one (query, document) pair per §4.9's boost pipeline.
func computeBoosts(query string, doc *model.Document, now time.Time) model.Boosts {
	return model.Boosts{
		Field:     fieldBoost(query, doc),
		Freshness: freshnessBoost(doc.PublishedAt, now),
		Taxonomy:  taxonomyBoost(query, doc),
	}
}

// fieldBoost rewards query matches in title, excerpt, and body, each counted
// at its single best tier, summed and capped at 2.0.
func fieldBoost(query string, doc *model.Document) float64 {
	tokens := significantTokens(query)
	phrase := strings.ToLower(strings.TrimSpace(query))

	var titleScore float64
	title := strings.ToLower(doc.Title)
	switch {
	case phrase != "" && strings.Contains(title, phrase):
		titleScore = 3.0
	case len(tokens) > 0 && allTokensPresent(title, tokens):
		titleScore = 2.0
	case anyTokenPresent(title, tokens):
		titleScore = 1.0
	}

	var excerptScore float64
	excerpt := strings.ToLower(doc.Excerpt)
	switch {
	case phrase != "" && strings.Contains(excerpt, phrase):
		excerptScore = 1.5
	case anyTokenPresent(excerpt, tokens):
		excerptScore = 0.5
	}

	var bodyScore float64
	if anyTokenPresent(strings.ToLower(doc.Body), tokens) {
		bodyScore = 0.2
	}

	raw := titleScore + excerptScore + bodyScore
	return capMultiplier(1.0+raw, 2.0)
}

// freshnessBoost scores recency: <30d ×1.5, <90d ×1.2, <365d ×1.1, else ×1.0.
// A missing or invalid publication date is treated as ×1.0.
func freshnessBoost(publishedAt *time.Time, now time.Time) float64 {
	if publishedAt == nil || publishedAt.IsZero() {
		return 1.0
	}
	age := now.Sub(*publishedAt)
	if age < 0 {
		return 1.0
	}
	days := age.Hours() / 24
	switch {
	case days < 30:
		return 1.5
	case days < 90:
		return 1.2
	case days < 365:
		return 1.1
	default:
		return 1.0
	}
}

// taxonomyBoost rewards query overlap with a document's categories and tags:
// additive up to 0.5, then applied multiplicatively, capped at 1.5.
func taxonomyBoost(query string, doc *model.Document) float64 {
	phrase := strings.ToLower(strings.TrimSpace(query))
	tokens := significantTokens(query)

	var raw float64
	if taxonExactMatch(doc.Categories, phrase) {
		raw += 0.3
	} else if taxonTokenOverlap(doc.Categories, tokens) {
		raw += 0.15
	}
	if taxonExactMatch(doc.Tags, phrase) {
		raw += 0.2
	} else if taxonTokenOverlap(doc.Tags, tokens) {
		raw += 0.1
	}
	if raw > 0.5 {
		raw = 0.5
	}
	return capMultiplier(1.0+raw, 1.5)
}

func taxonExactMatch(taxons []model.Taxon, phrase string) bool {
	if phrase == "" {
		return false
	}
	for _, t := range taxons {
		if strings.ToLower(t.Name) == phrase || strings.ToLower(t.Slug) == phrase {
			return true
		}
	}
	return false
}

func taxonTokenOverlap(taxons []model.Taxon, tokens []string) bool {
	for _, t := range taxons {
		name := strings.ToLower(t.Name)
		for _, tok := range tokens {
			if strings.Contains(name, tok) {
				return true
			}
		}
	}
	return false
}

func capMultiplier(v, max float64) float64 {
	if v > max {
		return max
	}
	if v < 1.0 {
		return 1.0
	}
	return v
}

// significantTokens lower-cases and splits query into tokens of at least
// minTokenLen characters.
func significantTokens(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:'\"")
		if len(f) >= minTokenLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func allTokensPresent(haystack string, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, tok := range tokens {
		if !strings.Contains(haystack, tok) {
			return false
		}
	}
	return true
}

func anyTokenPresent(haystack string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(haystack, tok) {
			return true
		}
	}
	return false
}
