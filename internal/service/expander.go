package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

// DefaultMaxVariants is K: the maximum number of query variants produced,
// including the original (§4.7).
const DefaultMaxVariants = 3

// synonymDictionary is the small deterministic expansion table consulted
// before any LLM call.
var synonymDictionary = map[string][]string{
	"lawyer":   {"attorney"},
	"attorney": {"lawyer"},
	"firm":     {"company", "practice"},
	"help":     {"assistance", "support"},
	"buy":      {"purchase"},
	"cost":     {"price", "pricing"},
	"fix":      {"repair"},
}

// ExpanderService implements C7: deterministic synonym expansion followed by
// optional LLM-generated variants, bounded to DefaultMaxVariants.
type ExpanderService struct {
	llm       *LLMClient
	maxK      int
	llmEnable bool
}

// NewExpanderService creates an ExpanderService. If llm is nil, expansion is
// synonym-only.
func NewExpanderService(llm *LLMClient, maxK int) *ExpanderService {
	if maxK <= 0 {
		maxK = DefaultMaxVariants
	}
	return &ExpanderService{llm: llm, maxK: maxK, llmEnable: llm != nil}
}

// Expand returns up to K variants of query, with the original always at
// index 0. Expansion is skipped (original-only) for single-token, quoted, or
// very short queries (§4.7).
func (e *ExpanderService) Expand(ctx context.Context, query string) []string {
	variants := []string{query}

	if skipExpansion(query) {
		return variants
	}

	seen := map[string]bool{strings.ToLower(query): true}
	add := func(candidate string) bool {
		candidate = strings.TrimSpace(candidate)
		key := strings.ToLower(candidate)
		if candidate == "" || seen[key] {
			return false
		}
		seen[key] = true
		variants = append(variants, candidate)
		return len(variants) >= e.maxK
	}

	for _, syn := range synonymVariants(query) {
		if add(syn) {
			return variants
		}
	}

	if e.llmEnable && len(variants) < e.maxK {
		llmVariants, err := e.llm.AlternativeQueriesFromExpansion(ctx, query)
		if err != nil {
			slog.Warn("llm query expansion degraded", "error", err)
		}
		for _, v := range llmVariants {
			if add(v) {
				return variants
			}
		}
	}

	return variants
}

// SynonymCandidates returns every dictionary term (both lookup keys and
// their synonyms) that starts with prefix, sorted for determinism. It backs
// the synonym-expansion leg of the suggest index's completions (§4.13),
// independent of the LLM-driven expansion Expand performs during search.
func SynonymCandidates(prefix string) []string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))

	seen := make(map[string]bool)
	var out []string
	add := func(term string) {
		if prefix != "" && !strings.HasPrefix(term, prefix) {
			return
		}
		if seen[term] {
			return
		}
		seen[term] = true
		out = append(out, term)
	}

	keys := make([]string, 0, len(synonymDictionary))
	for k := range synonymDictionary {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		add(k)
		for _, syn := range synonymDictionary[k] {
			add(syn)
		}
	}
	sort.Strings(out)
	return out
}

func skipExpansion(query string) bool {
	trimmed := strings.TrimSpace(query)
	if len(trimmed) < 5 {
		return true
	}
	if strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) && len(trimmed) > 1 {
		return true
	}
	if len(strings.Fields(trimmed)) <= 1 {
		return true
	}
	return false
}

// synonymVariants builds one substitution variant per token that has a
// dictionary entry, replacing only that token in a copy of the query.
func synonymVariants(query string) []string {
	tokens := strings.Fields(query)
	var variants []string
	for i, tok := range tokens {
		lower := strings.ToLower(strings.Trim(tok, ".,!?;:'\""))
		syns, ok := synonymDictionary[lower]
		if !ok {
			continue
		}
		for _, syn := range syns {
			cp := make([]string, len(tokens))
			copy(cp, tokens)
			cp[i] = syn
			variants = append(variants, strings.Join(cp, " "))
		}
	}
	return variants
}
