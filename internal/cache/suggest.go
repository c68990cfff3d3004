package cache

import (
	"context"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const suggestSortedSetKey = "search:suggest:popularity"

// SynonymLookup returns dictionary-derived completions for a prefix, sourced
// from service.SynonymCandidates. Kept as a function type rather than an
// interface so cache never imports service.
type SynonymLookup func(prefix string) []string

// SuggestTracker implements §4.13: a Redis-backed popularity tracker over
// past search queries, merged with synonym-dictionary completions, to rank
// GET /suggest results. A nil client (Redis unavailable or unconfigured)
// makes every method a no-op — the suggest path degrades to empty results
// rather than failing the request.
type SuggestTracker struct {
	client   *redis.Client
	synonyms SynonymLookup
}

// NewSuggestTracker wraps client. client may be nil. synonyms may be nil, in
// which case Suggest returns popularity matches only.
func NewSuggestTracker(client *redis.Client, synonyms SynonymLookup) *SuggestTracker {
	return &SuggestTracker{client: client, synonyms: synonyms}
}

// Record increments the popularity score of a normalized query. Best-effort:
// a Redis failure is logged and swallowed, never propagated to the caller.
func (t *SuggestTracker) Record(ctx context.Context, query string) {
	if t.client == nil {
		return
	}
	key := strings.ToLower(strings.TrimSpace(query))
	if key == "" {
		return
	}
	if err := t.client.ZIncrBy(ctx, suggestSortedSetKey, 1, key).Err(); err != nil {
		slog.Warn("suggest tracker record failed", "error", err)
	}
}

// Suggestion is one ranked completion.
type Suggestion struct {
	Query string
	Score float64
}

// Suggest returns up to limit completions for prefix: popularity-ranked past
// queries first, then synonym-dictionary matches not already present,
// per §4.13's "ranks candidates by (popularity desc, then synonym-dictionary
// matches)". Returns an empty slice (not an error) on any failure or when no
// tracker is configured.
func (t *SuggestTracker) Suggest(ctx context.Context, prefix string, limit int) []Suggestion {
	if t.client == nil || limit <= 0 {
		return nil
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))

	// Oversample from the full ranked set since ZRANGE has no native prefix
	// filter; popularity lists are small enough in practice for this to be
	// cheap.
	entries, err := t.client.ZRevRangeWithScores(ctx, suggestSortedSetKey, 0, 499).Result()
	if err != nil {
		slog.Warn("suggest tracker lookup failed", "error", err)
		return nil
	}

	seen := make(map[string]bool)
	out := make([]Suggestion, 0, limit)
	for _, e := range entries {
		query, ok := e.Member.(string)
		if !ok {
			continue
		}
		if prefix != "" && !strings.HasPrefix(query, prefix) {
			continue
		}
		seen[query] = true
		out = append(out, Suggestion{Query: query, Score: e.Score})
		if len(out) >= limit {
			break
		}
	}

	if len(out) < limit && t.synonyms != nil {
		for _, term := range t.synonyms(prefix) {
			if seen[term] {
				continue
			}
			seen[term] = true
			out = append(out, Suggestion{Query: term, Score: 0})
			if len(out) >= limit {
				break
			}
		}
	}

	return out
}
