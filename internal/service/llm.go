package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/connexus-ai/hybridsearch/internal/model"
)

// GenAIClient abstracts a generative model backend (Vertex AI Gemini or
// Anthropic Claude) behind a single chat-completion call. Both
// gcpclient.GenAIAdapter and gcpclient.AnthropicAdapter implement it.
type GenAIClient interface {
	GenerateContent(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// LLMClient implements C8's four task contracts on top of a GenAIClient.
// Every call is independently timed-out; a timeout or parse failure degrades
// the pipeline rather than failing the request (§4.8 Robustness).
type LLMClient struct {
	client  GenAIClient
	timeout time.Duration
	prompts *PromptRegistry
	sem     chan struct{}
}

// NewLLMClient creates an LLMClient with a hard per-call timeout. maxInFlight
// bounds the number of concurrent calls to client; a non-positive value
// leaves calls unbounded. Prompt templates default to the embedded fallbacks
// below; call UsePromptRegistry to source them from versioned YAML files
// instead.
func NewLLMClient(client GenAIClient, timeout time.Duration, maxInFlight int) *LLMClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &LLMClient{client: client, timeout: timeout}
	if maxInFlight > 0 {
		c.sem = make(chan struct{}, maxInFlight)
	}
	return c
}

// UsePromptRegistry switches prompt sourcing to a PromptRegistry. A nil
// registry (the zero value) restores the embedded fallbacks.
func (c *LLMClient) UsePromptRegistry(r *PromptRegistry) {
	c.prompts = r
}

// systemPrompt resolves a named template from the registry, falling back to
// the embedded constant and version 0 when no registry is configured or the
// name is absent from it.
func (c *LLMClient) systemPrompt(name, fallback string) (string, int) {
	if c.prompts != nil {
		if system, version, ok := c.prompts.System(name); ok {
			return system, version
		}
	}
	return fallback, 0
}

func (c *LLMClient) call(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.sem != nil {
		select {
		case c.sem <- struct{}{}:
			defer func() { <-c.sem }()
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.client.GenerateContent(ctx, systemPrompt, userPrompt)
}

// RewriteResult is the output of the query-rewrite task (§4.8.1).
type RewriteResult struct {
	RewrittenQuery     string   `json:"rewritten_query"`
	AlternativeQueries []string `json:"alternative_queries"`
	KeyTerms           []string `json:"key_terms"`
	Synonyms           []string `json:"synonyms"`
}

const rewriteSystemPrompt = `You rewrite and expand search queries. Respond with JSON only:
{"rewritten_query": "...", "alternative_queries": ["..."], "key_terms": ["..."], "synonyms": ["..."]}`

// RewriteQuery implements §4.8.1. On any failure (timeout, malformed
// output), it falls back to the original query rather than erroring.
func (c *LLMClient) RewriteQuery(ctx context.Context, query string) RewriteResult {
	fallback := RewriteResult{RewrittenQuery: query}

	system, _ := c.systemPrompt("rewrite", rewriteSystemPrompt)
	raw, err := c.call(ctx, system, "Query: "+query)
	if err != nil {
		slog.Warn("query rewrite degraded", "error", err)
		return fallback
	}

	var result RewriteResult
	if !parseJSONWithFallback(raw, &result) {
		slog.Warn("query rewrite parse failed, using original query")
		return fallback
	}
	if strings.TrimSpace(result.RewrittenQuery) == "" {
		result.RewrittenQuery = query
	}
	return result
}

// RerankItem is one candidate sent to the reranker.
type RerankItem struct {
	ID            string
	Title         string
	Excerpt       string // truncated to 300 chars by the caller
	Type          string
	FreshnessDays int
	WordCount     int
	Categories    []string
	Tags          []string
	LexicalScore  float64
}

// RerankScore is one scored candidate returned by the reranker.
type RerankScore struct {
	ID             string `json:"id"`
	AIScore        int    `json:"ai_score"`
	Reason         string `json:"reason"`
	ScoreEstimated bool   `json:"-"`
}

const rerankSystemPromptTemplate = `You score search result candidates for relevance to a query.
Scoring rubric (sum to 0-100): Semantic Relevance (40), User Intent (30), Content Quality (20), Specificity (10),
plus a freshness bonus up to +5 for content under 30 days old, a smaller bonus under 90 and 180 days.
%s
Respond with a JSON array, one entry per candidate, every id exactly once:
[{"id": "...", "ai_score": 0-100, "reason": "..."}]`

// rerankIntentAnchors gives the reranker a concrete score ceiling/floor per
// intent (§4.8.2), so "relevance" isn't graded against a single global bar
// that means different things for a person-name lookup versus a how-to query.
var rerankIntentAnchors = map[model.QueryIntent]string{
	model.IntentPersonName: "Score anchor: a professional-profile or staff-bio page with an exact " +
		"match on the named person should score 95 or above. Generic content that never mentions " +
		"the person by name should score 40 or below.",
	model.IntentExecutiveRole: "Score anchor: a page that names who currently holds the role should " +
		"score 90 or above. A page that only mentions the role in passing should score 50 or below.",
	model.IntentService: "Score anchor: a dedicated service/solution description page should score " +
		"85 or above. A news or blog mention of the service should score 55 or below.",
	model.IntentHowTo: "Score anchor: content that directly walks through the steps or answer asked " +
		"for should score 90 or above. Tangentially related content should score 45 or below.",
	model.IntentNavigational: "Score anchor: the site section the query names (contact, about, " +
		"careers, locations) should score 90 or above. A related article should score 50 or below.",
	model.IntentTransactional: "Score anchor: a page that lets the user complete the action (buy, " +
		"request, hire) should score 90 or above. Informational content about the same topic should " +
		"score 55 or below.",
}

// Rerank implements §4.8.2. The returned slice always contains exactly
// len(items) entries: any id missing from the model's response is filled in
// with an estimated score of lexicalScore*0.9 and ScoreEstimated=true. Scores
// parsed from the model then pass through normalizeRerankScores, which
// rescales them only when they sit in a narrow band or fall outside [0,100].
func (c *LLMClient) Rerank(ctx context.Context, query, customInstructions string, intent model.QueryIntent, items []RerankItem) []RerankScore {
	var extra strings.Builder
	if anchor := rerankIntentAnchors[intent]; anchor != "" {
		extra.WriteString(anchor)
	}
	if strings.TrimSpace(customInstructions) != "" {
		if extra.Len() > 0 {
			extra.WriteString("\n")
		}
		extra.WriteString("Custom instructions (higher priority than the rubric above): " + customInstructions)
	}
	template, _ := c.systemPrompt("rerank", rerankSystemPromptTemplate)
	systemPrompt := fmt.Sprintf(template, extra.String())
	userPrompt := buildRerankUserPrompt(query, intent, items)

	scores := make(map[string]RerankScore, len(items))

	raw, err := c.call(ctx, systemPrompt, userPrompt)
	if err != nil {
		slog.Warn("rerank degraded, using estimated scores", "error", err)
	} else {
		var parsed []RerankScore
		if parseJSONWithFallback(raw, &parsed) {
			for _, s := range parsed {
				scores[s.ID] = s
			}
		} else {
			slog.Warn("rerank parse failed, using estimated scores")
		}
	}

	out := make([]RerankScore, len(items))
	for i, item := range items {
		if s, ok := scores[item.ID]; ok {
			out[i] = s
			continue
		}
		out[i] = RerankScore{
			ID:             item.ID,
			AIScore:        int(item.LexicalScore * 0.9),
			Reason:         "fallback estimate: candidate missing from reranker response",
			ScoreEstimated: true,
		}
	}
	normalizeRerankScores(out)
	return out
}

func buildRerankUserPrompt(query string, intent model.QueryIntent, items []RerankItem) string {
	var sb strings.Builder
	sb.WriteString("Query: ")
	sb.WriteString(query)
	sb.WriteString("\nQuery intent: ")
	sb.WriteString(string(intent))
	sb.WriteString("\n\nCandidates:\n")
	for _, it := range items {
		sb.WriteString(fmt.Sprintf(
			"id=%s title=%q excerpt=%q type=%s age_days=%d words=%d categories=%v tags=%v lexical_score=%.4f\n",
			it.ID, it.Title, truncate(it.Excerpt, 300), it.Type, it.FreshnessDays, it.WordCount, it.Categories, it.Tags, it.LexicalScore,
		))
	}
	return sb.String()
}

// normalizeRerankScores rescales the model-produced (non-estimated) scores in
// place per §4.8.2: if they all fall within a 20-point band, percentile-map
// them across 60-100 so a tight cluster doesn't flatten the hybrid blend;
// otherwise, if any score falls outside [0,100], min-max normalize the whole
// set back into that range. Fallback-estimated scores are left untouched.
func normalizeRerankScores(out []RerankScore) {
	type scored struct {
		idx int
		raw float64
	}
	var scores []scored
	for i, s := range out {
		if !s.ScoreEstimated {
			scores = append(scores, scored{idx: i, raw: float64(s.AIScore)})
		}
	}
	if len(scores) < 2 {
		return
	}

	min, max := scores[0].raw, scores[0].raw
	for _, s := range scores {
		if s.raw < min {
			min = s.raw
		}
		if s.raw > max {
			max = s.raw
		}
	}
	span := max - min

	switch {
	case span < 20:
		sort.Slice(scores, func(i, j int) bool { return scores[i].raw < scores[j].raw })
		n := len(scores)
		for rank, s := range scores {
			percentile := 0.0
			if n > 1 {
				percentile = float64(rank) / float64(n-1)
			}
			out[s.idx].AIScore = int(60 + percentile*40)
		}
	case min < 0 || max > 100:
		for _, s := range scores {
			out[s.idx].AIScore = int(((s.raw - min) / span) * 100)
		}
	}
}

// AnswerSource is one excerpt made available to strict-mode synthesis.
type AnswerSource struct {
	Index   int // 1-based, used in "Source k" citations
	Title   string
	Excerpt string
}

// AnswerResult is the output of strict-mode answer synthesis (§4.8.3).
type AnswerResult struct {
	Answer          string
	CitedSourceIDs  []int
}

const answerSystemPrompt = `Answer the user's question using ONLY facts explicitly present in the numbered
sources below. Cite every fact as "Source k". Never mention a topic that is not present in the sources, even to
deny it, and never introduce outside context. If the sources do not answer the question, state exactly which of
the present facts are known and stop there.`

// Answer implements §4.8.3 strict-mode synthesis.
func (c *LLMClient) Answer(ctx context.Context, query string, sources []AnswerSource) (AnswerResult, error) {
	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(query)
	sb.WriteString("\n\nSources:\n")
	for _, s := range sources {
		sb.WriteString(fmt.Sprintf("Source %d (%s): %s\n", s.Index, s.Title, s.Excerpt))
	}

	system, _ := c.systemPrompt("answer", answerSystemPrompt)
	raw, err := c.call(ctx, system, sb.String())
	if err != nil {
		return AnswerResult{}, fmt.Errorf("service.Answer: %w", err)
	}

	answer := strings.TrimSpace(raw)
	cited := extractCitedSources(answer)
	return AnswerResult{Answer: answer, CitedSourceIDs: cited}, nil
}

var citedSourcePattern = regexp.MustCompile(`Source (\d+)`)

func extractCitedSources(answer string) []int {
	matches := citedSourcePattern.FindAllStringSubmatch(answer, -1)
	seen := make(map[int]bool)
	var out []int
	for _, m := range matches {
		var n int
		if _, err := fmt.Sscanf(m[1], "%d", &n); err != nil {
			continue
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

const altQuerySystemPrompt = `Given a query and the top search results, suggest 3-5 alternative queries.
Use only terms and concepts that appear in the supplied results. Never use terms external to them.
Respond with a JSON array of strings: ["alternative query 1", "alternative query 2", ...]`

// ContentAlternativeQueries implements §4.8.4.
func (c *LLMClient) ContentAlternativeQueries(ctx context.Context, query string, sources []AnswerSource) []string {
	var sb strings.Builder
	sb.WriteString("Query: ")
	sb.WriteString(query)
	sb.WriteString("\n\nResults:\n")
	for _, s := range sources {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", s.Title, s.Excerpt))
	}

	system, _ := c.systemPrompt("altquery", altQuerySystemPrompt)
	raw, err := c.call(ctx, system, sb.String())
	if err != nil {
		slog.Warn("alternative query generation degraded", "error", err)
		return nil
	}

	var alts []string
	if !parseJSONWithFallback(raw, &alts) {
		slog.Warn("alternative query parse failed")
		return nil
	}
	return alts
}

const expansionSystemPrompt = `Given a search query, suggest up to 5 alternative phrasings that preserve
its meaning. Respond with one query per line, plain text, no numbering or punctuation beyond the query itself.`

// AlternativeQueriesFromExpansion is the LLM leg of C7's query expansion: one
// plain query string per line, de-duplicated and lower-cased for comparison
// by the caller (§4.7).
func (c *LLMClient) AlternativeQueriesFromExpansion(ctx context.Context, query string) ([]string, error) {
	system, _ := c.systemPrompt("expansion", expansionSystemPrompt)
	raw, err := c.call(ctx, system, query)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines, nil
}

// parseJSONWithFallback tries, in order: raw JSON, JSON inside a fenced code
// block, then a best-effort regex extraction of the first top-level JSON
// array or object. Returns false if none succeed, per §4.8's three-tier
// parsing contract.
func parseJSONWithFallback(raw string, out any) bool {
	cleaned := strings.TrimSpace(raw)

	if json.Unmarshal([]byte(cleaned), out) == nil {
		return true
	}

	if fenced := extractFencedJSON(cleaned); fenced != "" {
		if json.Unmarshal([]byte(fenced), out) == nil {
			return true
		}
	}

	if extracted := extractJSONByBraceMatching(cleaned); extracted != "" {
		if json.Unmarshal([]byte(extracted), out) == nil {
			return true
		}
	}

	return false
}

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

func extractFencedJSON(text string) string {
	m := fencedBlockPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// extractJSONByBraceMatching finds the first balanced top-level [...] or
// {...} span in text, tolerating leading/trailing prose around the payload.
func extractJSONByBraceMatching(text string) string {
	for _, pair := range [][2]byte{{'[', ']'}, {'{', '}'}} {
		open, close := pair[0], pair[1]
		start := strings.IndexByte(text, open)
		if start < 0 {
			continue
		}
		depth := 0
		for i := start; i < len(text); i++ {
			switch text[i] {
			case open:
				depth++
			case close:
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
