package service

import (
	"regexp"
	"strings"

	"github.com/connexus-ai/hybridsearch/internal/model"
)

var (
	twoCapitalWordsPattern = regexp.MustCompile(`^[A-Z][a-z]{2,}\s+[A-Z][a-z]{2,}$`)

	roleLexicon          = []string{"ceo", "president", "chief", "executive", "director"}
	interrogativeLexicon = []string{"who", "what", "is", "does"}
	serviceLexicon       = []string{"service", "services", "solutions", "consulting", "support"}
	howtoPrefixes        = []string{"how", "what", "why", "when", "where"}
	navigationalLexicon  = []string{"contact", "about", "team", "careers", "locations"}
	transactionalLexicon = []string{"buy", "download", "order", "request", "hire"}
)

// intentInstructions holds the fixed prose block injected into LLM prompts
// for each intent, per §4.6.
var intentInstructions = map[model.QueryIntent]string{
	model.IntentPersonName: "The query names a specific person. Prioritize biography, staff, and " +
		"leadership pages that mention this person by name over general content.",
	model.IntentExecutiveRole: "The query asks about a leadership or executive role. Prioritize " +
		"pages identifying who holds that role and their responsibilities.",
	model.IntentService: "The query concerns a service or solution offering. Prioritize service " +
		"description pages over news or blog content.",
	model.IntentHowTo: "The query is a how-to or informational question. Prioritize explanatory " +
		"content that directly answers the question asked.",
	model.IntentNavigational: "The query targets a specific site section (contact, about, careers). " +
		"Prioritize that section's page over related articles.",
	model.IntentTransactional: "The query signals intent to act (buy, request, hire). Prioritize " +
		"pages that let the user take that action.",
	model.IntentGeneral: "Answer using the most directly relevant and authoritative available content.",
}

// AnalyzerService implements C6: a pure function from query text to intent
// plus the fixed instruction block for that intent.
type AnalyzerService struct{}

// NewAnalyzerService creates an AnalyzerService.
func NewAnalyzerService() *AnalyzerService {
	return &AnalyzerService{}
}

// Analyze classifies query into an intent using the first-match-wins rule
// table in §4.6, and returns the fixed instructions for that intent with any
// caller-supplied custom instructions appended and marked highest priority.
func (a *AnalyzerService) Analyze(query, customInstructions string) (model.QueryIntent, string) {
	intent := classifyIntent(query)
	instructions := intentInstructions[intent]
	if strings.TrimSpace(customInstructions) != "" {
		instructions = instructions + "\n\nHighest priority instruction from the caller: " + strings.TrimSpace(customInstructions)
	}
	return intent, instructions
}

func classifyIntent(query string) model.QueryIntent {
	trimmed := strings.TrimSpace(query)
	lower := strings.ToLower(trimmed)

	if isPersonName(trimmed) {
		return model.IntentPersonName
	}
	if containsAny(lower, roleLexicon) && containsAny(lower, interrogativeLexicon) {
		return model.IntentExecutiveRole
	}
	if containsAny(lower, serviceLexicon) {
		return model.IntentService
	}
	if hasPrefixWord(lower, howtoPrefixes) {
		return model.IntentHowTo
	}
	if containsAny(lower, navigationalLexicon) {
		return model.IntentNavigational
	}
	if containsAny(lower, transactionalLexicon) {
		return model.IntentTransactional
	}
	return model.IntentGeneral
}

// isPersonName matches exactly two whitespace-separated tokens, both
// initial-capital, each at least 3 letters.
func isPersonName(query string) bool {
	return twoCapitalWordsPattern.MatchString(query)
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if containsWord(haystack, n) {
			return true
		}
	}
	return false
}

func containsWord(haystack, word string) bool {
	for _, tok := range strings.Fields(haystack) {
		tok = strings.Trim(tok, ".,!?;:'\"")
		if tok == word || tok == word+"s" {
			return true
		}
	}
	return false
}

func hasPrefixWord(lower string, prefixes []string) bool {
	fields := strings.Fields(lower)
	if len(fields) == 0 {
		return false
	}
	first := strings.Trim(fields[0], ".,!?;:'\"")
	for _, p := range prefixes {
		if first == p {
			return true
		}
	}
	return false
}
