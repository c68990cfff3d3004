package service

import (
	"strings"
	"testing"

	"github.com/connexus-ai/hybridsearch/internal/model"
)

func TestAnalyze_IntentClassification(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  model.QueryIntent
	}{
		{"person name", "John Smith", model.IntentPersonName},
		{"executive role", "who is the ceo", model.IntentExecutiveRole},
		{"service", "consulting services", model.IntentService},
		{"howto", "how do I file a claim", model.IntentHowTo},
		{"navigational", "contact us", model.IntentNavigational},
		{"transactional", "request a quote", model.IntentTransactional},
		{"general fallback", "mergers and acquisitions trends", model.IntentGeneral},
	}

	svc := NewAnalyzerService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := svc.Analyze(tt.query, "")
			if got != tt.want {
				t.Errorf("Analyze(%q) intent = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestAnalyze_FirstMatchWins(t *testing.T) {
	// "ceo services" contains both role lexicon and service lexicon, but the
	// role+interrogative rule never fires without an interrogative, so it
	// should fall through to service.
	svc := NewAnalyzerService()
	got, _ := svc.Analyze("ceo services", "")
	if got != model.IntentService {
		t.Errorf("intent = %q, want %q", got, model.IntentService)
	}
}

func TestAnalyze_CustomInstructionsAppendedAsHighestPriority(t *testing.T) {
	svc := NewAnalyzerService()
	_, instructions := svc.Analyze("contact us", "Only use pages published in the last year.")
	if instructions == intentInstructions[model.IntentNavigational] {
		t.Error("expected custom instructions to be appended")
	}
	if !strings.Contains(strings.ToLower(instructions), "highest priority") {
		t.Error("expected custom instructions to be marked highest priority")
	}
}

func TestAnalyze_NoCustomInstructions(t *testing.T) {
	svc := NewAnalyzerService()
	_, instructions := svc.Analyze("contact us", "")
	if instructions != intentInstructions[model.IntentNavigational] {
		t.Error("expected unmodified fixed instructions when no custom instructions given")
	}
}

func TestIsPersonName(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"John Smith", true},
		{"Jane Doe", true},
		{"Al Bo", false}, // too short
		{"john smith", false},
		{"John", false},
		{"the services team", false},
	}
	for _, tt := range tests {
		if got := isPersonName(tt.query); got != tt.want {
			t.Errorf("isPersonName(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}
