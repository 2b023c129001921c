package consensus

import (
	"context"
	"testing"

	"github.com/concordhq/concord/internal/providers"
	"github.com/concordhq/concord/pkg/models"
)

func TestParseWithFallbackWellFormed(t *testing.T) {
	j := &Judge{}
	raw := `{"final_consensus":"The answer is 42.","confidence_score":0.9,"reasoning":"clear agreement","debate_points":["pointA"]}`
	result := j.parseWithFallback(raw, nil)
	if result.FinalConsensus != "The answer is 42." {
		t.Errorf("unexpected final_consensus: %q", result.FinalConsensus)
	}
	if result.Confidence != 0.9 {
		t.Errorf("unexpected confidence: %v", result.Confidence)
	}
}

func TestParseWithFallbackLooseJSON(t *testing.T) {
	j := &Judge{}
	raw := `{"final_consensus":"loosely typed answer","extra_junk":true}`
	result := j.parseWithFallback(raw, nil)
	if result.FinalConsensus != "loosely typed answer" {
		t.Errorf("unexpected final_consensus: %q", result.FinalConsensus)
	}
}

func TestParseWithFallbackSynthesizesFromBestModel(t *testing.T) {
	j := &Judge{}
	perModel := map[string]models.ModelResponse{
		"a": {ModelID: "a", Content: "answer one", Confidence: 0.4},
		"b": {ModelID: "b", Content: "answer two, quite different from one", Confidence: 0.8},
	}
	result := j.parseWithFallback("not json at all", perModel)
	if result.Reasoning != "judge output unparseable; fell back to best model" {
		t.Errorf("unexpected reasoning: %q", result.Reasoning)
	}
	if result.Confidence != 0.5 {
		t.Errorf("expected synthetic confidence 0.5, got %v", result.Confidence)
	}
}

func TestApplyJSONLeakGuardReplacesRawJSON(t *testing.T) {
	j := &Judge{}
	result := &models.ConsensusResult{FinalConsensus: `{"leaked":"json"}`, Confidence: 0.7, Reasoning: "ok"}
	j.applyJSONLeakGuard(result)
	if result.FinalConsensus[0] == '{' {
		t.Error("expected JSON-leak guard to replace raw JSON final_consensus")
	}
}

func TestApplyJSONLeakGuardReplacesEmpty(t *testing.T) {
	j := &Judge{}
	result := &models.ConsensusResult{FinalConsensus: "   ", Confidence: 0.5, Reasoning: "ok"}
	j.applyJSONLeakGuard(result)
	if result.FinalConsensus == "" {
		t.Error("expected JSON-leak guard to replace empty final_consensus")
	}
}

func TestJaccardSimilarityIdenticalStrings(t *testing.T) {
	if s := jaccardSimilarity("the cat sat", "the cat sat"); s != 1 {
		t.Errorf("expected 1.0 for identical strings, got %v", s)
	}
}

func TestJaccardSimilarityDisjointStrings(t *testing.T) {
	if s := jaccardSimilarity("apple banana", "carrot durian"); s != 0 {
		t.Errorf("expected 0.0 for disjoint strings, got %v", s)
	}
}

func TestSynthesizeWithoutJudgeAllFailed(t *testing.T) {
	j := &Judge{}
	perModel := map[string]models.ModelResponse{
		"a": {ModelID: "a", Error: "boom"},
	}
	result := j.synthesizeWithoutJudge(perModel)
	if result.FinalConsensus == "" {
		t.Error("expected a non-empty fallback message when all models failed")
	}
}

func TestLastUserMessage(t *testing.T) {
	env := providers.Envelope{Messages: []providers.Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "reply"},
		{Role: "user", Content: "second"},
	}}
	if got := lastUserMessage(env); got != "second" {
		t.Errorf("expected 'second', got %q", got)
	}
}

func TestSynthesizeFallsBackWhenJudgeModelUnavailable(t *testing.T) {
	registry := providers.NewRegistry(nil)
	judge := NewJudge(registry)
	perModel := map[string]models.ModelResponse{
		"a": {ModelID: "a", Content: "answer", Confidence: 0.8},
	}
	result, err := judge.Synthesize(context.Background(), providers.Envelope{}, perModel, "nonexistent-model")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FinalConsensus == "" {
		t.Error("expected a synthesized fallback result")
	}
}
