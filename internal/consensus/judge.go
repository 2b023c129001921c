package consensus

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/concordhq/concord/internal/providers"
	"github.com/concordhq/concord/pkg/models"
)

// judgeSchema is the structured-output contract the judge prompt asks for.
// Kept as a raw literal (rather than generated from a Go type) since it is
// also embedded verbatim into the judge's instructions.
const judgeSchema = `{
  "final_consensus": "string, non-empty",
  "confidence_score": "number in [0,1]",
  "reasoning": "string",
  "debate_points": "array of strings"
}`

// judgeInstructions are fixed per spec: they forbid returning raw JSON in
// final_consensus and describe the expected response shape.
const judgeInstructions = `You are the judge in a multi-model consensus system. You will be shown a user's question and each model's answer and reasoning. Produce a single JSON object matching this schema:
` + judgeSchema + `
final_consensus must be a natural-language answer for the user, never raw JSON or a code block. Respond with only the JSON object.`

// Judge synthesizes a ConsensusResult from multiple models' ModelResponses
// by invoking a designated judge model with a structured-output request.
type Judge struct {
	registry *providers.Registry
}

// NewJudge builds a Judge that resolves the judge model through registry.
func NewJudge(registry *providers.Registry) *Judge {
	return &Judge{registry: registry}
}

// judgeOutput is the schema the judge is asked to return.
type judgeOutput struct {
	FinalConsensus  string   `json:"final_consensus"`
	ConfidenceScore float64  `json:"confidence_score"`
	Reasoning       string   `json:"reasoning"`
	DebatePoints    []string `json:"debate_points"`
}

// wellFormed reports whether o matches the schema: final_consensus is
// non-empty and confidence_score is in range. This is step 6(a)'s check.
func (o judgeOutput) wellFormed() bool {
	return strings.TrimSpace(o.FinalConsensus) != "" && o.ConfidenceScore >= 0 && o.ConfidenceScore <= 1
}

// Synthesize calls the judge model over perModel's responses and applies
// a parse fallback ladder plus a JSON-leak guard for malformed judge output.
func (j *Judge) Synthesize(ctx context.Context, env providers.Envelope, perModel map[string]models.ModelResponse, judgeModel string) (*models.ConsensusResult, error) {
	question := lastUserMessage(env)

	tag, err := j.registry.ProviderForModel(judgeModel)
	if err != nil {
		return j.synthesizeWithoutJudge(perModel), nil
	}
	adapter, err := j.registry.Get(tag)
	if err != nil {
		return j.synthesizeWithoutJudge(perModel), nil
	}

	judgeEnv := providers.Envelope{
		System: judgeInstructions,
		Messages: []providers.Message{
			{Role: "user", Content: buildJudgePrompt(question, perModel, j.registry)},
		},
	}

	resp, err := adapter.Generate(ctx, judgeEnv, nil, providers.CompletionConfig{Model: judgeModel})
	if err != nil || resp.Failed() {
		return j.synthesizeWithoutJudge(perModel), nil
	}

	result := j.parseWithFallback(resp.Content, perModel)
	j.applyJSONLeakGuard(result)
	result.PerModel = perModel
	result.DebatePoints = sortedUnique(result.DebatePoints)
	result.Confidence = clamp01(result.Confidence)
	return result, nil
}

// parseWithFallback implements steps 6(a)-(c): a well-formed structured
// object, else any JSON object carrying final_consensus, else a synthetic
// result built from the highest-confidence model.
func (j *Judge) parseWithFallback(raw string, perModel map[string]models.ModelResponse) *models.ConsensusResult {
	var strict judgeOutput
	if err := json.Unmarshal([]byte(raw), &strict); err == nil && strict.wellFormed() {
		return &models.ConsensusResult{
			FinalConsensus: strict.FinalConsensus,
			Confidence:     strict.ConfidenceScore,
			Reasoning:      strict.Reasoning,
			DebatePoints:   strict.DebatePoints,
		}
	}

	var loose map[string]any
	if err := json.Unmarshal([]byte(raw), &loose); err == nil {
		if fc, ok := loose["final_consensus"].(string); ok && strings.TrimSpace(fc) != "" {
			conf, _ := loose["confidence_score"].(float64)
			reasoning, _ := loose["reasoning"].(string)
			var points []string
			if raw, ok := loose["debate_points"].([]any); ok {
				for _, p := range raw {
					if s, ok := p.(string); ok {
						points = append(points, s)
					}
				}
			}
			return &models.ConsensusResult{
				FinalConsensus: fc,
				Confidence:     conf,
				Reasoning:      reasoning,
				DebatePoints:   points,
			}
		}
	}

	return j.synthesizeWithoutJudge(perModel)
}

// synthesizeWithoutJudge builds step 6(c)'s synthetic result: the
// highest-confidence model's content, wrapped with a short preface, and
// debate points from models whose content diverges by Jaccard overlap.
func (j *Judge) synthesizeWithoutJudge(perModel map[string]models.ModelResponse) *models.ConsensusResult {
	best, bestID := bestResponse(perModel)
	var finalConsensus string
	if best == nil {
		finalConsensus = "No model produced a usable response."
	} else {
		finalConsensus = "Based on the available model responses: " + best.Content
	}

	var debatePoints []string
	if best != nil {
		for modelID, resp := range perModel {
			if modelID == bestID || resp.Failed() {
				continue
			}
			if jaccardSimilarity(best.Content, resp.Content) < 0.5 {
				debatePoints = append(debatePoints, modelID+" offered a materially different answer")
			}
		}
	}

	return &models.ConsensusResult{
		FinalConsensus: finalConsensus,
		Confidence:     0.5,
		Reasoning:      "judge output unparseable; fell back to best model",
		DebatePoints:   debatePoints,
		PerModel:       perModel,
	}
}

// applyJSONLeakGuard implements invariant I2: final_consensus must never be
// empty or begin with a JSON delimiter.
func (j *Judge) applyJSONLeakGuard(result *models.ConsensusResult) {
	trimmed := strings.TrimSpace(result.FinalConsensus)
	if trimmed == "" || trimmed[0] == '{' || trimmed[0] == '[' {
		result.FinalConsensus = fmt.Sprintf(
			"I've reviewed the available responses (confidence %.0f%%): %s",
			result.Confidence*100, result.Reasoning,
		)
	}
}

func bestResponse(perModel map[string]models.ModelResponse) (*models.ModelResponse, string) {
	var best *models.ModelResponse
	var bestID string
	for modelID, resp := range perModel {
		if resp.Failed() {
			continue
		}
		r := resp
		if best == nil || r.Confidence > best.Confidence {
			best = &r
			bestID = modelID
		}
	}
	return best, bestID
}

func lastUserMessage(env providers.Envelope) string {
	for i := len(env.Messages) - 1; i >= 0; i-- {
		if env.Messages[i].Role == "user" {
			return env.Messages[i].Content
		}
	}
	return ""
}

func buildJudgePrompt(question string, perModel map[string]models.ModelResponse, registry *providers.Registry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User's question:\n%s\n\n", question)

	realTime := make(map[string]bool)
	for _, d := range registry.Catalog() {
		if d.HasCapability(models.CapabilityRealTimeSearch) {
			realTime[d.ID] = true
		}
	}

	for modelID, resp := range perModel {
		if resp.Failed() {
			fmt.Fprintf(&b, "Model %s: failed (%s)\n\n", modelID, resp.Error)
			continue
		}
		note := ""
		if realTime[modelID] {
			note = " (has real-time search access)"
		}
		fmt.Fprintf(&b, "Model %s%s:\nAnswer: %s\nReasoning: %s\n\n", modelID, note, resp.Content, resp.Reasoning)
	}
	return b.String()
}

func sortedUnique(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// jaccardSimilarity measures token-set overlap between two strings.
func jaccardSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	tokens := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}
