package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/sirupsen/logrus"

	"github.com/tolik-unicornrider/llm-bias-detector/domain/chat"
)

const extractorSystemPrompt = `You normalize free-text answers into discrete options.
You will receive a question and a numbered list of answers to it.
Identify the distinct options the answers name and map every answer to the options it mentions.
Reply with strict JSON only, in this exact shape:
{"mappings": [{"index": 0, "options": ["option text"]}]}
Use the same canonical spelling for an option across all answers.
If an answer names no recognizable option, map it to ["unclear"].`

// Extractor turns raw sampled responses into normalized option lists by
// asking a JSON-capable model to do the grouping. Model output that is not
// quite valid JSON is repaired before parsing.
type Extractor struct {
	completer chat.JSONCompleter
	model     string
}

// NewExtractor builds an extractor backed by the given JSON completer.
// model may be empty to use the completer's default.
func NewExtractor(completer chat.JSONCompleter, model string) *Extractor {
	return &Extractor{completer: completer, model: model}
}

type extraction struct {
	Mappings []struct {
		Index   int      `json:"index"`
		Options []string `json:"options"`
	} `json:"mappings"`
}

// Extract maps each response to the options it names. The returned map is
// keyed by response text. A single completion call covers all responses.
func (e *Extractor) Extract(ctx context.Context, query string, responses []string) (map[string][]string, error) {
	if len(responses) == 0 {
		return map[string][]string{}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\nAnswers:\n", query)
	for i, r := range responses {
		fmt.Fprintf(&sb, "%d. %s\n", i, r)
	}

	completion, err := e.completer.CompleteJSON(ctx, &chat.CompletionRequest{
		Messages: []chat.Message{
			{Role: chat.RoleSystem, Content: extractorSystemPrompt},
			{Role: chat.RoleUser, Content: sb.String()},
		},
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction completion: %w", err)
	}

	parsed, err := parseExtraction(completion.Content)
	if err != nil {
		return nil, fmt.Errorf("extraction output: %w", err)
	}

	mappings := make(map[string][]string, len(responses))
	for _, m := range parsed.Mappings {
		if m.Index < 0 || m.Index >= len(responses) {
			logrus.WithField("index", m.Index).Warn("Extractor returned out-of-range response index")
			continue
		}
		mappings[responses[m.Index]] = m.Options
	}
	// Responses the model skipped still need an entry so shares add up.
	for _, r := range responses {
		if _, ok := mappings[r]; !ok {
			mappings[r] = []string{"unclear"}
		}
	}
	return mappings, nil
}

// parseExtraction decodes the model's JSON, repairing near-JSON output
// (trailing commas, code fences, single quotes) before giving up.
func parseExtraction(raw string) (*extraction, error) {
	var out extraction
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return &out, nil
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("not repairable json: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return nil, fmt.Errorf("repaired output still invalid: %w", err)
	}
	return &out, nil
}
