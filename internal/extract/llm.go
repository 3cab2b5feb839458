package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/finstat/internal/model"
	"github.com/sells-group/finstat/pkg/anthropic"
)

const extractionSystemPrompt = `You extract financial statement line items from report text.
Respond with a JSON array only. Each element:
{"item_name": string, "values_by_year": {"<year>": number|null, ...},
 "currency": string, "unit": string, "indentation_level": int,
 "is_subtotal": bool, "is_total": bool}
Report values exactly as printed; use null for missing cells. No prose.`

// LLMExtractor extracts line items from free-form report text via the
// Anthropic messages API.
type LLMExtractor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewLLMExtractor creates an LLMExtractor.
func NewLLMExtractor(client anthropic.Client, llmModel string, maxTokens int64) *LLMExtractor {
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &LLMExtractor{client: client, model: llmModel, maxTokens: maxTokens}
}

// rawItem is the loosely-typed wire shape the model returns. Values are
// validated per item so one malformed element never poisons the batch.
type rawItem struct {
	ItemName         string         `json:"item_name"`
	ValuesByYear     map[string]any `json:"values_by_year"`
	Currency         string         `json:"currency"`
	Unit             string         `json:"unit"`
	IndentationLevel int            `json:"indentation_level"`
	IsSubtotal       bool           `json:"is_subtotal"`
	IsTotal          bool           `json:"is_total"`
}

// Extract asks the model for the line items of one statement type within the
// document text. Malformed items in the response are skipped with a warning;
// extraction continues best-effort.
func (e *LLMExtractor) Extract(ctx context.Context, text string, st model.StatementType) ([]model.RawLineItem, error) {
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		System:    extractionSystemPrompt,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: "Statement type: " + string(st) + "\n\n" + text,
		}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: llm request")
	}

	return ParseLineItems(resp.Text)
}

// ParseLineItems decodes a model response into raw line items, skipping
// malformed elements.
func ParseLineItems(payload string) ([]model.RawLineItem, error) {
	payload = stripFences(payload)

	var raws []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raws); err != nil {
		return nil, eris.Wrap(err, "extract: response is not a JSON array")
	}

	var items []model.RawLineItem
	for i, raw := range raws {
		var r rawItem
		if err := json.Unmarshal(raw, &r); err != nil {
			zap.L().Warn("extract: skipping malformed line item",
				zap.Int("index", i), zap.Error(err))
			continue
		}
		if strings.TrimSpace(r.ItemName) == "" {
			zap.L().Warn("extract: skipping line item without name", zap.Int("index", i))
			continue
		}
		values, ok := coerceValues(r.ValuesByYear)
		if !ok {
			zap.L().Warn("extract: skipping line item with non-numeric values",
				zap.Int("index", i), zap.String("item", r.ItemName))
			continue
		}
		items = append(items, model.RawLineItem{
			ItemName:         strings.TrimSpace(r.ItemName),
			ValuesByYear:     values,
			Currency:         r.Currency,
			Unit:             r.Unit,
			IndentationLevel: r.IndentationLevel,
			IsSubtotal:       r.IsSubtotal,
			IsTotal:          r.IsTotal,
		})
	}
	return items, nil
}

// coerceValues validates a values_by_year object: every value must be a
// number or null.
func coerceValues(in map[string]any) (map[string]*float64, bool) {
	if in == nil {
		return nil, false
	}
	out := make(map[string]*float64, len(in))
	for year, v := range in {
		switch n := v.(type) {
		case nil:
			out[year] = nil
		case float64:
			val := n
			out[year] = &val
		default:
			return nil, false
		}
	}
	return out, true
}

// stripFences removes a markdown code fence if the model wrapped its output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
