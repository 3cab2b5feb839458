package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/finstat/internal/model"
	"github.com/sells-group/finstat/pkg/anthropic"
)

// stubClient returns a canned response and records the request.
type stubClient struct {
	resp *anthropic.MessageResponse
	err  error
	last anthropic.MessageRequest
}

func (s *stubClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.last = req
	return s.resp, s.err
}

func TestParseLineItems_Valid(t *testing.T) {
	payload := `[
		{"item_name": "Revenue", "values_by_year": {"2023": 45800, "2024": 48400},
		 "currency": "USD", "unit": "thousands", "indentation_level": 0,
		 "is_subtotal": false, "is_total": false},
		{"item_name": "Net Income", "values_by_year": {"2023": null, "2024": 5200},
		 "is_total": true}
	]`

	items, err := ParseLineItems(payload)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Revenue", items[0].ItemName)
	assert.Equal(t, 45800.0, *items[0].ValuesByYear["2023"])
	assert.Equal(t, "USD", items[0].Currency)

	assert.Equal(t, "Net Income", items[1].ItemName)
	assert.Nil(t, items[1].ValuesByYear["2023"])
	assert.True(t, items[1].IsTotal)
}

func TestParseLineItems_SkipsMalformedItems(t *testing.T) {
	payload := `[
		{"item_name": "Revenue", "values_by_year": {"2024": 100}},
		{"item_name": "", "values_by_year": {"2024": 1}},
		{"item_name": "Bad values", "values_by_year": {"2024": "not a number"}},
		{"item_name": "No values"},
		{"item_name": "Inventory", "values_by_year": {"2024": 50}}
	]`

	items, err := ParseLineItems(payload)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Revenue", items[0].ItemName)
	assert.Equal(t, "Inventory", items[1].ItemName)
}

func TestParseLineItems_NotAnArray(t *testing.T) {
	_, err := ParseLineItems(`{"item_name": "Revenue"}`)
	assert.Error(t, err)
}

func TestParseLineItems_StripsCodeFences(t *testing.T) {
	payload := "```json\n[{\"item_name\": \"Revenue\", \"values_by_year\": {\"2024\": 7}}]\n```"

	items, err := ParseLineItems(payload)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 7.0, *items[0].ValuesByYear["2024"])
}

func TestLLMExtractor_Extract(t *testing.T) {
	stub := &stubClient{resp: &anthropic.MessageResponse{
		Text: `[{"item_name": "Total Assets", "values_by_year": {"2024": 1000}}]`,
	}}
	e := NewLLMExtractor(stub, "claude-sonnet-4-5-20250929", 0)

	items, err := e.Extract(context.Background(), "report text", model.StatementBalance)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Total Assets", items[0].ItemName)

	assert.Equal(t, "claude-sonnet-4-5-20250929", stub.last.Model)
	assert.Equal(t, int64(8192), stub.last.MaxTokens)
	assert.Contains(t, stub.last.Messages[0].Content, "balance_sheet")
}

func TestLLMExtractor_RequestError(t *testing.T) {
	stub := &stubClient{err: assert.AnError}
	e := NewLLMExtractor(stub, "m", 100)

	_, err := e.Extract(context.Background(), "text", model.StatementIncome)
	assert.Error(t, err)
}
