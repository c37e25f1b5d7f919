// Package pricing estimates and prices model usage.
//
// Estimation is deliberately coarse: it exists to size reservations, not to
// bill. Actual cost is computed from reported token usage after the call
// and settled by reconciliation.
package pricing

import (
	"github.com/xraph/credits/types"
)

// Message is a single chat message considered during estimation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage is the token usage reported by a provider after a completed call.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	ReasoningTokens  int64 `json:"reasoning_tokens,omitempty"`
	CachedTokens     int64 `json:"cached_tokens,omitempty"`
}

// TotalTokens returns the billable token total.
func (u Usage) TotalTokens() int64 {
	return u.PromptTokens + u.CompletionTokens + u.ReasoningTokens
}

// EstimateRequest describes a prospective model call.
type EstimateRequest struct {
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Messages     []Message `json:"messages"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Tools        []string  `json:"tools,omitempty"`
}

// Estimator prices prospective and completed model calls.
type Estimator interface {
	// EstimateCost returns the expected cost of a call before it runs.
	EstimateCost(req EstimateRequest) (types.Money, error)

	// ActualCost prices reported usage after a call completes.
	ActualCost(provider, model string, usage Usage, currency string) (types.Money, error)
}

// Token estimation constants. The character heuristic tracks typical
// English tokenization closely enough for reservation sizing.
const (
	charsPerToken    = 4
	tokensPerMessage = 4
	tokensBase       = 3
)

// EstimateTokens approximates the prompt token count of a request.
func EstimateTokens(req EstimateRequest) int64 {
	tokens := int64(tokensBase)
	if req.SystemPrompt != "" {
		tokens += int64(len(req.SystemPrompt))/charsPerToken + tokensPerMessage
	}
	for _, msg := range req.Messages {
		tokens += int64(len(msg.Content))/charsPerToken + tokensPerMessage
	}
	for _, tool := range req.Tools {
		tokens += int64(len(tool))/charsPerToken + tokensPerMessage
	}
	return tokens
}
