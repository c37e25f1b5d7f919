package pricing

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xraph/credits/types"
)

// Rate is the price of one million tokens, in micro-units of Currency.
type Rate struct {
	InputMicrosPerMtok  int64  `json:"input_micros_per_mtok"`
	OutputMicrosPerMtok int64  `json:"output_micros_per_mtok"`
	Currency            string `json:"currency"`
}

// Table is a rate-card Estimator keyed by "provider/model". Unknown models
// fall back to the default rate so estimation never blocks admission.
type Table struct {
	mu          sync.RWMutex
	rates       map[string]Rate
	defaultRate Rate

	// expectedCompletionTokens sizes the output half of an estimate when
	// the call hasn't run yet.
	expectedCompletionTokens int64
}

// DefaultExpectedCompletionTokens is assumed for estimates when no
// completion length hint is available.
const DefaultExpectedCompletionTokens = 1024

// NewTable creates a rate table with the given fallback rate.
func NewTable(defaultRate Rate) *Table {
	return &Table{
		rates:                    make(map[string]Rate),
		defaultRate:              defaultRate,
		expectedCompletionTokens: DefaultExpectedCompletionTokens,
	}
}

// SetRate registers or replaces the rate for a provider/model pair.
func (t *Table) SetRate(provider, model string, rate Rate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rates[rateKey(provider, model)] = rate
}

// SetExpectedCompletionTokens overrides the assumed completion length.
func (t *Table) SetExpectedCompletionTokens(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expectedCompletionTokens = n
}

// EstimateCost implements Estimator.
func (t *Table) EstimateCost(req EstimateRequest) (types.Money, error) {
	t.mu.RLock()
	rate := t.lookup(req.Provider, req.Model)
	expected := t.expectedCompletionTokens
	t.mu.RUnlock()

	promptTokens := EstimateTokens(req)
	cost := tokenCost(promptTokens, rate.InputMicrosPerMtok) +
		tokenCost(expected, rate.OutputMicrosPerMtok)
	return types.Micros(cost, rate.Currency), nil
}

// ActualCost implements Estimator.
func (t *Table) ActualCost(provider, model string, usage Usage, currency string) (types.Money, error) {
	t.mu.RLock()
	rate := t.lookup(provider, model)
	t.mu.RUnlock()

	if !strings.EqualFold(rate.Currency, currency) {
		return types.Money{}, fmt.Errorf("pricing: rate currency %s does not match requested %s for %s/%s",
			rate.Currency, currency, provider, model)
	}

	inputTokens := usage.PromptTokens - usage.CachedTokens
	if inputTokens < 0 {
		inputTokens = 0
	}
	cost := tokenCost(inputTokens, rate.InputMicrosPerMtok) +
		tokenCost(usage.CompletionTokens+usage.ReasoningTokens, rate.OutputMicrosPerMtok)
	return types.Micros(cost, rate.Currency), nil
}

// lookup must be called with at least a read lock held.
func (t *Table) lookup(provider, model string) Rate {
	if rate, ok := t.rates[rateKey(provider, model)]; ok {
		return rate
	}
	return t.defaultRate
}

// tokenCost prices tokens at a per-Mtok rate, rounding up so fractional
// token costs are never given away.
func tokenCost(tokens, microsPerMtok int64) int64 {
	const mtok = 1_000_000
	return (tokens*microsPerMtok + mtok - 1) / mtok
}

func rateKey(provider, model string) string {
	return strings.ToLower(provider) + "/" + strings.ToLower(model)
}
