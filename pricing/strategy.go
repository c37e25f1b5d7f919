package pricing

import "github.com/xraph/credits/types"

// Strategy prices a metered non-model operation, such as a search or
// rerank call, from its unit count.
type Strategy interface {
	// Name identifies the strategy, e.g. "search".
	Name() string

	// Price returns the cost of units at this strategy's rate.
	Price(units int64) types.Money
}

// PerUnit prices an operation linearly with an optional minimum floor.
type PerUnit struct {
	name          string
	microsPerUnit int64
	minimumMicros int64
	currency      string
}

// NewPerUnit creates a linear per-unit strategy.
func NewPerUnit(name string, microsPerUnit, minimumMicros int64, currency string) *PerUnit {
	return &PerUnit{
		name:          name,
		microsPerUnit: microsPerUnit,
		minimumMicros: minimumMicros,
		currency:      currency,
	}
}

// Name implements Strategy.
func (p *PerUnit) Name() string { return p.name }

// Price implements Strategy.
func (p *PerUnit) Price(units int64) types.Money {
	cost := units * p.microsPerUnit
	if cost < p.minimumMicros {
		cost = p.minimumMicros
	}
	return types.Micros(cost, p.currency)
}
