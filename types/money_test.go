package types

import "testing"

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		amount   int64
		currency string
		display  string
	}{
		{"USD", USD(49_000_000), 49_000_000, "usd", "$49.00"},
		{"USD fractional", USD(4_900_000), 4_900_000, "usd", "$4.90"},
		{"EUR", EUR(199_000_000), 199_000_000, "eur", "€199.00"},
		{"GBP", GBP(99_000_000), 99_000_000, "gbp", "£99.00"},
		{"JPY", JPY(100_000_000), 100_000_000, "jpy", "¥100"},
		{"Micros", Micros(250_000, "USD"), 250_000, "usd", "$0.25"},
		{"Zero USD", Zero("USD"), 0, "usd", "$0.00"},
		{"Zero EUR", Zero("EUR"), 0, "eur", "€0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("Currency: got %s, want %s", tt.money.Currency, tt.currency)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return USD(100).Add(USD(200)) }, USD(300)},
		{"Subtract", func() Money { return USD(500).Subtract(USD(200)) }, USD(300)},
		{"Multiply", func() Money { return USD(100).Multiply(3) }, USD(300)},
		{"Divide", func() Money { return USD(900).Divide(3) }, USD(300)},
		{"Negate", func() Money { return USD(100).Negate() }, USD(-100)},
		{"Abs positive", func() Money { return USD(100).Abs() }, USD(100)},
		{"Abs negative", func() Money { return USD(-100).Abs() }, USD(100)},
		{"Complex", func() Money {
			return USD(1000).Add(USD(500)).Multiply(2).Subtract(USD(1000))
		}, USD(2000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.op()
			if !result.Equal(tt.expected) {
				t.Errorf("Got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMoneyDisplayRounding(t *testing.T) {
	tests := []struct {
		name    string
		money   Money
		display string
	}{
		{"round down", USD(1_234_000), "$1.23"},
		{"round half up", USD(1_235_000), "$1.24"},
		{"round up", USD(1_239_999), "$1.24"},
		{"negative round", USD(-1_235_000), "-$1.24"},
		{"sub-cent value", USD(4_999), "$0.00"},
		{"JPY whole", JPY(1_500_000), "¥2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.money.String(); got != tt.display {
				t.Errorf("got %s, want %s", got, tt.display)
			}
		})
	}
}

func TestFromMajor(t *testing.T) {
	tests := []struct {
		name   string
		value  float64
		micros int64
	}{
		{"whole", 49.0, 49_000_000},
		{"cents", 0.25, 250_000},
		{"sub-cent", 0.0000015, 2},
		{"negative", -1.5, -1_500_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := FromMajor(tt.value, "usd")
			if m.Amount != tt.micros {
				t.Errorf("got %d micros, want %d", m.Amount, tt.micros)
			}
		})
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for currency mismatch")
		}
	}()

	// This should panic
	_ = USD(100).Add(EUR(100))
}

func TestMoneyDivisionByZero(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for division by zero")
		}
	}()

	// This should panic
	_ = USD(100).Divide(0)
}

func TestMoneyComparison(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Money
		less    bool
		greater bool
		equal   bool
	}{
		{"Equal", USD(100), USD(100), false, false, true},
		{"Less", USD(50), USD(100), true, false, false},
		{"Greater", USD(200), USD(100), false, true, false},
		{"Zero equal", USD(0), Zero("usd"), false, false, true},
		{"Negative less", USD(-100), USD(100), true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.LessThan(tt.b); got != tt.less {
				t.Errorf("LessThan: got %v, want %v", got, tt.less)
			}
			if got := tt.a.GreaterThan(tt.b); got != tt.greater {
				t.Errorf("GreaterThan: got %v, want %v", got, tt.greater)
			}
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal: got %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestSum(t *testing.T) {
	got := Sum(USD(1_000_000), USD(2_000_000), USD(-500_000))
	if !got.Equal(USD(2_500_000)) {
		t.Errorf("got %v, want %v", got, USD(2_500_000))
	}

	if !Sum().IsZero() {
		t.Error("empty Sum should be zero")
	}
}
