// Package indicator computes technical indicator series over candle data.
//
// Specs are declared on a Registry and computed by an Engine in declared
// order. Builtin indicators are streaming: they are fed one period at a time,
// so an output at index i only ever sees inputs at indexes <= i. Every output
// series has exactly one entry per candle; warm-up entries are None.
package indicator

// Indicator is a streaming scalar indicator fed one value per period.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA", "EMA").
	Name() string

	// Update feeds the next input value.
	Update(v float64)

	// Value returns the current value. Meaningless until Ready.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}
