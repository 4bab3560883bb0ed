// Package logging provides the per-area loggers used by the storefront domain
// services. Every area logger is a named child of one shared zap sink.
package logging

import "go.uber.org/zap"

// Loggers groups the named loggers of each storefront area.
type Loggers struct {
	Cart      *zap.Logger
	Order     *zap.Logger
	Security  *zap.Logger
	Stock     *zap.Logger
	Payment   *zap.Logger
	Analytics *zap.Logger
}

// New derives the area loggers from base.
func New(base *zap.Logger) Loggers {
	return Loggers{
		Cart:      base.Named("cart"),
		Order:     base.Named("order"),
		Security:  base.Named("security"),
		Stock:     base.Named("stock"),
		Payment:   base.Named("payment"),
		Analytics: base.Named("analytics"),
	}
}

// Nop returns Loggers that discard everything.
func Nop() Loggers {
	return New(zap.NewNop())
}
