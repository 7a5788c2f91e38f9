// Package variation jitters upstream numbers before they are stored so that
// demo providers serving static data still produce moving dashboards.
package variation

import (
	"math"
	"math/rand/v2"

	"github.com/javajoker/storefront-analytics/internal/config"
)

// Engine applies bounded random variation. The zero value is not usable; use New.
type Engine struct {
	rnd func() float64
}

func New() *Engine {
	return &Engine{rnd: rand.Float64}
}

// NewWithSource uses src for randomness; src must return values in [0, 1).
func NewWithSource(src func() float64) *Engine {
	return &Engine{rnd: src}
}

// AddVariation returns value scaled by a factor drawn uniformly from
// [1-pct, 1+pct], rounded to two decimals.
func (e *Engine) AddVariation(value, pct float64) float64 {
	factor := 1 - pct + e.rnd()*(pct*2)
	return Round2(value * factor)
}

type ProductValues struct {
	Price    float64
	Discount *float64
	Rating   *float64
}

// ApplyProductVariations varies price, and discount and rating when present.
func (e *Engine) ApplyProductVariations(in ProductValues, v config.Variations) ProductValues {
	return ProductValues{
		Price:    e.AddVariation(in.Price, v.Price),
		Discount: e.varyOptional(in.Discount, v.Discount),
		Rating:   e.varyOptional(in.Rating, v.Rating),
	}
}

func (e *Engine) ApplyOrderVariations(totalPrice float64, v config.Variations) float64 {
	return e.AddVariation(totalPrice, v.TotalPrice)
}

// VaryQuantity moves q one step up or down, never below 1.
func (e *Engine) VaryQuantity(q int, enabled bool) int {
	if !enabled {
		return q
	}
	if e.rnd() > 0.5 {
		q++
	} else {
		q--
	}
	if q < 1 {
		return 1
	}
	return q
}

func (e *Engine) VaryUnitPrice(unitPrice float64, v config.Variations) float64 {
	return e.AddVariation(unitPrice, v.UnitPrice)
}

func (e *Engine) varyOptional(value *float64, pct float64) *float64 {
	if value == nil {
		return nil
	}
	varied := e.AddVariation(*value, pct)
	return &varied
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
