package property

import (
	"fmt"
	"math"

	"github.com/c360/vizflow/errors"
)

// Number is the set of value types an Ordinal can hold.
type Number interface {
	~int | ~float64
}

// Class identifiers of the built-in property kinds.
const (
	ClassInt       = "org.vizflow.IntProperty"
	ClassFloat     = "org.vizflow.FloatProperty"
	ClassBool      = "org.vizflow.BoolProperty"
	ClassString    = "org.vizflow.StringProperty"
	ClassOption    = "org.vizflow.OptionProperty"
	ClassComposite = "org.vizflow.CompositeProperty"
)

// Ordinal is a bounded numeric property.
type Ordinal[T Number] struct {
	Base
	value     T
	min       T
	max       T
	increment T
}

// Int is an integer ordinal property.
type Int = Ordinal[int]

// Float is a floating point ordinal property.
type Float = Ordinal[float64]

// NewInt creates an integer property with an inclusive range.
func NewInt(identifier, displayName string, value, minValue, maxValue int, opts ...Option) *Int {
	return newOrdinal(ClassInt, identifier, displayName, value, minValue, maxValue, 1, opts)
}

// NewFloat creates a floating point property with an inclusive range.
func NewFloat(identifier, displayName string, value, minValue, maxValue float64, opts ...Option) *Float {
	return newOrdinal(ClassFloat, identifier, displayName, value, minValue, maxValue, 0.01, opts)
}

func newOrdinal[T Number](class, identifier, displayName string, value, minValue, maxValue, increment T, opts []Option) *Ordinal[T] {
	if minValue > maxValue {
		minValue, maxValue = maxValue, minValue
	}
	p := &Ordinal[T]{value: clamp(value, minValue, maxValue), min: minValue, max: maxValue, increment: increment}
	p.init(p, class, identifier, displayName, opts)
	return p
}

func clamp[T Number](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

// Get returns the current value.
func (p *Ordinal[T]) Get() T { return p.value }

// Min returns the lower bound.
func (p *Ordinal[T]) Min() T { return p.min }

// Max returns the upper bound.
func (p *Ordinal[T]) Max() T { return p.max }

// Increment returns the editor step size.
func (p *Ordinal[T]) Increment() T { return p.increment }

// Set validates v against the range and stores it. Setting the current value
// does nothing: no observer runs and the owner is not invalidated.
func (p *Ordinal[T]) Set(v T) error {
	if err := p.inRange(v); err != nil {
		return err
	}
	if v == p.value {
		return nil
	}
	p.value = v
	p.changed()
	return nil
}

// inRange rejects values outside [min, max] and non-finite values, which
// compare false against both bounds.
func (p *Ordinal[T]) inRange(v T) error {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) || v < p.min || v > p.max {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %v not in [%v, %v]", errors.ErrOutOfRange, v, p.min, p.max),
			"Property", "Set", fmt.Sprintf("set %s", p.identifier))
	}
	return nil
}

// SetRange changes the bounds and clamps the current value into them.
func (p *Ordinal[T]) SetRange(minValue, maxValue T) {
	if minValue > maxValue {
		minValue, maxValue = maxValue, minValue
	}
	p.min, p.max = minValue, maxValue
	if c := clamp(p.value, minValue, maxValue); c != p.value {
		p.value = c
		p.changed()
	}
}

// Value returns the current value as int or float64.
func (p *Ordinal[T]) Value() any { return p.value }

// SetValue converts v and sets it.
func (p *Ordinal[T]) SetValue(v any) error {
	converted, err := p.convert(v)
	if err != nil {
		return err
	}
	return p.Set(converted)
}

func (p *Ordinal[T]) check(v any) error {
	converted, err := p.convert(v)
	if err != nil {
		return err
	}
	return p.inRange(converted)
}

func (p *Ordinal[T]) convert(v any) (T, error) {
	var converted T
	switch any(converted).(type) {
	case int:
		i, err := toInt(v)
		if err != nil {
			return converted, errors.WrapInvalid(err, "Property", "SetValue", fmt.Sprintf("convert value for %s", p.identifier))
		}
		converted = T(i)
	default:
		f, err := toFloat(v)
		if err != nil {
			return converted, errors.WrapInvalid(err, "Property", "SetValue", fmt.Sprintf("convert value for %s", p.identifier))
		}
		converted = T(f)
	}
	return converted, nil
}
