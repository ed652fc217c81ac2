package property

import (
	"fmt"

	"github.com/c360/vizflow/errors"
)

// Bool is a boolean property.
type Bool struct {
	Base
	value bool
}

// NewBool creates a boolean property.
func NewBool(identifier, displayName string, value bool, opts ...Option) *Bool {
	p := &Bool{value: value}
	p.init(p, ClassBool, identifier, displayName, opts)
	return p
}

// Get returns the current value.
func (p *Bool) Get() bool { return p.value }

// Set stores v; equal values are ignored.
func (p *Bool) Set(v bool) {
	if v == p.value {
		return
	}
	p.value = v
	p.changed()
}

// Value returns the current value.
func (p *Bool) Value() any { return p.value }

// SetValue converts v and sets it.
func (p *Bool) SetValue(v any) error {
	b, err := toBool(v)
	if err != nil {
		return errors.WrapInvalid(err, "Property", "SetValue", fmt.Sprintf("convert value for %s", p.identifier))
	}
	p.Set(b)
	return nil
}

func (p *Bool) check(v any) error {
	_, err := toBool(v)
	return err
}

// String is a text property.
type String struct {
	Base
	value string
}

// NewString creates a text property.
func NewString(identifier, displayName, value string, opts ...Option) *String {
	p := &String{value: value}
	p.init(p, ClassString, identifier, displayName, opts)
	return p
}

// Get returns the current value.
func (p *String) Get() string { return p.value }

// Set stores v; equal values are ignored.
func (p *String) Set(v string) {
	if v == p.value {
		return
	}
	p.value = v
	p.changed()
}

// Value returns the current value.
func (p *String) Value() any { return p.value }

// SetValue converts v and sets it.
func (p *String) SetValue(v any) error {
	s, err := toString(v)
	if err != nil {
		return errors.WrapInvalid(err, "Property", "SetValue", fmt.Sprintf("convert value for %s", p.identifier))
	}
	p.Set(s)
	return nil
}

func (p *String) check(v any) error {
	_, err := toString(v)
	return err
}
