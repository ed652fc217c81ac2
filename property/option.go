package property

import (
	"fmt"

	"github.com/c360/vizflow/errors"
)

// Choice is one entry of an OptionProperty.
type Choice struct {
	Identifier  string
	DisplayName string
}

// OptionProperty selects one of a fixed list of choices. Its value is the
// identifier of the selected choice.
type OptionProperty struct {
	Base
	choices  []Choice
	selected int
}

// NewOption creates an option property selecting the choice with identifier
// selected, or the first choice when selected is unknown.
func NewOption(identifier, displayName string, choices []Choice, selected string, opts ...Option) *OptionProperty {
	p := &OptionProperty{choices: append([]Choice(nil), choices...)}
	if i := p.indexOf(selected); i >= 0 {
		p.selected = i
	}
	p.init(p, ClassOption, identifier, displayName, opts)
	return p
}

func (p *OptionProperty) indexOf(id string) int {
	for i, c := range p.choices {
		if c.Identifier == id {
			return i
		}
	}
	return -1
}

// Choices returns a copy of the available choices.
func (p *OptionProperty) Choices() []Choice {
	return append([]Choice(nil), p.choices...)
}

// Selected returns the identifier of the selected choice, or "" when empty.
func (p *OptionProperty) Selected() string {
	if len(p.choices) == 0 {
		return ""
	}
	return p.choices[p.selected].Identifier
}

// SelectedIndex returns the index of the selected choice.
func (p *OptionProperty) SelectedIndex() int { return p.selected }

// Select selects the choice with the given identifier.
func (p *OptionProperty) Select(id string) error {
	i := p.indexOf(id)
	if i < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: no choice %q", errors.ErrOutOfRange, id),
			"Property", "Select", fmt.Sprintf("select %s", p.identifier))
	}
	return p.SelectIndex(i)
}

// SelectIndex selects the choice at index i.
func (p *OptionProperty) SelectIndex(i int) error {
	if i < 0 || i >= len(p.choices) {
		return errors.WrapInvalid(
			fmt.Errorf("%w: index %d of %d choices", errors.ErrOutOfRange, i, len(p.choices)),
			"Property", "SelectIndex", fmt.Sprintf("select %s", p.identifier))
	}
	if i == p.selected {
		return nil
	}
	p.selected = i
	p.changed()
	return nil
}

// Value returns the selected identifier.
func (p *OptionProperty) Value() any { return p.Selected() }

// SetValue accepts a choice identifier, or a number used as index.
func (p *OptionProperty) SetValue(v any) error {
	i, err := p.index(v)
	if err != nil {
		return err
	}
	return p.SelectIndex(i)
}

func (p *OptionProperty) check(v any) error {
	_, err := p.index(v)
	return err
}

func (p *OptionProperty) index(v any) (int, error) {
	if s, ok := v.(string); ok {
		i := p.indexOf(s)
		if i < 0 {
			return 0, errors.WrapInvalid(
				fmt.Errorf("%w: no choice %q", errors.ErrOutOfRange, s),
				"Property", "Select", fmt.Sprintf("select %s", p.identifier))
		}
		return i, nil
	}
	i, err := toInt(v)
	if err != nil {
		return 0, errors.WrapInvalid(err, "Property", "SetValue", fmt.Sprintf("convert value for %s", p.identifier))
	}
	if i < 0 || i >= len(p.choices) {
		return 0, errors.WrapInvalid(
			fmt.Errorf("%w: index %d of %d choices", errors.ErrOutOfRange, i, len(p.choices)),
			"Property", "SelectIndex", fmt.Sprintf("select %s", p.identifier))
	}
	return i, nil
}
