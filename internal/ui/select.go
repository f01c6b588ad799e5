package ui

import "github.com/charmbracelet/lipgloss"

// selectOption is one entry of an inline select field.
type selectOption struct {
	id    int
	label string
}

// selectField cycles through a fixed set of options with left/right. A zero
// id entry can serve as the "none" choice.
type selectField struct {
	label    string
	options  []selectOption
	index    int
	focused  bool
	disabled bool
}

func newSelectField(label string) selectField {
	return selectField{label: label}
}

// setOptions replaces the choices, keeping the current selection when its id
// is still present.
func (f *selectField) setOptions(options []selectOption) {
	current, had := f.value()
	f.options = options
	f.index = 0
	if had {
		for i, o := range options {
			if o.id == current {
				f.index = i
				break
			}
		}
	}
}

// selectID moves the cursor to the option with the given id, if present.
func (f *selectField) selectID(id int) {
	for i, o := range f.options {
		if o.id == id {
			f.index = i
			return
		}
	}
}

func (f *selectField) next() {
	if f.disabled || len(f.options) == 0 {
		return
	}
	f.index = (f.index + 1) % len(f.options)
}

func (f *selectField) prev() {
	if f.disabled || len(f.options) == 0 {
		return
	}
	f.index = (f.index - 1 + len(f.options)) % len(f.options)
}

// value returns the selected option id. The second result is false when
// nothing is selectable or the "none" entry is active.
func (f *selectField) value() (int, bool) {
	if len(f.options) == 0 || f.index >= len(f.options) {
		return 0, false
	}
	o := f.options[f.index]
	if o.id == 0 {
		return 0, false
	}
	return o.id, true
}

func (f *selectField) view() string {
	label := labelStyle.Render(f.label)
	var body string
	switch {
	case f.disabled:
		body = dimStyle.Render("(select a type first)")
	case len(f.options) == 0:
		body = dimStyle.Render("(loading...)")
	default:
		body = "◂ " + f.options[f.index].label + " ▸"
	}
	if f.focused && !f.disabled {
		body = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Render(body)
	}
	return label + "\n" + body
}
