package formskema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Behavior selects when a field validates.
type Behavior uint8

const (
	BehaviorUnset Behavior = iota // Inherit the default for this field state.
	OnSubmit                      // Validate only on submit.
	OnChange                      // Validate on every change and blur.
	OnBlur                        // Validate on blur; a change clears the error.
)

func (b Behavior) String() string {
	switch b {
	case OnSubmit:
		return "onSubmit"
	case OnChange:
		return "onChange"
	case OnBlur:
		return "onBlur"
	}
	return ""
}

// MarshalText renders b as onSubmit, onChange or onBlur.
func (b Behavior) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// UnmarshalText accepts onSubmit, onChange, onBlur or the empty string.
func (b *Behavior) UnmarshalText(text []byte) error {
	switch string(text) {
	case "":
		*b = BehaviorUnset
	case "onSubmit":
		*b = OnSubmit
	case "onChange":
		*b = OnChange
	case "onBlur":
		*b = OnBlur
	default:
		return fmt.Errorf("formskema: unknown validation behavior %q", text)
	}
	return nil
}

// UnmarshalYAML decodes a scalar behavior name.
func (b *Behavior) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	return b.UnmarshalText([]byte(s))
}

// ValidationBehaviorConfig picks a Behavior per field state.
type ValidationBehaviorConfig struct {
	Initial       Behavior `json:"initial" yaml:"initial"`
	WhenTouched   Behavior `json:"whenTouched" yaml:"whenTouched"`
	WhenSubmitted Behavior `json:"whenSubmitted" yaml:"whenSubmitted"`
}

// DefaultValidationBehavior validates on blur until a field is touched, then
// on every change.
var DefaultValidationBehavior = ValidationBehaviorConfig{
	Initial:       OnBlur,
	WhenTouched:   OnChange,
	WhenSubmitted: OnChange,
}

// withDefaults fills unset members from DefaultValidationBehavior.
func (c ValidationBehaviorConfig) withDefaults() ValidationBehaviorConfig {
	if c.Initial == BehaviorUnset {
		c.Initial = DefaultValidationBehavior.Initial
	}
	if c.WhenTouched == BehaviorUnset {
		c.WhenTouched = DefaultValidationBehavior.WhenTouched
	}
	if c.WhenSubmitted == BehaviorUnset {
		c.WhenSubmitted = DefaultValidationBehavior.WhenSubmitted
	}
	return c
}

// For returns the behavior in effect for a field. Submitted wins over touched.
func (c ValidationBehaviorConfig) For(touched, submitted bool) Behavior {
	c = c.withDefaults()
	switch {
	case submitted:
		return c.WhenSubmitted
	case touched:
		return c.WhenTouched
	}
	return c.Initial
}

// FieldState is the validation-relevant state of one field.
type FieldState uint8

const (
	StateInitial FieldState = iota
	StateTouched
	StateSubmitted
)

func (s FieldState) String() string {
	switch s {
	case StateTouched:
		return "touched"
	case StateSubmitted:
		return "submitted"
	}
	return "initial"
}

func fieldState(touched, submitted bool) FieldState {
	switch {
	case submitted:
		return StateSubmitted
	case touched:
		return StateTouched
	}
	return StateInitial
}

type event uint8

const (
	eventChange event = iota
	eventBlur
)

func (e event) String() string {
	if e == eventBlur {
		return "blur"
	}
	return "change"
}

type action uint8

const (
	actionNone action = iota
	actionValidate
	actionClear
)

// decide maps a behavior and an event to what the scheduler does.
func decide(b Behavior, ev event) action {
	switch b {
	case OnChange:
		return actionValidate
	case OnBlur:
		if ev == eventBlur {
			return actionValidate
		}
		return actionClear
	}
	return actionNone
}
