package formskema

import (
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"
)

// Execution controls where event-triggered validation runs.
type Execution uint8

const (
	ExecAsync  Execution = iota // One goroutine per run; Store.Wait blocks until settled.
	ExecInline                  // Runs on the goroutine that made the change.
)

func (e Execution) String() string {
	if e == ExecInline {
		return "inline"
	}
	return "async"
}

// MarshalText renders e as async or inline.
func (e Execution) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

// UnmarshalText accepts async, inline or the empty string (async).
func (e *Execution) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "async":
		*e = ExecAsync
	case "inline":
		*e = ExecInline
	default:
		return fmt.Errorf("formskema: unknown execution mode %q", text)
	}
	return nil
}

// UnmarshalYAML decodes a scalar execution mode.
func (e *Execution) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	return e.UnmarshalText([]byte(s))
}

// Options configures a Store. When several are passed the last one wins.
type Options struct {
	ValidationBehavior  ValidationBehaviorConfig `json:"validationBehavior" yaml:"validationBehavior"`
	Execution           Execution                `json:"execution" yaml:"execution"`
	DisableFocusOnError bool                     `json:"disableFocusOnError" yaml:"disableFocusOnError"`
	ResetAfterSubmit    bool                     `json:"resetAfterSubmit" yaml:"resetAfterSubmit"`
	// FormID routes server field-error payloads to this form. A random UUID
	// is assigned when empty.
	FormID string `json:"formId" yaml:"formId"`

	Logger  *slog.Logger `json:"-" yaml:"-"` // Defaults to a discarding logger.
	Focuser Focuser      `json:"-" yaml:"-"`
}

// LoadOptions decodes Options from YAML (or JSON, which YAML accepts).
func LoadOptions(data []byte) (Options, error) {
	var opt Options
	if err := yaml.Unmarshal(data, &opt); err != nil {
		return Options{}, fmt.Errorf("formskema: load options: %w", err)
	}
	return opt, nil
}

func lastOptions(opts []Options) Options {
	var opt Options
	if len(opts) > 0 {
		opt = opts[len(opts)-1]
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	opt.ValidationBehavior = opt.ValidationBehavior.withDefaults()
	return opt
}
