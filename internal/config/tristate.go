package config

import "fmt"

// TriState is a three-valued setting: explicitly enabled, explicitly
// disabled, or not set at all. Callers decide what Unset falls back to.
type TriState int

const (
	Unset TriState = iota
	Enabled
	Disabled
)

func (t TriState) String() string {
	switch t {
	case Enabled:
		return "enabled"
	case Disabled:
		return "disabled"
	default:
		return "unset"
	}
}

// Bool resolves the tri-state against a default used when unset.
func (t TriState) Bool(unsetDefault bool) bool {
	switch t {
	case Enabled:
		return true
	case Disabled:
		return false
	default:
		return unsetDefault
	}
}

// ParseTriState maps an environment value onto a TriState. The empty
// string is Unset, not an error.
func ParseTriState(value string) (TriState, error) {
	switch value {
	case "":
		return Unset, nil
	case "true", "1", "enabled":
		return Enabled, nil
	case "false", "0", "disabled":
		return Disabled, nil
	default:
		return Unset, fmt.Errorf("invalid tri-state value %q", value)
	}
}
