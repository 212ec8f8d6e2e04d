package models

// Verdict is the result of checking a single evidence source (or the fused
// result of all of them) for whether a login comes from a known location.
type Verdict int

const (
	// VerdictNoInformation means the source holds no data for this user,
	// in either direction.
	VerdictNoInformation Verdict = iota
	VerdictKnown
	VerdictUnknown
)

func (v Verdict) String() string {
	switch v {
	case VerdictKnown:
		return "known"
	case VerdictUnknown:
		return "unknown"
	default:
		return "no-information"
	}
}

// FailureClass categorizes a failed login attempt by the verdict on its
// originating location. The string values double as counter key segments.
type FailureClass string

const (
	FailureKnownLocation   FailureClass = "known"
	FailureUnknownLocation FailureClass = "new"
)
