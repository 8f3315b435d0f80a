package analyze

import "strings"

// The two phrases the vision model is instructed to answer with.
const (
	PhraseDefectPresent = "Defect Present"
	PhraseNoDefect      = "No Defect"
)

// Outcome is the closed interpretation of a free-text verdict.
type Outcome int

const (
	// OutcomeUnrecognized means the verdict matched neither phrase.
	OutcomeUnrecognized Outcome = iota
	// OutcomeDefectPresent means a significant defect was reported.
	OutcomeDefectPresent
	// OutcomeNoDefect means no significant defect was reported.
	OutcomeNoDefect
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeDefectPresent:
		return "defect_present"
	case OutcomeNoDefect:
		return "no_defect"
	default:
		return "unrecognized"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names decode
// as OutcomeUnrecognized.
func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "defect_present":
		*o = OutcomeDefectPresent
	case "no_defect":
		*o = OutcomeNoDefect
	default:
		*o = OutcomeUnrecognized
	}
	return nil
}

// ParseOutcome maps a verdict onto the closed outcome set. Matching ignores
// case, surrounding whitespace, quotes, markdown emphasis and a trailing
// period; anything else is OutcomeUnrecognized.
func ParseOutcome(verdict string) Outcome {
	v := strings.Trim(strings.TrimSpace(verdict), "\"'*`.")
	v = strings.Join(strings.Fields(v), " ")

	switch {
	case strings.EqualFold(v, PhraseDefectPresent):
		return OutcomeDefectPresent
	case strings.EqualFold(v, PhraseNoDefect):
		return OutcomeNoDefect
	default:
		return OutcomeUnrecognized
	}
}
