package password

import "unicode"

// Violation is a machine-readable reason a candidate password failed policy.
type Violation string

const (
	// ReasonTooShort is reported when the password has fewer runes than MinLength.
	ReasonTooShort Violation = "too_short"
	// ReasonMissingUppercase is reported when RequireUppercase is set and no upper-case letter is present.
	ReasonMissingUppercase Violation = "missing_uppercase"
	// ReasonMissingLowercase is reported when RequireLowercase is set and no lower-case letter is present.
	ReasonMissingLowercase Violation = "missing_lowercase"
	// ReasonMissingNumber is reported when RequireNumbers is set and no digit is present.
	ReasonMissingNumber Violation = "missing_number"
	// ReasonMissingSpecialChar is reported when RequireSpecialChars is set and no symbol or punctuation is present.
	ReasonMissingSpecialChar Violation = "missing_special_char"
)

// Options enumerates the configurable strength rules. The zero value enforces
// nothing.
type Options struct {
	MinLength           int
	RequireUppercase    bool
	RequireLowercase    bool
	RequireNumbers      bool
	RequireSpecialChars bool
}

// Policy validates candidate passwords against configured strength rules.
//
// Policy instances are intended to be configured during initialization and then
// treated as immutable.
type Policy struct {
	options Options
}

// NewPolicy returns a policy enforcing the given options.
func NewPolicy(options Options) *Policy {
	return &Policy{options: options}
}

// Validate reports every rule the candidate violates. It is pure and total:
// any string input, including the empty string, yields a deterministic result
// with no I/O. An empty result slice means the password satisfies the policy.
func (p *Policy) Validate(candidate string) []Violation {
	var violations []Violation

	runes := []rune(candidate)
	if len(runes) < p.options.MinLength {
		violations = append(violations, ReasonTooShort)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, r := range runes {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsNumber(r):
			hasNumber = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if p.options.RequireUppercase && !hasUpper {
		violations = append(violations, ReasonMissingUppercase)
	}
	if p.options.RequireLowercase && !hasLower {
		violations = append(violations, ReasonMissingLowercase)
	}
	if p.options.RequireNumbers && !hasNumber {
		violations = append(violations, ReasonMissingNumber)
	}
	if p.options.RequireSpecialChars && !hasSpecial {
		violations = append(violations, ReasonMissingSpecialChar)
	}

	return violations
}
