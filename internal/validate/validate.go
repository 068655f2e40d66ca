// Package validate evaluates declarative per-field rule tables and collects
// structured violations, replacing imperative per-field check chains.
package validate

import (
	"regexp"
	"strconv"
	"strings"
)

// Rule describes the constraints on a single string field.
type Rule struct {
	Field     string
	Required  bool
	Normalize func(string) string
	Check     func(string) bool
	Message   string
}

// Violation is one failed rule, reported with the offending field and value.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value"`
}

// Values is the evaluated input, field name to raw value.
type Values map[string]string

// Apply runs every rule against vals. Normalizers run first and write the
// normalized value back, so callers read cleaned values out of vals after a
// successful pass. Optional empty fields skip their check.
func Apply(rules []Rule, vals Values) []Violation {
	var violations []Violation
	for _, r := range rules {
		v := vals[r.Field]
		if r.Normalize != nil {
			v = r.Normalize(v)
			vals[r.Field] = v
		}
		if v == "" {
			if r.Required {
				violations = append(violations, Violation{
					Field:   r.Field,
					Message: "is required",
					Value:   v,
				})
			}
			continue
		}
		if r.Check != nil && !r.Check(v) {
			violations = append(violations, Violation{
				Field:   r.Field,
				Message: r.Message,
				Value:   v,
			})
		}
	}
	return violations
}

// --- Common normalizers and predicates ---

var (
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9][0-9\s\-()]{6,19}$`)
	dateRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	yearRe  = regexp.MustCompile(`^\d{4}$`)
)

func TrimSpace(s string) string { return strings.TrimSpace(s) }

func IsEmail(s string) bool { return emailRe.MatchString(s) }

func IsPhone(s string) bool { return phoneRe.MatchString(s) }

// IsDate matches the YYYY-MM-DD wire format; calendar validity is checked by
// the parse that follows.
func IsDate(s string) bool { return dateRe.MatchString(s) }

func IsYear(s string) bool { return yearRe.MatchString(s) }

// IntBetween returns a predicate accepting integers in [lo, hi].
func IntBetween(lo, hi int) func(string) bool {
	return func(s string) bool {
		n, err := strconv.Atoi(s)
		return err == nil && n >= lo && n <= hi
	}
}

// MaxLen returns a predicate rejecting values longer than n bytes.
func MaxLen(n int) func(string) bool {
	return func(s string) bool { return len(s) <= n }
}
