package depeval

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/caseflow-dev/caseflow/pkg/casedef"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// checkRules applies a field's validation_rules to its submitted value.
// Empty values pass; presence is the required flag's job.
func checkRules(f casedef.Field, v any) []string {
	if f.Validation == nil || isEmpty(v) {
		return nil
	}
	name := displayName(f)
	s := stringify(v)
	var errs []string
	r := f.Validation
	if r.MinLength != nil && len(s) < *r.MinLength {
		errs = append(errs, fmt.Sprintf("%s must be at least %d characters", name, *r.MinLength))
	}
	if r.MaxLength != nil && len(s) > *r.MaxLength {
		errs = append(errs, fmt.Sprintf("%s must be at most %d characters", name, *r.MaxLength))
	}
	if r.Pattern != "" {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s has an invalid validation pattern", name))
		} else if !re.MatchString(s) {
			errs = append(errs, fmt.Sprintf("%s does not match the required format", name))
		}
	}
	if r.Min != nil || r.Max != nil {
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s must be a number", name))
		} else {
			if r.Min != nil && n < *r.Min {
				errs = append(errs, fmt.Sprintf("%s must be at least %v", name, *r.Min))
			}
			if r.Max != nil && n > *r.Max {
				errs = append(errs, fmt.Sprintf("%s must be at most %v", name, *r.Max))
			}
		}
	}
	if r.EmailFormat && !emailRe.MatchString(s) {
		errs = append(errs, fmt.Sprintf("%s must be a valid email address", name))
	}
	return errs
}
