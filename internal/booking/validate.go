package booking

import (
	"regexp"
	"strings"

	"github.com/wolfman30/rehab-clinic-platform/internal/catalog"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}

// CanAdvanceFromDepartment reports whether a department is selected.
func CanAdvanceFromDepartment(d Draft) bool {
	return present(d.Department)
}

// CanAdvanceFromDoctor reports whether the selected doctor works in the
// selected department.
func CanAdvanceFromDoctor(d Draft, c *catalog.Catalog) bool {
	if !present(d.Doctor) || c == nil {
		return false
	}
	return c.BelongsTo(d.Doctor, d.Department)
}

// CanAdvanceFromDetails reports whether contact details and a slot are complete.
func CanAdvanceFromDetails(d Draft) bool {
	return present(d.ContactName) &&
		ValidEmail(d.ContactEmail) &&
		present(d.ContactPhone) &&
		d.SelectedSlot != nil
}

// canAdvance applies the predicate guarding the step after from.
func canAdvance(from Step, d Draft, c *catalog.Catalog) bool {
	switch from {
	case StepDepartment:
		return CanAdvanceFromDepartment(d)
	case StepDoctor:
		return CanAdvanceFromDoctor(d, c)
	case StepDetails:
		return CanAdvanceFromDetails(d)
	default:
		return false
	}
}
