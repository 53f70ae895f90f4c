// Package classifier assigns a consultation topic from a fixed category set.
package classifier

import (
	"context"
	"strings"

	"consultation_backend/platform/validator"
)

// Fixed category set. Other is the fallback for anything unrecognised.
const (
	CategoryTechnology = "Technology"
	CategoryBusiness   = "Business"
	CategoryHealth     = "Health"
	CategoryEducation  = "Education"
	CategoryFinance    = "Finance"
	CategoryLegal      = "Legal"
	CategoryLifestyle  = "Lifestyle"
	CategoryOther      = "Other"
)

// ValidationTag is the struct tag rule that accepts any known category.
const ValidationTag = "consultation_category"

var categories = []string{
	CategoryTechnology,
	CategoryBusiness,
	CategoryHealth,
	CategoryEducation,
	CategoryFinance,
	CategoryLegal,
	CategoryLifestyle,
	CategoryOther,
}

// Classifier returns one category for a title and description. It never
// fails: implementations fall back to CategoryOther.
type Classifier interface {
	Classify(ctx context.Context, title, description string) string
}

// Categories returns the category set in display order.
func Categories() []string {
	out := make([]string, len(categories))
	copy(out, categories)
	return out
}

// Parse returns the canonical spelling of raw, matching case-insensitively.
func Parse(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, c := range categories {
		if strings.EqualFold(trimmed, c) {
			return c, true
		}
	}
	return "", false
}

// IsValid reports whether raw names a category.
func IsValid(raw string) bool {
	_, ok := Parse(raw)
	return ok
}

// RegisterValidation adds the consultation_category rule to v.
func RegisterValidation(v *validator.Validator) error {
	return v.RegisterValidation(ValidationTag, IsValid)
}
