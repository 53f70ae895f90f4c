package classifier

import (
	"context"
	"strings"
	"unicode"
)

// keywords maps lower-case terms to their category. Checked in the order of
// the category set, so an earlier category wins ties.
var keywords = map[string][]string{
	CategoryTechnology: {"software", "app", "code", "coding", "programming", "website", "computer", "cloud", "database", "developer", "it", "network", "ai"},
	CategoryBusiness:   {"business", "startup", "marketing", "sales", "strategy", "management", "career", "company", "entrepreneur"},
	CategoryHealth:     {"health", "doctor", "fitness", "diet", "nutrition", "medical", "wellness", "sleep", "therapy"},
	CategoryEducation:  {"study", "school", "university", "exam", "course", "learning", "education", "teacher", "homework"},
	CategoryFinance:    {"finance", "tax", "taxes", "invest", "investment", "money", "budget", "loan", "mortgage", "accounting", "crypto"},
	CategoryLegal:      {"legal", "law", "lawyer", "contract", "court", "visa", "immigration", "lawsuit", "rights"},
	CategoryLifestyle:  {"travel", "fashion", "relationship", "cooking", "hobby", "home", "parenting", "style"},
}

// KeywordClassifier scores the words of a request against a keyword table.
type KeywordClassifier struct{}

// NewKeywordClassifier creates the keyword classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify returns the category with the most keyword hits.
func (KeywordClassifier) Classify(_ context.Context, title, description string) string {
	words := tokenize(title + " " + description)
	if len(words) == 0 {
		return CategoryOther
	}

	best, bestScore := CategoryOther, 0
	for _, category := range categories {
		score := 0
		for _, kw := range keywords[category] {
			score += words[kw]
		}
		if score > bestScore {
			best, bestScore = category, score
		}
	}
	return best
}

func tokenize(text string) map[string]int {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	counts := make(map[string]int, len(fields))
	for _, f := range fields {
		counts[f]++
	}
	return counts
}
