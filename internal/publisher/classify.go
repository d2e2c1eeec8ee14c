package publisher

import "strings"

// FailureKind tags a publish failure after classification. String sniffing of
// hosting errors happens only inside Classify; everything downstream works
// with the tag.
type FailureKind int

const (
	FailureOther FailureKind = iota
	FailureNoChanges
)

// DefaultNoChangesPatterns match the hosting errors that mean the repository
// already reflects the proposed content. Matching is a case-insensitive
// substring check, so an unrelated error that happens to contain one of these
// phrases will be misclassified; the patterns are configurable for that
// reason.
var DefaultNoChangesPatterns = []string{
	"no changes",
	"no commits between",
	"nothing to commit",
}

// Classifier decides whether a publish failure is a no-changes condition.
type Classifier struct {
	patterns []string
}

// NewClassifier builds a classifier from the given substring patterns. An
// empty list falls back to DefaultNoChangesPatterns.
func NewClassifier(patterns []string) *Classifier {
	if len(patterns) == 0 {
		patterns = DefaultNoChangesPatterns
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return &Classifier{patterns: lowered}
}

func (c *Classifier) Classify(err error) FailureKind {
	if err == nil {
		return FailureOther
	}
	msg := strings.ToLower(err.Error())
	for _, p := range c.patterns {
		if strings.Contains(msg, p) {
			return FailureNoChanges
		}
	}
	return FailureOther
}
