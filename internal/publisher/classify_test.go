package publisher

import (
	"errors"
	"testing"
)

func TestClassifyDefaults(t *testing.T) {
	c := NewClassifier(nil)
	cases := []struct {
		msg  string
		want FailureKind
	}{
		{"no changes detected: branch agent-x already matches artifacts", FailureNoChanges},
		{"422 No commits between main and agent-x", FailureNoChanges},
		{"nothing to commit, working tree clean", FailureNoChanges},
		{"403 rate limit exceeded", FailureOther},
		{"connection reset by peer", FailureOther},
	}
	for _, tc := range cases {
		if got := c.Classify(errors.New(tc.msg)); got != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

func TestClassifyNilError(t *testing.T) {
	if got := NewClassifier(nil).Classify(nil); got != FailureOther {
		t.Errorf("Classify(nil) = %v", got)
	}
}

func TestClassifyCustomPatterns(t *testing.T) {
	c := NewClassifier([]string{"already up to date"})
	if got := c.Classify(errors.New("Already Up To Date.")); got != FailureNoChanges {
		t.Errorf("custom pattern not matched: %v", got)
	}
	// Custom patterns replace the defaults entirely.
	if got := c.Classify(errors.New("no changes detected")); got != FailureOther {
		t.Errorf("default pattern should not apply: %v", got)
	}
}

// Known false-positive risk of substring matching: an unrelated error that
// merely mentions the phrase is classified as no-changes.
func TestClassifyFalsePositive(t *testing.T) {
	c := NewClassifier(nil)
	err := errors.New("webhook delivery failed: payload said 'no changes' field missing")
	if got := c.Classify(err); got != FailureNoChanges {
		t.Errorf("substring matcher is expected to misclassify this: %v", got)
	}
}
