package instrules

import (
	"strings"
	"testing"
)

func TestRules(t *testing.T) {
	rules := []Rule{
		NoBody(),
		SkipConflict(),
		UnknownSkip(),
		FieldSkipCollision(),
		DuplicateField(),
		BadOption(),
		DuplicateOption(),
		ErrWithoutError(),
		RetWithoutResult(),
		ReservedIdentifier(),
		InvalidLevel(),
		AbandonSkipsExit(),
	}

	seen := map[string]bool{}
	for _, r := range rules {
		t.Run(r.String(), func(t *testing.T) {
			if !strings.HasPrefix(r.String(), r.Code()+": ") {
				t.Errorf("code %q is not a prefix of %q", r.Code(), r.String())
			}
			if strings.HasPrefix(r.Description(), "unknown-rule") {
				t.Errorf("no description for %s", r)
			}
			if seen[r.Code()] {
				t.Errorf("duplicate code %s", r.Code())
			}
			seen[r.Code()] = true
		})
	}

	if got := Rule(100).String(); got != "rule-unknown(100)" {
		t.Errorf("unexpected unknown rule rendering %q", got)
	}
	if got := Rule(100).Code(); got != "rule-unknown(100)" {
		t.Errorf("unexpected unknown rule code %q", got)
	}
}
