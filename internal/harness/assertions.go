package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome

	// Notifications gives the notification log for context.
	Notifications []string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Notifications) > 0 {
		fmt.Fprintf(&buf, "\nNotifications:\n")
		for _, n := range e.Notifications {
			fmt.Fprintf(&buf, "  %s\n", n)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns
// the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertCached:
		return assertCached(r, a)
	case AssertIncomplete:
		return assertIncomplete(r, a)
	case AssertMissingDeps:
		return assertMissingDeps(r, a)
	case AssertReferences:
		return assertReferences(r, a)
	case AssertFlags:
		return assertFlags(r, a)
	case AssertNotification:
		return assertNotification(r, a)
	case AssertNotificationCount:
		return assertNotificationCount(r, a)
	case AssertFetchCount:
		return assertFetchCount(r, a)
	case AssertHalt:
		return assertHalt(r, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func (r *Result) fail(kind, expected, actual string) *AssertionError {
	notes := make([]string, len(r.Notifications))
	for i, n := range r.Notifications {
		notes[i] = n.String()
	}
	return &AssertionError{Type: kind, Expected: expected, Actual: actual, Notifications: notes}
}

func assertCached(r *Result, a Assertion) error {
	got := make([]string, len(r.Documents))
	for i, d := range r.Documents {
		got[i] = d.ID
	}
	want := sortedIDs(a.IDs)
	if !slices.Equal(want, got) {
		return r.fail(a.Type, fmt.Sprintf("cache holds %v", want), fmt.Sprintf("cache holds %v", got))
	}
	return nil
}

func assertIncomplete(r *Result, a Assertion) error {
	got := []string{}
	for _, d := range r.Documents {
		for _, ref := range d.References {
			if strings.HasPrefix(ref, "Unknown(") {
				got = append(got, d.ID)
				break
			}
		}
	}
	want := sortedIDs(a.IDs)
	if !slices.Equal(want, got) {
		return r.fail(a.Type, fmt.Sprintf("incomplete documents %v", want), fmt.Sprintf("incomplete documents %v", got))
	}
	return nil
}

func assertMissingDeps(r *Result, a Assertion) error {
	d, err := r.document(a)
	if err != nil {
		return err
	}
	if d.MissingDeps != *a.Count {
		return r.fail(a.Type, fmt.Sprintf("%s has %d missing dependencies", a.ID, *a.Count), fmt.Sprintf("%d", d.MissingDeps))
	}
	return nil
}

func assertReferences(r *Result, a Assertion) error {
	d, err := r.document(a)
	if err != nil {
		return err
	}
	want := a.Refs
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(want, d.References) {
		return r.fail(a.Type, fmt.Sprintf("%s references %v", a.ID, want), fmt.Sprintf("%v", d.References))
	}
	return nil
}

func assertFlags(r *Result, a Assertion) error {
	d, err := r.document(a)
	if err != nil {
		return err
	}
	if a.Read != nil && d.IsRead != *a.Read {
		return r.fail(a.Type, fmt.Sprintf("%s read=%t", a.ID, *a.Read), fmt.Sprintf("read=%t", d.IsRead))
	}
	if a.Selected != nil && d.IsSelected != *a.Selected {
		return r.fail(a.Type, fmt.Sprintf("%s selected=%t", a.ID, *a.Selected), fmt.Sprintf("selected=%t", d.IsSelected))
	}
	return nil
}

func assertNotification(r *Result, a Assertion) error {
	for _, n := range r.Notifications {
		if a.Level != "" && string(n.Level) != a.Level {
			continue
		}
		if strings.Contains(n.Message, a.Contains) {
			return nil
		}
	}
	return r.fail(a.Type, fmt.Sprintf("a %q notification containing %q", a.Level, a.Contains), "not found")
}

func assertNotificationCount(r *Result, a Assertion) error {
	count := 0
	for _, n := range r.Notifications {
		if string(n.Level) == a.Level {
			count++
		}
	}
	if count != *a.Count {
		return r.fail(a.Type, fmt.Sprintf("%d %s notifications", *a.Count, a.Level), fmt.Sprintf("%d", count))
	}
	return nil
}

func assertFetchCount(r *Result, a Assertion) error {
	id := normalisedID(a.ID)
	if got := r.FetchCounts[id]; got != *a.Count {
		return r.fail(a.Type, fmt.Sprintf("%s fetched %d times", id, *a.Count), fmt.Sprintf("%d times", got))
	}
	return nil
}

func assertHalt(r *Result, a Assertion) error {
	if len(r.Runs) == 0 {
		return r.fail(a.Type, fmt.Sprintf("last run halted %s", a.Halt), "no run was collected")
	}
	last := r.Runs[len(r.Runs)-1]
	if last.Halt != a.Halt {
		return r.fail(a.Type, fmt.Sprintf("last run halted %s", a.Halt), last.Halt)
	}
	return nil
}

func (r *Result) document(a Assertion) (DocumentRecord, error) {
	id := normalisedID(a.ID)
	d, ok := r.Document(id)
	if !ok {
		return DocumentRecord{}, r.fail(a.Type, fmt.Sprintf("%s is cached", id), "not cached")
	}
	return d, nil
}
