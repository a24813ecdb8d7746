package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/mxyns/ietf-rfc-dep/internal/doc"
)

// Scenario is one resolution scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RunToken tags every run. Defaults to "run-default".
	RunToken string `yaml:"run_token,omitempty"`

	// Settings overrides the default coordinator settings.
	Settings *SettingsOverride `yaml:"settings,omitempty"`

	// Registry lists the documents the fetcher can serve.
	Registry []DocSpec `yaml:"registry"`

	// Fail lists ids whose fetch fails even if Registry serves them.
	Fail []string `yaml:"fail,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// SettingsOverride replaces selected settings.
type SettingsOverride struct {
	MaxDepth    *int `yaml:"max_depth,omitempty"`
	Parallelism *int `yaml:"parallelism,omitempty"`
}

// DocSpec describes a registry document.
type DocSpec struct {
	Name     string `yaml:"name"`
	Revision string `yaml:"revision,omitempty"`
	Title    string `yaml:"title,omitempty"`

	// Relations maps a relation kind to the names it mentions. Name kinds
	// (also_known_as, replaces, was) take exactly one name.
	Relations map[string][]string `yaml:"relations,omitempty"`
}

// Document builds the registry document. Relations are ordered by kind.
func (s DocSpec) Document() (doc.Document, error) {
	d := doc.Document{Summary: doc.NewSummary(s.Name, s.Revision, s.Title)}

	kinds := make(map[doc.Kind][]string, len(s.Relations))
	for raw, names := range s.Relations {
		kind, err := doc.ParseKind(raw)
		if err != nil {
			return doc.Document{}, fmt.Errorf("document %s: %w", s.Name, err)
		}
		kinds[kind] = names
	}
	for _, kind := range doc.Kinds {
		names, ok := kinds[kind]
		if !ok {
			continue
		}
		if kind.IsList() {
			d.Meta = append(d.Meta, doc.ListMeta(kind, names...))
			continue
		}
		if len(names) != 1 {
			return doc.Document{}, fmt.Errorf("document %s: %s takes one name, got %d", s.Name, kind, len(names))
		}
		d.Meta = append(d.Meta, doc.NameMeta(kind, names[0]))
	}

	if err := d.Validate(); err != nil {
		return doc.Document{}, err
	}
	return d, nil
}

// Step is one coordinator operation.
type Step struct {
	Op string `yaml:"op"`

	// IDs are the documents the operation names.
	IDs []string `yaml:"ids,omitempty"`

	// Target is all, single, or multiple (resolve only).
	Target string `yaml:"target,omitempty"`

	// Depth overrides the configured depth (resolve only).
	Depth *int `yaml:"depth,omitempty"`

	// NoQuery retags without fetching (resolve only).
	NoQuery bool `yaml:"no_query,omitempty"`

	// Expect declares the error the step must fail with.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected step failure.
type ExpectClause struct {
	Error string `yaml:"error"`
}

// Operation names.
const (
	OpImport         = "import"
	OpRemove         = "remove"
	OpRemoveSelected = "remove_selected"
	OpSelect         = "select"
	OpDeselect       = "deselect"
	OpMarkRead       = "mark_read"
	OpMarkUnread     = "mark_unread"
	OpMarkToResolve  = "mark_to_resolve"
	OpResolve        = "resolve"
	OpTick           = "tick"
	OpWait           = "wait"
	OpDrain          = "drain"
	OpReset          = "reset"
	OpSnapshot       = "snapshot"
)

// Assertion validates the final state.
type Assertion struct {
	Type string `yaml:"type"`

	ID  string   `yaml:"id,omitempty"`
	IDs []string `yaml:"ids,omitempty"`

	// Count is used by missing_deps, notification_count, and fetch_count.
	Count *int `yaml:"count,omitempty"`

	// Refs are rendered references, e.g. "Cached(rfc2460)".
	Refs []string `yaml:"refs,omitempty"`

	Read     *bool `yaml:"read,omitempty"`
	Selected *bool `yaml:"selected,omitempty"`

	Level    string `yaml:"level,omitempty"`
	Contains string `yaml:"contains,omitempty"`

	Halt string `yaml:"halt,omitempty"`
}

// Assertion type constants.
const (
	AssertCached            = "cached"
	AssertIncomplete        = "incomplete"
	AssertMissingDeps       = "missing_deps"
	AssertReferences        = "references"
	AssertFlags             = "flags"
	AssertNotification      = "notification"
	AssertNotificationCount = "notification_count"
	AssertFetchCount        = "fetch_count"
	AssertHalt              = "halt"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, d := range s.Registry {
		if d.Name == "" {
			return fmt.Errorf("registry[%d]: name is required", i)
		}
		if _, err := d.Document(); err != nil {
			return fmt.Errorf("registry[%d]: %w", i, err)
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	switch s.Op {
	case OpImport, OpRemove, OpMarkRead, OpMarkUnread:
		if len(s.IDs) == 0 {
			return fmt.Errorf("steps[%d]: ids are required for %s", index, s.Op)
		}
	case OpSelect, OpDeselect, OpMarkToResolve, OpRemoveSelected,
		OpTick, OpWait, OpDrain, OpReset, OpSnapshot:
	case OpResolve:
		switch s.Target {
		case "all":
			if len(s.IDs) > 0 {
				return fmt.Errorf("steps[%d]: target all takes no ids", index)
			}
		case "single":
			if len(s.IDs) != 1 {
				return fmt.Errorf("steps[%d]: target single takes one id", index)
			}
		case "multiple":
		default:
			return fmt.Errorf("steps[%d]: unknown resolve target %q", index, s.Target)
		}
		if s.Depth != nil && *s.Depth < 0 {
			return fmt.Errorf("steps[%d]: depth must be non-negative", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}
	if s.Expect != nil && s.Expect.Error == "" {
		return fmt.Errorf("steps[%d].expect: error is required", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	need := func(ok bool, what string) error {
		if !ok {
			return fmt.Errorf("assertions[%d]: %s is required for %s", index, what, a.Type)
		}
		return nil
	}

	switch a.Type {
	case AssertCached, AssertIncomplete:
		return nil
	case AssertMissingDeps, AssertFetchCount:
		if err := need(a.ID != "", "id"); err != nil {
			return err
		}
		return need(a.Count != nil, "count")
	case AssertReferences:
		return need(a.ID != "", "id")
	case AssertFlags:
		if err := need(a.ID != "", "id"); err != nil {
			return err
		}
		return need(a.Read != nil || a.Selected != nil, "read or selected")
	case AssertNotification:
		return need(a.Level != "" || a.Contains != "", "level or contains")
	case AssertNotificationCount:
		if err := need(a.Level != "", "level"); err != nil {
			return err
		}
		return need(a.Count != nil, "count")
	case AssertHalt:
		return need(a.Halt != "", "halt")
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
}

func normalisedID(name string) string { return doc.NameToID(name) }

// sortedIDs normalises names and sorts them the way the cache orders keys.
func sortedIDs(names []string) []string {
	ids := make([]string, len(names))
	for i, name := range names {
		ids[i] = normalisedID(name)
	}
	slices.Sort(ids)
	return ids
}
