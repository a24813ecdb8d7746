package harness

import "github.com/mxyns/ietf-rfc-dep/internal/engine"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step behaved as declared and every
	// assertion held.
	Pass bool `json:"pass"`

	Steps         []StepRecord          `json:"steps"`
	Notifications []engine.Notification `json:"notifications"`
	Runs          []RunRecord           `json:"runs"`
	Documents     []DocumentRecord      `json:"documents"`
	FetchCounts   map[string]int        `json:"fetch_counts"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// StepRecord is the outcome of one step: "ok" or an error code.
type StepRecord struct {
	Op      string   `json:"op"`
	IDs     []string `json:"ids,omitempty"`
	Outcome string   `json:"outcome"`
}

// RunRecord summarises one collected resolve run.
type RunRecord struct {
	Token      string   `json:"token"`
	Target     string   `json:"target"`
	Halt       string   `json:"halt"`
	Iterations int      `json:"iterations"`
	Changed    int      `json:"changed"`
	Fetched    []string `json:"fetched"`
	Failed     []string `json:"failed"`
}

// DocumentRecord is the final state of one cached document.
type DocumentRecord struct {
	ID          string   `json:"id"`
	MissingDeps int      `json:"missing_deps"`
	IsRead      bool     `json:"is_read"`
	IsSelected  bool     `json:"is_selected"`
	References  []string `json:"references"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:          true,
		Steps:         []StepRecord{},
		Notifications: []engine.Notification{},
		Runs:          []RunRecord{},
		Documents:     []DocumentRecord{},
		FetchCounts:   map[string]int{},
		Errors:        []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Document returns the record of id.
func (r *Result) Document(id string) (DocumentRecord, bool) {
	for _, d := range r.Documents {
		if d.ID == id {
			return d, true
		}
	}
	return DocumentRecord{}, false
}
