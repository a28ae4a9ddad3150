package harness

// Invocation records what one submission did.
type Invocation struct {
	Index        int      `json:"index"` // position in Scenario.Submissions
	Token        string   `json:"token,omitempty"`
	Identity     string   `json:"identity"`
	NewIdentity  bool     `json:"new_identity"`
	Destinations []string `json:"destinations"`
	Unknown      []string `json:"unknown,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Invocations are indexed like Scenario.Submissions.
	Invocations []Invocation `json:"invocations"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Counter is the final unique-applicant counter.
	Counter int `json:"counter"`

	// Sheets holds every sheet's rows, trailing empty cells trimmed.
	Sheets map[string][][]string `json:"sheets"`
}

// NewResult creates a new passing result.
func NewResult(submissions int) *Result {
	return &Result{
		Pass:        true,
		Invocations: make([]Invocation, submissions),
		Errors:      []string{},
		Sheets:      make(map[string][][]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
