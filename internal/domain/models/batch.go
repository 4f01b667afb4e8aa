package models

import "time"

// SymbolOutcome is one entry of a batch result. Error is empty on success.
type SymbolOutcome struct {
	Symbol string `json:"symbol"`
	Added  int    `json:"added"`
	Kept   int    `json:"kept"`
	Error  string `json:"error,omitempty"`
}

// Failed reports whether the symbol ended in error.
func (o SymbolOutcome) Failed() bool { return o.Error != "" }

// BatchResult is the structured outcome of a single pipeline invocation.
type BatchResult struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Aborted    bool            `json:"aborted"`
	Error      string          `json:"error,omitempty"`
	Outcomes   []SymbolOutcome `json:"outcomes"`
}

// Failed reports whether the run aborted, hit a run-level error, or any symbol failed.
func (r *BatchResult) Failed() bool {
	if r.Aborted || r.Error != "" {
		return true
	}
	for _, o := range r.Outcomes {
		if o.Failed() {
			return true
		}
	}
	return false
}

// Added sums the new bars across all successful symbols.
func (r *BatchResult) Added() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.Added
	}
	return n
}
