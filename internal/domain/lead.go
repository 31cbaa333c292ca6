package domain

import "time"

// Lead is one cleaned exhibition contact from the merged master list.
type Lead struct {
	ID         string    `json:"id" db:"id"`
	Email      string    `json:"email" db:"email"`
	Company    string    `json:"company" db:"company"`
	Contact    string    `json:"contact" db:"contact"`
	Exhibition string    `json:"exhibition" db:"exhibition"`
	Industry   string    `json:"industry" db:"industry"`
	Tel        string    `json:"tel" db:"tel"`
	SourceFile string    `json:"source_file" db:"source_file"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// RunStatus enumerates the lifecycle states of a cleaning or update run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunKind distinguishes what a recorded run did.
type RunKind string

const (
	RunKindNGFilter RunKind = "ng_filter"
	RunKindUpdate   RunKind = "monthly_update"
)

// Run is the persisted record of one pipeline execution.
type Run struct {
	ID         string    `json:"id" db:"id"`
	Kind       RunKind   `json:"kind" db:"kind"`
	Status     RunStatus `json:"status" db:"status"`
	InputRows  int       `json:"input_rows" db:"input_rows"`
	OutputRows int       `json:"output_rows" db:"output_rows"`
	NGCompany  int       `json:"ng_company" db:"ng_company"`
	NGEmail    int       `json:"ng_email" db:"ng_email"`
	NGIndustry int       `json:"ng_industry" db:"ng_industry"`
	Error      string    `json:"error,omitempty" db:"error"`
	StartedAt  time.Time `json:"started_at" db:"started_at"`
	FinishedAt time.Time `json:"finished_at" db:"finished_at"`
}
