package joblog

import "time"

// Status is the lifecycle state of a tracked job or step, independent of
// (but frequently paired with) the richer job.State machine in the job
// package: this tracks the audit-log row's own status, not a PBS job
// state. See spec.md section 3 "Job" for the batch job state machine this
// audit trail runs alongside.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusSkipped   Status = "skipped"
)

// IsTerminal reports whether no further transitions are expected.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// JobStart carries the fields needed to open a new tracked job row.
type JobStart struct {
	ParentJobID   *string
	JobType       string
	Operation     string
	Owner         string
	Metadata      map[string]any
	ContextID     *string // groups related jobs, e.g. all jobs against one reservation
	ExternalJobID *string // correlation ID supplied by a peer server or client
	JobCategory   string
}

// Validate checks the required fields are present.
func (j JobStart) Validate() error {
	if j.JobType == "" {
		return ErrInvalidJobType
	}
	if j.Operation == "" {
		return ErrInvalidOperation
	}
	return nil
}

// StepStart carries the fields needed to open a new step within a job.
type StepStart struct {
	Name     string
	Seq      int
	Metadata map[string]any
}

// Validate checks the required fields are present.
func (s StepStart) Validate() error {
	if s.Name == "" {
		return ErrInvalidStepName
	}
	return nil
}

// JobRecord is the persisted row for a tracked job.
type JobRecord struct {
	ID              string
	ParentJobID     *string
	JobType         string
	Operation       string
	Status          Status
	PercentComplete uint8
	ExternalJobID   *string
	Metadata        *string
	ErrorMessage    *string
	Owner           string
	StartedAt       time.Time
	CompletedAt     *time.Time
	CanceledAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ContextID       *string
	JobCategory     string
}

// StepRecord is the persisted row for one step within a job.
type StepRecord struct {
	ID            int64
	JobID         string
	Name          string
	Seq           int
	Status        Status
	StartedAt     time.Time
	CompletedAt   *time.Time
	ErrorMessage  *string
	Metadata      *string
}

// LogRecord is one structured log line queued to the DBHandler for
// asynchronous batch insertion.
type LogRecord struct {
	JobID         *string
	StepID        *int64
	ExternalJobID *string
	Level         string
	Message       string
	Attrs         *string
	Ts            time.Time
}

// ProgressInfo summarizes a job's step completion for status queries
// (the batch protocol's StatJob/Track operations, spec.md section 8).
type ProgressInfo struct {
	JobID            string
	TotalSteps       int
	CompletedSteps   int
	FailedSteps      int
	RunningSteps     int
	SkippedSteps     int
	StepCompletion   float64
	ManualCompletion uint8
	StartedAt        time.Time
	LastActivity     *time.Time
	RuntimeSeconds   int64
}

// JobSummary bundles a job, its steps, and derived progress for a single
// read.
type JobSummary struct {
	Job      JobRecord
	Steps    []StepRecord
	Progress ProgressInfo
}
