package types

import (
	"fmt"
	"time"
)

type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusSucceeded   RunStatus = "succeeded"
	RunStatusFailed      RunStatus = "failed"
	RunStatusAborted     RunStatus = "aborted"
	RunStatusInterrupted RunStatus = "interrupted"
)

// Finished reports whether no further steps are expected for the run.
func (s RunStatus) Finished() bool {
	return s != RunStatusRunning
}

type StepStatus string

const (
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusSkipped   StepStatus = "skipped"
	StepStatusFailed    StepStatus = "failed"
)

// Run is one bootstrap attempt against an endpoint.
type Run struct {
	ID       string    `gorm:"type:text;primary_key" json:"id"`
	Endpoint string    `gorm:"type:text;index" json:"endpoint"`
	Host     string    `gorm:"type:text" json:"host"`
	Status   RunStatus `gorm:"type:text" json:"status"`

	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt"`
}

func (r *Run) Duration(now time.Time) time.Duration {
	if r.FinishedAt != nil {
		return r.FinishedAt.Sub(r.StartedAt)
	}
	return now.Sub(r.StartedAt)
}

func (r *Run) String() string {
	host := r.Host
	if host == "" {
		host = "-"
	}
	return fmt.Sprintf("%s  %-11s  %-24s  %-12s  %s", r.ID, r.Status, r.Endpoint, host, r.StartedAt.Local().Format(time.DateTime))
}

// Step is a single recorded pipeline step.
type Step struct {
	ID     string     `gorm:"type:text;primary_key" json:"id"`
	RunID  string     `gorm:"type:text;index" json:"runId"`
	Seq    int        `json:"seq"`
	Name   string     `gorm:"type:text" json:"name"`
	Status StepStatus `gorm:"type:text" json:"status"`
	Detail string     `gorm:"type:text" json:"detail"`

	CreatedAt time.Time `json:"createdAt"`
}
