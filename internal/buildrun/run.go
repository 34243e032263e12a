package buildrun

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is a record of a single pipeline invocation.
type Run struct {
	ID string `dynamodbav:"Id"`

	Version string `dynamodbav:"Version"`

	Status Status `dynamodbav:"Status"`
	Error  string `dynamodbav:"Error,omitempty"`

	ImageTags []string `dynamodbav:"ImageTags,omitempty"`

	StartedAt time.Time     `dynamodbav:"StartedAt"`
	Elapsed   time.Duration `dynamodbav:"ElapsedNs"`
}

func New(version string) *Run {
	return &Run{
		ID:        uuid.New().String(),
		Version:   version,
		StartedAt: time.Now(),
	}
}

// Finish fills the outcome fields based on the pipeline result.
func (r *Run) Finish(imageTags []string, err error) {
	r.Elapsed = time.Since(r.StartedAt)

	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
		return
	}

	r.Status = StatusSucceeded
	r.ImageTags = imageTags
}
