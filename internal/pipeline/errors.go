package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a failed question. Every failure carries exactly one.
type Kind string

const (
	KindValidation Kind = "validation"
	KindSynthesis  Kind = "synthesis"
	KindDataAccess Kind = "data_access"
	KindGeneration Kind = "generation"
)

var (
	ErrEmptyQuestion = errors.New("question is required")
	ErrEmptyAnswer   = errors.New("model returned an empty answer")
)

type Error struct {
	Kind  Kind
	Stage State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error during %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of a pipeline failure anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var pipelineErr *Error
	if errors.As(err, &pipelineErr) {
		return pipelineErr.Kind, true
	}
	return "", false
}
