package captcha

import (
	"context"
	"errors"
	"fmt"
)

// Retryable failures. Each one costs a retry and triggers a refresh.
var (
	ErrDownload             = errors.New("image download failed")
	ErrDecode               = errors.New("image decode failed")
	ErrTimeout              = errors.New("timed out")
	ErrStyleParse           = errors.New("style parse failed")
	ErrLowQuality           = errors.New("low quality puzzle")
	ErrIncompleteAssignment = errors.New("incomplete assignment")
	ErrDuplicateAnswer      = errors.New("duplicate answer")
	ErrNotVerified          = errors.New("answer not accepted")
)

// ErrUnsolved is for callers that need an error when Solve gave up. It is
// not retryable: Solve has already spent the retry budget.
var ErrUnsolved = errors.New("captcha not solved")

var retryable = []error{
	ErrDownload,
	ErrDecode,
	ErrTimeout,
	ErrStyleParse,
	ErrLowQuality,
	ErrIncompleteAssignment,
	ErrDuplicateAnswer,
	ErrNotVerified,
	context.DeadlineExceeded,
}

// IsRetryable reports whether err belongs to the retryable taxonomy.
// Everything else is a defect and must reach the caller unchanged.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range retryable {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Stage names a step of one puzzle attempt.
type Stage string

const (
	StageAcquire   Stage = "acquire"
	StageQuality   Stage = "validate_quality"
	StageDetect    Stage = "detect"
	StageMatch     Stage = "match"
	StageResolve   Stage = "resolve"
	StageAct       Stage = "act"
	StageVerify    Stage = "verify"
	StageRefresh   Stage = "refresh"
	StageSuccess   Stage = "success"
	StageExhausted Stage = "exhausted"
)

// StageError records which stage of an attempt failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage recorded in err, or "" if none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
