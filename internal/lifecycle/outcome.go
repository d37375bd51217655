package lifecycle

import (
	"Zyncrate/internal/storage"
	"Zyncrate/model"
	"errors"
	"fmt"
	"io"
)

// Outcome is the business result of a lifecycle decision. Only OutcomeOK
// lets a download proceed; the rest are expected answers, not faults.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNotFound
	OutcomeExpired
	OutcomeUnauthorized
	OutcomeLimitReached
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeExpired:
		return "expired"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeLimitReached:
		return "limit_reached"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Decision carries an outcome and, when the file is visible, its record.
type Decision struct {
	Outcome Outcome
	File    *model.File
}

// Allowed reports whether the decision permits the download.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeOK
}

// Download is the result of Consume. Body is nil unless Allowed.
// Closing Body finishes the request; for an exhausted file it also runs the
// deletion, so callers must always close it.
type Download struct {
	Decision
	Body      io.ReadCloser
	Info      storage.ObjectInfo
	Exhausted bool
}

// Infrastructure fault kinds. Match with errors.Is.
var (
	ErrStorageWrite  = errors.New("storage write failed")
	ErrStorageRead   = errors.New("storage read failed")
	ErrMetadataWrite = errors.New("metadata write failed")
	ErrMetadataRead  = errors.New("metadata read failed")
	ErrObjectMissing = errors.New("object missing for live file")
)

// Request validation errors.
var (
	ErrFileTooLarge   = errors.New("file exceeds upload size limit")
	ErrInvalidRequest = errors.New("invalid request")
)

// FaultError reports a collaborator failure during a lifecycle operation.
type FaultError struct {
	Op   string
	Key  string
	Kind error
	Err  error
}

func (e *FaultError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Key, e.Kind, e.Err)
}

func (e *FaultError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func fault(op, key string, kind, err error) error {
	return &FaultError{Op: op, Key: key, Kind: kind, Err: err}
}
