package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yukikurage/project-tracker/internal/models"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// NotFoundError names the kind and key that could not be found.
type NotFoundError struct {
	Kind  models.Kind
	Field string
	Value string
}

func notFound(kind models.Kind, field, value string) error {
	return &NotFoundError{Kind: kind, Field: field, Value: value}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with %s %q not found", strings.ToLower(string(e.Kind)), e.Field, e.Value)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// DuplicateKeyError is returned when a unique field is already taken.
type DuplicateKeyError struct {
	Kind  models.Kind
	Field string
	Value string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", strings.ToLower(string(e.Kind)), e.Field, e.Value)
}

func (e *DuplicateKeyError) Unwrap() error { return ErrDuplicateKey }

// StepError is one failed step of a cascading delete.
type StepError struct {
	Step string
	Kind models.Kind
	ID   string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Step, e.Kind, e.ID, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// CascadeError collects the failed steps of a cascading delete. Deleted is
// false only when the root id could not be tombstoned; in every other case
// the root entity is gone and the steps describe leftover cleanup.
type CascadeError struct {
	Kind    models.Kind
	ID      string
	Deleted bool
	Steps   []*StepError
}

func (e *CascadeError) Error() string {
	var b strings.Builder
	if e.Deleted {
		fmt.Fprintf(&b, "deleted %s %s with %d failed cleanup step(s)", e.Kind, e.ID, len(e.Steps))
	} else {
		fmt.Fprintf(&b, "failed to delete %s %s", e.Kind, e.ID)
	}
	for _, s := range e.Steps {
		b.WriteString("; ")
		b.WriteString(s.Error())
	}
	return b.String()
}

func (e *CascadeError) Unwrap() []error {
	errs := make([]error, len(e.Steps))
	for i, s := range e.Steps {
		errs[i] = s
	}
	return errs
}

func (e *CascadeError) add(step string, kind models.Kind, id string, err error) {
	e.Steps = append(e.Steps, &StepError{Step: step, Kind: kind, ID: id, Err: err})
}

func (e *CascadeError) merge(other error) {
	var ce *CascadeError
	if errors.As(other, &ce) {
		e.Steps = append(e.Steps, ce.Steps...)
		return
	}
	e.add("unknown", e.Kind, e.ID, other)
}

func (e *CascadeError) errOrNil() error {
	if e.Deleted && len(e.Steps) == 0 {
		return nil
	}
	return e
}
