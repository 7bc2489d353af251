package blobstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("blob not found")
	// ErrBackendUnavailable matches every backend failure.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// BackendError carries the context of a failed backend call.
type BackendError struct {
	Op        string
	Namespace string
	Key       string
	Err       error
}

func (e *BackendError) Error() string {
	switch {
	case e.Namespace != "" && e.Key != "":
		return fmt.Sprintf("blobstore %s %s/%s: %v", e.Op, e.Namespace, e.Key, e.Err)
	case e.Namespace != "":
		return fmt.Sprintf("blobstore %s %s: %v", e.Op, e.Namespace, e.Err)
	default:
		return fmt.Sprintf("blobstore %s: %v", e.Op, e.Err)
	}
}

func (e *BackendError) Unwrap() []error {
	return []error{ErrBackendUnavailable, e.Err}
}

func backendErr(op, namespace, key string, err error) error {
	return &BackendError{Op: op, Namespace: namespace, Key: key, Err: err}
}

var errClosed = errors.New("store closed")
