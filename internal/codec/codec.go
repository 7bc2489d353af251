// Package codec turns entities into blobs and back. Blobs are JSON documents
// wrapped in a small versioned envelope.
package codec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/yukikurage/project-tracker/internal/models"
)

// Version is written into every envelope.
const Version = 1

var ErrCorruptEntity = errors.New("corrupt entity")

// CorruptEntityError describes a blob that could not be decoded.
type CorruptEntityError struct {
	Kind   models.Kind
	Key    string
	Reason string
	Err    error
}

func (e *CorruptEntityError) Error() string {
	msg := fmt.Sprintf("corrupt %s %q: %s", e.Kind, e.Key, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CorruptEntityError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCorruptEntity}
	}
	return []error{ErrCorruptEntity, e.Err}
}

type envelope struct {
	Kind    models.Kind     `json:"kind"`
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// Encode serializes the entity's scalar fields inside an envelope.
func Encode(e models.Entity) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s %s: %w", e.EntityKind(), e.EntityID(), err)
	}
	out, err := json.Marshal(envelope{Kind: e.EntityKind(), Version: Version, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s %s: %w", e.EntityKind(), e.EntityID(), err)
	}
	return out, nil
}

// Decode rebuilds an entity from blob bytes. key is the storage key the blob
// was read from and only feeds error messages. Unknown fields are ignored,
// missing ones take the kind's defaults, and an envelope-less object is
// accepted as an older encoding. On error the zero E is returned.
func Decode[E models.Entity](data []byte, key string, newEntity func() E) (E, error) {
	var zero E
	entity := newEntity()
	kind := entity.EntityKind()

	corrupt := func(reason string, err error) (E, error) {
		return zero, &CorruptEntityError{Kind: kind, Key: key, Reason: reason, Err: err}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return corrupt("not a JSON object", nil)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return corrupt("malformed JSON", err)
	}

	payload := trimmed
	if raw, ok := probe["data"]; ok && probe["kind"] != nil {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return corrupt("malformed envelope", err)
		}
		if env.Kind != kind {
			return corrupt(fmt.Sprintf("kind mismatch: stored %s", env.Kind), nil)
		}
		if env.Version > Version {
			return corrupt(fmt.Sprintf("unsupported version %d", env.Version), nil)
		}
		payload = raw
	}

	if err := json.Unmarshal(payload, entity); err != nil {
		return corrupt("malformed payload", err)
	}
	if entity.EntityID() == "" {
		return corrupt("missing id", nil)
	}
	if d, ok := any(entity).(models.Defaulter); ok {
		d.ApplyDefaults()
	}
	return entity, nil
}

// Constructors for Decode.
func NewUser() *models.User             { return &models.User{} }
func NewProject() *models.Project       { return &models.Project{} }
func NewTask() *models.Task             { return &models.Task{} }
func NewComment() *models.Comment       { return &models.Comment{} }
func NewAttachment() *models.Attachment { return &models.Attachment{} }
