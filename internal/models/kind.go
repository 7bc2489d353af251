package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind names one of the stored entity types. Its value doubles as the
// namespace ("table") the entity blobs live under.
type Kind string

const (
	KindUser       Kind = "User"
	KindProject    Kind = "Project"
	KindTask       Kind = "Task"
	KindComment    Kind = "Comment"
	KindAttachment Kind = "Attachment"
)

// AllKinds lists every stored kind in dependency order (parents first).
func AllKinds() []Kind {
	return []Kind{KindUser, KindProject, KindTask, KindComment, KindAttachment}
}

// Namespace returns the blob namespace for the kind.
func (k Kind) Namespace() string {
	return string(k)
}

// Plural returns the lower-case plural form, e.g. "projects".
func (k Kind) Plural() string {
	return strings.ToLower(string(k)) + "s"
}

func (k Kind) Valid() bool {
	switch k {
	case KindUser, KindProject, KindTask, KindComment, KindAttachment:
		return true
	}
	return false
}

// Entity is implemented by every stored kind. Entities carry scalar fields
// and raw id references only; navigation goes through the repositories.
type Entity interface {
	EntityID() string
	EntityKind() Kind
	Created() time.Time
}

// Defaulter is implemented by entities that need to fill fields missing from
// older encodings.
type Defaulter interface {
	ApplyDefaults()
}

// NewID returns a fresh opaque entity id.
func NewID() string {
	return uuid.NewString()
}

// Now returns the current time in UTC without a monotonic clock reading, so
// that timestamps compare equal after an encode/decode round trip.
func Now() time.Time {
	return time.Now().UTC()
}
