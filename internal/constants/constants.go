package constants

import "time"

// Auth
const (
	MinPasswordLength = 8
	MinUsernameLength = 3
	ContextKeyUserID  = "userID"
	SessionCookieName = "tracker_session"
	SessionKeyUserID  = "user_id"
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Uploads
const (
	MaxUploadSize     = 16 << 20
	UploadTimeFormat  = "20060102150405"
	DefaultUploadName = "file"
)

// Seeded administrator account.
const (
	AdminUsername = "admin"
	AdminEmail    = "admin@example.com"
	AdminPassword = "admin"
)

const DefaultStoreOpTimeout = 3 * time.Second

// Field limits
const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
	MaxCommentLength     = 500
	MaxCompanyLength     = 64
)

// Context keys set by the access middleware.
const (
	ContextKeyProject = "project"
	ContextKeyTask    = "task"
)

// AllowedUploadExtensions lists the file extensions accepted as attachments.
var AllowedUploadExtensions = []string{
	"txt", "pdf", "png", "jpg", "jpeg", "gif",
	"doc", "docx", "xls", "xlsx", "ppt", "pptx",
}
