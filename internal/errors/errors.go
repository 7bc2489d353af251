package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yukikurage/project-tracker/internal/blobstore"
	"github.com/yukikurage/project-tracker/internal/repository"
)

// Error codes
const (
	// Authentication
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"

	// Authorization
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeNotProjectOwner = "NOT_PROJECT_OWNER"

	// Validation
	ErrCodeInvalidInput = "INVALID_INPUT"

	// Resources
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	ErrCodeConflict      = "CONFLICT"

	// Persistence
	ErrCodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrCodeDeleteFailed       = "DELETE_FAILED"

	// Service
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// APIError is the body of every error response
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func respond(c *gin.Context, status int, code, message string, details interface{}) {
	c.JSON(status, APIError{Code: code, Message: message, Details: details})
}

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Authentication required"
	}
	respond(c, http.StatusUnauthorized, ErrCodeUnauthorized, message, nil)
}

// InvalidCredentials sends a 401 response for a failed login
func InvalidCredentials(c *gin.Context) {
	respond(c, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Invalid username or password", nil)
}

// Forbidden sends a 403 response
func Forbidden(c *gin.Context, message string) {
	if message == "" {
		message = "Access denied"
	}
	respond(c, http.StatusForbidden, ErrCodeForbidden, message, nil)
}

// OwnerOnly sends a 403 response for actions reserved to the project owner
func OwnerOnly(c *gin.Context) {
	respond(c, http.StatusForbidden, ErrCodeNotProjectOwner, "Only the project owner can perform this action", nil)
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	respond(c, http.StatusNotFound, ErrCodeNotFound, message, nil)
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "Invalid request"
	}
	respond(c, http.StatusBadRequest, ErrCodeInvalidInput, message, nil)
}

// BadRequestWithDetails sends a 400 response with details
func BadRequestWithDetails(c *gin.Context, message string, details interface{}) {
	respond(c, http.StatusBadRequest, ErrCodeInvalidInput, message, details)
}

// Conflict sends a 409 response
func Conflict(c *gin.Context, message string) {
	if message == "" {
		message = "Resource conflict"
	}
	respond(c, http.StatusConflict, ErrCodeConflict, message, nil)
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "Internal server error"
	}
	respond(c, http.StatusInternalServerError, ErrCodeInternalError, message, nil)
}

// ServiceUnavailable sends a 503 response
func ServiceUnavailable(c *gin.Context, message string) {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	respond(c, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message, nil)
}

// FromError maps persistence errors onto a response. Anything it does not
// recognize becomes a 500 without leaking the error text.
func FromError(c *gin.Context, err error) {
	var dup *repository.DuplicateKeyError
	var nf *repository.NotFoundError
	var ce *repository.CascadeError

	switch {
	case stderrors.As(err, &dup):
		respond(c, http.StatusConflict, ErrCodeAlreadyExists,
			fmt.Sprintf("%s is already taken", dup.Field),
			gin.H{"field": dup.Field})
	case stderrors.As(err, &ce) && !ce.Deleted:
		// The root was never tombstoned, so the entity is still there.
		respond(c, http.StatusServiceUnavailable, ErrCodeDeleteFailed,
			fmt.Sprintf("Failed to delete %s, try again", strings.ToLower(string(ce.Kind))),
			gin.H{"failed_steps": len(ce.Steps)})
	case stderrors.As(err, &nf):
		NotFound(c, nf.Error())
	case stderrors.Is(err, repository.ErrNotFound):
		NotFound(c, "")
	case stderrors.Is(err, blobstore.ErrBackendUnavailable):
		respond(c, http.StatusServiceUnavailable, ErrCodeBackendUnavailable, "Operation failed, try again", nil)
	default:
		InternalError(c, "")
	}
}
