package handlers

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/yukikurage/project-tracker/internal/constants"
	apierrors "github.com/yukikurage/project-tracker/internal/errors"
	"github.com/yukikurage/project-tracker/internal/middleware"
	"github.com/yukikurage/project-tracker/internal/services"
	"github.com/yukikurage/project-tracker/internal/uploads"
)

// respondError maps service errors onto API responses and leaves the
// persistence errors to FromError.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		apierrors.InvalidCredentials(c)
	case errors.Is(err, services.ErrPasswordTooShort):
		apierrors.BadRequest(c, fmt.Sprintf("Password must be at least %d characters", constants.MinPasswordLength))
	case errors.Is(err, services.ErrUsernameTooShort):
		apierrors.BadRequest(c, fmt.Sprintf("Username must be at least %d characters", constants.MinUsernameLength))
	case errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrCompanyTooLong),
		errors.Is(err, services.ErrTitleRequired),
		errors.Is(err, services.ErrTitleTooLong),
		errors.Is(err, services.ErrDescriptionLong),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidPriority),
		errors.Is(err, services.ErrContentRequired),
		errors.Is(err, services.ErrContentTooLong),
		errors.Is(err, services.ErrNoFileSelected),
		errors.Is(err, services.ErrAssigneeNotMember),
		errors.Is(err, services.ErrOwnerNotRemovable):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrFileTypeNotAllowed):
		apierrors.BadRequestWithDetails(c, err.Error(), gin.H{"allowed": constants.AllowedUploadExtensions})
	case errors.Is(err, services.ErrNotProjectOwner):
		apierrors.OwnerOnly(c)
	case errors.Is(err, services.ErrNoProjectAccess):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrAlreadyMember):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, services.ErrUploadsNotAvailable):
		apierrors.ServiceUnavailable(c, err.Error())
	case errors.Is(err, uploads.ErrNotFound):
		apierrors.NotFound(c, "File not found")
	default:
		apierrors.FromError(c, err)
	}
}

// currentUser returns the authenticated user's id or answers 401.
func currentUser(c *gin.Context) (string, bool) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return "", false
	}
	return userID, true
}
