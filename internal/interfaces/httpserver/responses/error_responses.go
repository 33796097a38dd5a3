package responses

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jan-server/services/mesh-api/internal/domain/generation"
	"jan-server/services/mesh-api/internal/domain/inference"
	"jan-server/services/mesh-api/internal/domain/job"
	"jan-server/services/mesh-api/internal/utils/platformerrors"
)

// ErrorResponse represents an error response with platform error details
type ErrorResponse struct {
	Code          string `json:"code"` // UUID from PlatformError
	Error         string `json:"error"`
	Message       string `json:"message,omitempty"`
	ErrorInstance error  `json:"-"`
	RequestID     string `json:"request_id,omitempty"`
}

// FromDomainError classifies a domain error into a PlatformError carrying the
// given context fields. Errors that are already platform errors pass through
// unchanged.
func FromDomainError(ctx context.Context, err error, fields map[string]any) *platformerrors.PlatformError {
	if pe := platformerrors.GetPlatformError(err); pe != nil {
		return pe
	}

	var errorType platformerrors.ErrorType
	switch {
	case generation.IsInputError(err), errors.Is(err, inference.ErrMultiViewUnsupported):
		errorType = platformerrors.ErrorTypeValidation
	case errors.Is(err, job.ErrNotFound):
		errorType = platformerrors.ErrorTypeNotFound
	case errors.Is(err, job.ErrNotReady):
		errorType = platformerrors.ErrorTypeConflict
	default:
		errorType = platformerrors.ErrorTypeInternal
	}
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerHandler, errorType, err.Error(), err, "", fields)
}

// HandleError handles domain errors and returns appropriate HTTP responses
func HandleError(reqCtx *gin.Context, err error, message string) {
	if err == nil {
		reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: message, Message: message})
		return
	}

	ctx := reqCtx.Request.Context()
	domainErr := FromDomainError(ctx, err, map[string]any{
		"method": reqCtx.Request.Method,
		"path":   reqCtx.FullPath(),
	})
	statusCode := platformerrors.ErrorTypeToHTTPStatus(domainErr.GetErrorType())
	if statusCode >= http.StatusInternalServerError {
		platformerrors.LogError(*zerolog.Ctx(ctx), domainErr)
	}

	errorMessage := domainErr.Message
	if errorMessage == "" {
		errorMessage = message
	}

	errResp := ErrorResponse{
		Code:          domainErr.GetUUID(),
		Error:         errorMessage,
		Message:       errorMessage,
		ErrorInstance: domainErr,
		RequestID:     domainErr.GetRequestID(),
	}

	reqCtx.AbortWithStatusJSON(statusCode, errResp)
}

// HandleNewError creates a new typed error at the route layer and handles it
func HandleNewError(reqCtx *gin.Context, errorType platformerrors.ErrorType, message string, uuid string) {
	ctx := reqCtx.Request.Context()
	err := platformerrors.NewError(ctx, platformerrors.LayerRoute, errorType, message, nil, uuid)

	statusCode := platformerrors.ErrorTypeToHTTPStatus(err.GetErrorType())

	errResp := ErrorResponse{
		Code:          err.GetUUID(),
		Error:         message,
		Message:       message,
		ErrorInstance: err,
		RequestID:     err.GetRequestID(),
	}

	reqCtx.AbortWithStatusJSON(statusCode, errResp)
}
