package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/todo-backend/services"
	"github.com/upb/todo-backend/utils"
)

// HandleServiceError maps domain errors to HTTP responses. Only the domain
// message reaches the client; wrapped causes are logged.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	var domainErr *services.DomainError
	if !errors.As(err, &domainErr) {
		logger.Error("unhandled error type", zap.Error(err))
		if err := utils.WriteInternalServerError(w, ""); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}
		return
	}

	var writeErr error
	switch domainErr.Type {
	case services.ErrorTypeNotFound:
		writeErr = utils.WriteNotFound(w, domainErr.Message)

	case services.ErrorTypeValidation:
		writeErr = utils.WriteBadRequest(w, domainErr.Message, domainErr.Details)

	case services.ErrorTypeUnauthorized:
		writeErr = utils.WriteUnauthorized(w, "")

	case services.ErrorTypeExternal:
		logger.Error("downstream dependency failed", zap.Error(err))
		writeErr = utils.WriteError(w, http.StatusBadGateway, capitalize(domainErr.Message), nil)

	default:
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, capitalize(domainErr.Message))
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleDecodeError answers a request whose body could not be parsed
func HandleDecodeError(w http.ResponseWriter, err error, logger *zap.Logger) {
	logger.Debug("rejected request body", zap.Error(err))
	if err := utils.WriteBadRequest(w, "Invalid request body", nil); err != nil {
		logger.Error("failed to write bad request response", zap.Error(err))
	}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
