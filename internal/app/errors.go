package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/kanban"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

var kindStatus = map[kanban.Kind]struct {
	status int
	code   string
}{
	kanban.KindValidation:      {http.StatusBadRequest, "VALIDATION_ERROR"},
	kanban.KindUnauthenticated: {http.StatusUnauthorized, "UNAUTHORIZED"},
	kanban.KindForbidden:       {http.StatusForbidden, "FORBIDDEN"},
	kanban.KindNotFound:        {http.StatusNotFound, "NOT_FOUND"},
	kanban.KindConflict:        {http.StatusConflict, "CONFLICT"},
	kanban.KindLLMUnavailable:  {http.StatusBadGateway, "LLM_UNAVAILABLE"},
	kanban.KindParse:           {http.StatusBadGateway, "LLM_PARSE_ERROR"},
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var kerr *kanban.Error
	if errors.As(err, &kerr) {
		mapped, ok := kindStatus[kerr.Kind]
		if !ok {
			return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
		}
		if kerr.Kind == kanban.KindLLMUnavailable && kerr.Timeout {
			return http.StatusGatewayTimeout, "LLM_TIMEOUT", kerr.Message, nil
		}
		return mapped.status, mapped.code, kerr.Message, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if kind := kanban.KindOf(err); kind != kanban.KindInternal {
		mapped := kindStatus[kind]
		return mapped.status, mapped.code, err.Error(), nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
