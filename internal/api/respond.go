package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kalambet/annex/internal/fault"
	"github.com/kalambet/annex/internal/segment"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeError maps a failure's classification to a status code and a
// `{description, type}` body. The originating message travels through
// unchanged; nothing is reclassified on the way out.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	errType := "api_error"

	switch {
	case fault.IsUnauthenticated(err):
		status = http.StatusUnauthorized
		errType = "unauthenticated"
	case fault.IsValidation(err):
		status = http.StatusBadRequest
		errType = "invalid_request"
	case fault.IsNotFound(err):
		status = http.StatusNotFound
		errType = "not_found"
	case errors.Is(err, segment.ErrDocumentMissing):
		status = http.StatusBadRequest
		errType = "document_missing"
	case errors.Is(err, segment.ErrDocumentUnreachable):
		status = http.StatusBadRequest
		errType = "document_unreachable"
	}

	msg := err.Error()
	var fe *fault.Error
	if errors.As(err, &fe) {
		msg = fe.Message()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"description": msg,
		"type":        errType,
	})
}
