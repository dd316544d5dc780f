package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gyaneshwarpardhi/bandtree/internal/command"
	"github.com/gyaneshwarpardhi/bandtree/internal/editor"
	"github.com/gyaneshwarpardhi/bandtree/internal/export"
	"github.com/gyaneshwarpardhi/bandtree/internal/tree"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the standard error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeErr maps a domain error to its status code.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, editor.ErrSessionNotFound), errors.Is(err, tree.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, command.ErrInvalid), errors.Is(err, tree.ErrInvalidDirection),
		errors.Is(err, export.ErrUnknownFormat):
		return http.StatusBadRequest
	case errors.Is(err, editor.ErrRootDelete), errors.Is(err, editor.ErrUnknownBand),
		errors.Is(err, editor.ErrBranchTaken), errors.Is(err, tree.ErrMalformed),
		errors.Is(err, tree.ErrRootExists):
		return http.StatusUnprocessableEntity
	case errors.Is(err, editor.ErrQueueFull), errors.Is(err, editor.ErrTooManyTrees):
		return http.StatusTooManyRequests
	case errors.Is(err, editor.ErrClosed):
		return http.StatusGone
	case errors.Is(err, editor.ErrTimeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
