package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	apperrors "familytasks/internal/errors"
)

// errorResponse is the JSON body of every failed request
type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// KindRateLimited is reported when a client exceeds its request budget
const KindRateLimited = "RATE_LIMITED"

// KindBadRequest is reported for bodies that are not valid JSON
const KindBadRequest = "BAD_REQUEST"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// respondWithError maps err to its status and kind. Only unexpected failures
// are logged at error level; domain rejections are routine.
func respondWithError(w http.ResponseWriter, logger zerolog.Logger, logMsg string, err error) {
	code := apperrors.GetCode(err)
	status := code.HTTPStatus()

	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("kind", string(code)).Msg(logMsg)
	} else {
		logger.Debug().Err(err).Str("kind", string(code)).Msg(logMsg)
	}

	writeJSON(w, status, errorResponse{
		Kind:    string(code),
		Message: apperrors.DefaultMessage(code),
	})
}

func respondWithKind(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Kind: kind, Message: message})
}
