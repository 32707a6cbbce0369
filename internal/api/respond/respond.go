package respond

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Envelope is the wire shape for non-streaming replies. Exactly one of
// Data, Msg or Error is set.
type Envelope struct {
	Code  int         `json:"code"`
	Data  interface{} `json:"data,omitempty"`
	Msg   string      `json:"msg,omitempty"`
	Error string      `json:"error,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteData writes a {code:200, data} success envelope.
func WriteData(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, Envelope{Code: http.StatusOK, Data: data})
}

// WriteMsg writes a {code:200, msg} success envelope.
func WriteMsg(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusOK, Envelope{Code: http.StatusOK, Msg: msg})
}

// WriteError writes a {code, error} envelope; the HTTP status matches
// the embedded code.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, Envelope{Code: statusCode, Error: message})
}

// WriteBadRequest writes a 400 Bad Request envelope.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

// WriteNotFound writes a 404 Not Found envelope.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

// WriteInternalError writes a 500 Internal Server Error envelope.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}
