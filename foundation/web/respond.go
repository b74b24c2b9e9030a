package web

import (
	"context"
	"encoding/json"
	"net/http"
)

// Respond marshals data as JSON and writes it with statusCode, recording
// the status code on the request's Values for logging middleware.
func Respond(ctx context.Context, w http.ResponseWriter, data any, statusCode int) error {
	SetStatusCode(ctx, statusCode)

	if statusCode == http.StatusNoContent {
		w.WriteHeader(statusCode)
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, err = w.Write(jsonData)
	return err
}

// RespondError writes a JSON error body, used by the error-handling
// middleware once it has decided what status code an error maps to.
func RespondError(ctx context.Context, w http.ResponseWriter, msg string, statusCode int) error {
	return Respond(ctx, w, struct {
		Error string `json:"error"`
	}{Error: msg}, statusCode)
}
