package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"moviecollection/apperrors"
)

// maxBodyBytes limits JSON request bodies.
const maxBodyBytes = 1 << 20

type envelope map[string]interface{}

func (app *App) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		app.logger.Error("failed to encode response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		app.logger.Debug("failed to write response", "error", err)
	}
}

// errorResponse writes err as a JSON error with the status of its class.
// Clients only see the classified message; causes are logged.
func (app *App) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	message := apperrors.MessageOf(err)
	if status == http.StatusInternalServerError {
		app.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = "the server encountered a problem and could not process your request"
	} else if errors.Unwrap(err) != nil {
		app.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	app.writeJSON(w, status, envelope{"error": envelope{
		"code":    apperrors.CodeOf(err),
		"message": message,
	}})
}

func (app *App) readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &syntaxErr):
			return apperrors.New(apperrors.Validation, "body contains badly-formed JSON (at character %d)", syntaxErr.Offset)
		case errors.As(err, &typeErr):
			return apperrors.New(apperrors.Validation, "body contains an incorrect JSON type for field %q", typeErr.Field)
		case errors.Is(err, io.EOF):
			return apperrors.New(apperrors.Validation, "body must not be empty")
		case errors.As(err, &maxErr):
			return apperrors.New(apperrors.Validation, "body must not be larger than %d bytes", maxErr.Limit)
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return apperrors.New(apperrors.Validation, "body contains unknown field %s", strings.TrimPrefix(err.Error(), "json: unknown field "))
		default:
			return apperrors.New(apperrors.Validation, "invalid request body: %s", err)
		}
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return apperrors.New(apperrors.Validation, "body must only contain a single JSON value")
	}
	return nil
}

// readIDParam parses the positive integer path variable name.
func readIDParam(r *http.Request, name string) (int, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, apperrors.New(apperrors.Validation, "invalid %s %q", name, raw)
	}
	return id, nil
}

// readYear parses an optional year query parameter.
func readYear(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 0 {
		return 0, apperrors.New(apperrors.Validation, "invalid year %q", raw)
	}
	return year, nil
}

func requireParam(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", apperrors.New(apperrors.Validation, "query parameter %q is required", name)
	}
	return v, nil
}
