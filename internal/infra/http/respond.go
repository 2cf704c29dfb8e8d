package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Spok95/studio-billing/internal/billing"
)

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

var validate = newValidator()

// newValidator reports json field names in validation details.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusOf maps a billing error onto an HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, billing.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, billing.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, billing.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, billing.ErrNotEligible):
		return http.StatusUnprocessableEntity
	case errors.Is(err, billing.ErrIntegrity):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err. Internal errors are logged and hidden from the client.
func WriteError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := StatusOf(err)
	body := ErrorBody{Error: err.Error()}

	var denial *billing.DenialError
	if errors.As(err, &denial) {
		body.Error = denial.Reason
		body.Details = map[string]string{"code": string(denial.Code)}
	}
	if status == http.StatusInternalServerError {
		log.Error("request failed", "err", err)
		body.Error = "internal error"
	}
	WriteJSON(w, status, body)
}

func writeBadRequest(w http.ResponseWriter, msg string, details map[string]string) {
	WriteJSON(w, http.StatusBadRequest, ErrorBody{Error: msg, Details: details})
}

// Decode reads a JSON body into dst and runs the struct validation tags.
// An empty body leaves dst at its zero value. It writes the 400 itself and
// returns false on failure.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid json: "+err.Error(), nil)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeBadRequest(w, err.Error(), nil)
			return false
		}
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = fmt.Sprintf("failed on '%s'", fe.Tag())
		}
		writeBadRequest(w, "validation failed", details)
		return false
	}
	return true
}

// IDParam parses a positive int64 path parameter.
func IDParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "invalid "+name, nil)
		return 0, false
	}
	return id, true
}
