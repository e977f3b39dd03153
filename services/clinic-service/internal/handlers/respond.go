// Package handlers exposes the clinic use cases over HTTP under /api/v1.
package handlers

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
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/oralflow/oralflow/libs/httpx"
	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
)

// Identity headers set by the gateway after verifying the caller's token.
const (
	HeaderUserID    = "X-User-Id"
	HeaderRole      = "X-Role"
	HeaderPatientID = "X-Paciente-Id"
	HeaderDentistID = "X-Odontologo-Id"
)

var errUnauthenticated = errors.New("missing or invalid identity headers")

const msgEmptyBody = "Cuerpo de la solicitud vacío."

func actorFrom(r *http.Request) (model.Actor, error) {
	role, err := model.ParseRole(strings.TrimSpace(r.Header.Get(HeaderRole)))
	if err != nil {
		return model.Actor{}, errUnauthenticated
	}
	actor := model.Actor{UserID: strings.TrimSpace(r.Header.Get(HeaderUserID)), Role: role}
	if actor.UserID == "" {
		return model.Actor{}, errUnauthenticated
	}
	if raw := strings.TrimSpace(r.Header.Get(HeaderPatientID)); raw != "" {
		if actor.PatientID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return model.Actor{}, errUnauthenticated
		}
	}
	if raw := strings.TrimSpace(r.Header.Get(HeaderDentistID)); raw != "" {
		if actor.DentistID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return model.Actor{}, errUnauthenticated
		}
	}
	return actor, nil
}

// authed adapts a handler that needs the caller's identity.
func authed(fn func(w http.ResponseWriter, r *http.Request, actor model.Actor)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Las credenciales de autenticación no se proveyeron."})
			return
		}
		fn(w, r, actor)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorWriter maps use case errors onto responses. Unclassified errors are logged and
// answered with a bare 500.
type errorWriter struct {
	logger *slog.Logger
}

func (e errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	if ae, ok := apperr.As(err); ok {
		writeJSON(w, ae.Kind.HTTPStatus(), ae.Body())
		return
	}
	e.logger.Error("request failed",
		"request_id", httpx.RequestIDFromContext(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"err", err,
	)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "internal error"})
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and runs its validate tags. Failures come back as
// field keyed validation errors.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var syntax *json.SyntaxError
		var typ *json.UnmarshalTypeError
		switch {
		case errors.As(err, &typ) && typ.Field != "":
			return apperr.Validation(typ.Field, "Tipo de dato inválido.")
		case errors.As(err, &syntax):
			return apperr.Invalid("JSON inválido.")
		case errors.Is(err, io.EOF):
			return apperr.Invalid(msgEmptyBody)
		default:
			return apperr.Invalid("JSON inválido.")
		}
	}
	return validateStruct(dst)
}

// decodeOptional is decode for endpoints whose body may be omitted.
func decodeOptional(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return validateStruct(dst)
	}
	err := decode(r, dst)
	if ae, ok := apperr.As(err); ok && ae.Detail == msgEmptyBody {
		return validateStruct(dst)
	}
	return err
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]*apperr.Error, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.Validation(fe.Field(), fieldMessage(fe)))
	}
	return apperr.Merge(fields...)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Este campo es requerido."
	case "gt":
		return fmt.Sprintf("Debe ser mayor a %s.", fe.Param())
	case "gte", "min":
		return fmt.Sprintf("Debe ser mayor o igual a %s.", fe.Param())
	case "oneof":
		return "Valor inválido. Usa " + strings.ReplaceAll(fe.Param(), " ", ", ") + "."
	case "datetime":
		return "Formato inválido. Usa " + fe.Param() + "."
	default:
		return "Valor inválido."
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.NotFound("No encontrado.")
	}
	return id, nil
}

// query helpers return a field keyed validation error for malformed values and nil
// for absent ones.

func queryInt64(r *http.Request, key string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperr.Validation(key, "Debe ser un entero.")
	}
	return &n, nil
}

func queryDate(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	d, err := calendar.ParseDate(raw)
	if err != nil {
		return nil, apperr.Validation(key, "Formato inválido. Usa YYYY-MM-DD.")
	}
	return &d, nil
}

func requiredDate(r *http.Request, key string) (time.Time, error) {
	d, err := queryDate(r, key)
	if err != nil {
		return time.Time{}, err
	}
	if d == nil {
		return time.Time{}, apperr.Validation(key, "Este campo es requerido.")
	}
	return *d, nil
}

func requiredInt64(r *http.Request, key string) (int64, error) {
	n, err := queryInt64(r, key)
	if err != nil {
		return 0, err
	}
	if n == nil {
		return 0, apperr.Validation(key, "Este campo es requerido.")
	}
	return *n, nil
}

func parseDate(field, raw string) (time.Time, error) {
	d, err := calendar.ParseDate(raw)
	if err != nil {
		return time.Time{}, apperr.Validation(field, "Formato inválido. Usa YYYY-MM-DD.")
	}
	return d, nil
}

func parseClock(field, raw string) (calendar.Clock, error) {
	c, err := calendar.ParseClock(raw)
	if err != nil {
		return 0, apperr.Validation(field, "Formato inválido. Usa HH:MM.")
	}
	return c, nil
}
