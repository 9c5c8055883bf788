// handler.go - основной обработчик API.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/smartlt/criclabs-assignment/internal/api/errors"
	"github.com/smartlt/criclabs-assignment/internal/service"
)

// maxBodyBytes - предельный размер тела JSON-запроса.
const maxBodyBytes = 1 << 20

// APIHandler - обработчик API сервиса.
type APIHandler struct {
	health  *HealthHandler
	auth    *service.AuthService
	records *service.RecordService
	logger  *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	auth *service.AuthService,
	records *service.RecordService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:  health,
		auth:    auth,
		records: records,
		logger:  logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive - liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady - readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics - Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса в dst. Неизвестные поля и лишние
// данные после объекта считаются ошибкой.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errors.New("request body is required")
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("request body contains malformed JSON")
		case errors.As(err, &typeErr):
			return fmt.Errorf("field %q has invalid type", typeErr.Field)
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body must not exceed %d bytes", maxErr.Limit)
		default:
			// json: unknown field "..."
			return errors.New(strings.TrimPrefix(err.Error(), "json: "))
		}
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// writeServiceError отображает ошибку сервисного слоя в HTTP-ответ.
// Неизвестные ошибки логируются и скрываются за 500.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	msg := err.Error()
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		msg = svcErr.Message
	}

	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, msg)
	case errors.Is(err, service.ErrUnauthorized):
		apierrors.Unauthorized(w, msg)
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, msg)
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, msg)
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, msg)
	default:
		h.logger.Error("Ошибка обработки запроса",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Internal server error")
	}
}
