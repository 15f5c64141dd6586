package errors

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// HTTPErrorAdapter handles error presentation and status code determination
// for the census server. Error bodies follow the phone-home wire contract:
// a JSON object whose "success" member is false.
type HTTPErrorAdapter struct {
	logger *slog.Logger
}

// NewHTTPErrorAdapter creates a new HTTP error adapter with an optional slog logger.
// If logger is nil, the default package logger will be used.
func NewHTTPErrorAdapter(logger *slog.Logger) *HTTPErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPErrorAdapter{logger: logger}
}

// FailureResponse is the JSON error payload. Clients only inspect "success".
type FailureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// StatusCodeFor determines the HTTP status code for a given error based on
// its classification. Unknown errors map to 500.
func (a *HTTPErrorAdapter) StatusCodeFor(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if phe, ok := err.(*PhoneHomeError); ok {
		switch phe.Category {
		case CategoryValidation, CategoryConfig:
			return http.StatusBadRequest
		case CategoryTransmission:
			return http.StatusBadGateway
		case CategoryStorage, CategoryState:
			return http.StatusInternalServerError
		case CategoryServer, CategoryPrecondition:
			return http.StatusServiceUnavailable
		default:
			return http.StatusInternalServerError
		}
	}

	return http.StatusInternalServerError
}

// WriteErrorResponse writes a {"success": false, ...} response and logs with
// a level matching the error's severity.
func (a *HTTPErrorAdapter) WriteErrorResponse(w http.ResponseWriter, err error) {
	if err == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	status := a.StatusCodeFor(err)
	payload := FailureResponse{Success: false, Error: messageFor(err)}

	b, jerr := json.Marshal(payload)
	if jerr != nil {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"success":false,"error":"internal error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)

	if phe, ok := err.(*PhoneHomeError); ok {
		a.logger.Log(context.Background(), slogLevelFor(phe.Severity), phe.Message,
			slog.String("category", string(phe.Category)),
			slog.Int("status", status))
		return
	}
	a.logger.Error(err.Error(), slog.Int("status", status))
}

// messageFor keeps causes out of wire responses; the message alone is user-facing.
func messageFor(err error) string {
	if phe, ok := err.(*PhoneHomeError); ok {
		return phe.Message
	}
	return err.Error()
}

func slogLevelFor(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
