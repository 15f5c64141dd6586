package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/LuisBuenanyo/eos-phone-home/internal/census"
	pherrors "github.com/LuisBuenanyo/eos-phone-home/internal/errors"
	"github.com/LuisBuenanyo/eos-phone-home/internal/logfields"
	"github.com/LuisBuenanyo/eos-phone-home/internal/version"
)

type successResponse struct {
	Success bool `json:"success"`
}

type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type statsResponse struct {
	Success  bool             `json:"success"`
	Channels map[string]int64 `json:"channels"`
	Total    int64            `json:"total"`
}

type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Timestamp     string  `json:"timestamp"`
}

// handleActivate records a one-time activation. Activations are appended to
// the request log for auditing but do not contribute to population counts.
func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	rec := census.Record{At: s.now(), Type: census.RecordActivate, Remote: r.RemoteAddr, Payload: payload}
	s.appendLog(rec)

	slog.Info("Activation received",
		logfields.RemoteAddr(r.RemoteAddr),
		logfields.RequestID(RequestIDFrom(r.Context())))
	s.writeSuccess(w)

	channel, _ := payload["image"].(string)
	s.publish(census.RecordActivate, channel, 0, rec.At)
}

// handlePing counts one machine's periodic report into the census.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	channel, generation, err := census.PingFields(payload)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, err)
		return
	}

	// Log before counting: if the census update fails the watermark has not
	// advanced, so replaying the log later recovers this record.
	rec := census.Record{At: s.now(), Type: census.RecordPing, Remote: r.RemoteAddr, Payload: payload}
	s.appendLog(rec)

	population, err := s.store.ApplyPing(r.Context(), channel, generation, rec.At)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, err)
		return
	}
	s.recorder.SetPopulation(channel, population)

	slog.Info("Ping received",
		logfields.Channel(channel),
		slog.Int("generation", generation),
		logfields.RemoteAddr(r.RemoteAddr),
		logfields.RequestID(RequestIDFrom(r.Context())))
	s.writeSuccess(w)

	s.publish(census.RecordPing, channel, generation, rec.At)
}

// handleStats reports the current population estimate per channel.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		s.writeFailure(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	populations, err := s.store.Populations(r.Context())
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, err)
		return
	}

	var total int64
	for _, n := range populations {
		total += n
	}
	resp := statsResponse{Success: true, Channels: populations, Total: total}
	if err := writeJSONPretty(w, r, http.StatusOK, resp); err != nil {
		slog.Error("Failed writing stats response", logfields.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		s.writeFailure(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := healthResponse{
		Status:        "healthy",
		Version:       version.Version,
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	if err := writeJSONPretty(w, r, http.StatusOK, resp); err != nil {
		slog.Error("Failed writing health response", logfields.Error(err))
	}
}

// decodeRequest enforces the PUT method and parses the JSON body. When it
// returns false the response has already been written.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	if r.Method != http.MethodPut {
		w.Header().Set("Allow", http.MethodPut)
		s.writeFailure(w, http.StatusMethodNotAllowed, "method not allowed")
		return nil, false
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload == nil {
		s.errorAdapter.WriteErrorResponse(w, pherrors.ValidationError("request body must be a JSON object"))
		return nil, false
	}
	return payload, true
}

// appendLog writes one record to the request log. Append failures are logged
// but never fail the request; the live database remains the serving record.
func (s *Server) appendLog(rec census.Record) {
	if s.requestLog == nil {
		return
	}
	if err := s.requestLog.Append(rec); err != nil {
		slog.Error("Request log append failed", logfields.Error(err))
	}
}

func (s *Server) writeSuccess(w http.ResponseWriter) {
	if err := writeJSON(w, http.StatusOK, successResponse{Success: true}); err != nil {
		slog.Error("Failed writing response", logfields.Error(err))
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, status int, msg string) {
	if err := writeJSON(w, status, failureResponse{Success: false, Error: msg}); err != nil {
		slog.Error("Failed writing response", logfields.Error(err))
	}
}

// writeJSON serializes v through an intermediate buffer so a failed encode
// never produces a partial response body.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(v); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("Failed writing JSON response body", logfields.Error(err))
		return err
	}
	return nil
}

// writeJSONPretty indents the response when pretty=1 or pretty=true is given,
// falling back to the compact form if indented marshalling fails.
func writeJSONPretty(w http.ResponseWriter, r *http.Request, status int, v any) error {
	if r != nil {
		if p := r.URL.Query().Get("pretty"); p == "1" || p == "true" {
			b, err := json.MarshalIndent(v, "", "  ")
			if err == nil {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(status)
				if _, werr := w.Write(append(b, '\n')); werr != nil {
					slog.Error("Failed writing pretty JSON", logfields.Error(werr))
					return werr
				}
				return nil
			}
			slog.Warn("Pretty JSON marshal failed, falling back to compact form", logfields.Error(err))
		}
	}
	return writeJSON(w, status, v)
}
