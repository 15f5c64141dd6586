// Package submit serializes resolved variables into ordered JSON payloads and
// delivers them to the phone-home service over HTTP PUT.
package submit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	pherrors "github.com/LuisBuenanyo/eos-phone-home/internal/errors"
	"github.com/LuisBuenanyo/eos-phone-home/internal/logfields"
)

// maxResponseSnippet bounds how much of an error response body ends up in logs.
const maxResponseSnippet = 256

// Resolver supplies variable values by name.
type Resolver interface {
	Resolve(name string) (any, error)
}

// Submitter delivers payloads to a phone-home endpoint. In debug mode it logs
// the payload and reports success without touching the network.
type Submitter struct {
	Client *http.Client
	Debug  bool
}

// New returns a submitter with the given request timeout.
func New(timeout time.Duration, debug bool) *Submitter {
	return &Submitter{
		Client: &http.Client{Timeout: timeout},
		Debug:  debug,
	}
}

// Submit resolves names in order, PUTs them as a JSON object to endpoint, and
// reports whether the service acknowledged with a boolean `success: true`.
// Every failure mode is logged and yields false; Submit never panics and never
// returns an error to its caller.
func (s *Submitter) Submit(ctx context.Context, endpoint string, names []string, resolver Resolver) bool {
	payload := NewPayload()
	for _, name := range names {
		value, err := resolver.Resolve(name)
		if err != nil {
			slog.Error("Cannot build payload", logfields.Variable(name), logfields.Error(err))
			return false
		}
		payload.Set(name, value)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Cannot serialize payload", logfields.Endpoint(endpoint), logfields.Error(err))
		return false
	}
	slog.Info("Prepared payload", logfields.Endpoint(endpoint), logfields.Payload(string(body)))

	if s.Debug {
		slog.Info("Debug mode, skipping transmission", logfields.Endpoint(endpoint))
		return true
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, strings.NewReader(string(body)))
	if err != nil {
		s.logFailure(endpoint, err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		s.logFailure(endpoint, err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		s.logFailure(endpoint, err)
		return false
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("Service rejected submission",
			logfields.Endpoint(endpoint),
			logfields.Status(resp.StatusCode),
			logfields.Payload(snippet(respBody)))
		return false
	}

	var parsed map[string]any
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		s.logFailure(endpoint, err)
		return false
	}
	success, ok := parsed["success"].(bool)
	if !ok || !success {
		slog.Warn("Service did not confirm success",
			logfields.Endpoint(endpoint),
			logfields.Payload(snippet(respBody)))
		return false
	}

	slog.Info("Submission accepted", logfields.Endpoint(endpoint))
	return true
}

func (s *Submitter) logFailure(endpoint string, cause error) {
	err := pherrors.TransmissionFailure(endpoint, cause)
	slog.Warn("Submission failed", logfields.Endpoint(endpoint), logfields.Error(err))
}

func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxResponseSnippet {
		return text[:maxResponseSnippet] + "..."
	}
	return text
}
