package logfields

import (
	"errors"
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"Variable", KeyVariable, "serial", Variable("serial")},
		{"Endpoint", KeyEndpoint, "https://example.com/v1/ping", Endpoint("https://example.com/v1/ping")},
		{"Path", KeyPath, "/var/lib/x", Path("/var/lib/x")},
		{"StateDir", KeyStateDir, "/var/lib/eos-phone-home", StateDir("/var/lib/eos-phone-home")},
		{"Channel", KeyChannel, "eos-eos3.9-amd64", Channel("eos-eos3.9-amd64")},
		{"Method", KeyMethod, "PUT", Method("PUT")},
		{"RemoteAddr", KeyRemoteAddr, "1.2.3.4", RemoteAddr("1.2.3.4")},
		{"UserAgent", KeyUserAgent, "ua", UserAgent("ua")},
		{"RequestID", KeyRequestID, "rid", RequestID("rid")},
		{"Subject", KeySubject, "phonehome.events", Subject("phonehome.events")},
		{"Payload", KeyPayload, `{"success":true}`, Payload(`{"success":true}`)},
		{"Error", KeyError, "boom", Error(errors.New("boom"))},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

func TestNumericHelpers(t *testing.T) {
	if a := Count(42); a.Value.Int64() != 42 {
		t.Fatalf("Count: expected 42, got %d", a.Value.Int64())
	}
	if a := Status(200); a.Value.Int64() != 200 {
		t.Fatalf("Status: expected 200, got %d", a.Value.Int64())
	}
	if a := AgeSeconds(86400); a.Value.Float64() != 86400 {
		t.Fatalf("AgeSeconds: expected 86400, got %f", a.Value.Float64())
	}
}

func TestErrorHelperNilError(t *testing.T) {
	a := Error(nil)
	if a.Value.String() != "" {
		t.Fatalf("expected empty value for nil error, got %q", a.Value.String())
	}
}
