package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyVariable   = "variable"
	KeyValue      = "value"
	KeyEndpoint   = "endpoint"
	KeyPath       = "path"
	KeyStateDir   = "state_dir"
	KeyCount      = "count"
	KeyAgeSeconds = "age_seconds"
	KeyChannel    = "channel"
	KeyStatus     = "status"
	KeyMethod     = "method"
	KeyRemoteAddr = "remote_addr"
	KeyUserAgent  = "user_agent"
	KeyRequestID  = "request_id"
	KeySubject    = "subject"
	KeyPayload    = "payload"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Variable(name string) slog.Attr    { return slog.String(KeyVariable, name) }
func Value(v any) slog.Attr             { return slog.Any(KeyValue, v) }
func Endpoint(url string) slog.Attr     { return slog.String(KeyEndpoint, url) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func StateDir(dir string) slog.Attr     { return slog.String(KeyStateDir, dir) }
func Count(n int64) slog.Attr           { return slog.Int64(KeyCount, n) }
func AgeSeconds(secs float64) slog.Attr { return slog.Float64(KeyAgeSeconds, secs) }
func Channel(ch string) slog.Attr       { return slog.String(KeyChannel, ch) }
func Status(code int) slog.Attr         { return slog.Int(KeyStatus, code) }
func Method(m string) slog.Attr         { return slog.String(KeyMethod, m) }
func RemoteAddr(addr string) slog.Attr  { return slog.String(KeyRemoteAddr, addr) }
func UserAgent(ua string) slog.Attr     { return slog.String(KeyUserAgent, ua) }
func RequestID(id string) slog.Attr     { return slog.String(KeyRequestID, id) }
func Subject(s string) slog.Attr        { return slog.String(KeySubject, s) }
func Payload(body string) slog.Attr     { return slog.String(KeyPayload, body) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
