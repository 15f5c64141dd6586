// Package facts lazily computes and memoizes named facts about the host for
// the duration of one reporting run.
//
// Every fact is resolved at most once per run through an explicit strategy
// table. Source failures are logged and normalized (strings become "unknown",
// booleans false, integers 0); fact gathering never aborts a run.
package facts

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/LuisBuenanyo/eos-phone-home/internal/logfields"
)

// Unknown is the normalized value for unreadable string facts.
const Unknown = "unknown"

// Metrics is the compound value of the "metrics" variable.
type Metrics struct {
	Enabled     bool
	Environment string
}

// variable couples a resolver function with the value used when every
// source for it fails.
type variable struct {
	resolve  func(*Resolver) (any, error)
	fallback any
}

// variables is the declared strategy table. Adding a fact means adding an
// entry here; nothing is looked up by reflection. Populated in init so the
// resolver functions may call Resolve without creating an initialization
// cycle.
var variables map[string]variable

func init() {
	variables = map[string]variable{
		"dt_info":             {resolveDTInfo, Unknown},
		"vendor":              {resolveVendor, Unknown},
		"product":             {resolveProduct, Unknown},
		"image":               {resolveImage, Unknown},
		"metrics":             {resolveMetrics, Metrics{Enabled: false, Environment: Unknown}},
		"metrics_enabled":     {resolveMetricsEnabled, false},
		"metrics_environment": {resolveMetricsEnvironment, Unknown},
		"release":             {resolveRelease, Unknown},
		"serial":              {resolveSerial, Unknown},
		"cmdline":             {resolveCmdline, Unknown},
		"live":                {resolveLive, false},
		"dualboot":            {resolveDualboot, false},
		"count":               {resolveCount, int64(0)},
	}
}

// Resolver resolves facts against a set of host sources, caching each value
// for the lifetime of the resolver (one run).
type Resolver struct {
	sources Sources
	cache   map[string]any

	// CountSource supplies the current ping counter value. Wired by the
	// agent to its state store; resolves to 0 when unset or failing.
	CountSource func() (int64, error)
}

// NewResolver creates a resolver over the given sources.
func NewResolver(sources Sources) *Resolver {
	return &Resolver{
		sources: sources,
		cache:   make(map[string]any),
	}
}

// Resolve returns the value of a declared variable, computing and caching it
// on first access. It only errors for undeclared names; source failures are
// logged and produce the variable's normalized fallback.
func (r *Resolver) Resolve(name string) (any, error) {
	if v, ok := r.cache[name]; ok {
		return v, nil
	}

	spec, ok := variables[name]
	if !ok {
		return nil, fmt.Errorf("unknown variable %q", name)
	}

	v, err := spec.resolve(r)
	if err != nil {
		slog.Warn("Fact source unavailable", logfields.Variable(name), logfields.Error(err))
		v = spec.fallback
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		v = Unknown
	}

	r.cache[name] = v
	slog.Debug("Resolved variable", logfields.Variable(name), logfields.Value(v))
	return v, nil
}

// Prime overwrites the cached value for a variable. The state store uses it
// to propagate a freshly written counter value into the current run.
func (r *Resolver) Prime(name string, value any) {
	r.cache[name] = value
}

func (r *Resolver) stringVar(name string) (string, error) {
	v, err := r.Resolve(name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("variable %q is %T, not string", name, v)
	}
	return s, nil
}

func (r *Resolver) boolVar(name string) (bool, error) {
	v, err := r.Resolve(name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("variable %q is %T, not bool", name, v)
	}
	return b, nil
}

func (r *Resolver) metricsVar() (Metrics, error) {
	v, err := r.Resolve("metrics")
	if err != nil {
		return Metrics{}, err
	}
	m, ok := v.(Metrics)
	if !ok {
		return Metrics{}, fmt.Errorf("variable \"metrics\" is %T, not Metrics", v)
	}
	return m, nil
}
