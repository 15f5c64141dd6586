// Package agent sequences one phone-home pass: a one-time activation message
// followed by at most one ping per 24 hours, both driven by the state
// directory and the host's resolved facts.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"

	pherrors "github.com/LuisBuenanyo/eos-phone-home/internal/errors"
	"github.com/LuisBuenanyo/eos-phone-home/internal/facts"
	"github.com/LuisBuenanyo/eos-phone-home/internal/logfields"
	"github.com/LuisBuenanyo/eos-phone-home/internal/state"
	"github.com/LuisBuenanyo/eos-phone-home/internal/submit"
)

// pingInterval is the minimum spacing between two pings.
const pingInterval = 24 * time.Hour

// Options configures a run.
type Options struct {
	StateDir    string
	ActivateURL string
	PingURL     string
	Timeout     time.Duration
	Debug       bool
	Force       bool

	// Sources overrides where facts are read from; nil means the real host.
	Sources *facts.Sources
}

// Agent wires the fact resolver, the state store, and the submitter together.
type Agent struct {
	Store       *state.Store
	Resolver    *facts.Resolver
	Submitter   *submit.Submitter
	ActivateURL string
	PingURL     string
	Debug       bool
	Force       bool
}

// New builds an agent. The resolver reads the counter through the store, and
// every counter write is pushed back into the resolver so a payload built
// later in the same run sees the fresh value.
func New(opts Options) *Agent {
	sources := facts.DefaultSources()
	if opts.Sources != nil {
		sources = *opts.Sources
	}

	store := state.NewStore(opts.StateDir)
	resolver := facts.NewResolver(sources)
	resolver.CountSource = func() (int64, error) {
		value, _, _, err := store.ReadCount()
		return value, err
	}
	store.OnCountWrite = func(value int64) {
		resolver.Prime("count", value)
	}

	return &Agent{
		Store:       store,
		Resolver:    resolver,
		Submitter:   submit.New(opts.Timeout, opts.Debug),
		ActivateURL: opts.ActivateURL,
		PingURL:     opts.PingURL,
		Debug:       opts.Debug,
		Force:       opts.Force,
	}
}

// NeedsActivation reports whether the one-time activation is still pending.
func (a *Agent) NeedsActivation() bool {
	return !a.Store.HasActivated()
}

// NeedsPing decides whether a ping is due. A live boot never pings. An absent
// counter is initialized to 0 and immediately due. A counter timestamp in the
// future means the clock moved backwards; the counter is rewritten in place to
// re-anchor the window and the ping waits a full interval.
func (a *Agent) NeedsPing() (bool, error) {
	live, err := a.Resolver.Resolve("live")
	if err == nil {
		if isLive, ok := live.(bool); ok && isLive {
			slog.Info("Live boot, ping suppressed")
			return false, nil
		}
	}

	value, age, exists, err := a.Store.ReadCount()
	if !exists {
		if err != nil {
			return false, err
		}
		if err := a.Store.WriteCount(0); err != nil {
			return false, err
		}
		slog.Info("Counter initialized", logfields.StateDir(a.Store.Dir()))
		return true, nil
	}
	if err != nil {
		slog.Warn("Counter unreadable, continuing with 0", logfields.Error(err))
	}

	if age < 0 {
		if err := a.Store.WriteCount(value); err != nil {
			return false, err
		}
		slog.Warn("Counter timestamp was in the future, window re-anchored",
			logfields.Count(value))
		return false, nil
	}

	slog.Debug("Counter age evaluated",
		logfields.Count(value), logfields.AgeSeconds(age.Seconds()))
	return age >= pingInterval, nil
}

// Run executes one full pass. The returned error is nil exactly when the
// precondition held and every attempted transition succeeded; a skipped
// not-due transition counts as success.
func (a *Agent) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Run aborted by panic", slog.Any("panic", r))
			err = pherrors.New(pherrors.CategoryInternal, pherrors.SeverityFatal,
				fmt.Sprintf("unexpected failure: %v", r))
		}
	}()

	if err := a.checkPreconditions(); err != nil {
		slog.Error("Precondition failed", logfields.Error(err))
		return err
	}

	var failures []error

	if a.Force || a.NeedsActivation() {
		if err := a.runActivation(ctx); err != nil {
			slog.Warn("Activation transition failed", logfields.Error(err))
			failures = append(failures, err)
		}
	} else {
		slog.Info("Already activated")
	}

	if a.Force {
		if err := a.runPing(ctx); err != nil {
			slog.Warn("Ping transition failed", logfields.Error(err))
			failures = append(failures, err)
		}
	} else {
		due, derr := a.NeedsPing()
		switch {
		case derr != nil:
			slog.Warn("Ping transition failed", logfields.Error(derr))
			failures = append(failures, derr)
		case due:
			if err := a.runPing(ctx); err != nil {
				slog.Warn("Ping transition failed", logfields.Error(err))
				failures = append(failures, err)
			}
		default:
			slog.Info("Ping not due")
		}
	}

	return errors.Join(failures...)
}

// checkPreconditions verifies the state directory exists, is a directory, and
// is writable. Provisioning the directory is the installer's job; without it
// nothing is attempted.
func (a *Agent) checkPreconditions() error {
	dir := a.Store.Dir()
	info, err := os.Stat(dir)
	if err != nil {
		return pherrors.PreconditionFailure("state directory missing", dir)
	}
	if !info.IsDir() {
		return pherrors.PreconditionFailure("state path is not a directory", dir)
	}
	if err := unix.Access(dir, unix.W_OK); err != nil {
		return pherrors.PreconditionFailure("state directory not writable", dir)
	}
	return nil
}

func (a *Agent) runActivation(ctx context.Context) error {
	if !a.Submitter.Submit(ctx, a.ActivateURL, ActivationVariables, a.Resolver) {
		return pherrors.TransmissionFailure(a.ActivateURL, nil)
	}
	if err := a.Store.MarkActivated(); err != nil {
		return err
	}
	slog.Info("Activation recorded", logfields.StateDir(a.Store.Dir()))
	return nil
}

func (a *Agent) runPing(ctx context.Context) error {
	if !a.Submitter.Submit(ctx, a.PingURL, PingVariables, a.Resolver) {
		return pherrors.TransmissionFailure(a.PingURL, nil)
	}
	if a.Debug {
		slog.Info("Debug mode, counter not incremented")
		return nil
	}
	next := a.currentCount() + 1
	if err := a.Store.WriteCount(next); err != nil {
		return err
	}
	slog.Info("Ping recorded", logfields.Count(next))
	return nil
}

// currentCount returns the counter value the ping payload carried.
func (a *Agent) currentCount() int64 {
	v, err := a.Resolver.Resolve("count")
	if err != nil {
		return 0
	}
	if n, ok := v.(int64); ok {
		return n
	}
	return 0
}
