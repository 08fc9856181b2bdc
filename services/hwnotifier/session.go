package hwnotifier

import (
	"context"
	"fmt"
	"hwnotifier/lib/notify"
	"hwnotifier/lib/scrapers/cg"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

type Mode int

const (
	// ModeFast is used until the first successful login.
	ModeFast Mode = iota
	// ModeSlow is never left once entered.
	ModeSlow
)

func (m Mode) String() string {
	if m == ModeFast {
		return "fast"
	}
	return "slow"
}

const DefaultThreshold = 6

type State struct {
	Mode         Mode
	FastFailures int
	SlowFailures int
}

type Plan struct {
	// Escalate forces manual captcha entry and alerts the operator before
	// the attempt.
	Escalate bool
}

// Plan decides how the next attempt is made. The returned state must be
// used for the attempt, escalating in slow mode resets the slow failure
// budget before the attempt is made.
func (s State) Plan(threshold int) (State, Plan) {
	switch s.Mode {
	case ModeFast:
		return s, Plan{Escalate: s.FastFailures+1 >= threshold}
	default:
		if s.SlowFailures >= threshold {
			s.SlowFailures = 0
			return s, Plan{Escalate: true}
		}
		return s, Plan{}
	}
}

// Advance applies the outcome of an attempt made under `plan`, `kind` is
// FailureNone when the attempt succeeded.
func (s State) Advance(plan Plan, kind FailureKind) State {
	ok := kind == FailureNone
	switch s.Mode {
	case ModeFast:
		if ok {
			return State{Mode: ModeSlow}
		}
		if plan.Escalate {
			s.Mode = ModeSlow
			s.FastFailures = 0
			return s
		}
		s.FastFailures++
		return s
	default:
		if ok {
			s.SlowFailures = 0
			return s
		}
		s.SlowFailures++
		return s
	}
}

type Intervals struct {
	// between automated attempts in fast mode
	FastRetry time.Duration
	// between passes once logged in
	Slow time.Duration
	// after a failed attempt in slow mode or a failed escalation
	Error time.Duration
	// after a pass that failed for a reason other than login
	Recovery time.Duration
}

var DefaultIntervals = Intervals{
	FastRetry: time.Second * 5,
	Slow:      time.Second * 120,
	Error:     time.Second * 30,
	Recovery:  time.Second * 10,
}

type Result struct {
	Session   *cg.Client
	Wait      time.Duration
	Escalated bool
}

// Machine owns the login state of a single poller, it must not be used
// concurrently.
type Machine struct {
	State State

	auth      Authenticator
	notifier  notify.Notifier
	creds     Credentials
	threshold int
	intervals Intervals
}

type MachineOptions struct {
	Threshold int
	Intervals Intervals
}

func NewMachine(auth Authenticator, notifier notify.Notifier, creds Credentials, opts MachineOptions) *Machine {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Intervals == (Intervals{}) {
		opts.Intervals = DefaultIntervals
	}
	return &Machine{
		auth:      auth,
		notifier:  notifier,
		creds:     creds,
		threshold: opts.Threshold,
		intervals: opts.Intervals,
	}
}

func (m *Machine) Intervals() Intervals {
	return m.intervals
}

// EnsureSession makes one login attempt. The returned Result always
// carries how long to wait before the next pass, the error is the
// authenticator's error.
func (m *Machine) EnsureSession(ctx context.Context) (Result, error) {
	ctx, span := tracer.Start(ctx, "EnsureSession")
	defer span.End()

	state, plan := m.State.Plan(m.threshold)
	m.State = state
	mode := state.Mode
	span.SetAttributes(
		attribute.String("mode", mode.String()),
		attribute.Bool("escalate", plan.Escalate),
	)

	if plan.Escalate {
		m.escalate(ctx, mode)
	}

	session, err := m.auth.AttemptLogin(ctx, m.creds, plan.Escalate)
	kind := FailureKindOf(err)
	m.State = m.State.Advance(plan, kind)

	loginCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode.String()),
		attribute.String("outcome", kind.String()),
		attribute.Bool("manual", plan.Escalate),
	))

	if err == nil {
		if mode == ModeFast {
			slog.InfoContext(ctx, "logged in, switching to slow mode")
		}
		return Result{
			Session:   session,
			Wait:      m.intervals.Slow,
			Escalated: plan.Escalate,
		}, nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, kind.String())
	slog.WarnContext(
		ctx, "login attempt failed",
		"mode", mode.String(),
		"kind", kind.String(),
		"manual", plan.Escalate,
		"fast_failures", m.State.FastFailures,
		"slow_failures", m.State.SlowFailures,
		"err", err,
	)

	wait := m.intervals.Error
	if mode == ModeFast && !plan.Escalate {
		wait = m.intervals.FastRetry
	}
	return Result{Wait: wait, Escalated: plan.Escalate}, err
}

func (m *Machine) escalate(ctx context.Context, mode Mode) {
	err := m.notifier.Notify(ctx, notify.Notification{
		Kind:  notify.KindEscalation,
		Title: "需要手动输入验证码",
		Message: fmt.Sprintf(
			"automated login keeps failing in %s mode, waiting for the captcha to be entered manually",
			mode.String(),
		),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to send escalation", "err", err)
	}
}
