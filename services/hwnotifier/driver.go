package hwnotifier

import (
	"context"
	"errors"
	"fmt"
	"hwnotifier/lib/knownstore"
	"hwnotifier/lib/notify"
	"hwnotifier/lib/serviceutil"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// Driver runs detection passes one after another.
type Driver struct {
	machine  *Machine
	store    knownstore.Store
	notifier notify.Notifier

	known knownstore.Set
	// history is only shown on the first successful pass
	detected bool
}

func NewDriver(machine *Machine, store knownstore.Store, notifier notify.Notifier) *Driver {
	return &Driver{
		machine:  machine,
		store:    store,
		notifier: notifier,
		known:    knownstore.Set{},
	}
}

type Report struct {
	PassId string
	Batch  Batch
	// whether the new items were saved and notified
	Persisted bool
	// how long to wait before the next pass
	Wait time.Duration
}

// Known returns the keys that were persisted and notified so far.
func (d *Driver) Known() knownstore.Set {
	return d.known.Clone()
}

// Load reads the known set from the store, it must be called before the
// first pass.
func (d *Driver) Load(ctx context.Context) error {
	known, err := d.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load known homework: %w", err)
	}
	d.known = known
	slog.InfoContext(ctx, "loaded known homework", "count", len(known))
	return nil
}

// Run loads the known set and polls until ctx is done. It only returns
// an error when the known set cannot be loaded or the portal rejects the
// credentials.
func (d *Driver) Run(ctx context.Context) error {
	err := d.Load(ctx)
	if err != nil {
		return err
	}

	for {
		report, err := d.Pass(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrBadCredentials) {
			notifyErr := d.notifier.Notify(ctx, notify.Notification{
				Kind:    notify.KindEscalation,
				Title:   "用户名或者密码错误",
				Message: "the portal rejected the configured credentials, polling has stopped",
			})
			if notifyErr != nil {
				slog.ErrorContext(ctx, "failed to send escalation", "err", notifyErr)
			}
			return err
		}
		if !serviceutil.Sleep(ctx, report.Wait) {
			return nil
		}
	}
}

// Pass logs in, detects new homework, persists it and notifies. Errors
// and panics are returned as errors with a report that waits for the
// recovery interval.
func (d *Driver) Pass(ctx context.Context) (report Report, err error) {
	report.PassId = uuid.NewString()
	report.Wait = d.machine.Intervals().Recovery

	ctx, span := tracer.Start(ctx, "Pass")
	defer span.End()
	span.SetAttributes(attribute.String("pass_id", report.PassId))
	logger := slog.With("pass_id", report.PassId)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during pass: %v", r)
			report.Wait = d.machine.Intervals().Recovery
		}
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, "pass failed")
			logger.WarnContext(ctx, "pass failed", "err", err, "wait", report.Wait)
		}
		passCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}()

	result, err := d.machine.EnsureSession(ctx)
	if err != nil {
		report.Wait = result.Wait
		return report, fmt.Errorf("login: %w", err)
	}

	batch, err := DetectNew(ctx, result.Session, d.known, !d.detected)
	if err != nil {
		return report, err
	}
	d.detected = true
	report.Batch = batch
	report.Wait = result.Wait

	for _, item := range batch.History {
		logger.InfoContext(ctx, "history", "course", item.Course, "title", item.Title)
	}
	if len(batch.New) == 0 {
		logger.InfoContext(ctx, "no new homework", "known", len(d.known))
		return report, nil
	}

	next := d.known.Clone()
	for _, item := range batch.New {
		next.Add(item.Key())
	}
	saveErr := d.store.Save(ctx, next)
	if saveErr != nil {
		logger.ErrorContext(
			ctx, "failed to persist known homework, the items will be detected again",
			"new", len(batch.New),
			"err", saveErr,
		)
		return report, nil
	}
	d.known = next
	report.Persisted = true
	newHomeworkCounter.Add(ctx, int64(len(batch.New)))

	logger.InfoContext(ctx, "new homework", "count", len(batch.New), "latest", batch.New[0].String())
	notifyErr := d.notifier.Notify(ctx, NewHomeworkNotification(batch.New))
	if notifyErr != nil {
		logger.ErrorContext(ctx, "failed to send notification", "err", notifyErr)
	}
	return report, nil
}

// NewHomeworkNotification summarizes a batch in a single notification,
// the portal lists the newest homework first.
func NewHomeworkNotification(items []Item) notify.Notification {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = item.Describe()
	}
	return notify.Notification{
		Kind:    notify.KindNewHomework,
		Title:   fmt.Sprintf("%d 个新作业", len(items)),
		Message: fmt.Sprintf("最新：%s", items[0].Describe()),
		Items:   lines,
	}
}
