package hwnotifier

import (
	"context"
	"hwnotifier/lib/notify"
	"hwnotifier/lib/scrapers/cg"
	"image"
	"sync"
	"time"
)

var testIntervals = Intervals{
	FastRetry: time.Millisecond,
	Slow:      time.Millisecond * 2,
	Error:     time.Millisecond * 3,
	Recovery:  time.Millisecond * 4,
}

// scriptedAuth returns the queued outcomes in order and succeeds once
// they run out.
type scriptedAuth struct {
	outcomes []error
	manual   []bool
	// notifications received before each attempt
	notified []int
	notifier *recordingNotifier
}

func (a *scriptedAuth) AttemptLogin(ctx context.Context, creds Credentials, forceManual bool) (*cg.Client, error) {
	a.manual = append(a.manual, forceManual)
	if a.notifier != nil {
		a.notified = append(a.notified, len(a.notifier.all()))
	}
	if len(a.outcomes) == 0 {
		return &cg.Client{}, nil
	}
	err := a.outcomes[0]
	a.outcomes = a.outcomes[1:]
	if err != nil {
		return nil, err
	}
	return &cg.Client{}, nil
}

type recordingNotifier struct {
	mutex    sync.Mutex
	received []notify.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n notify.Notification) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.received = append(r.received, n)
	return nil
}

func (r *recordingNotifier) all() []notify.Notification {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]notify.Notification{}, r.received...)
}

func (r *recordingNotifier) ofKind(kind notify.Kind) []notify.Notification {
	var out []notify.Notification
	for _, n := range r.all() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type constRecognizer struct {
	code string
}

func (r constRecognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	return r.code, nil
}

type unusedPrompter struct{}

func (unusedPrompter) Prompt(ctx context.Context, raw []byte) (string, error) {
	return "", context.Canceled
}
