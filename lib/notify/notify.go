package notify

import (
	"context"
	"errors"
	"fmt"
	"hwnotifier/lib/telemetry"
	"log/slog"
	"strings"
)

var tracer = telemetry.Tracer("hwnotifier.lib.notify")

type Kind int

const (
	KindNewHomework Kind = iota
	KindEscalation
	KindInfo
	KindPending
)

func (k Kind) String() string {
	switch k {
	case KindNewHomework:
		return "new_homework"
	case KindEscalation:
		return "escalation"
	case KindInfo:
		return "info"
	case KindPending:
		return "pending"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type Notification struct {
	Kind    Kind
	Title   string
	Message string
	// Items are listed below the message, one per line.
	Items []string
}

// Body renders the message followed by the items.
func (n Notification) Body() string {
	if len(n.Items) == 0 {
		return n.Message
	}
	var sb strings.Builder
	sb.WriteString(n.Message)
	for _, item := range n.Items {
		sb.WriteString("\n- ")
		sb.WriteString(item)
	}
	return sb.String()
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n Notification) error {
	level := slog.LevelInfo
	if n.Kind == KindEscalation {
		level = slog.LevelWarn
	}
	slog.Log(
		ctx, level, n.Title,
		"kind", n.Kind.String(),
		"message", n.Message,
		"items", n.Items,
	)
	return nil
}

// Multi delivers a notification to every notifier, a failing notifier
// does not stop the others.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errlist []error
	for _, notifier := range m {
		err := notifier.Notify(ctx, n)
		if err != nil {
			errlist = append(errlist, err)
		}
	}
	return errors.Join(errlist...)
}
