package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
)

// CommandNotifier runs a command with the title and the body appended as
// the last two arguments, ex. ["notify-send", "--urgency=normal"].
type CommandNotifier struct {
	Command []string
	Timeout time.Duration
}

func (n CommandNotifier) Notify(ctx context.Context, notification Notification) error {
	ctx, span := tracer.Start(ctx, "command:Notify")
	defer span.End()

	if len(n.Command) == 0 {
		return fmt.Errorf("no command specified")
	}
	timeout := n.Timeout
	if timeout == 0 {
		timeout = time.Second * 10
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{}, n.Command[1:]...)
	args = append(args, notification.Title, notification.Body())

	out, err := exec.CommandContext(ctx, n.Command[0], args...).CombinedOutput()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "notification command failed")
		return fmt.Errorf("%s: %w: %s", n.Command[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
