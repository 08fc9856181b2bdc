package hwnotifier

import (
	"context"
	"fmt"
	"hwnotifier/lib/notify"
	"hwnotifier/lib/scrapers/cg"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PendingSource is what the unfinished homework report reads,
// *cg.Client implements it.
type PendingSource interface {
	Courses(ctx context.Context) ([]cg.Course, error)
	ActiveAssignments(ctx context.Context, course cg.Course) ([]cg.ActiveAssignment, error)
	Submitted(ctx context.Context, assignment cg.ActiveAssignment) (bool, error)
}

type CoursePending struct {
	Course      string
	Assignments []cg.ActiveAssignment
}

// CollectPending lists the active assignments that are not submitted yet,
// grouped by course. Courses without any are left out. An assignment
// whose state cannot be read counts as unfinished.
func CollectPending(ctx context.Context, src PendingSource) ([]CoursePending, error) {
	ctx, span := tracer.Start(ctx, "CollectPending")
	defer span.End()

	courses, err := src.Courses(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list courses")
		return nil, fmt.Errorf("list courses: %w", err)
	}

	var out []CoursePending
	total := 0
	for _, course := range courses {
		active, err := src.ActiveAssignments(ctx, course)
		if err != nil {
			slog.WarnContext(ctx, "skipping course", "course", course.Name, "err", err)
			continue
		}

		var pending []cg.ActiveAssignment
		for _, a := range active {
			submitted, err := src.Submitted(ctx, a)
			if err != nil {
				slog.WarnContext(ctx, "failed to check submission", "assignment", a.Name, "err", err)
			}
			if err == nil && submitted {
				continue
			}
			pending = append(pending, a)
		}
		if len(pending) == 0 {
			continue
		}
		total += len(pending)
		out = append(out, CoursePending{Course: course.Name, Assignments: pending})
	}

	span.SetAttributes(
		attribute.Int("courses", len(out)),
		attribute.Int("pending", total),
	)
	return out, nil
}

// PendingNotification renders the report for `student`, one item per
// unfinished assignment.
func PendingNotification(student string, pending []CoursePending) notify.Notification {
	var items []string
	for _, course := range pending {
		for _, a := range course.Assignments {
			item := Item{Course: course.Course, Title: a.Name, Due: a.Due, Late: a.Late}
			items = append(items, item.Describe())
		}
	}
	message := "所有作业均已完成"
	if len(items) > 0 {
		message = fmt.Sprintf("%s 有 %d 个未完成的作业", student, len(items))
	}
	return notify.Notification{
		Kind:    notify.KindPending,
		Title:   "未完成作业",
		Message: message,
		Items:   items,
	}
}
