package hwnotifier

import (
	"context"
	"fmt"
	"hwnotifier/lib/knownstore"
	"hwnotifier/lib/scrapers/cg"
	"hwnotifier/lib/textutil"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Source is the part of a logged in portal session the detector reads,
// *cg.Client implements it.
type Source interface {
	Courses(ctx context.Context) ([]cg.Course, error)
	Homework(ctx context.Context, course cg.Course) (cg.Listing, error)
	ActiveAssignments(ctx context.Context, course cg.Course) ([]cg.ActiveAssignment, error)
}

// Key identifies a homework item across passes.
func Key(course, title string) string {
	return fmt.Sprintf(
		"%s::%s",
		textutil.CollapseWhitespace(course),
		textutil.CollapseWhitespace(title),
	)
}

type Item struct {
	Course string
	Title  string
	Href   string
	// filled from the active assignments page when the item is listed there
	Due  string
	Late bool
}

func (i Item) Key() string {
	return Key(i.Course, i.Title)
}

func (i Item) String() string {
	return fmt.Sprintf("%s: %s", i.Course, i.Title)
}

// Describe is String with the deadline appended when it is known.
func (i Item) Describe() string {
	s := i.String()
	if i.Due != "" {
		s += fmt.Sprintf("（截止 %s）", i.Due)
	}
	if i.Late {
		s += "（补交中）"
	}
	return s
}

type Batch struct {
	// in course order, then in listing order
	New []Item
	// only filled when history was requested, never notified
	History []Item
	// courses that could not be read
	Skipped []string
}

// DetectNew returns the current homework of every course whose key is not
// in `known`. `known` is not modified.
func DetectNew(ctx context.Context, src Source, known knownstore.Set, includeHistory bool) (Batch, error) {
	ctx, span := tracer.Start(ctx, "DetectNew")
	defer span.End()

	courses, err := src.Courses(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list courses")
		return Batch{}, fmt.Errorf("list courses: %w", err)
	}

	var batch Batch
	seen := knownstore.Set{}
	for _, course := range courses {
		listing, err := src.Homework(ctx, course)
		if err != nil {
			slog.WarnContext(ctx, "skipping course", "course", course.Name, "err", err)
			batch.Skipped = append(batch.Skipped, course.Name)
			continue
		}

		start := len(batch.New)
		for _, a := range listing.Current {
			item := Item{Course: course.Name, Title: a.Name, Href: a.Href}
			key := item.Key()
			if known.Has(key) || seen.Has(key) {
				continue
			}
			seen.Add(key)
			batch.New = append(batch.New, item)
		}
		if len(batch.New) > start {
			attachDeadlines(ctx, src, course, batch.New[start:])
		}
		if includeHistory {
			for _, a := range listing.History {
				batch.History = append(batch.History, Item{Course: course.Name, Title: a.Name, Href: a.Href})
			}
		}
	}

	span.SetAttributes(
		attribute.Int("courses", len(courses)),
		attribute.Int("new", len(batch.New)),
		attribute.Int("history", len(batch.History)),
		attribute.Int("skipped", len(batch.Skipped)),
	)
	return batch, nil
}

// attachDeadlines fills in Due and Late of `items` from the active
// assignments of `course`. Items stay as they are when the page cannot be
// read.
func attachDeadlines(ctx context.Context, src Source, course cg.Course, items []Item) {
	active, err := src.ActiveAssignments(ctx, course)
	if err != nil {
		slog.WarnContext(ctx, "failed to read deadlines", "course", course.Name, "err", err)
		return
	}
	byTitle := make(map[string]cg.ActiveAssignment, len(active))
	for _, a := range active {
		byTitle[textutil.CollapseWhitespace(a.Name)] = a
	}
	for i := range items {
		a, ok := byTitle[textutil.CollapseWhitespace(items[i].Title)]
		if !ok {
			continue
		}
		items[i].Due = a.Due
		items[i].Late = a.Late
	}
}
