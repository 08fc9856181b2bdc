package cg

import (
	"context"
	"fmt"
	"hwnotifier/lib/htmlutil"
	"hwnotifier/lib/textutil"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Course htmlutil.Anchor

type Assignment htmlutil.Anchor

type Listing struct {
	Current []Assignment
	History []Assignment
}

const (
	headerCurrent = "当前作业"
	headerHistory = "历史作业"
)

// Courses lists the courses found on the page shown right after login.
func (c *Client) Courses(ctx context.Context) ([]Course, error) {
	ctx, span := tracer.Start(ctx, "client:Courses")
	defer span.End()

	if c.landing == nil {
		span.SetStatus(codes.Error, ErrNotLoggedIn.Error())
		return nil, ErrNotLoggedIn
	}

	courses := ParseCourses(ctx, c.BaseUrl, c.landing)
	span.SetAttributes(attribute.Int("courses", len(courses)))
	return courses, nil
}

func ParseCourses(ctx context.Context, base *url.URL, doc *goquery.Document) []Course {
	var courses []Course
	doc.Find(".media").Each(func(i int, media *goquery.Selection) {
		anchors := htmlutil.GetAnchors(ctx, base, media.Find("strong a").First())
		if len(anchors) == 0 || anchors[0].Name == "" {
			slog.WarnContext(ctx, "course entry without a link", "idx", i)
			return
		}
		courses = append(courses, Course(anchors[0]))
	})
	return courses
}

// Homework selects `course` in the session and reads its homework tab.
func (c *Client) Homework(ctx context.Context, course Course) (Listing, error) {
	ctx, span := tracer.Start(ctx, "client:Homework")
	defer span.End()
	span.SetAttributes(attribute.String("course", course.Name))

	if c.landing == nil {
		span.SetStatus(codes.Error, ErrNotLoggedIn.Error())
		return Listing{}, ErrNotLoggedIn
	}

	err := c.selectCourse(ctx, course)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to select course")
		return Listing{}, err
	}

	doc, err := c.getDocument(ctx, homeworkPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch homework tab")
		return Listing{}, err
	}

	listing, err := ParseListing(ctx, c.BaseUrl, doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse homework tab")
		return Listing{}, fmt.Errorf("course %q: %w", course.Name, err)
	}
	span.SetAttributes(
		attribute.Int("current", len(listing.Current)),
		attribute.Int("history", len(listing.History)),
	)
	return listing, nil
}

const currentListSelector = "div.list-group-flush.mb-4"

// sectionList returns the list div that belongs to the section opened by
// `header`, never looking past the next section header.
func sectionList(header *goquery.Selection, selector string) *goquery.Selection {
	section := header.Closest("h5").NextUntil("h5")
	if selector != "" {
		list := section.Filter(selector).First()
		if list.Length() > 0 {
			return list
		}
	}
	return section.Filter("div").First()
}

// ParseListing reads the homework tab. A tab without any section header
// is not a homework tab (usually the session expired and the portal
// served the login page instead). A section header without a list means
// the section is empty.
func ParseListing(ctx context.Context, base *url.URL, doc *goquery.Document) (Listing, error) {
	headers := doc.Find("h5 span strong")
	if headers.Length() == 0 {
		return Listing{}, ErrUnexpectedStructure
	}

	var listing Listing
	headers.Each(func(_ int, header *goquery.Selection) {
		text := textutil.CollapseWhitespace(header.Text())
		switch {
		case strings.Contains(text, headerCurrent):
			list := sectionList(header, currentListSelector)
			if list.Length() == 0 {
				slog.DebugContext(ctx, "no current homework")
				return
			}
			listing.Current = append(listing.Current, assignments(ctx, base, list)...)
		case strings.Contains(text, headerHistory):
			list := sectionList(header, "")
			if list.Length() == 0 {
				slog.DebugContext(ctx, "history header without a list")
				return
			}
			listing.History = append(listing.History, assignments(ctx, base, list)...)
		}
	})
	return listing, nil
}

func assignments(ctx context.Context, base *url.URL, list *goquery.Selection) []Assignment {
	anchors := htmlutil.GetAnchors(ctx, base, list.Find("a"))
	out := make([]Assignment, 0, len(anchors))
	for _, a := range anchors {
		if a.Name == "" {
			continue
		}
		out = append(out, Assignment(a))
	}
	return out
}
