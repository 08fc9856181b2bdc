package cg

import (
	"bytes"
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

const (
	activePath = "/assignment/mainActiveAssigns.jsp"

	lateBadge      = "补交"
	notSubmittedAt = "未提交"
)

// ActiveAssignment is an entry of the "active assignments" page, which
// unlike the homework tab carries the deadline of every assignment.
type ActiveAssignment struct {
	Name string
	Href string
	// as printed by the portal, empty when the row has no deadline
	Due string
	// the deadline passed and the assignment only accepts late submissions
	Late bool
}

func (c *Client) selectCourse(ctx context.Context, course Course) error {
	// the portal keeps the selected course in the session, the course
	// pages always show whichever course was selected last
	for _, endpoint := range []string{course.Href, mainPath} {
		_, err := c.get(ctx, endpoint)
		if err != nil {
			return err
		}
	}
	return nil
}

// ActiveAssignments selects `course` and reads its active assignments.
func (c *Client) ActiveAssignments(ctx context.Context, course Course) ([]ActiveAssignment, error) {
	ctx, span := tracer.Start(ctx, "client:ActiveAssignments")
	defer span.End()
	span.SetAttributes(attribute.String("course", course.Name))

	if c.landing == nil {
		span.SetStatus(codes.Error, ErrNotLoggedIn.Error())
		return nil, ErrNotLoggedIn
	}

	err := c.selectCourse(ctx, course)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to select course")
		return nil, err
	}

	doc, err := c.getDocument(ctx, activePath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch active assignments")
		return nil, err
	}

	active, err := ParseActiveAssignments(ctx, c.BaseUrl, doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse active assignments")
		return nil, fmt.Errorf("course %q: %w", course.Name, err)
	}
	span.SetAttributes(attribute.Int("active", len(active)))
	return active, nil
}

// ParseActiveAssignments reads the rows of #activeAssignBodyDIV. The
// deadline is the first span without a class that follows a link, the
// late state comes from the badge next to it.
func ParseActiveAssignments(ctx context.Context, base *url.URL, doc *goquery.Document) ([]ActiveAssignment, error) {
	body := doc.Find("div#activeAssignBodyDIV").First()
	if body.Length() == 0 {
		return nil, ErrUnexpectedStructure
	}

	out := []ActiveAssignment{}
	body.Find("a").Each(func(i int, link *goquery.Selection) {
		anchors := htmlutil.GetAnchors(ctx, base, link)
		if len(anchors) == 0 {
			return
		}
		name := textutil.CollapseWhitespace(
			textutil.RemoveNonPrintable(link.Clone().Find("span").Remove().End().Text()),
		)
		if name == "" {
			slog.WarnContext(ctx, "active assignment without a name", "idx", i)
			return
		}

		row := link.AddSelection(link.NextUntil("a"))
		spans := row.Filter("span").AddSelection(row.Find("span"))

		entry := ActiveAssignment{Name: name, Href: anchors[0].Href}
		spans.EachWithBreak(func(_ int, span *goquery.Selection) bool {
			if _, hasClass := span.Attr("class"); !hasClass {
				entry.Due = textutil.CollapseWhitespace(span.Text())
				return false
			}
			return true
		})
		spans.Filter(".badge").Each(func(_ int, badge *goquery.Selection) {
			if strings.Contains(badge.Text(), lateBadge) {
				entry.Late = true
			}
		})
		out = append(out, entry)
	})
	return out, nil
}

// Submitted reports whether the assignment page no longer marks the
// assignment as unsubmitted.
func (c *Client) Submitted(ctx context.Context, assignment ActiveAssignment) (bool, error) {
	ctx, span := tracer.Start(ctx, "client:Submitted")
	defer span.End()
	span.SetAttributes(attribute.String("assignment", assignment.Name))

	res, err := c.get(ctx, assignment.Href)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch assignment")
		return false, err
	}
	submitted := !bytes.Contains(res.Body(), []byte(notSubmittedAt))
	span.SetAttributes(attribute.Bool("submitted", submitted))
	return submitted, nil
}
