package hwnotifier

import (
	"context"
	"fmt"
	"hwnotifier/lib/knownstore"
	"hwnotifier/lib/scrapers/cg"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	courses     []string
	current     map[string][]string
	history     map[string][]string
	broken      map[string]bool
	active      map[string][]cg.ActiveAssignment
	activeErr   error
	coursesErr  error
	activeCalls *[]string
}

func (s fakeSource) Courses(ctx context.Context) ([]cg.Course, error) {
	if s.coursesErr != nil {
		return nil, s.coursesErr
	}
	var out []cg.Course
	for _, name := range s.courses {
		out = append(out, cg.Course{Name: name, Href: "https://cg.example.com/courseSelect.jsp?course=" + name})
	}
	return out, nil
}

func (s fakeSource) Homework(ctx context.Context, course cg.Course) (cg.Listing, error) {
	if s.broken[course.Name] {
		return cg.Listing{}, fmt.Errorf("course %q: %w", course.Name, cg.ErrUnexpectedStructure)
	}
	var listing cg.Listing
	for _, title := range s.current[course.Name] {
		listing.Current = append(listing.Current, cg.Assignment{Name: title})
	}
	for _, title := range s.history[course.Name] {
		listing.History = append(listing.History, cg.Assignment{Name: title})
	}
	return listing, nil
}

func (s fakeSource) ActiveAssignments(ctx context.Context, course cg.Course) ([]cg.ActiveAssignment, error) {
	if s.activeCalls != nil {
		*s.activeCalls = append(*s.activeCalls, course.Name)
	}
	if s.activeErr != nil {
		return nil, s.activeErr
	}
	return s.active[course.Name], nil
}

func keys(items []Item) []string {
	out := []string{}
	for _, item := range items {
		out = append(out, item.Key())
	}
	return out
}

func TestKey(t *testing.T) {
	require.Equal(t, "数据结构::实验 一", Key("  数据结构\n", "实验\t 一"))
	require.Equal(t, "X::A", Item{Course: "X", Title: "A"}.Key())
}

func TestDetectNewOrderAndIdempotence(t *testing.T) {
	src := fakeSource{
		courses: []string{"X", "Y"},
		current: map[string][]string{
			"X": {"A", "B"},
			"Y": {"C"},
		},
	}
	ctx := context.Background()
	known := knownstore.Set{}

	batch, err := DetectNew(ctx, src, known, false)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"X::A", "X::B", "Y::C"}, keys(batch.New)); diff != "" {
		t.Fatalf("unexpected batch (-want +got):\n%s", diff)
	}
	require.Empty(t, known, "the known set must not be modified")

	for _, item := range batch.New {
		known.Add(item.Key())
	}
	batch, err = DetectNew(ctx, src, known, false)
	require.NoError(t, err)
	require.Empty(t, batch.New)
}

func TestDetectNewOnlyUnknown(t *testing.T) {
	src := fakeSource{
		courses: []string{"X"},
		current: map[string][]string{"X": {"A", "B", "C"}},
	}
	batch, err := DetectNew(context.Background(), src, knownstore.NewSet("X::B"), false)
	require.NoError(t, err)
	require.Equal(t, []string{"X::A", "X::C"}, keys(batch.New))
}

func TestDetectNewDuplicatesWithinBatch(t *testing.T) {
	src := fakeSource{
		courses: []string{"X"},
		current: map[string][]string{"X": {"A", "A "}},
	}
	batch, err := DetectNew(context.Background(), src, knownstore.Set{}, false)
	require.NoError(t, err)
	require.Equal(t, []string{"X::A"}, keys(batch.New))
}

func TestDetectNewSkipsBrokenCourses(t *testing.T) {
	src := fakeSource{
		courses: []string{"X", "Broken", "Empty", "Y"},
		current: map[string][]string{
			"X": {"A"},
			"Y": {"B"},
		},
		broken: map[string]bool{"Broken": true},
	}
	batch, err := DetectNew(context.Background(), src, knownstore.Set{}, false)
	require.NoError(t, err)
	require.Equal(t, []string{"X::A", "Y::B"}, keys(batch.New))
	require.Equal(t, []string{"Broken"}, batch.Skipped)
}

func TestDetectNewHistory(t *testing.T) {
	src := fakeSource{
		courses: []string{"X"},
		current: map[string][]string{"X": {"A"}},
		history: map[string][]string{"X": {"old 1", "old 2"}},
	}
	ctx := context.Background()

	batch, err := DetectNew(ctx, src, knownstore.Set{}, true)
	require.NoError(t, err)
	require.Equal(t, []string{"X::A"}, keys(batch.New))
	require.Equal(t, []string{"X::old 1", "X::old 2"}, keys(batch.History))

	batch, err = DetectNew(ctx, src, knownstore.Set{}, false)
	require.NoError(t, err)
	require.Empty(t, batch.History)
}

func TestDetectNewCoursesError(t *testing.T) {
	src := fakeSource{coursesErr: cg.ErrNotLoggedIn}
	_, err := DetectNew(context.Background(), src, knownstore.Set{}, false)
	require.ErrorIs(t, err, cg.ErrNotLoggedIn)
}

func TestDetectNewAttachesDeadlines(t *testing.T) {
	calls := []string{}
	src := fakeSource{
		courses: []string{"X", "Y"},
		current: map[string][]string{
			"X": {"A", "B"},
			"Y": {"C"},
		},
		active: map[string][]cg.ActiveAssignment{
			"X": {
				{Name: "A", Due: "2024-11-01 23:59"},
				{Name: " B ", Due: "2024-10-01 23:59", Late: true},
			},
		},
		activeCalls: &calls,
	}
	ctx := context.Background()

	batch, err := DetectNew(ctx, src, knownstore.Set{"Y::C": {}}, false)
	require.NoError(t, err)
	require.Equal(t, []Item{
		{Course: "X", Title: "A", Due: "2024-11-01 23:59"},
		{Course: "X", Title: "B", Due: "2024-10-01 23:59", Late: true},
	}, batch.New)
	require.Equal(t, []string{"X"}, calls, "courses without new items are not looked up")

	require.Equal(t, "X: A（截止 2024-11-01 23:59）", batch.New[0].Describe())
	require.Equal(t, "X: B（截止 2024-10-01 23:59）（补交中）", batch.New[1].Describe())
}

func TestDetectNewDeadlinesUnavailable(t *testing.T) {
	src := fakeSource{
		courses:   []string{"X"},
		current:   map[string][]string{"X": {"A"}},
		activeErr: cg.ErrUnexpectedStructure,
	}

	batch, err := DetectNew(context.Background(), src, knownstore.Set{}, false)
	require.NoError(t, err)
	require.Equal(t, []Item{{Course: "X", Title: "A"}}, batch.New)
	require.Equal(t, "X: A", batch.New[0].Describe())
}
