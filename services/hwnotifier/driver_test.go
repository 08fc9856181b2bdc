package hwnotifier

import (
	"context"
	"errors"
	"hwnotifier/lib/captcha"
	"hwnotifier/lib/knownstore"
	"hwnotifier/lib/notify"
	"hwnotifier/lib/scrapers/cg"
	"hwnotifier/lib/telemetry"
	"hwnotifier/lib/testutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newTestDriver(t *testing.T, portal *testutil.FakePortal, store knownstore.Store) (*Driver, *recordingNotifier) {
	solver := captcha.NewSolver(constRecognizer{code: portal.Captcha}, unusedPrompter{})
	auth := NewPortalAuthenticator(cg.ClientOptions{BaseUrl: portal.URL()}, solver)
	notifier := &recordingNotifier{}
	creds := Credentials{Username: portal.Username, Password: portal.Password}
	machine := NewMachine(auth, notifier, creds, MachineOptions{Intervals: testIntervals})
	return NewDriver(machine, store, notifier), notifier
}

// failingStore fails saves while `fail` is set.
type failingStore struct {
	knownstore.Store
	fail bool
}

func (s *failingStore) Save(ctx context.Context, set knownstore.Set) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.Store.Save(ctx, set)
}

type panicStore struct {
	knownstore.Store
}

func (panicStore) Save(ctx context.Context, set knownstore.Set) error {
	panic("disk on fire")
}

func tempStore(t *testing.T) knownstore.FileStore {
	return knownstore.NewFileStore(filepath.Join(t.TempDir(), "known.json"))
}

func TestDriverEndToEnd(t *testing.T) {
	portal := testutil.NewFakePortal(t)
	portal.Courses = []testutil.FakeCourse{
		{Name: "X", Current: []string{"A", "B"}, History: []string{"old"}},
	}
	store := tempStore(t)
	driver, notifier := newTestDriver(t, portal, store)
	ctx := context.Background()
	require.NoError(t, driver.Load(ctx))

	spans := telemetry.RecordSpans(t)
	report, err := driver.Pass(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, report.PassId)
	require.Subset(t, spans(), []string{
		"Pass",
		"EnsureSession",
		"AttemptLogin",
		"client:Login",
		"DetectNew",
		"client:Homework",
		"client:ActiveAssignments",
		"file:Save",
	})
	require.True(t, report.Persisted)
	require.Equal(t, testIntervals.Slow, report.Wait)
	if diff := cmp.Diff([]string{"X::A", "X::B"}, keys(report.Batch.New)); diff != "" {
		t.Fatalf("unexpected batch (-want +got):\n%s", diff)
	}
	require.Equal(t, []string{"X::old"}, keys(report.Batch.History))

	persisted, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"X::A", "X::B"}, persisted.Keys())

	sent := notifier.ofKind(notify.KindNewHomework)
	require.Len(t, sent, 1)
	require.Equal(t, []string{"X: A", "X: B"}, sent[0].Items)
	require.Contains(t, sent[0].Message, "X: A")

	report, err = driver.Pass(ctx)
	require.NoError(t, err)
	require.Empty(t, report.Batch.New)
	require.Empty(t, report.Batch.History, "history is only listed on the first pass")
	require.Len(t, notifier.ofKind(notify.KindNewHomework), 1)
}

func TestDriverNotifiesDeadlines(t *testing.T) {
	portal := testutil.NewFakePortal(t)
	portal.Courses = []testutil.FakeCourse{{
		Name:    "X",
		Current: []string{"A", "B"},
		Active: []testutil.FakeActive{
			{Name: "A", Due: "2024-11-01 23:59"},
			{Name: "B", Due: "2024-10-01 23:59", Late: true},
		},
	}}
	driver, notifier := newTestDriver(t, portal, tempStore(t))
	ctx := context.Background()
	require.NoError(t, driver.Load(ctx))

	report, err := driver.Pass(ctx)
	require.NoError(t, err)
	require.Equal(t, "2024-11-01 23:59", report.Batch.New[0].Due)
	require.True(t, report.Batch.New[1].Late)

	sent := notifier.ofKind(notify.KindNewHomework)
	require.Len(t, sent, 1)
	require.Equal(t, "最新：X: A（截止 2024-11-01 23:59）", sent[0].Message)
	require.Equal(t, []string{
		"X: A（截止 2024-11-01 23:59）",
		"X: B（截止 2024-10-01 23:59）（补交中）",
	}, sent[0].Items)
}

func TestDriverNotifiesOnce(t *testing.T) {
	portal := testutil.NewFakePortal(t)
	portal.Courses = []testutil.FakeCourse{{Name: "X", Current: []string{"A"}}}
	driver, notifier := newTestDriver(t, portal, tempStore(t))
	ctx := context.Background()
	require.NoError(t, driver.Load(ctx))

	appearances := 0
	for pass := 1; pass <= 5; pass++ {
		if pass == 2 {
			portal.Lock()
			portal.Courses[0].Current = []string{"N", "A"}
			portal.Unlock()
		}
		report, err := driver.Pass(ctx)
		require.NoError(t, err)
		for _, item := range report.Batch.New {
			if item.Key() == "X::N" {
				require.Equal(t, 2, pass)
				appearances++
			}
		}
	}
	require.Equal(t, 1, appearances)
	require.Len(t, notifier.ofKind(notify.KindNewHomework), 2)
}

func TestDriverRedetectsAfterFailedSave(t *testing.T) {
	portal := testutil.NewFakePortal(t)
	portal.Courses = []testutil.FakeCourse{{Name: "X", Current: []string{"A"}}}
	store := &failingStore{Store: tempStore(t), fail: true}
	driver, notifier := newTestDriver(t, portal, store)
	ctx := context.Background()
	require.NoError(t, driver.Load(ctx))

	report, err := driver.Pass(ctx)
	require.NoError(t, err)
	require.False(t, report.Persisted)
	require.Equal(t, []string{"X::A"}, keys(report.Batch.New))
	require.Empty(t, driver.Known())
	require.Empty(t, notifier.ofKind(notify.KindNewHomework))

	store.fail = false
	report, err = driver.Pass(ctx)
	require.NoError(t, err)
	require.True(t, report.Persisted)
	require.Equal(t, []string{"X::A"}, keys(report.Batch.New))
	require.Equal(t, []string{"X::A"}, driver.Known().Keys())
	require.Len(t, notifier.ofKind(notify.KindNewHomework), 1)
}

func TestDriverSkipsBrokenCourse(t *testing.T) {
	portal := testutil.NewFakePortal(t)
	portal.Courses = []testutil.FakeCourse{
		{Name: "Broken", Broken: true},
		{Name: "Y", Current: []string{"B"}},
	}
	driver, _ := newTestDriver(t, portal, tempStore(t))
	ctx := context.Background()
	require.NoError(t, driver.Load(ctx))

	report, err := driver.Pass(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Y::B"}, keys(report.Batch.New))
	require.Equal(t, []string{"Broken"}, report.Batch.Skipped)
}

func TestDriverRecoversFromPanic(t *testing.T) {
	portal := testutil.NewFakePortal(t)
	portal.Courses = []testutil.FakeCourse{{Name: "X", Current: []string{"A"}}}
	driver, notifier := newTestDriver(t, portal, panicStore{Store: tempStore(t)})
	ctx := context.Background()
	require.NoError(t, driver.Load(ctx))

	report, err := driver.Pass(ctx)
	require.ErrorContains(t, err, "disk on fire")
	require.Equal(t, testIntervals.Recovery, report.Wait)
	require.Empty(t, driver.Known())
	require.Empty(t, notifier.ofKind(notify.KindNewHomework))
}

func TestDriverUnknownLoginResponse(t *testing.T) {
	portal := testutil.NewFakePortal(t)
	portal.LoginOverride = "<html><body>系统维护中</body></html>"
	driver, _ := newTestDriver(t, portal, tempStore(t))
	ctx := context.Background()
	require.NoError(t, driver.Load(ctx))

	report, err := driver.Pass(ctx)
	require.ErrorIs(t, err, ErrUnknownResponse)
	require.Equal(t, testIntervals.FastRetry, report.Wait)
}

func TestDriverStopsOnBadCredentials(t *testing.T) {
	portal := testutil.NewFakePortal(t)
	driver, notifier := newTestDriver(t, portal, tempStore(t))
	portal.Lock()
	portal.Password = "changed"
	portal.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	err := driver.Run(ctx)
	require.ErrorIs(t, err, ErrBadCredentials)
	require.Len(t, notifier.ofKind(notify.KindEscalation), 1)

	portal.Lock()
	defer portal.Unlock()
	require.Equal(t, 1, portal.LoginRequests)
}

func TestDriverRunUntilCancelled(t *testing.T) {
	portal := testutil.NewFakePortal(t)
	portal.Courses = []testutil.FakeCourse{{Name: "X", Current: []string{"A"}}}
	store := tempStore(t)
	driver, notifier := newTestDriver(t, portal, store)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*300)
	defer cancel()
	require.NoError(t, driver.Run(ctx))

	require.Len(t, notifier.ofKind(notify.KindNewHomework), 1)
	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"X::A"}, persisted.Keys())
}

func TestDriverRunLoadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0600))

	portal := testutil.NewFakePortal(t)
	driver, _ := newTestDriver(t, portal, knownstore.NewFileStore(path))
	require.Error(t, driver.Run(context.Background()))
}
