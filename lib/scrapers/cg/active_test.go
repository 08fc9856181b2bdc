package cg

import (
	"context"
	"hwnotifier/lib/testutil"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseActiveAssignments(t *testing.T) {
	doc := parse(t, `<html><body>
		<div id="activeAssignBodyDIV">
			<div class="list-group-item">
				<a href="assignment/index.jsp?assignID=3">实验三</a>
				<span>2024-11-01 23:59</span>
				<span class="badge badge-warning">补交中</span>
			</div>
			<div class="list-group-item">
				<a href="assignment/index.jsp?assignID=4"> 实验四 <span class="text-muted">(new)</span></a>
				<span class="badge badge-info">进行中</span>
			</div>
		</div>
	</body></html>`)

	active, err := ParseActiveAssignments(context.Background(), testBase, doc)
	require.NoError(t, err)
	require.Equal(t, []ActiveAssignment{
		{
			Name: "实验三",
			Href: "https://cg.example.com/assignment/index.jsp?assignID=3",
			Due:  "2024-11-01 23:59",
			Late: true,
		},
		{
			Name: "实验四",
			Href: "https://cg.example.com/assignment/index.jsp?assignID=4",
		},
	}, active)
}

func TestParseActiveAssignmentsUnexpected(t *testing.T) {
	{
		doc := parse(t, `<html><body><div id="activeAssignBodyDIV"></div></body></html>`)
		active, err := ParseActiveAssignments(context.Background(), testBase, doc)
		require.NoError(t, err)
		require.Empty(t, active)
	}
	{
		doc := parse(t, `<html><body><form action="login/loginproc.jsp"></form></body></html>`)
		_, err := ParseActiveAssignments(context.Background(), testBase, doc)
		require.ErrorIs(t, err, ErrUnexpectedStructure)
	}
}

func TestActiveAssignmentsAgainstPortal(t *testing.T) {
	portal := testutil.NewFakePortal(t)
	portal.Courses = []testutil.FakeCourse{
		{
			Name: "数据结构",
			Active: []testutil.FakeActive{
				{Name: "实验一", Due: "2024-10-01 23:59", Late: true},
				{Name: "实验二", Due: "2024-10-20 23:59", Submitted: true},
			},
		},
		{Name: "broken", Broken: true},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	client := newTestClient(t, portal)
	_, err := client.ActiveAssignments(ctx, Course{Name: "x", Href: portal.URL() + "/courseSelect.jsp?courseID=0"})
	require.ErrorIs(t, err, ErrNotLoggedIn)

	_, err = client.Captcha(ctx)
	require.NoError(t, err)
	status, _, err := client.Login(ctx, portal.Username, portal.Password, portal.Captcha)
	require.NoError(t, err)
	require.Equal(t, LoginSuccess, status)

	courses, err := client.Courses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 2)

	active, err := client.ActiveAssignments(ctx, courses[0])
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, "实验一", active[0].Name)
	require.Equal(t, "2024-10-01 23:59", active[0].Due)
	require.True(t, active[0].Late)
	require.False(t, active[1].Late)

	submitted, err := client.Submitted(ctx, active[0])
	require.NoError(t, err)
	require.False(t, submitted)
	submitted, err = client.Submitted(ctx, active[1])
	require.NoError(t, err)
	require.True(t, submitted)

	_, err = client.ActiveAssignments(ctx, courses[1])
	require.ErrorIs(t, err, ErrUnexpectedStructure)
}
