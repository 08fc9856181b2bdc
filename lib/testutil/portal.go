package testutil

import (
	"bytes"
	"fmt"
	"html"
	"hwnotifier/lib/telemetry"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

type FakeActive struct {
	Name      string
	Due       string
	Late      bool
	Submitted bool
}

type FakeCourse struct {
	Name    string
	Current []string
	History []string
	Active  []FakeActive
	// serves the login page instead of the homework tab
	Broken bool
}

// FakePortal imitates the pages of the homework portal that the scraper
// touches. All fields may be changed between requests while holding Lock.
type FakePortal struct {
	sync.Mutex
	Server *httptest.Server

	Username string
	Password string
	Captcha  string
	Courses  []FakeCourse
	// when set, every login with a correct captcha returns this body
	LoginOverride string

	CaptchaRequests int
	LoginRequests   int

	sessions map[string]bool
	nextId   int
}

func NewFakePortal(t testing.TB) *FakePortal {
	telemetry.SetupForTesting(t)
	p := &FakePortal{
		Username: "2021302111000",
		Password: "hunter2",
		Captcha:  "aB3x9",
		sessions: map[string]bool{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/cgjiaoyan", p.handleCaptcha)
	mux.HandleFunc("/login/loginproc.jsp", p.handleLogin)
	mux.HandleFunc("/courseSelect.jsp", p.handleCourseSelect)
	mux.HandleFunc("/main.jsp", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>main</body></html>")
	})
	mux.HandleFunc("/includes/redirect.jsp", p.handleHomework)
	mux.HandleFunc("/assignment/mainActiveAssigns.jsp", p.handleActive)
	mux.HandleFunc("/assignment/index.jsp", p.handleAssignment)

	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)
	return p
}

func (p *FakePortal) URL() string {
	return p.Server.URL
}

// CaptchaImage renders a small gray png that stands in for a captcha.
func CaptchaImage() []byte {
	img := image.NewGray(image.Rect(0, 0, 60, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 60; x++ {
			c := uint8(220)
			if (x/6)%2 == 0 && y > 4 && y < 16 {
				c = 30
			}
			img.SetGray(x, y, color.Gray{Y: c})
		}
	}
	var buf bytes.Buffer
	err := png.Encode(&buf, img)
	if err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func (p *FakePortal) session(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie("JSESSIONID")
	if err == nil {
		return cookie.Value
	}
	p.nextId++
	id := "sess-" + strconv.Itoa(p.nextId)
	http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: id, Path: "/"})
	return id
}

func (p *FakePortal) handleCaptcha(w http.ResponseWriter, r *http.Request) {
	p.Lock()
	defer p.Unlock()
	p.CaptchaRequests++
	p.session(w, r)
	w.Header().Set("Content-Type", "image/png")
	w.Write(CaptchaImage())
}

const loginPage = `<html><body><form action="login/loginproc.jsp">%s</form></body></html>`

func (p *FakePortal) handleLogin(w http.ResponseWriter, r *http.Request) {
	p.Lock()
	defer p.Unlock()
	p.LoginRequests++
	id := p.session(w, r)

	err := r.ParseForm()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if r.PostForm.Get("stid") != p.Username || r.PostForm.Get("pwd") != p.Password {
		fmt.Fprintf(w, loginPage, "<script>alert('用户名或者密码错误！')</script>")
		return
	}
	if r.PostForm.Get("captchaCode") != p.Captcha {
		fmt.Fprintf(w, loginPage, "<script>alert('验证码错误！')</script>")
		return
	}
	if p.LoginOverride != "" {
		fmt.Fprint(w, p.LoginOverride)
		return
	}

	p.sessions[id] = true

	var body strings.Builder
	body.WriteString("<html><body><h3>选择课程</h3>")
	for i, c := range p.Courses {
		fmt.Fprintf(
			&body,
			`<div class="media"><div class="media-body"><strong><a href="courseSelect.jsp?courseID=%d">%s</a></strong></div></div>`,
			i, html.EscapeString(c.Name),
		)
	}
	body.WriteString("</body></html>")
	fmt.Fprint(w, body.String())
}

func (p *FakePortal) authorized(r *http.Request) bool {
	cookie, err := r.Cookie("JSESSIONID")
	return err == nil && p.sessions[cookie.Value]
}

func (p *FakePortal) handleCourseSelect(w http.ResponseWriter, r *http.Request) {
	p.Lock()
	defer p.Unlock()
	if !p.authorized(r) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "course", Value: r.URL.Query().Get("courseID"), Path: "/"})
	fmt.Fprint(w, "<html><body>ok</body></html>")
}

func writeSection(body *strings.Builder, title string, items []string) {
	fmt.Fprintf(body, `<h5><span><strong>%s</strong></span></h5>`, title)
	body.WriteString(`<div class="list-group list-group-flush mb-4">`)
	for i, item := range items {
		fmt.Fprintf(
			body,
			`<a class="list-group-item" href="assignment/index.jsp?assignID=%d">%s</a>`,
			i, html.EscapeString(item),
		)
	}
	body.WriteString(`</div>`)
}

// selected returns the course chosen in the session, nil when the request
// should be answered with the login page.
func (p *FakePortal) selected(r *http.Request) *FakeCourse {
	cookie, err := r.Cookie("course")
	if !p.authorized(r) || err != nil {
		return nil
	}
	idx, err := strconv.Atoi(cookie.Value)
	if err != nil || idx < 0 || idx >= len(p.Courses) {
		return nil
	}
	course := &p.Courses[idx]
	if course.Broken {
		return nil
	}
	return course
}

func (p *FakePortal) handleHomework(w http.ResponseWriter, r *http.Request) {
	p.Lock()
	defer p.Unlock()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	course := p.selected(r)
	if course == nil {
		fmt.Fprintf(w, loginPage, "")
		return
	}

	var body strings.Builder
	body.WriteString("<html><body>")
	writeSection(&body, "当前作业", course.Current)
	if len(course.History) > 0 {
		writeSection(&body, "历史作业", course.History)
	}
	body.WriteString("</body></html>")
	fmt.Fprint(w, body.String())
}

func (p *FakePortal) handleActive(w http.ResponseWriter, r *http.Request) {
	p.Lock()
	defer p.Unlock()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	course := p.selected(r)
	if course == nil {
		fmt.Fprintf(w, loginPage, "")
		return
	}

	var body strings.Builder
	body.WriteString(`<html><body><div id="activeAssignBodyDIV">`)
	for i, a := range course.Active {
		body.WriteString(`<div class="list-group-item">`)
		fmt.Fprintf(
			&body,
			`<a href="assignment/index.jsp?assignID=%d">%s</a> <span>%s</span>`,
			i, html.EscapeString(a.Name), html.EscapeString(a.Due),
		)
		badge := "进行中"
		if a.Late {
			badge = "补交中"
		}
		fmt.Fprintf(&body, ` <span class="badge badge-info">%s</span></div>`, badge)
	}
	body.WriteString("</div></body></html>")
	fmt.Fprint(w, body.String())
}

func (p *FakePortal) handleAssignment(w http.ResponseWriter, r *http.Request) {
	p.Lock()
	defer p.Unlock()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	course := p.selected(r)
	idx, err := strconv.Atoi(r.URL.Query().Get("assignID"))
	if course == nil || err != nil || idx < 0 || idx >= len(course.Active) {
		http.NotFound(w, r)
		return
	}
	status := "未提交"
	if course.Active[idx].Submitted {
		status = "已提交"
	}
	fmt.Fprintf(w, "<html><body><h4>%s</h4><td>%s</td></body></html>", html.EscapeString(course.Active[idx].Name), status)
}
