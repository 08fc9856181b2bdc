package notify

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/require"
)

type message struct {
	from string
	to   []string
	data string
}

type fakeMailbox struct {
	sync.Mutex
	messages []message
}

func (b *fakeMailbox) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &fakeSession{mailbox: b}, nil
}

type fakeSession struct {
	mailbox *fakeMailbox
	current message
}

func (s *fakeSession) Mail(from string, opts *smtp.MailOptions) error {
	s.current.from = from
	return nil
}

func (s *fakeSession) Rcpt(to string, opts *smtp.RcptOptions) error {
	s.current.to = append(s.current.to, to)
	return nil
}

func (s *fakeSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.current.data = string(data)

	s.mailbox.Lock()
	defer s.mailbox.Unlock()
	s.mailbox.messages = append(s.mailbox.messages, s.current)
	return nil
}

func (s *fakeSession) Reset() {
	s.current = message{}
}

func (s *fakeSession) Logout() error {
	return nil
}

func startSmtp(t testing.TB) (*fakeMailbox, int) {
	mailbox := &fakeMailbox{}
	server := smtp.NewServer(mailbox)
	server.Domain = "localhost"
	server.AllowInsecureAuth = true
	server.ReadTimeout = time.Second * 5
	server.WriteTimeout = time.Second * 5

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go server.Serve(listener)
	t.Cleanup(func() {
		server.Close()
	})

	return mailbox, listener.Addr().(*net.TCPAddr).Port
}

func TestEmailNotifier(t *testing.T) {
	mailbox, port := startSmtp(t)

	notifier, err := NewEmailNotifier(EmailConfig{
		Server: "127.0.0.1",
		Port:   port,
		From:   "bot@example.com",
		To:     []string{"student@example.com"},
	})
	require.NoError(t, err)

	err = notifier.Notify(context.Background(), Notification{
		Kind:    KindNewHomework,
		Title:   "2 new homework",
		Message: "latest: 数据结构::实验二",
		Items:   []string{"数据结构::实验一", "数据结构::实验二"},
	})
	require.NoError(t, err)

	mailbox.Lock()
	defer mailbox.Unlock()
	require.Len(t, mailbox.messages, 1)
	msg := mailbox.messages[0]
	require.Equal(t, "bot@example.com", msg.from)
	require.Equal(t, []string{"student@example.com"}, msg.to)
	require.Contains(t, msg.data, "Subject: 2 new homework")
}

func TestEmailNotifierConfig(t *testing.T) {
	_, err := NewEmailNotifier(EmailConfig{Server: "127.0.0.1"})
	require.Error(t, err)

	notifier, err := NewEmailNotifier(EmailConfig{
		Server: "127.0.0.1",
		From:   "bot@example.com",
		To:     []string{"a@example.com"},
	})
	require.NoError(t, err)
	require.Equal(t, 587, notifier.config.Port)
}

func TestCommandNotifier(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.txt")
	notifier := CommandNotifier{
		Command: []string{"sh", "-c", `printf '%s|%s' "$1" "$2" > "$0"`, out},
	}

	err := notifier.Notify(context.Background(), Notification{
		Kind:    KindInfo,
		Title:   "hello",
		Message: "world",
	})
	require.NoError(t, err)

	contents, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "hello|world", string(contents))
}

func TestCommandNotifierFailure(t *testing.T) {
	notifier := CommandNotifier{Command: []string{"sh", "-c", "echo broken >&2; exit 3"}}
	err := notifier.Notify(context.Background(), Notification{Title: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken")

	require.Error(t, CommandNotifier{}.Notify(context.Background(), Notification{}))
}

type recordingNotifier struct {
	received []Notification
	err      error
}

func (r *recordingNotifier) Notify(ctx context.Context, n Notification) error {
	r.received = append(r.received, n)
	return r.err
}

func TestMulti(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("unreachable")}
	ok := &recordingNotifier{}

	err := Multi{failing, ok}.Notify(context.Background(), Notification{Title: "t"})
	require.ErrorContains(t, err, "unreachable")
	require.Len(t, failing.received, 1)
	require.Len(t, ok.received, 1)
}

func TestBody(t *testing.T) {
	n := Notification{Message: "3 new", Items: []string{"a", "b"}}
	require.Equal(t, "3 new\n- a\n- b", n.Body())
	require.Equal(t, "plain", Notification{Message: "plain"}.Body())
	require.True(t, strings.HasPrefix(KindEscalation.String(), "escalation"))
}

func TestFromConfig(t *testing.T) {
	notifiers, err := FromConfig(Config{})
	require.NoError(t, err)
	require.Len(t, notifiers, 1)

	notifiers, err = FromConfig(Config{
		Command: []string{"notify-send"},
		Email: EmailConfig{
			Server: "smtp.example.com",
			From:   "bot@example.com",
			To:     []string{"a@example.com"},
		},
	})
	require.NoError(t, err)
	require.Len(t, notifiers, 3)

	_, err = FromConfig(Config{Email: EmailConfig{Server: "smtp.example.com"}})
	require.Error(t, err)
}
