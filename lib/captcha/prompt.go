package captcha

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

type Prompter interface {
	// Prompt shows the raw captcha to a human and blocks until they type
	// the code or ctx is done.
	Prompt(ctx context.Context, raw []byte) (string, error)
}

// TerminalPrompter saves the captcha next to the process, optionally opens
// it with a viewer and reads the code from In.
type TerminalPrompter struct {
	// file the captcha is written to, defaults to "captcha.png"
	ImagePath string
	// command used to open the image, the path is appended as the last
	// argument, empty means the path is only printed
	Viewer []string
	In     io.Reader
	Out    io.Writer

	once  sync.Once
	lines chan lineResult
}

type lineResult struct {
	line string
	err  error
}

func NewTerminalPrompter(imagePath string, viewer []string) *TerminalPrompter {
	return &TerminalPrompter{
		ImagePath: imagePath,
		Viewer:    viewer,
		In:        os.Stdin,
		Out:       os.Stdout,
	}
}

// a single reader goroutine owns In so that an abandoned prompt does not
// leave a second reader competing for the next line
func (p *TerminalPrompter) startReader() {
	p.lines = make(chan lineResult)
	go func() {
		scanner := bufio.NewScanner(p.In)
		for scanner.Scan() {
			p.lines <- lineResult{line: scanner.Text()}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		for {
			p.lines <- lineResult{err: err}
		}
	}()
}

func (p *TerminalPrompter) Prompt(ctx context.Context, raw []byte) (string, error) {
	p.once.Do(p.startReader)

	path := p.ImagePath
	if path == "" {
		path = "captcha.png"
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	err = os.WriteFile(path, raw, 0644)
	if err != nil {
		return "", fmt.Errorf("write captcha image: %w", err)
	}

	if len(p.Viewer) > 0 {
		_, err = openViewer(ctx, p.Viewer, path)
		if err != nil {
			slog.WarnContext(ctx, "failed to open captcha viewer", "viewer", p.Viewer[0], "err", err)
		}
	}

	fmt.Fprintf(p.Out, "captcha saved to %s\nenter captcha code: ", path)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-p.lines:
		if res.err != nil {
			return "", fmt.Errorf("read captcha code: %w", res.err)
		}
		return strings.TrimSpace(res.line), nil
	}
}

// openViewer starts the viewer without blocking on it. The process is
// reaped in the background, its exit error is sent on the returned channel.
func openViewer(ctx context.Context, viewer []string, path string) (<-chan error, error) {
	args := append(append([]string{}, viewer[1:]...), path)
	cmd := exec.CommandContext(ctx, viewer[0], args...)
	err := cmd.Start()
	if err != nil {
		return nil, err
	}
	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
		close(exited)
	}()
	return exited, nil
}
