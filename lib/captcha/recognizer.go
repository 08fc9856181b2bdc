package captcha

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strings"
)

const Alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

type Recognizer interface {
	// Recognize reads the characters in an already preprocessed image.
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// TesseractRecognizer shells out to a tesseract binary.
type TesseractRecognizer struct {
	// path to the tesseract executable, defaults to "tesseract" on $PATH
	Path      string
	Whitelist string
	// tesseract page segmentation mode, 7 treats the image as one line
	PageSegMode int
}

func NewTesseractRecognizer(path string) TesseractRecognizer {
	if path == "" {
		path = "tesseract"
	}
	return TesseractRecognizer{
		Path:        path,
		Whitelist:   Alphanumeric,
		PageSegMode: 7,
	}
}

func (r TesseractRecognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	ctx, span := tracer.Start(ctx, "tesseract:Recognize")
	defer span.End()

	f, err := os.CreateTemp("", "captcha-*.png")
	if err != nil {
		return "", err
	}
	defer os.Remove(f.Name())

	err = png.Encode(f, img)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", err
	}

	args := []string{
		f.Name(), "stdout",
		"--psm", fmt.Sprint(r.PageSegMode),
	}
	if r.Whitelist != "" {
		args = append(args, "-c", "tessedit_char_whitelist="+r.Whitelist)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err = cmd.Run()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("run %s: %w: %s", r.Path, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
