package captcha

import (
	"bytes"
	"context"
	"hwnotifier/lib/telemetry"
	"image"
	"log/slog"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	_ "golang.org/x/image/bmp"
)

var tracer = telemetry.Tracer("hwnotifier.lib.captcha")

const DefaultCodeLength = 5

type Solver struct {
	Recognizer Recognizer
	Prompter   Prompter
	Length     int
	Preprocess PreprocessOptions
}

func NewSolver(recognizer Recognizer, prompter Prompter) Solver {
	return Solver{
		Recognizer: recognizer,
		Prompter:   prompter,
		Length:     DefaultCodeLength,
		Preprocess: DefaultPreprocessOptions,
	}
}

// ValidCode reports whether `code` has exactly `length` ascii letters or
// digits.
func ValidCode(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		isAlnum := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if !isAlnum {
			return false
		}
	}
	return true
}

// Solve turns a captcha into a code. An empty code with a nil error means
// the automated reading was not trustworthy, which happens often and is
// not a fault. Errors are only returned when the manual prompt fails.
func (s Solver) Solve(ctx context.Context, raw []byte, forceManual bool) (string, error) {
	ctx, span := tracer.Start(ctx, "solver:Solve")
	defer span.End()
	span.SetAttributes(attribute.Bool("manual", forceManual))

	if forceManual {
		code, err := s.Prompter.Prompt(ctx, raw)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "manual captcha prompt failed")
			return "", err
		}
		return strings.TrimSpace(code), nil
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		slog.WarnContext(ctx, "failed to decode captcha", "err", err, "size", len(raw))
		span.RecordError(err)
		return "", nil
	}

	binary := Preprocess(img, s.Preprocess)
	text, err := s.Recognizer.Recognize(ctx, binary)
	if err != nil {
		slog.WarnContext(ctx, "captcha recognition failed", "err", err)
		span.RecordError(err)
		return "", nil
	}

	length := s.Length
	if length == 0 {
		length = DefaultCodeLength
	}
	code := strings.Join(strings.Fields(text), "")
	if !ValidCode(code, length) {
		slog.DebugContext(ctx, "rejected captcha reading", "reading", code, "format", format)
		span.SetAttributes(attribute.String("rejected", code))
		return "", nil
	}

	span.SetAttributes(attribute.String("code", code))
	return code, nil
}
