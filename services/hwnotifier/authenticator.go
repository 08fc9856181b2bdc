package hwnotifier

import (
	"context"
	"fmt"
	"hwnotifier/lib/scrapers/cg"
	"hwnotifier/lib/textutil"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Authenticator performs exactly one login attempt, it never retries.
type Authenticator interface {
	AttemptLogin(ctx context.Context, creds Credentials, forceManual bool) (*cg.Client, error)
}

// CaptchaSolver is implemented by captcha.Solver.
type CaptchaSolver interface {
	Solve(ctx context.Context, raw []byte, forceManual bool) (string, error)
}

type PortalAuthenticator struct {
	options cg.ClientOptions
	solver  CaptchaSolver
}

func NewPortalAuthenticator(options cg.ClientOptions, solver CaptchaSolver) PortalAuthenticator {
	return PortalAuthenticator{
		options: options,
		solver:  solver,
	}
}

// AttemptLogin logs in with a brand new client, the returned client is
// the session.
func (a PortalAuthenticator) AttemptLogin(ctx context.Context, creds Credentials, forceManual bool) (*cg.Client, error) {
	ctx, span := tracer.Start(ctx, "AttemptLogin")
	defer span.End()
	span.SetAttributes(attribute.Bool("force_manual", forceManual))

	client, err := cg.NewClient(a.options)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create portal client")
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	raw, err := client.Captcha(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch captcha")
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	code, err := a.solver.Solve(ctx, raw, forceManual)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to solve captcha")
		return nil, fmt.Errorf("%w: %w", ErrCaptchaUnreadable, err)
	}
	if code == "" {
		span.SetStatus(codes.Error, ErrCaptchaUnreadable.Error())
		return nil, ErrCaptchaUnreadable
	}

	status, body, err := client.Login(ctx, creds.Username, creds.Password, code)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit login")
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	span.SetAttributes(attribute.String("login.status", status.String()))

	switch status {
	case cg.LoginSuccess:
		return client, nil
	case cg.LoginBadCredentials:
		span.SetStatus(codes.Error, ErrBadCredentials.Error())
		return nil, ErrBadCredentials
	case cg.LoginBadCaptcha:
		span.SetStatus(codes.Error, ErrBadCaptcha.Error())
		return nil, ErrBadCaptcha
	}

	slog.WarnContext(
		ctx, "unrecognized login response",
		"body", textutil.Excerpt(body, 200),
	)
	span.SetStatus(codes.Error, ErrUnknownResponse.Error())
	return nil, ErrUnknownResponse
}
