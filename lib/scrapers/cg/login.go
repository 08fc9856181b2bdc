package cg

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type LoginStatus int

const (
	LoginUnknown LoginStatus = iota
	LoginSuccess
	LoginBadCredentials
	LoginBadCaptcha
)

func (s LoginStatus) String() string {
	switch s {
	case LoginSuccess:
		return "success"
	case LoginBadCredentials:
		return "bad_credentials"
	case LoginBadCaptcha:
		return "bad_captcha"
	default:
		return "unknown"
	}
}

// the portal answers every login attempt with 200, the outcome is only
// visible in the page text
const (
	sentinelBadCredentials = "用户名或者密码错误！"
	sentinelBadCaptcha     = "验证码错误！"
	sentinelSuccess        = "选择课程"
)

// ClassifyLogin is the only place that interprets the login response body.
func ClassifyLogin(body string) LoginStatus {
	switch {
	case strings.Contains(body, sentinelBadCredentials):
		return LoginBadCredentials
	case strings.Contains(body, sentinelBadCaptcha):
		return LoginBadCaptcha
	case strings.Contains(body, sentinelSuccess):
		return LoginSuccess
	default:
		return LoginUnknown
	}
}

// Captcha fetches a fresh captcha image, the portal binds it to the
// session cookie so it must be fetched with the same client that logs in.
func (c *Client) Captcha(ctx context.Context) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "client:Captcha")
	defer span.End()

	res, err := c.get(ctx, captchaPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch captcha")
		return nil, err
	}
	if len(res.Body()) == 0 {
		span.SetStatus(codes.Error, "empty captcha")
		return nil, fmt.Errorf("portal returned an empty captcha image")
	}
	span.SetAttributes(attribute.Int("captcha.size", len(res.Body())))
	return res.Body(), nil
}

// Login submits the credentials together with the captcha code. The
// returned body is only meant for diagnostics.
func (c *Client) Login(ctx context.Context, username, password, captchaCode string) (LoginStatus, string, error) {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"stid":        username,
			"pwd":         password,
			"captchaCode": captchaCode,
		}).
		Post(loginPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return LoginUnknown, "", err
	}

	body := res.String()
	status := ClassifyLogin(body)
	span.SetAttributes(attribute.String("login.status", status.String()))
	if status != LoginSuccess {
		return status, body, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse landing page")
		return LoginUnknown, body, err
	}
	c.landing = doc

	return status, body, nil
}

func (c *Client) LoggedIn() bool {
	return c.landing != nil
}
