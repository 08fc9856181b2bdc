package hwnotifier

import (
	"errors"
	"fmt"
)

var (
	ErrCaptchaUnreadable = fmt.Errorf("captcha could not be read")
	// ErrBadCredentials is fatal, retrying a wrong password only risks
	// locking the account.
	ErrBadCredentials  = fmt.Errorf("username or password is incorrect")
	ErrBadCaptcha      = fmt.Errorf("portal rejected the captcha code")
	ErrTransport       = fmt.Errorf("could not reach the portal")
	ErrUnknownResponse = fmt.Errorf("unrecognized login response")
)

type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureCaptchaUnreadable
	FailureBadCredentials
	FailureBadCaptcha
	FailureTransport
	FailureUnknownResponse
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureCaptchaUnreadable:
		return "captcha_unreadable"
	case FailureBadCredentials:
		return "bad_credentials"
	case FailureBadCaptcha:
		return "bad_captcha"
	case FailureTransport:
		return "transport"
	case FailureUnknownResponse:
		return "unknown_response"
	}
	return fmt.Sprintf("failure(%d)", int(k))
}

// FailureKindOf maps an error returned by an Authenticator to its kind,
// errors that match none of the sentinels count as transport failures.
func FailureKindOf(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrBadCredentials):
		return FailureBadCredentials
	case errors.Is(err, ErrBadCaptcha):
		return FailureBadCaptcha
	case errors.Is(err, ErrCaptchaUnreadable):
		return FailureCaptchaUnreadable
	case errors.Is(err, ErrUnknownResponse):
		return FailureUnknownResponse
	}
	return FailureTransport
}
