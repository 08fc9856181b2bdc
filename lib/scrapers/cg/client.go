package cg

import (
	"bytes"
	"context"
	"fmt"
	"hwnotifier/lib/restyutil"
	"net/http/cookiejar"
	"net/url"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"
)

const (
	captchaPath  = "/cgjiaoyan"
	loginPath    = "/login/loginproc.jsp"
	mainPath     = "/main.jsp"
	homeworkPath = "/includes/redirect.jsp?tab=-2"

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

var ErrNotLoggedIn = fmt.Errorf("client has not logged in")
var ErrUnexpectedStructure = fmt.Errorf("unexpected portal page structure")

// Client is a single portal session, every client owns its own cookie jar
// so logging in again means creating a new client.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	landing *goquery.Document
}

type ClientOptions struct {
	BaseUrl string
	// defaults to 30 seconds
	Timeout          time.Duration
	UserAgent        string
	CloudflareBypass bool
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if baseUrl.Scheme == "" || baseUrl.Host == "" {
		return nil, fmt.Errorf("invalid portal base url %q", opts.BaseUrl)
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}
	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(timeout)

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return &Client{
		BaseUrl: baseUrl,
		Http:    client,
	}, nil
}

func (c *Client) get(ctx context.Context, endpoint string) (*resty.Response, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(endpoint)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return res, fmt.Errorf("GET %s: unexpected status %s", endpoint, res.Status())
	}
	return res, nil
}

func (c *Client) getDocument(ctx context.Context, endpoint string) (*goquery.Document, error) {
	res, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
}
