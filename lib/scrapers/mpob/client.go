package mpob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"palmstat-backend/lib/htmlutil"
	"palmstat-backend/lib/restyutil"
	"palmstat-backend/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/mpob")

var ErrAuthenticationFailure = errors.New("failed to login to the mpob portal")

const (
	DefaultBaseUrl = "https://bepi.mpob.gov.my"
	LoginPath      = "/index.php/component/users/login"

	loginFormSelector = "form.com-users-login__form"
)

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	username string
	password string
}

type ClientOptions struct {
	BaseUrl  string
	Username string
	Password string
	Timeout  time.Duration
	// Output receives request/response dumps at debug level, it may be nil.
	Output restyutil.InstrumentOutput
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(opts.Timeout)

	telemetry.InstrumentResty(client, "scrapers/mpob/http")
	restyutil.InstrumentClient(client, opts.Output)

	return &Client{
		BaseUrl:  baseUrl,
		Http:     client,
		username: opts.Username,
		password: opts.Password,
	}, nil
}

// Page is a fetched document and the url it was finally served from.
type Page struct {
	URL  *url.URL
	HTML string
}

func (c *Client) resolve(link string) (string, error) {
	return htmlutil.ResolveLink(c.BaseUrl, link)
}

// Fetch GETs link, relative links resolve against the base url.
func (c *Client) Fetch(ctx context.Context, link string) (Page, error) {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()

	target, err := c.resolve(link)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid link")
		return Page{}, err
	}
	span.SetAttributes(attribute.String("url", target))

	res, err := c.Http.R().
		SetContext(ctx).
		Get(target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch")
		return Page{}, err
	}
	if res.IsError() {
		err = fmt.Errorf("fetch %s: unexpected status %s", target, res.Status())
		span.SetStatus(codes.Error, err.Error())
		return Page{}, err
	}

	final, err := url.Parse(target)
	if err != nil {
		return Page{}, err
	}
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		final = res.RawResponse.Request.URL
	}
	return Page{URL: final, HTML: res.String()}, nil
}

// IsLoginPage reports whether the document still shows the login form.
func IsLoginPage(doc *goquery.Document) bool {
	return doc.Find(loginFormSelector).Length() > 0
}

// csrfToken reads the joomla options blob, the token is the name of a
// form field that must be posted with the value "1".
func csrfToken(doc *goquery.Document) string {
	var token string
	doc.Find(`script[type="application/json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var options map[string]any
		err := json.Unmarshal([]byte(s.Text()), &options)
		if err != nil {
			return true
		}
		value, ok := options["csrf.token"].(string)
		if ok && value != "" {
			token = value
			return false
		}
		return true
	})
	return token
}

func loginForm(doc *goquery.Document) *goquery.Selection {
	form := doc.Find(loginFormSelector).First()
	if form.Length() > 0 {
		return form
	}
	return doc.Find("form").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find(`input[name="username"]`).Length() > 0
	}).First()
}

// Login signs in with the username/password form. It returns
// ErrAuthenticationFailure when no csrf token is published or the
// portal answers with the login form again.
func (c *Client) Login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	page, err := c.Fetch(ctx, LoginPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch login page")
		return err
	}
	doc, err := htmlutil.Parse(page.HTML)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse login page html")
		return err
	}

	token := csrfToken(doc)
	if token == "" {
		span.SetStatus(codes.Error, "failed to find csrf token")
		return fmt.Errorf("%w: csrf token not found", ErrAuthenticationFailure)
	}

	fields := map[string]string{}
	action := page.URL.String()
	form := loginForm(doc)
	if form.Length() > 0 {
		form.Find("input[name]").Each(func(_ int, s *goquery.Selection) {
			name, _ := s.Attr("name")
			fields[name] = s.AttrOr("value", "")
		})
		if href := strings.TrimSpace(form.AttrOr("action", "")); href != "" {
			action, err = htmlutil.ResolveLink(page.URL, href)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "invalid login form action")
				return err
			}
		}
	}
	fields["username"] = c.username
	fields["password"] = c.password
	fields["return"] = ""
	fields[token] = "1"

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(fields).
		Post(action)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return err
	}
	if res.IsError() {
		err = fmt.Errorf("%w: login returned %s", ErrAuthenticationFailure, res.Status())
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	doc, err = htmlutil.Parse(res.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html after login")
		return err
	}
	if IsLoginPage(doc) {
		span.SetStatus(codes.Error, ErrAuthenticationFailure.Error())
		return ErrAuthenticationFailure
	}
	return nil
}
