// Package portal signs in to a provider's customer portal and downloads the
// account's internet usage.
package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
	"kr.dev/errorfmt"

	"bwcheck.dev/fetch"
	"bwcheck.dev/trutil"
	"bwcheck.dev/usage"
	"bwcheck.dev/version"
)

var (
	ErrCredentials = errors.New("username and password are required")
	ErrLogin       = errors.New("login failed")
	ErrNoLoginForm = errors.New("no login form found")
)

// APIError is the body of an error response from the usage API.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return "usage API: " + e.Code
	}
	return fmt.Sprintf("usage API: %s: %s", e.Code, e.Message)
}

type Client struct {
	LoginURL string // the sign-in page
	UsageURL string // the JSON usage document

	// HTTPClient is copied for each session; its Jar, if any, is replaced.
	// If nil, http.DefaultClient is used.
	HTTPClient *http.Client

	Logf func(format string, args ...any)

	// Debug logs every request and response through Logf, with the
	// password masked.
	Debug bool

	// Clock stamps each record with its download time. If nil, the real
	// clock is used.
	Clock clockwork.Clock
}

func (c *Client) logf(format string, args ...any) {
	if c.Logf != nil {
		c.Logf(format, args...)
	}
}

func (c *Client) clock() clockwork.Clock {
	if c.Clock != nil {
		return c.Clock
	}
	return clockwork.NewRealClock()
}

// FetchUsage signs in as username and returns the account's usage record,
// stamped with the time it was downloaded. The session lasts for this call
// only.
func (c *Client) FetchUsage(ctx context.Context, username, password string) (rec *usage.Record, err error) {
	defer errorfmt.Handlef("portal: %w", &err)
	if username == "" || password == "" {
		return nil, ErrCredentials
	}

	s := c.newSession(password)
	c.logf("signing in to %s as %s", c.LoginURL, username)
	if err := c.login(ctx, s, username, password); err != nil {
		return nil, err
	}

	c.logf("fetching usage from %s", c.UsageURL)
	opts := []any{http.Header{
		"Accept":     {"application/json"},
		"User-Agent": {userAgent},
	}}
	if c.Debug {
		opts = append(opts, fetch.Debugf(c.logf))
	}
	raw, err := fetch.OK[*usage.Raw, *APIError](ctx, s.GetClient(), "GET", c.UsageURL, opts...)
	if err != nil {
		return nil, err
	}
	return newRecord(raw, c.clock().Now()), nil
}

// newRecord builds a record from the usage document, taking the headline
// figures from the latest month.
func newRecord(raw *usage.Raw, now time.Time) *usage.Record {
	rec := &usage.Record{
		Raw:       raw,
		Timestamp: usage.Num(strconv.FormatInt(now.Unix(), 10)),
	}
	if m := raw.Last(); m != nil {
		rec.Used = m.HomeUsage
		rec.Total = m.AllowableUsage
		rec.Units = m.UnitOfMeasure
	}
	return rec
}

var userAgent = "bwcheck/" + version.Short

func (c *Client) newSession(password string) *resty.Client {
	hc := new(http.Client)
	if c.HTTPClient != nil {
		*hc = *c.HTTPClient
	}
	jar, _ := cookiejar.New(nil) // never fails with nil options
	hc.Jar = jar

	rc := resty.NewWithClient(hc)
	rc.SetHeaders(map[string]string{
		"Accept":          "text/html,application/xhtml+xml,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
		"User-Agent":      userAgent,
	})
	if c.Debug && c.Logf != nil {
		rc.SetDebug(true)
		rc.SetLogger(&restyLogger{&trutil.LineWriter{
			Prefix: "portal: ",
			Logf:   c.Logf,
			Redact: []string{password, url.QueryEscape(password)},
		}})
	}
	return rc
}

// restyLogger sends resty's multi-line debug dumps to a LineWriter.
type restyLogger struct {
	lw *trutil.LineWriter
}

func (l *restyLogger) Errorf(format string, v ...any) { l.lw.Printf("ERROR "+format, v...) }
func (l *restyLogger) Warnf(format string, v ...any)  { l.lw.Printf("WARN "+format, v...) }
func (l *restyLogger) Debugf(format string, v ...any) { l.lw.Printf(format, v...) }
