package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"kr.dev/diff"

	"bwcheck.dev/fetch/fetchtest"
	"bwcheck.dev/usage"
)

const (
	loginURL = "http://login.example.test/login"
	usageURL = "http://customer.example.test/apis/usage"
)

const loginPage = `<!doctype html>
<html><body>
<form action="https://elsewhere.example.test/search"><input name="q"></form>
<form id="signin" method="post" action="/login">
	<input type="hidden" name="csrf" value="tok123">
	<input type="hidden" name="r" value="comcast.net">
	<input type="text" name="user">
	<input type="password" name="passwd">
	%s
</form>
</body></html>`

const usageDoc = `{
	"courtesyUsed": 0,
	"usageMonths": [
		{"startDate": "12/01/2023", "endDate": "12/31/2023", "homeUsage": 700, "allowableUsage": 1229, "unitOfMeasure": "GB"},
		{"startDate": "01/01/2024", "endDate": "01/31/2024", "homeUsage": 512, "allowableUsage": 1229, "unitOfMeasure": "GB"}
	]
}`

// fakePortal serves a sign-in page on login.example.test and the usage API
// on customer.example.test, sharing a session cookie across both.
type fakePortal struct {
	t        *testing.T
	password string
	usage    string
	posted   map[string]string
}

func (p *fakePortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Host + r.URL.Path {
	case "login.example.test/login":
		if r.Method == "GET" {
			fmt.Fprintf(w, loginPage, "")
			return
		}
		if err := r.ParseForm(); err != nil {
			p.t.Error(err)
		}
		p.posted = map[string]string{}
		for k := range r.PostForm {
			p.posted[k] = r.PostForm.Get(k)
		}
		if r.PostForm.Get("passwd") != p.password || r.PostForm.Get("csrf") != "tok123" {
			fmt.Fprintf(w, loginPage, `<p class="error">
				The ID or password you entered
				was incorrect.</p>`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "s", Value: "sess1", Domain: "example.test", Path: "/"})
		http.Redirect(w, r, "http://customer.example.test/account", http.StatusFound)
	case "customer.example.test/account":
		io.WriteString(w, "<html><body>Welcome back</body></html>") // nolint: errcheck
	case "customer.example.test/apis/usage":
		if c, err := r.Cookie("s"); err != nil || c.Value != "sess1" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"code": "unauthorized", "message": "no session"}`) // nolint: errcheck
			return
		}
		io.WriteString(w, p.usage) // nolint: errcheck
	default:
		http.NotFound(w, r)
	}
}

func testClient(t *testing.T, h http.Handler) *Client {
	return &Client{
		LoginURL:   loginURL,
		UsageURL:   usageURL,
		HTTPClient: fetchtest.NewServer(t, h),
		Logf:       t.Logf,
		Clock:      clockwork.NewFakeClockAt(time.Unix(1705276800, 0)),
	}
}

func TestFetchUsage(t *testing.T) {
	p := &fakePortal{t: t, password: "hunter2", usage: usageDoc}
	c := testClient(t, p)

	rec, err := c.FetchUsage(context.Background(), "jdoe", "hunter2")
	if err != nil {
		t.Fatal(err)
	}

	diff.Test(t, t.Errorf, p.posted, map[string]string{
		"csrf":   "tok123",
		"r":      "comcast.net",
		"user":   "jdoe",
		"passwd": "hunter2",
	})

	diff.Test(t, t.Errorf, *rec.Used, usage.Number("512"))
	diff.Test(t, t.Errorf, *rec.Total, usage.Number("1229"))
	diff.Test(t, t.Errorf, *rec.Units, "GB")
	diff.Test(t, t.Errorf, *rec.Timestamp, usage.Number("1705276800"))
	diff.Test(t, t.Errorf, len(rec.Raw.UsageMonths), 2)

	u, err := usage.ParseIn(rec, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	want := &usage.Usage{
		Used:       512,
		Total:      1229,
		Units:      "GB",
		CycleStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		CycleEnd:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		CapturedAt: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	diff.Test(t, t.Errorf, u, want)
}

func TestFetchUsageBadPassword(t *testing.T) {
	p := &fakePortal{t: t, password: "hunter2", usage: usageDoc}
	c := testClient(t, p)

	_, err := c.FetchUsage(context.Background(), "jdoe", "wrong")
	if !errors.Is(err, ErrLogin) {
		t.Fatalf("err = %v; want %v", err, ErrLogin)
	}
	const want = "portal: login failed: The ID or password you entered was incorrect."
	diff.Test(t, t.Errorf, err.Error(), want)
}

func TestFetchUsageNoCredentials(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request: %s %s", r.Method, r.URL)
	})
	c := testClient(t, h)
	for _, creds := range [][2]string{{"", "pw"}, {"jdoe", ""}} {
		_, err := c.FetchUsage(context.Background(), creds[0], creds[1])
		if !errors.Is(err, ErrCredentials) {
			t.Errorf("%q: err = %v; want %v", creds, err, ErrCredentials)
		}
	}
}

func TestFetchUsageNoForm(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html><body>Down for maintenance</body></html>") // nolint: errcheck
	})
	c := testClient(t, h)
	_, err := c.FetchUsage(context.Background(), "jdoe", "hunter2")
	if !errors.Is(err, ErrNoLoginForm) {
		t.Errorf("err = %v; want %v", err, ErrNoLoginForm)
	}
}

func TestFetchUsageLoginPageError(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	})
	c := testClient(t, h)
	_, err := c.FetchUsage(context.Background(), "jdoe", "hunter2")
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("err = %v; want 503 error", err)
	}
}

func TestFetchUsageAPIError(t *testing.T) {
	p := &fakePortal{t: t, password: "hunter2", usage: usageDoc}
	mux := http.NewServeMux()
	mux.Handle("/", p)
	mux.HandleFunc("/apis/usage", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"code": "upstream", "message": "try later"}`) // nolint: errcheck
	})
	c := testClient(t, mux)

	_, err := c.FetchUsage(context.Background(), "jdoe", "hunter2")
	var ae *APIError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v; want *APIError", err)
	}
	diff.Test(t, t.Errorf, ae, &APIError{Code: "upstream", Message: "try later"})
	diff.Test(t, t.Errorf, err.Error(), "portal: usage API: upstream: try later")
}

func TestFetchUsageNotJSON(t *testing.T) {
	p := &fakePortal{t: t, password: "hunter2", usage: "<html>oops</html>"}
	c := testClient(t, p)
	_, err := c.FetchUsage(context.Background(), "jdoe", "hunter2")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestFetchUsageNoMonths(t *testing.T) {
	p := &fakePortal{t: t, password: "hunter2", usage: `{"usageMonths": []}`}
	c := testClient(t, p)
	rec, err := c.FetchUsage(context.Background(), "jdoe", "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Used != nil || rec.Total != nil || rec.Units != nil {
		t.Errorf("expected no headline figures, got %+v", rec)
	}
	if _, err := usage.Parse(rec); !errors.Is(err, usage.ErrMissingUsage) {
		t.Errorf("err = %v; want %v", err, usage.ErrMissingUsage)
	}
}

func TestFetchUsageDebugRedacts(t *testing.T) {
	p := &fakePortal{t: t, password: "hunter2", usage: usageDoc}
	c := testClient(t, p)
	var logged strings.Builder
	c.Debug = true
	c.Logf = func(format string, args ...any) {
		fmt.Fprintf(&logged, format+"\n", args...)
	}
	if _, err := c.FetchUsage(context.Background(), "jdoe", "hunter2"); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(logged.String(), "hunter2") {
		t.Errorf("password leaked into debug log:\n%s", logged.String())
	}
	if !strings.Contains(logged.String(), "fetch: < ") {
		t.Errorf("usage body not logged:\n%s", logged.String())
	}
}

func TestFindLoginForm(t *testing.T) {
	base := mustParse(t, "https://login.example.test/login?continue=1")
	page := fmt.Sprintf(loginPage, "")
	got, err := findLoginForm(base, []byte(page))
	if err != nil {
		t.Fatal(err)
	}
	want := &loginForm{
		Action:    "https://login.example.test/login",
		UserField: "user",
		PassField: "passwd",
		Values:    map[string]string{"csrf": "tok123", "r": "comcast.net"},
	}
	diff.Test(t, t.Errorf, got, want)
}

func TestFindLoginFormDefaults(t *testing.T) {
	base := mustParse(t, "https://login.example.test/signin")
	page := `<form><input type="hidden" name="username" value=""><input type="password" name="pw"></form>`
	got, err := findLoginForm(base, []byte(page))
	if err != nil {
		t.Fatal(err)
	}
	diff.Test(t, t.Errorf, got.Action, "https://login.example.test/signin")
	diff.Test(t, t.Errorf, got.UserField, "username")
	diff.Test(t, t.Errorf, got.PassField, "pw")
}

func TestLoginRejected(t *testing.T) {
	cases := []struct {
		page     string
		msg      string
		rejected bool
	}{
		{"<html>Welcome</html>", "", false},
		{`<form><input type="password" name="p"></form>`, "", true},
		{`<div role="alert"> Account   locked </div><form><input type="password" name="p"></form>`, "Account locked", true},
	}
	for _, tt := range cases {
		msg, rejected := loginRejected([]byte(tt.page))
		if msg != tt.msg || rejected != tt.rejected {
			t.Errorf("loginRejected(%q) = %q, %v; want %q, %v", tt.page, msg, rejected, tt.msg, tt.rejected)
		}
	}
}

func TestNewRecordNil(t *testing.T) {
	rec := newRecord(nil, time.Unix(10, 0))
	if rec.Raw != nil || rec.Used != nil {
		t.Errorf("got %+v", rec)
	}
	if _, err := usage.Parse(rec); !errors.Is(err, usage.ErrMissingUsage) {
		t.Errorf("err = %v; want %v", err, usage.ErrMissingUsage)
	}
}

func mustParse(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return u
}
