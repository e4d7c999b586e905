package portal

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/samber/lo"
)

// loginForm is the sign-in form scraped from the login page.
type loginForm struct {
	Action    string            // absolute URL to post to
	UserField string            // name of the username input
	PassField string            // name of the password input
	Values    map[string]string // hidden inputs, posted back unchanged
}

// Names tried, in order, for the username input when the form has no
// text or email input of its own.
var userFieldNames = []string{"user", "username", "email", "login"}

func (c *Client) login(ctx context.Context, s *resty.Client, username, password string) error {
	res, err := s.R().SetContext(ctx).Get(c.LoginURL)
	if err != nil {
		return err
	}
	if res.IsError() {
		return fmt.Errorf("GET %s: %s", c.LoginURL, res.Status())
	}

	f, err := findLoginForm(finalURL(res, c.LoginURL), res.Body())
	if err != nil {
		return err
	}
	c.logf("posting %d hidden fields to %s", len(f.Values), f.Action)

	data := lo.Assign(f.Values, map[string]string{
		f.UserField: username,
		f.PassField: password,
	})

	res, err = s.R().SetContext(ctx).SetFormData(data).Post(f.Action)
	if err != nil {
		return err
	}
	if res.IsError() {
		return fmt.Errorf("POST %s: %s", f.Action, res.Status())
	}
	if msg, failed := loginRejected(res.Body()); failed {
		if msg != "" {
			return fmt.Errorf("%w: %s", ErrLogin, msg)
		}
		return ErrLogin
	}
	return nil
}

// finalURL returns the URL of the page in res after redirects.
func finalURL(res *resty.Response, fallback string) *url.URL {
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		return res.RawResponse.Request.URL
	}
	u, _ := url.Parse(fallback)
	return u
}

// findLoginForm returns the first form on the page that asks for a
// password. Its action is resolved against base.
func findLoginForm(base *url.URL, page []byte) (*loginForm, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	form := passwordForms(doc.Selection).First()
	if form.Length() == 0 {
		return nil, ErrNoLoginForm
	}

	f := &loginForm{Values: map[string]string{}}

	f.PassField = form.Find("input[type=password]").First().AttrOr("name", "")
	if f.PassField == "" {
		return nil, fmt.Errorf("%w: password input has no name", ErrNoLoginForm)
	}

	f.UserField = form.Find("input[type=text], input[type=email], input:not([type])").First().AttrOr("name", "")
	if f.UserField == "" {
		for _, name := range userFieldNames {
			if form.Find(fmt.Sprintf("input[name=%q]", name)).Length() > 0 {
				f.UserField = name
				break
			}
		}
	}
	if f.UserField == "" {
		f.UserField = userFieldNames[0]
	}

	form.Find("input[type=hidden]").Each(func(_ int, in *goquery.Selection) {
		name, ok := in.Attr("name")
		if !ok || name == "" {
			return
		}
		f.Values[name] = in.AttrOr("value", "")
	})

	action, err := url.Parse(strings.TrimSpace(form.AttrOr("action", "")))
	if err != nil {
		return nil, fmt.Errorf("login form action: %w", err)
	}
	if base != nil {
		action = base.ResolveReference(action)
	}
	f.Action = action.String()
	return f, nil
}

// loginRejected reports whether page is the sign-in form again, which is how
// the portal answers bad credentials, along with any error text it shows.
func loginRejected(page []byte) (msg string, rejected bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", false
	}
	if passwordForms(doc.Selection).Length() == 0 {
		return "", false
	}
	msg = doc.Find(".error, #error, [role=alert]").First().Text()
	return strings.Join(strings.Fields(msg), " "), true
}

func passwordForms(s *goquery.Selection) *goquery.Selection {
	return s.Find("form").FilterFunction(func(_ int, f *goquery.Selection) bool {
		return f.Find("input[type=password]").Length() > 0
	})
}
