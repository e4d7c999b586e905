// Package fetchtest provides HTTP clients wired to in-process test servers.
package fetchtest

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

// NewServer starts a test server for h and returns a client that sends every
// request to it, whatever scheme and host the request URL names. Path and
// query are kept. This lets code under test use its production URLs, and
// lets a cookie jar on the client see the hosts the code asked for.
//
// The server is closed when the test ends.
func NewServer(t *testing.T, h http.Handler) *http.Client {
	return newClient(t, httptest.NewServer(h))
}

// NewTLSServer is like NewServer but the server speaks TLS.
func NewTLSServer(t *testing.T, h http.Handler) *http.Client {
	return newClient(t, httptest.NewTLSServer(h))
}

func newClient(t *testing.T, s *httptest.Server) *http.Client {
	t.Cleanup(s.Close)
	u, err := url.Parse(s.URL)
	if err != nil {
		t.Fatal(err)
	}
	c := s.Client()
	c.Transport = &httptestTransport{
		rt:   c.Transport,
		base: u,
	}
	return c
}

type httptestTransport struct {
	rt   http.RoundTripper
	base *url.URL
}

func (tr *httptestTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context()) // per RoundTrip contract
	if r.Host == "" {
		r.Host = r.URL.Host
	}
	r.URL.Scheme = tr.base.Scheme
	r.URL.Host = tr.base.Host
	r.URL.User = nil
	return tr.rt.RoundTrip(r)
}
