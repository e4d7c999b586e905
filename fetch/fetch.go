// Package fetch makes HTTP requests and decodes the responses into Go
// values picked by type parameter.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"

	"bwcheck.dev/trutil"
)

// Debugf is an option for Do and OK. If given, the response body is logged
// through it, one line per call, as it is read.
type Debugf func(format string, args ...any)

// Do sends a request with no body and decodes the response into R, whatever
// its status. R may be *http.Response, which the caller must close; any other
// type is decoded from JSON.
//
// Options may be an http.Header to add to the request or a Debugf.
func Do[R any](ctx context.Context, c *http.Client, method, urlStr string, opts ...any) (R, error) {
	var zero R

	req, err := http.NewRequestWithContext(ctx, method, urlStr, nil)
	if err != nil {
		return zero, err
	}

	var debugf Debugf
	if fetchDebug {
		debugf = log.Printf
	}
	for _, opt := range opts {
		switch v := opt.(type) {
		case http.Header:
			maps.Copy(req.Header, v)
		case Debugf:
			debugf = v
		}
	}

	res, err := c.Do(req)
	if err != nil {
		return zero, err
	}

	if debugf != nil {
		debugf("fetch: %s %s: %s", method, urlStr, res.Status)
		lw := &trutil.LineWriter{
			Prefix: "fetch: < ",
			Logf:   debugf,
		}
		res.Body = &debugBody{
			Reader: io.TeeReader(res.Body, lw),
			body:   res.Body,
			lw:     lw,
		}
	}

	return interpretDesiredResponse[R](res)
}

var fetchDebug, _ = strconv.ParseBool(os.Getenv("FETCH_DEBUG"))

// debugBody logs the last line of the body, which usually has no newline,
// when closed.
type debugBody struct {
	io.Reader
	body io.Closer
	lw   *trutil.LineWriter
}

func (b *debugBody) Close() error {
	b.lw.Flush()
	return b.body.Close()
}

// StatusError is returned by OK for a non-200 response whose body is not
// valid JSON.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// OK is like Do but treats any status other than 200 as an error. The body
// of an error response is decoded into E if it is valid JSON; otherwise a
// *StatusError is returned.
func OK[R any, E error](ctx context.Context, c *http.Client, method, urlStr string, opts ...any) (R, error) {
	var zero R
	res, err := Do[*http.Response](ctx, c, method, urlStr, opts...)
	if err != nil {
		return zero, err
	}

	if res.StatusCode == 200 {
		return interpretDesiredResponse[R](res)
	}

	defer res.Body.Close()
	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return zero, err
	}
	var e E
	if err := json.Unmarshal(data, &e); err != nil {
		return zero, &StatusError{
			Status: res.StatusCode,
			Body:   strings.TrimSpace(string(data)),
		}
	}
	return zero, e
}

func interpretDesiredResponse[R any](res *http.Response) (R, error) {
	var zero R
	if _, ok := any(zero).(*http.Response); ok {
		// caller is responsible for closing
		return any(res).(R), nil
	}

	// Content-Type is ignored; portals are sloppy about it.
	defer res.Body.Close()
	var j R
	if err := json.NewDecoder(res.Body).Decode(&j); err != nil {
		return zero, err
	}
	return j, nil
}
