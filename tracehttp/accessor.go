package tracehttp

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
)

var errNoURL = errors.New("request has no URL")

type requestAccessor struct{}

func (requestAccessor) Method(req *http.Request) string {
	if req.Method == "" {
		return http.MethodGet
	}
	return req.Method
}

// URL completes the request URL with the Host header and scheme, which a
// server side request leaves out.
func (requestAccessor) URL(req *http.Request) (*url.URL, error) {
	if req.URL == nil {
		return nil, errNoURL
	}
	u := *req.URL
	if u.Host == "" {
		u.Host = req.Host
	}
	if u.Scheme == "" {
		u.Scheme = "http"
		if req.TLS != nil {
			u.Scheme = "https"
		}
	}
	return &u, nil
}

func (requestAccessor) Flavor(req *http.Request) string {
	return req.Proto
}

func (requestAccessor) RequestHeader(req *http.Request, name string) string {
	return req.Header.Get(name)
}

type clientAccessor struct {
	requestAccessor
}

func (clientAccessor) StatusCode(resp *http.Response) (int, bool) {
	if resp == nil {
		return 0, false
	}
	return resp.StatusCode, true
}

type serverAccessor struct {
	requestAccessor
}

func (serverAccessor) StatusCode(w *responseWriter) (int, bool) {
	if w == nil {
		return 0, false
	}
	return w.Status(), true
}

// Route is the path of the ServeMux pattern that matched req, without the
// method and host parts.
func (serverAccessor) Route(req *http.Request) string {
	pattern := req.Pattern
	if _, rest, ok := strings.Cut(pattern, " "); ok {
		pattern = strings.TrimLeft(rest, " \t")
	}
	if i := strings.IndexByte(pattern, '/'); i > 0 {
		pattern = pattern[i:]
	}
	return pattern
}
