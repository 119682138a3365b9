package api

import (
	"net/http"
	"net/url"
	"strings"
)

// baseURL returns the scheme and host the provider used to reach us. A
// configured public URL wins; otherwise it is derived from the request,
// honouring X-Forwarded-Proto from a TLS-terminating proxy.
func (s *Server) baseURL(r *http.Request) string {
	if s.cfg.PublicURL != "" {
		return s.cfg.PublicURL
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + r.Host
}

// audioURL is the absolute URL at which name will be served.
func (s *Server) audioURL(r *http.Request, name string) string {
	return s.baseURL(r) + "/audio/" + url.PathEscape(name)
}

// requestURL reconstructs the full URL of r, used for signature checks.
func (s *Server) requestURL(r *http.Request) string {
	return s.baseURL(r) + r.URL.RequestURI()
}
