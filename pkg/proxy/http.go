package proxy

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kubarr/kubarr/internal/apperrors"
)

// requestHopHeaders are stripped from the inbound request before it's
// forwarded to the app.
var requestHopHeaders = []string{
	"Host", "Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailers", "Transfer-Encoding", "Upgrade", "Content-Length", "Accept-Encoding",
}

// responseHopHeaders are stripped from the app's response before it's
// returned to the caller.
var responseHopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailers", "Transfer-Encoding", "Content-Encoding",
}

// HTTPProxy forwards requests to app targets. It never follows redirects
// itself — the caller's browser follows them against the original
// kubarr-facing URL.
type HTTPProxy struct {
	client *http.Client
}

func NewHTTPProxy() *HTTPProxy {
	return &HTTPProxy{
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// ServeApp proxies r to targetURL (the app's base URL joined with path)
// and writes the response to w.
func (p *HTTPProxy) ServeApp(w http.ResponseWriter, r *http.Request, targetURL string) {
	req, err := http.NewRequestWithContext(r.Context(), r.Method, targetURL, r.Body)
	if err != nil {
		apperrors.Write(w, apperrors.Internal("building proxy request"))
		return
	}
	copyHeaders(req.Header, r.Header, requestHopHeaders)

	resp, err := p.client.Do(req)
	if err != nil {
		apperrors.Write(w, classifyTransportError(err))
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		apperrors.Write(w, apperrors.BadGateway("reading upstream response"))
		return
	}

	copyHeaders(w.Header(), resp.Header, responseHopHeaders)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)
}

func copyHeaders(dst, src http.Header, strip []string) {
	stripped := make(map[string]struct{}, len(strip))
	for _, h := range strip {
		stripped[http.CanonicalHeaderKey(h)] = struct{}{}
	}
	for k, values := range src {
		if _, skip := stripped[http.CanonicalHeaderKey(k)]; skip {
			continue
		}
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}

func classifyTransportError(err error) *apperrors.Error {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.ServiceUnavailable("app did not respond in time")
	}
	msg := err.Error()
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "no route to host") {
		return apperrors.ServiceUnavailable("app is not reachable")
	}
	return apperrors.BadGateway("error communicating with app")
}

// JoinPath builds the target URL for a proxied request: the endpoint's
// base URL with the incoming path appended verbatim.
func JoinPath(ep Endpoint, path string) string {
	return strings.TrimRight(ep.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
