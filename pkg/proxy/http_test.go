package proxy

import (
	"errors"
	"net/http"
	"testing"
)

func TestJoinPath(t *testing.T) {
	tests := []struct {
		name string
		ep   Endpoint
		path string
		want string
	}{
		{
			name: "trailing and leading slashes are collapsed",
			ep:   Endpoint{BaseURL: "http://sonarr.sonarr.svc.cluster.local:8989/"},
			path: "/api/v3/system/status",
			want: "http://sonarr.sonarr.svc.cluster.local:8989/api/v3/system/status",
		},
		{
			name: "no leading slash on path",
			ep:   Endpoint{BaseURL: "http://radarr.radarr.svc.cluster.local:7878"},
			path: "api/v3/health",
			want: "http://radarr.radarr.svc.cluster.local:7878/api/v3/health",
		},
		{
			name: "root path",
			ep:   Endpoint{BaseURL: "http://app.ns.svc.cluster.local:80"},
			path: "/",
			want: "http://app.ns.svc.cluster.local:80/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinPath(tt.ep, tt.path); got != tt.want {
				t.Errorf("JoinPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "context deadline exceeded" }
func (timeoutErr) Timeout() bool { return true }

func TestClassifyTransportError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "timeout", err: timeoutErr{}, wantStatus: http.StatusServiceUnavailable},
		{name: "connection refused", err: errors.New("dial tcp 10.0.0.1:80: connect: connection refused"), wantStatus: http.StatusServiceUnavailable},
		{name: "no route to host", err: errors.New("dial tcp: no route to host"), wantStatus: http.StatusServiceUnavailable},
		{name: "other transport error", err: errors.New("unexpected EOF"), wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyTransportError(tt.err)
			if got.Status != tt.wantStatus {
				t.Errorf("classifyTransportError() status = %d, want %d", got.Status, tt.wantStatus)
			}
		})
	}
}

func TestCopyHeadersStripsHopByHop(t *testing.T) {
	src := http.Header{}
	src.Set("Connection", "keep-alive")
	src.Set("X-App-Version", "1.2.3")

	dst := http.Header{}
	copyHeaders(dst, src, responseHopHeaders)

	if dst.Get("Connection") != "" {
		t.Error("Connection header should have been stripped")
	}
	if dst.Get("X-App-Version") != "1.2.3" {
		t.Errorf("X-App-Version = %q, want preserved", dst.Get("X-App-Version"))
	}
}
