package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name       string
		user       *AuthenticatedUser
		wantStatus int
	}{
		{name: "no user", user: nil, wantStatus: http.StatusUnauthorized},
		{name: "authenticated", user: &AuthenticatedUser{}, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.user != nil {
				r = r.WithContext(NewContext(r.Context(), tt.user))
			}
			w := httptest.NewRecorder()
			RequireAuth(okHandler()).ServeHTTP(w, r)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name       string
		user       *AuthenticatedUser
		wantStatus int
	}{
		{name: "no user", user: nil, wantStatus: http.StatusUnauthorized},
		{name: "missing permission", user: &AuthenticatedUser{Permissions: []string{PermAppsView}}, wantStatus: http.StatusForbidden},
		{name: "has permission", user: &AuthenticatedUser{Permissions: []string{PermAppsInstall}}, wantStatus: http.StatusOK},
		{name: "admin bypass", user: &AuthenticatedUser{IsAdmin: true}, wantStatus: http.StatusOK},
	}

	mw := RequirePermission(PermAppsInstall)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.user != nil {
				r = r.WithContext(NewContext(r.Context(), tt.user))
			}
			w := httptest.NewRecorder()
			mw(okHandler()).ServeHTTP(w, r)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequirePermissionDeniedBody(t *testing.T) {
	mw := RequirePermission(PermAppsInstall)
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r = r.WithContext(NewContext(r.Context(), &AuthenticatedUser{Permissions: []string{PermAppsView}}))
	w := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(w, r)

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	want := "Permission denied: " + PermAppsInstall + " required"
	if body["detail"] != want {
		t.Errorf("detail = %q, want %q", body["detail"], want)
	}
}

func TestRequireAppAccess(t *testing.T) {
	appName := func(*http.Request) string { return "sonarr" }
	mw := RequireAppAccess(appName)

	tests := []struct {
		name       string
		user       *AuthenticatedUser
		wantStatus int
	}{
		{name: "no user", user: nil, wantStatus: http.StatusUnauthorized},
		{name: "no access", user: &AuthenticatedUser{Permissions: []string{"app.radarr"}}, wantStatus: http.StatusForbidden},
		{name: "direct grant", user: &AuthenticatedUser{Permissions: []string{"app.sonarr"}}, wantStatus: http.StatusOK},
		{name: "wildcard grant", user: &AuthenticatedUser{Permissions: []string{AppWildcard}}, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.user != nil {
				r = r.WithContext(NewContext(r.Context(), tt.user))
			}
			w := httptest.NewRecorder()
			mw(okHandler()).ServeHTTP(w, r)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequireAppAccessDeniedBody(t *testing.T) {
	appName := func(*http.Request) string { return "qbittorrent" }
	mw := RequireAppAccess(appName)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(NewContext(r.Context(), &AuthenticatedUser{Permissions: []string{"app.radarr"}}))
	w := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(w, r)

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if want := "No access to app: qbittorrent"; body["detail"] != want {
		t.Errorf("detail = %q, want %q", body["detail"], want)
	}
}
