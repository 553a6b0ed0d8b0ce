package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// okHandler answers 200 "ok".
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok")) //nolint:errcheck
})

func call(t *testing.T, h http.Handler, header, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPIKey_ModeNone_PassesThrough(t *testing.T) {
	h := APIKey("none", "X-API-Key", "secret")(okHandler)
	// No key on the request; passes because mode != "apikey".
	if rec := call(t, h, "X-API-Key", ""); rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
}

func TestAPIKey_EmptyKey_PassesThrough(t *testing.T) {
	// key="" means auth is not configured → allow all.
	h := APIKey("apikey", "X-API-Key", "")(okHandler)
	if rec := call(t, h, "X-API-Key", ""); rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
}

func TestAPIKey_CorrectKey_Passes(t *testing.T) {
	h := APIKey("apikey", "X-API-Key", "supersecret")(okHandler)
	rec := call(t, h, "X-API-Key", "supersecret")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body: got %q, want ok", rec.Body.String())
	}
}

func TestAPIKey_WrongKey_Unauthorized(t *testing.T) {
	h := APIKey("apikey", "X-API-Key", "supersecret")(okHandler)
	rec := call(t, h, "X-API-Key", "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type: got %q", ct)
	}
}

func TestAPIKey_MissingHeader_Unauthorized(t *testing.T) {
	h := APIKey("apikey", "X-API-Key", "supersecret")(okHandler)
	if rec := call(t, h, "X-API-Key", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
}

func TestAPIKey_CustomHeader(t *testing.T) {
	h := APIKey("apikey", "X-Team-Token", "mytoken")(okHandler)
	if rec := call(t, h, "X-Team-Token", "mytoken"); rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
	if rec := call(t, h, "X-API-Key", "mytoken"); rec.Code != http.StatusUnauthorized {
		t.Errorf("key in the wrong header: got %d, want 401", rec.Code)
	}
}
