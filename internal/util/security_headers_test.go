package util

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func securityHeaderResponse(t *testing.T, mutate func(*http.Request)) http.Header {
	t.Helper()
	h := WithSecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/webui/index", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Header()
}

func TestWithSecurityHeadersBaseline(t *testing.T) {
	headers := securityHeaderResponse(t, nil)

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	}
	for name, value := range want {
		if got := headers.Get(name); got != value {
			t.Fatalf("%s = %q, want %q", name, got, value)
		}
	}
	if csp := headers.Get("Content-Security-Policy"); !strings.Contains(csp, "default-src 'self'") {
		t.Fatalf("CSP = %q, want a same-origin default-src", csp)
	}
	if hsts := headers.Get("Strict-Transport-Security"); hsts != "" {
		t.Fatalf("plain-http request got HSTS %q", hsts)
	}
}

func TestWithSecurityHeadersEnablesHSTSBehindTLSTerminator(t *testing.T) {
	headers := securityHeaderResponse(t, func(req *http.Request) {
		req.Header.Set("X-Forwarded-Proto", "https")
	})
	if headers.Get("Strict-Transport-Security") == "" {
		t.Fatalf("expected HSTS when the proxy reports https")
	}
}
