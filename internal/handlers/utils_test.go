package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestWriteJSONResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSONResponse(rr, http.StatusOK, map[string]string{"ok": "true"})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content-type: %s", ct)
	}
	if body := rr.Body.String(); body == "" {
		t.Fatalf("empty body")
	}
}

func TestWriteErrorsResponseNeverNull(t *testing.T) {
	rr := httptest.NewRecorder()
	writeErrorsResponse(rr, http.StatusUnprocessableEntity, nil)
	if got := rr.Body.String(); got != "{\"errors\":[]}\n" {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestPathID(t *testing.T) {
	cases := map[string]bool{"12": true, "0": false, "-3": false, "abc": false, "": false}
	for raw, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", raw)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		if _, ok := pathID(req, "id"); ok != want {
			t.Fatalf("pathID(%q) ok=%v, want %v", raw, ok, want)
		}
	}
}

func TestQueryFlag(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?a=true&b=1&c=yes", nil)
	if !queryFlag(req, "a") || !queryFlag(req, "b") || queryFlag(req, "c") || queryFlag(req, "d") {
		t.Fatalf("unexpected flag parsing")
	}
}
