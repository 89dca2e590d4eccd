package handler

import (
	"net/http"
	"testing"
)

func TestEditorPalette(t *testing.T) {
	s := setupTestServer(t, "")
	s.placementIDs(t)

	body := expectStatus(t, s.do(t, http.MethodGet, "/api/parts", nil, nil), http.StatusOK)
	if catalogue := body["catalogue"].([]interface{}); len(catalogue) != 3 {
		t.Fatalf("expected three definitions, got %d", len(catalogue))
	}
	if parts := body["parts"].([]interface{}); len(parts) != 2 {
		t.Fatalf("expected two records, got %d", len(parts))
	}

	expectStatus(t, s.do(t, http.MethodPost, "/api/parts/reorder", map[string]interface{}{"order": []string{"cta/banner", "heroes/hero"}}, nil), http.StatusOK)

	body = expectStatus(t, s.do(t, http.MethodGet, "/api/parts", nil, nil), http.StatusOK)
	first := body["parts"].([]interface{})[0].(map[string]interface{})
	if first["key"] != "cta/banner" {
		t.Fatalf("expected cta/banner first, got %v", first["key"])
	}

	body = expectStatus(t, s.do(t, http.MethodPost, "/api/parts/reorder", map[string]interface{}{"order": []string{"cta/banner", "nope/nope"}}, nil), http.StatusNotFound)
	if body["code"] != "part_not_found" {
		t.Fatalf("expected part_not_found, got %v", body["code"])
	}

	body = expectStatus(t, s.do(t, http.MethodGet, "/api/parts", nil, nil), http.StatusOK)
	first = body["parts"].([]interface{})[0].(map[string]interface{})
	if first["key"] != "cta/banner" {
		t.Fatalf("expected failed reorder to roll back, got %v", first["key"])
	}
}

func TestSessionLocaleRoundTrip(t *testing.T) {
	s := setupTestServer(t, "")

	expectStatus(t, s.do(t, http.MethodPut, "/api/session/locale", map[string]interface{}{"locale": " "}, nil), http.StatusBadRequest)

	w := s.do(t, http.MethodPut, "/api/session/locale", map[string]interface{}{"locale": "es"}, nil)
	body := expectStatus(t, w, http.StatusOK)
	if body["locale"] != "es" {
		t.Fatalf("expected es, got %v", body["locale"])
	}
	cookie := w.Header().Get("Set-Cookie")
	if cookie == "" {
		t.Fatal("expected a session cookie")
	}

	body = expectStatus(t, s.do(t, http.MethodGet, "/api/pages/home/parts", nil, map[string]string{"Cookie": cookie}), http.StatusOK)
	if body["locale"] != "es" {
		t.Fatalf("expected session locale, got %v", body["locale"])
	}

	body = expectStatus(t, s.do(t, http.MethodGet, "/api/pages/home/parts?locale=de", nil, map[string]string{"Cookie": cookie}), http.StatusOK)
	if body["locale"] != "de" {
		t.Fatalf("expected query to win over the session, got %v", body["locale"])
	}
}

func TestRequestIDHeader(t *testing.T) {
	s := setupTestServer(t, "")

	w := s.do(t, http.MethodGet, "/api/parts", nil, nil)
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected a generated request id")
	}

	const id = "0b9c6f3e-55c2-4a5c-9a39-2a4f2c0f3d11"
	w = s.do(t, http.MethodGet, "/api/parts", nil, map[string]string{requestIDHeader: id})
	if got := w.Header().Get(requestIDHeader); got != id {
		t.Fatalf("expected request id %s, got %s", id, got)
	}
}
