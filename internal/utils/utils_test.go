package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBytesToHex(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{in: nil, want: ""},
		{in: []byte{0x00}, want: "00"},
		{in: []byte{0x00, 0xF6, 0x32, 0x64}, want: "00F63264"},
		{in: []byte{0xAB, 0xCD, 0xEF}, want: "ABCDEF"},
	}
	for _, tt := range tests {
		if got := BytesToHex(tt.in); got != tt.want {
			t.Errorf("BytesToHex(% X) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want=%d", rec.Code, http.StatusServiceUnavailable)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("content-type=%q", ct)
	}
	if body := rec.Body.String(); body != "{\"status\":\"unhealthy\"}\n" {
		t.Fatalf("body=%q", body)
	}
}

func TestWriteText(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteText(rec, http.StatusNotFound, "text/plain; charset=utf-8", "Not found")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d want=%d", rec.Code, http.StatusNotFound)
	}
	if body := rec.Body.String(); body != "Not found" {
		t.Fatalf("body=%q", body)
	}
}
