package nllb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew_RequiresServerURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty serverURL")
	}
}

func TestTranslate_SendsPairAndParsesResult(t *testing.T) {
	var got struct {
		Text   string `json:"text"`
		Source string `json:"source"`
		Target string `json:"target"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			t.Errorf("path = %q, want /translate", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"translation": "namaste"})
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := p.Translate(context.Background(), "hello", "english", "hi_en")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "namaste" {
		t.Errorf("out = %q, want namaste", out)
	}
	if got.Text != "hello" || got.Source != "english" || got.Target != "hi_en" {
		t.Errorf("request = %+v", got)
	}
}

func TestTranslate_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, _ := New(srv.URL)
	if _, err := p.Translate(context.Background(), "hello", "english", "hi_en"); err == nil {
		t.Fatal("expected error for HTTP 503")
	}
}
