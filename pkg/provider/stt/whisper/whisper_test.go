package whisper

import (
	"context"
	"encoding/binary"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew_RequiresServerURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty serverURL")
	}
}

func TestRecognize_PostsWAVAndParsesText(t *testing.T) {
	var gotLanguage string
	var gotWAV []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("path = %q, want /inference", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotLanguage = r.FormValue("language")
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		gotWAV, _ = io.ReadAll(f)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": " hello there \n"}`))
	}))
	defer srv.Close()

	p, err := New(srv.URL, WithLanguage("en"), WithSampleRate(16000))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	text, err := p.Recognize(context.Background(), make([]float32, 16000))
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if text != "hello there" {
		t.Errorf("text = %q, want %q (trimmed)", text, "hello there")
	}
	if gotLanguage != "en" {
		t.Errorf("language field = %q, want en", gotLanguage)
	}
	if len(gotWAV) != 44+16000*2 {
		t.Errorf("wav len = %d, want %d", len(gotWAV), 44+16000*2)
	}
	if got := binary.LittleEndian.Uint32(gotWAV[24:28]); got != 16000 {
		t.Errorf("wav sample rate = %d, want 16000", got)
	}
}

func TestRecognize_EmptyInputShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("server must not be called for empty input")
	}))
	defer srv.Close()

	p, _ := New(srv.URL)
	text, err := p.Recognize(context.Background(), nil)
	if err != nil || text != "" {
		t.Fatalf("Recognize = (%q, %v), want (\"\", nil)", text, err)
	}
}

func TestRecognize_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, _ := New(srv.URL)
	if _, err := p.Recognize(context.Background(), make([]float32, 160)); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}
