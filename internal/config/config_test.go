package config_test

import (
	"errors"
	"testing"

	"github.com/tesparr/dragoman/internal/config"
	"github.com/tesparr/dragoman/pkg/provider/langid"
	langidmock "github.com/tesparr/dragoman/pkg/provider/langid/mock"
	"github.com/tesparr/dragoman/pkg/provider/stt"
	sttmock "github.com/tesparr/dragoman/pkg/provider/stt/mock"
	"github.com/tesparr/dragoman/pkg/provider/translate"
	translatemock "github.com/tesparr/dragoman/pkg/provider/translate/mock"
	"github.com/tesparr/dragoman/pkg/provider/tts"
	ttsmock "github.com/tesparr/dragoman/pkg/provider/tts/mock"
)

func TestLogLevel_IsValid(t *testing.T) {
	tests := []struct {
		level config.LogLevel
		want  bool
	}{
		{config.LogDebug, true},
		{config.LogInfo, true},
		{config.LogWarn, true},
		{config.LogError, true},
		{"verbose", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := tc.level.IsValid(); got != tc.want {
			t.Errorf("LogLevel(%q).IsValid() = %v, want %v", tc.level, got, tc.want)
		}
	}
}

func TestProviderEntry_Options(t *testing.T) {
	e := config.ProviderEntry{Options: map[string]any{
		"speaker":        "p225",
		"min_confidence": 0.7,
		"sample_rate":    16000,
		"empty":          "",
	}}

	if got := e.OptionString("speaker", "default"); got != "p225" {
		t.Errorf(`OptionString("speaker") = %q, want p225`, got)
	}
	if got := e.OptionString("missing", "default"); got != "default" {
		t.Errorf(`OptionString("missing") = %q, want default`, got)
	}
	if got := e.OptionString("empty", "default"); got != "default" {
		t.Errorf(`OptionString("empty") = %q, want default`, got)
	}
	if got := e.OptionFloat("min_confidence", 0.5); got != 0.7 {
		t.Errorf(`OptionFloat("min_confidence") = %v, want 0.7`, got)
	}
	if got := e.OptionFloat("sample_rate", 0); got != 16000 {
		t.Errorf(`OptionFloat("sample_rate") = %v, want 16000`, got)
	}
	if got := e.OptionFloat("missing", 0.5); got != 0.5 {
		t.Errorf(`OptionFloat("missing") = %v, want 0.5`, got)
	}
}

func TestRegistry_CreateRegistered(t *testing.T) {
	reg := config.NewRegistry()
	reg.RegisterSTT("mock", func(config.ProviderEntry) (stt.Provider, error) {
		return &sttmock.Provider{}, nil
	})
	reg.RegisterLangID("mock", func(config.ProviderEntry) (langid.Provider, error) {
		return &langidmock.Provider{}, nil
	})
	reg.RegisterTranslate("mock", func(config.ProviderEntry) (translate.Provider, error) {
		return &translatemock.Provider{}, nil
	})
	reg.RegisterTTS("mock", func(config.ProviderEntry) (tts.Provider, error) {
		return ttsmock.New(nil), nil
	})

	entry := config.ProviderEntry{Name: "mock"}
	if _, err := reg.CreateSTT(entry); err != nil {
		t.Errorf("CreateSTT() error = %v", err)
	}
	if _, err := reg.CreateLangID(entry); err != nil {
		t.Errorf("CreateLangID() error = %v", err)
	}
	if _, err := reg.CreateTranslate(entry); err != nil {
		t.Errorf("CreateTranslate() error = %v", err)
	}
	if _, err := reg.CreateTTS(entry); err != nil {
		t.Errorf("CreateTTS() error = %v", err)
	}
}

func TestRegistry_CreateUnregistered(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateSTT(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateSTT() error = %v, want ErrProviderNotRegistered", err)
	}
	_, err = reg.CreateTranslate(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateTranslate() error = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_FactoryReceivesEntry(t *testing.T) {
	reg := config.NewRegistry()
	var got config.ProviderEntry
	reg.RegisterTTS("coqui", func(e config.ProviderEntry) (tts.Provider, error) {
		got = e
		return ttsmock.New(nil), nil
	})

	entry := config.ProviderEntry{Name: "coqui", BaseURL: "http://localhost:5002", Model: "xtts"}
	if _, err := reg.CreateTTS(entry); err != nil {
		t.Fatalf("CreateTTS() error = %v", err)
	}
	if got.BaseURL != "http://localhost:5002" || got.Model != "xtts" {
		t.Errorf("factory received %+v, want the original entry", got)
	}
}
