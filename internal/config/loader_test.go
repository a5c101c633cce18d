package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/tesparr/dragoman/internal/config"
	"github.com/tesparr/dragoman/internal/transcript"
)

const validYAML = `
server:
  listen_addr: ":9000"
  log_level: debug
asterisk:
  url: "http://localhost:8088/ari"
  username: asterisk
  password: secret
  app_name: dragoman
  external_media_host: "media.local:8090"
redis:
  addr: "localhost:6379"
pipeline:
  pivot_language: en
  direction: a_to_b
providers:
  stt:
    name: whisper
    base_url: "http://localhost:8081"
  langid:
    name: fasttext
    base_url: "http://localhost:8082"
  translate:
    name: nllb
    base_url: "http://localhost:8083"
  tts:
    name: coqui
    base_url: "http://localhost:5002"
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}

	if cfg.Server.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q, want :9000", cfg.Server.ListenAddr)
	}
	if cfg.Asterisk.AppName != "dragoman" {
		t.Errorf("AppName = %q, want dragoman", cfg.Asterisk.AppName)
	}
	if cfg.Pipeline.Direction != transcript.DirectionAToB {
		t.Errorf("Direction = %q, want a_to_b", cfg.Pipeline.Direction)
	}
	if cfg.Providers.Translate.Name != "nllb" {
		t.Errorf("Translate.Name = %q, want nllb", cfg.Providers.Translate.Name)
	}
}

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}

	if cfg.Redis.CallTTL != 24*time.Hour {
		t.Errorf("CallTTL = %v, want 24h", cfg.Redis.CallTTL)
	}
	if cfg.Redis.TranscriptTTL != 7*24*time.Hour {
		t.Errorf("TranscriptTTL = %v, want 168h", cfg.Redis.TranscriptTTL)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.Audio.ChunkBytes != 32000 {
		t.Errorf("ChunkBytes = %d, want 32000", cfg.Audio.ChunkBytes)
	}
	if cfg.Asterisk.RetryInterval != 5*time.Second {
		t.Errorf("RetryInterval = %v, want 5s", cfg.Asterisk.RetryInterval)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	yaml := validYAML + "\nunknown_section:\n  foo: bar\n"
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Error("LoadFromReader() error = nil, want error for unknown field")
	}
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	cfg := &config.Config{}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("Validate() error = nil, want joined errors")
	}
	for _, want := range []string{
		"asterisk.url",
		"asterisk.app_name",
		"asterisk.external_media_host",
		"pipeline.pivot_language",
		"providers.stt.name",
		"providers.langid.name",
		"providers.translate.name",
		"providers.tts.name",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q: %v", want, err)
		}
	}
}

func TestValidate_InvalidDirection(t *testing.T) {
	yaml := strings.Replace(validYAML, "direction: a_to_b", "direction: sideways", 1)
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "pipeline.direction") {
		t.Errorf("LoadFromReader() error = %v, want pipeline.direction error", err)
	}
}

func TestValidate_DirectionDefaultsToForward(t *testing.T) {
	yaml := strings.Replace(validYAML, "direction: a_to_b", "", 1)
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	if cfg.Pipeline.Direction != transcript.DirectionAToB {
		t.Errorf("Direction = %q, want default a_to_b", cfg.Pipeline.Direction)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	yaml := strings.Replace(validYAML, "log_level: debug", "log_level: loud", 1)
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "server.log_level") {
		t.Errorf("LoadFromReader() error = %v, want server.log_level error", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load("/does/not/exist.yaml"); err == nil {
		t.Error("Load() error = nil, want error for missing file")
	}
}
