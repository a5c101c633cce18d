package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tesparr/dragoman/internal/transcript"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":       {"whisper"},
	"langid":    {"fasttext"},
	"translate": {"nllb", "openai"},
	"tts":       {"coqui"},
}

// Defaults applied by [Validate] when fields are unset.
const (
	DefaultListenAddr    = ":8080"
	DefaultRedisAddr     = "localhost:6379"
	DefaultCallTTL       = 24 * time.Hour
	DefaultTranscriptTTL = 7 * 24 * time.Hour
	DefaultSampleRate    = 16000
	DefaultChunkBytes    = 32000
	DefaultRetryInterval = 5 * time.Second
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values, applying
// defaults for unset fields. It returns a joined error listing all
// validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Asterisk
	if cfg.Asterisk.URL == "" {
		errs = append(errs, errors.New("asterisk.url is required"))
	}
	if cfg.Asterisk.AppName == "" {
		errs = append(errs, errors.New("asterisk.app_name is required"))
	}
	if cfg.Asterisk.ExternalMediaHost == "" {
		errs = append(errs, errors.New("asterisk.external_media_host is required"))
	}
	if cfg.Asterisk.RetryInterval <= 0 {
		cfg.Asterisk.RetryInterval = DefaultRetryInterval
	}
	if cfg.Asterisk.RetryMaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("asterisk.retry_max_attempts %d is negative; use 0 for unlimited", cfg.Asterisk.RetryMaxAttempts))
	}

	// Redis
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.CallTTL <= 0 {
		cfg.Redis.CallTTL = DefaultCallTTL
	}
	if cfg.Redis.TranscriptTTL <= 0 {
		cfg.Redis.TranscriptTTL = DefaultTranscriptTTL
	}
	if cfg.Redis.TranscriptTTL < cfg.Redis.CallTTL {
		slog.Warn("redis.transcript_ttl is shorter than redis.call_ttl; transcripts will expire before their call records",
			"transcript_ttl", cfg.Redis.TranscriptTTL,
			"call_ttl", cfg.Redis.CallTTL,
		)
	}

	// Audio
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = DefaultSampleRate
	}
	if cfg.Audio.ChunkBytes <= 0 {
		cfg.Audio.ChunkBytes = DefaultChunkBytes
	}

	// Pipeline
	if cfg.Pipeline.PivotLanguage == "" {
		errs = append(errs, errors.New("pipeline.pivot_language is required"))
	}
	if cfg.Pipeline.Direction == "" {
		cfg.Pipeline.Direction = transcript.DirectionAToB
	} else if !cfg.Pipeline.Direction.IsValid() {
		errs = append(errs, fmt.Errorf("pipeline.direction %q is invalid; valid values: a_to_b, b_to_a", cfg.Pipeline.Direction))
	}

	// Providers — every pipeline stage needs one.
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if cfg.Providers.LangID.Name == "" {
		errs = append(errs, errors.New("providers.langid.name is required"))
	}
	if cfg.Providers.Translate.Name == "" {
		errs = append(errs, errors.New("providers.translate.name is required"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts.name is required"))
	}
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("langid", cfg.Providers.LangID.Name)
	validateProviderName("translate", cfg.Providers.Translate.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
