// Package config provides the configuration schema, loader, and provider
// registry for the Dragoman call translation bridge.
package config

import (
	"time"

	"github.com/tesparr/dragoman/internal/transcript"
)

// LogLevel controls log verbosity for the Dragoman server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Dragoman.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Asterisk  AsteriskConfig  `yaml:"asterisk"`
	Redis     RedisConfig     `yaml:"redis"`
	Audio     AudioConfig     `yaml:"audio"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig holds network and logging settings for the HTTP server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AsteriskConfig holds the ARI connection and call-control settings.
type AsteriskConfig struct {
	// URL is the ARI REST root (e.g., "http://localhost:8088/ari").
	URL string `yaml:"url"`

	// WebsocketURL is the ARI websocket root for the event stream (e.g.,
	// "ws://localhost:8088/ari"). Defaults to URL with the scheme swapped.
	WebsocketURL string `yaml:"websocket_url"`

	// Username and Password are the ARI basic-auth credentials.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// AppName is the Stasis application name registered in the dialplan.
	AppName string `yaml:"app_name"`

	// ExternalMediaHost is the host:port Asterisk streams external media to.
	ExternalMediaHost string `yaml:"external_media_host"`

	// Endpoint is the PJSIP endpoint template for originated calls
	// (e.g., "PJSIP/%s" where %s is the destination number).
	Endpoint string `yaml:"endpoint"`

	// RetryInterval spaces event stream reconnection attempts. Default 5s.
	RetryInterval time.Duration `yaml:"retry_interval"`

	// RetryMaxAttempts caps reconnection attempts. 0 means retry forever.
	RetryMaxAttempts int `yaml:"retry_max_attempts"`
}

// RedisConfig holds connection and retention settings for the call store.
type RedisConfig struct {
	// Addr is the Redis host:port. Default "localhost:6379".
	Addr string `yaml:"addr"`

	// Password authenticates against Redis; empty means no auth.
	Password string `yaml:"password"`

	// DB selects the Redis logical database.
	DB int `yaml:"db"`

	// CallTTL is how long call records survive after their last write.
	// Default 24h.
	CallTTL time.Duration `yaml:"call_ttl"`

	// TranscriptTTL is how long transcripts survive. Default 168h (7 days).
	TranscriptTTL time.Duration `yaml:"transcript_ttl"`
}

// AudioConfig describes the PCM format of the duplex media channel.
type AudioConfig struct {
	// SampleRate in Hz. Default 16000.
	SampleRate int `yaml:"sample_rate"`

	// ChunkBytes is the buffer threshold that triggers one pipeline run.
	// Default 32000 (one second of 16 kHz s16le mono).
	ChunkBytes int `yaml:"chunk_bytes"`
}

// PipelineConfig fixes the translation topology for this deployment.
type PipelineConfig struct {
	// PivotLanguage is the common intermediate language code all
	// translations go through (e.g., "en").
	PivotLanguage string `yaml:"pivot_language"`

	// Direction selects which party's speech is translated toward the
	// pivot: "a_to_b" (forward) or "b_to_a" (reverse).
	Direction transcript.Direction `yaml:"direction"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	STT       ProviderEntry `yaml:"stt"`
	LangID    ProviderEntry `yaml:"langid"`
	Translate ProviderEntry `yaml:"translate"`
	TTS       ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "whisper",
	// "coqui").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL is the provider's endpoint, usually a local sidecar
	// (e.g., "http://localhost:8080").
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above. Values may be strings, numbers, booleans,
	// or nested maps.
	Options map[string]any `yaml:"options"`
}

// OptionString reads a string value from Options, with a default.
func (e ProviderEntry) OptionString(key, def string) string {
	if v, ok := e.Options[key].(string); ok && v != "" {
		return v
	}
	return def
}

// OptionFloat reads a numeric value from Options, with a default. YAML
// decodes untyped numbers as int or float64 depending on lexical form.
func (e ProviderEntry) OptionFloat(key string, def float64) float64 {
	switch v := e.Options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}
