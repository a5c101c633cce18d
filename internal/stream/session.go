// Package stream implements the per-call audio session orchestrator: one
// session per call id, attached to the duplex media channel, running the
// recognition → language identification → translation → synthesis pipeline
// over threshold-buffered PCM chunks.
//
// Within a session the receive loop and the pipeline are never concurrent:
// the loop does not read the next frame while a pipeline run is in flight.
// This is the system's sole backpressure mechanism — a slow provider stalls
// reads on that session's channel instead of buffering unbounded audio.
package stream

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/tesparr/dragoman/internal/call"
	"github.com/tesparr/dragoman/internal/observe"
	"github.com/tesparr/dragoman/internal/transcript"
	"github.com/tesparr/dragoman/pkg/audio"
	"github.com/tesparr/dragoman/pkg/provider/langid"
	"github.com/tesparr/dragoman/pkg/provider/stt"
	"github.com/tesparr/dragoman/pkg/provider/translate"
	"github.com/tesparr/dragoman/pkg/provider/tts"
)

// DefaultChunkBytes is one second of 16 kHz signed 16-bit mono PCM.
const DefaultChunkBytes = 32000

// DefaultSampleRate matches the slin16 external media format.
const DefaultSampleRate = 16000

// MediaChannel is the duplex audio stream of one call. Read returns the next
// inbound binary frame; frame boundaries carry no meaning, only cumulative
// byte count does. Write sends synthesized audio back to the switch.
type MediaChannel interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, pcm []byte) error
}

// Pipeline bundles the four capability providers a session drives.
type Pipeline struct {
	STT       stt.Provider
	LangID    langid.Provider
	Translate translate.Provider
	TTS       tts.Provider
}

// session owns the buffering and pipeline state of one call. It is used by
// exactly one goroutine, so no locking is needed.
type session struct {
	callID     string
	direction  transcript.Direction
	pivotLang  string
	chunkBytes int
	sampleRate int

	pipeline Pipeline
	registry *call.Registry
	recorder *transcript.Recorder
	metrics  *observe.Metrics
	log      *slog.Logger

	buf []byte

	// sourceLang is set by the first successful language detection and is
	// immutable for the rest of the session.
	sourceLang string
}

// run reads frames until the channel closes or ctx is cancelled. The error
// from the final read is returned so the caller can distinguish shutdown
// from channel failure; both end the session.
func (s *session) run(ctx context.Context, ch MediaChannel) error {
	for {
		frame, err := ch.Read(ctx)
		if err != nil {
			return err
		}
		s.buf = append(s.buf, frame...)
		if len(s.buf) < s.chunkBytes {
			continue
		}
		// Full drain: everything accumulated goes into one run.
		chunk := s.buf
		s.buf = nil
		s.process(ctx, ch, chunk)
	}
}

// process runs the pipeline over one drained chunk. Any stage failure drops
// the chunk and leaves the session running.
func (s *session) process(ctx context.Context, ch MediaChannel, chunk []byte) {
	start := time.Now()
	defer func() {
		s.metrics.ChunkDuration.Record(ctx, time.Since(start).Seconds())
	}()

	samples := audio.Normalize(chunk)

	text, err := s.timedRecognize(ctx, samples)
	if err != nil {
		s.stageFailed(ctx, "stt", err)
		return
	}
	if text == "" {
		s.metrics.RecordChunk(ctx, "silent")
		return
	}

	if s.sourceLang == "" {
		lang, err := s.timedDetect(ctx, text)
		if err != nil {
			s.stageFailed(ctx, "langid", err)
			return
		}
		s.sourceLang = lang
		if err := s.registry.SetLanguage(ctx, s.callID, lang); err != nil {
			s.log.Error("persist detected language failed", "err", err)
		}
		s.log.Info("language detected", "language", lang)
	}

	// The pivot language sits on one side of every translation; direction
	// picks which side the detected language takes.
	var sourceLang, targetLang string
	switch s.direction {
	case transcript.DirectionBToA:
		sourceLang, targetLang = s.pivotLang, s.sourceLang
	default:
		sourceLang, targetLang = s.sourceLang, s.pivotLang
	}

	translated, err := s.timedTranslate(ctx, text, sourceLang, targetLang)
	if err != nil {
		s.stageFailed(ctx, "translate", err)
		return
	}

	synth, err := s.timedSynthesize(ctx, translated, targetLang)
	if err != nil {
		s.stageFailed(ctx, "tts", err)
		return
	}
	if len(synth) > 0 {
		if err := ch.Write(ctx, synth); err != nil {
			s.stageFailed(ctx, "write", err)
			return
		}
	}

	entry := transcript.Entry{
		Timestamp:  time.Now().UTC(),
		Direction:  s.direction,
		Original:   text,
		Translated: translated,
	}
	if err := s.recorder.Append(ctx, s.callID, entry); err != nil {
		s.log.Error("append transcript failed", "err", err)
	}
	s.metrics.RecordChunk(ctx, "ok")
	s.log.Debug("chunk relayed",
		"audio", audio.Duration(chunk, s.sampleRate),
		"took", time.Since(start))
}

func (s *session) stageFailed(ctx context.Context, stage string, err error) {
	s.log.Error("pipeline stage failed, chunk dropped", "stage", stage, "err", err)
	s.metrics.RecordPipelineError(ctx, stage)
	s.metrics.RecordChunk(ctx, "error")
}

func (s *session) timedRecognize(ctx context.Context, samples []float32) (string, error) {
	start := time.Now()
	text, err := s.pipeline.STT.Recognize(ctx, samples)
	s.metrics.STTDuration.Record(ctx, time.Since(start).Seconds(), stageAttrs("stt"))
	return text, err
}

func (s *session) timedDetect(ctx context.Context, text string) (string, error) {
	start := time.Now()
	lang, err := s.pipeline.LangID.Detect(ctx, text)
	s.metrics.LangIDDuration.Record(ctx, time.Since(start).Seconds(), stageAttrs("langid"))
	return lang, err
}

func (s *session) timedTranslate(ctx context.Context, text, src, tgt string) (string, error) {
	start := time.Now()
	out, err := s.pipeline.Translate.Translate(ctx, text, src, tgt)
	s.metrics.TranslateDuration.Record(ctx, time.Since(start).Seconds(), stageAttrs("translate"))
	return out, err
}

func (s *session) timedSynthesize(ctx context.Context, text, lang string) ([]byte, error) {
	start := time.Now()
	out, err := s.pipeline.TTS.Synthesize(ctx, text, lang)
	s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds(), stageAttrs("tts"))
	return out, err
}

func stageAttrs(stage string) metric.RecordOption {
	return metric.WithAttributes(observe.Attr("stage", stage))
}
