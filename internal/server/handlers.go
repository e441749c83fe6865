package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/sainte-ai/emotion-engine/internal/blend"
	"github.com/sainte-ai/emotion-engine/internal/observe"
	"github.com/sainte-ai/emotion-engine/pkg/audio"
)

// errMalformedRequest indicates an unparseable multipart body.
var errMalformedRequest = errors.New("server: malformed multipart request")

// transcribeResponse is the JSON body for POST /api/transcribe.
type transcribeResponse struct {
	Transcript      string  `json:"transcript"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// emotionResponse is the JSON body for POST /api/emotion.
type emotionResponse struct {
	Emotion    blend.Category   `json:"emotion"`
	Confidence float64          `json:"confidence"`
	Modulation blend.Modulation `json:"modulation"`
}

// blendedResponse is the JSON body for POST /api/emotion/blended and for
// websocket result frames.
type blendedResponse struct {
	EmotionVector   [3]float64       `json:"emotion_vector"`
	DominantEmotion blend.Category   `json:"dominant_emotion"`
	Confidence      float64          `json:"confidence"`
	EmotionBlend    blend.Label      `json:"emotion_blend"`
	Modulation      blend.Modulation `json:"modulation"`
}

// handleTranscribe accepts a multipart WAV upload under the "audio" field and
// returns its transcript.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no stt provider configured"})
		return
	}

	clip, ok, err := s.formClip(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: `missing "audio" file field`})
		return
	}

	ctx, span := observe.StartSpan(r.Context(), "stt.transcribe")
	start := time.Now()
	text, err := s.transcriber.Transcribe(ctx, clip)
	s.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	span.End()
	if err != nil {
		writeProviderError(w, fmt.Errorf("transcription failed: %w", err))
		return
	}

	writeJSON(w, http.StatusOK, transcribeResponse{
		Transcript:      text,
		DurationSeconds: clip.Duration(),
	})
}

// handleEmotion classifies a multipart WAV + transcript into a discrete
// emotion with modulation parameters.
func (s *Server) handleEmotion(w http.ResponseWriter, r *http.Request) {
	clip, _, err := s.formClip(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	transcript := r.FormValue("transcript")

	raw, err := s.score(r.Context(), clip, transcript)
	if err != nil {
		writeProviderError(w, err)
		return
	}

	ctx := r.Context()
	start := time.Now()
	dist, err := blend.Normalize(raw, s.Tuning().Sharpness)
	if err != nil {
		writeError(w, err)
		return
	}
	mod, err := blend.MapDiscrete(dist)
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds())

	dominant, confidence := dist.Dominant()
	s.metrics.RecordClassification(ctx, string(dominant))

	writeJSON(w, http.StatusOK, emotionResponse{
		Emotion:    dominant,
		Confidence: confidence,
		Modulation: mod,
	})
}

// handleEmotionBlended classifies a multipart WAV + transcript into a blended
// emotion vector. When a session_id form field is present and a session store
// is configured, the previous distribution for that session is used for
// temporal smoothing and the result is stored back.
func (s *Server) handleEmotionBlended(w http.ResponseWriter, r *http.Request) {
	clip, _, err := s.formClip(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	transcript := r.FormValue("transcript")
	sessionID := r.FormValue("session_id")

	raw, err := s.score(r.Context(), clip, transcript)
	if err != nil {
		writeProviderError(w, err)
		return
	}

	ctx := r.Context()
	var previous *blend.Distribution
	if sessionID != "" && s.sessions != nil {
		prev, found, err := s.sessions.Load(ctx, sessionID)
		switch {
		case err != nil:
			// Degrade to unsmoothed output rather than failing the request.
			observe.Logger(ctx).Warn("session load failed", "session_id", sessionID, "err", err)
		case found:
			previous = &prev
		}
	}

	start := time.Now()
	res, err := blend.Pipeline(raw, previous, s.Tuning())
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds())

	if sessionID != "" && s.sessions != nil {
		if err := s.sessions.Save(ctx, sessionID, res.Distribution); err != nil {
			observe.Logger(ctx).Warn("session save failed", "session_id", sessionID, "err", err)
		}
	}

	s.metrics.RecordClassification(ctx, string(res.Label))

	dominant, confidence := res.Distribution.Dominant()
	writeJSON(w, http.StatusOK, blendedResponse{
		EmotionVector:   res.Distribution.Vector(),
		DominantEmotion: dominant,
		Confidence:      confidence,
		EmotionBlend:    res.Label,
		Modulation:      res.Modulation,
	})
}

// score invokes the scorer provider with latency recording and a span.
func (s *Server) score(ctx context.Context, clip audio.Clip, transcript string) ([3]float64, error) {
	ctx, span := observe.StartSpan(ctx, "scorer.score")
	defer span.End()

	start := time.Now()
	raw, err := s.scorer.Score(ctx, clip, transcript)
	s.metrics.ScoreDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("status", scoreStatus(err))))
	if err != nil {
		return [3]float64{}, fmt.Errorf("emotion scoring failed: %w", err)
	}
	return raw, nil
}

func scoreStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// formClip parses the multipart body and decodes the "audio" file field as a
// WAV clip. Returns ok=false without error when the field is absent, so that
// transcript-only emotion requests are accepted.
func (s *Server) formClip(w http.ResponseWriter, r *http.Request) (audio.Clip, bool, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		return audio.Clip{}, false, fmt.Errorf("%w: %v", errMalformedRequest, err)
	}

	file, _, err := r.FormFile("audio")
	if errors.Is(err, http.ErrMissingFile) {
		return audio.Clip{}, false, nil
	}
	if err != nil {
		return audio.Clip{}, false, fmt.Errorf("%w: %v", errMalformedRequest, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return audio.Clip{}, false, fmt.Errorf("%w: %v", errMalformedRequest, err)
	}
	clip, err := audio.DecodeWAV(data)
	if err != nil {
		return audio.Clip{}, false, err
	}
	return clip, true, nil
}

// writeProviderError is like writeError but treats unclassified failures as
// upstream provider problems (502) rather than internal errors.
func writeProviderError(w http.ResponseWriter, err error) {
	if isBadInput(err) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
}
