package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/sainte-ai/emotion-engine/internal/blend"
	"github.com/sainte-ai/emotion-engine/pkg/audio"
)

// wsFrameTimeout bounds a single write so that one stalled client cannot pin
// a goroutine forever.
const wsFrameTimeout = 10 * time.Second

// wsRequest is a single client frame on /ws/emotion. Exactly one of Scores or
// Transcript should be set: raw scores are fed to the pipeline directly,
// transcript text goes through the scorer first. Reset clears the smoothing
// state held for the connection.
type wsRequest struct {
	Scores     *[3]float64 `json:"scores,omitempty"`
	Transcript string      `json:"transcript,omitempty"`
	Reset      bool        `json:"reset,omitempty"`
}

// wsResponse is a single server frame: either a blended result or an error.
// After an error frame the connection stays open and smoothing state is
// preserved, so a client can correct its input and continue.
type wsResponse struct {
	blendedResponse
	Error string `json:"error,omitempty"`
}

// handleEmotionStream upgrades to a websocket and streams blended emotion
// results. The previous distribution lives in-connection: each accepted frame
// is smoothed against the last successful result for this connection only.
func (s *Server) handleEmotionStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	ctx := r.Context()
	s.metrics.ActiveStreams.Add(ctx, 1)
	defer s.metrics.ActiveStreams.Add(ctx, -1)

	var previous *blend.Distribution
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			slog.Debug("websocket read ended", "err", err)
			return
		}
		if typ != websocket.MessageText {
			s.writeFrame(ctx, conn, wsResponse{Error: "expected a JSON text frame"})
			continue
		}

		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			s.writeFrame(ctx, conn, wsResponse{Error: "malformed frame: " + err.Error()})
			continue
		}
		if req.Reset {
			previous = nil
		}
		if req.Scores == nil && req.Transcript == "" {
			// A bare reset frame clears state silently; anything else without
			// a payload is a client error.
			if !req.Reset {
				s.writeFrame(ctx, conn, wsResponse{Error: "frame must carry scores or a transcript"})
			}
			continue
		}

		resp, next, err := s.streamStep(ctx, req, previous)
		if err != nil {
			s.writeFrame(ctx, conn, wsResponse{Error: err.Error()})
			continue
		}
		previous = next

		s.writeFrame(ctx, conn, resp)
	}
}

// streamStep computes one blended result for a frame, returning the response
// and the new smoothing state.
func (s *Server) streamStep(ctx context.Context, req wsRequest, previous *blend.Distribution) (wsResponse, *blend.Distribution, error) {
	var raw [3]float64
	if req.Scores != nil {
		raw = *req.Scores
	} else {
		scored, err := s.score(ctx, audio.Clip{}, req.Transcript)
		if err != nil {
			return wsResponse{}, previous, err
		}
		raw = scored
	}

	start := time.Now()
	res, err := blend.Pipeline(raw, previous, s.Tuning())
	if err != nil {
		return wsResponse{}, previous, err
	}
	s.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds())
	s.metrics.RecordClassification(ctx, string(res.Label))

	dominant, confidence := res.Distribution.Dominant()
	resp := wsResponse{
		blendedResponse: blendedResponse{
			EmotionVector:   res.Distribution.Vector(),
			DominantEmotion: dominant,
			Confidence:      confidence,
			EmotionBlend:    res.Label,
			Modulation:      res.Modulation,
		},
	}
	dist := res.Distribution
	return resp, &dist, nil
}

// writeFrame marshals v and sends it as a text frame with a bounded deadline.
func (s *Server) writeFrame(ctx context.Context, conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("websocket frame encoding failed", "err", err)
		return
	}
	wctx, cancel := context.WithTimeout(ctx, wsFrameTimeout)
	defer cancel()
	if err := conn.Write(wctx, websocket.MessageText, data); err != nil {
		slog.Debug("websocket write failed", "err", err)
	}
}
