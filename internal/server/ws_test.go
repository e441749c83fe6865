package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/sainte-ai/emotion-engine/internal/server"
	scorermock "github.com/sainte-ai/emotion-engine/pkg/provider/scorer/mock"
)

// wsURL converts an httptest server HTTP URL to a WebSocket URL.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/emotion"
}

// dialStream opens a websocket connection to the test server's emotion
// stream.
func dialStream(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

// sendFrame marshals v and writes it as a text frame.
func sendFrame(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, _ := json.Marshal(v)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

// readFrame reads one text frame into a blendedBody-with-error shape.
func readFrame(t *testing.T, conn *websocket.Conn) blendedBody {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var body blendedBody
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("decode frame %q: %v", data, err)
	}
	return body
}

func newStreamServer(t *testing.T, sc *scorermock.Scorer) *httptest.Server {
	t.Helper()
	s := server.New(nil, sc, server.WithMetrics(testMetrics(t)))
	mux := http.NewServeMux()
	s.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStream_RawScores(t *testing.T) {
	t.Parallel()
	srv := newStreamServer(t, scorermock.New([3]float64{1, 1, 1}))
	conn := dialStream(t, srv)

	sendFrame(t, conn, map[string]any{"scores": []float64{5, 0, 0}})
	body := readFrame(t, conn)

	if body.Error != "" {
		t.Fatalf("unexpected error frame: %s", body.Error)
	}
	if body.DominantEmotion != "calm" {
		t.Errorf("dominant = %q, want calm", body.DominantEmotion)
	}
	if body.EmotionBlend != "pure calm" {
		t.Errorf("emotion_blend = %q, want %q", body.EmotionBlend, "pure calm")
	}
}

func TestStream_SmoothsAcrossFrames(t *testing.T) {
	t.Parallel()
	srv := newStreamServer(t, scorermock.New([3]float64{1, 1, 1}))
	conn := dialStream(t, srv)

	sendFrame(t, conn, map[string]any{"scores": []float64{5, 0, 0}})
	readFrame(t, conn)

	sendFrame(t, conn, map[string]any{"scores": []float64{0, 0, 5}})
	body := readFrame(t, conn)

	if body.DominantEmotion != "lit" {
		t.Errorf("dominant = %q, want lit", body.DominantEmotion)
	}
	// Retention 0.3 keeps roughly a third of the previous calm mass.
	if calm := body.EmotionVector[0]; calm < 0.25 || calm > 0.35 {
		t.Errorf("smoothed calm = %v, want ≈0.3 from the previous frame", calm)
	}
}

func TestStream_ResetClearsState(t *testing.T) {
	t.Parallel()
	srv := newStreamServer(t, scorermock.New([3]float64{1, 1, 1}))
	conn := dialStream(t, srv)

	sendFrame(t, conn, map[string]any{"scores": []float64{5, 0, 0}})
	readFrame(t, conn)

	sendFrame(t, conn, map[string]any{"reset": true})
	sendFrame(t, conn, map[string]any{"scores": []float64{0, 0, 5}})
	body := readFrame(t, conn)

	if body.EmotionBlend != "pure lit" {
		t.Errorf("emotion_blend = %q, want pure lit after reset", body.EmotionBlend)
	}
	if calm := body.EmotionVector[0]; calm > 0.05 {
		t.Errorf("calm = %v, want near 0 after reset", calm)
	}
}

func TestStream_TranscriptGoesThroughScorer(t *testing.T) {
	t.Parallel()
	sc := scorermock.New([3]float64{0, 4, 0})
	srv := newStreamServer(t, sc)
	conn := dialStream(t, srv)

	sendFrame(t, conn, map[string]any{"transcript": "i guess maybe"})
	body := readFrame(t, conn)

	if body.Error != "" {
		t.Fatalf("unexpected error frame: %s", body.Error)
	}
	if body.DominantEmotion != "guarded" {
		t.Errorf("dominant = %q, want guarded", body.DominantEmotion)
	}
	if sc.CallCount() != 1 {
		t.Errorf("scorer calls = %d, want 1", sc.CallCount())
	}
}

func TestStream_BadFrameKeepsConnectionOpen(t *testing.T) {
	t.Parallel()
	srv := newStreamServer(t, scorermock.New([3]float64{1, 1, 1}))
	conn := dialStream(t, srv)

	// Malformed JSON → error frame.
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if body := readFrame(t, conn); body.Error == "" {
		t.Error("expected an error frame for malformed JSON")
	}

	// Empty frame → error frame.
	sendFrame(t, conn, map[string]any{})
	if body := readFrame(t, conn); body.Error == "" {
		t.Error("expected an error frame for a payload-less frame")
	}

	// The stream still works afterwards.
	sendFrame(t, conn, map[string]any{"scores": []float64{5, 0, 0}})
	if body := readFrame(t, conn); body.DominantEmotion != "calm" {
		t.Errorf("dominant = %q, want calm after recovering", body.DominantEmotion)
	}
}
