// Package remote provides an emotion scorer backed by an external fusion
// classifier served over HTTP — typically a model server that encodes the
// audio and transcript itself and returns raw scores.
//
// The server contract is a single endpoint:
//
//	POST {baseURL}/score
//
// with a multipart form carrying the clip as a WAV file under "file" and the
// transcript under "transcript". The response is a JSON object:
//
//	{"scores": [calm, guarded, lit]}
//
// Usage:
//
//	s := remote.New("http://localhost:8600",
//	    remote.WithTimeout(15*time.Second),
//	)
//	scores, err := s.Score(ctx, clip, transcript)
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sainte-ai/emotion-engine/pkg/audio"
	"github.com/sainte-ai/emotion-engine/pkg/provider/scorer"
)

// Compile-time interface assertion.
var _ scorer.Provider = (*Scorer)(nil)

const (
	scoreEndpoint  = "/score"
	defaultTimeout = 30 * time.Second

	// maxErrorBody caps how much of an error response body is read for the
	// error message.
	maxErrorBody = 2048
)

// Option is a functional option for configuring a [Scorer].
type Option func(*Scorer)

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(s *Scorer) {
		s.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client, primarily for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scorer) {
		s.httpClient = c
	}
}

// Scorer implements scorer.Provider against a remote classifier server.
// Safe for concurrent use.
type Scorer struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Scorer that connects to the classifier server at baseURL
// (e.g., "http://localhost:8600").
func New(baseURL string, opts ...Option) *Scorer {
	s := &Scorer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Score implements scorer.Provider. The clip is re-encoded as WAV for the
// upload; the transcript travels as a plain form field.
func (s *Scorer) Score(ctx context.Context, clip audio.Clip, transcript string) ([3]float64, error) {
	if len(clip.Data) == 0 && strings.TrimSpace(transcript) == "" {
		return [3]float64{}, scorer.ErrEmptyInput
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if len(clip.Data) > 0 {
		fw, err := mw.CreateFormFile("file", "audio.wav")
		if err != nil {
			return [3]float64{}, fmt.Errorf("remote scorer: create form file: %w", err)
		}
		if _, err := fw.Write(audio.EncodeWAV(clip.Data, clip.SampleRate, clip.Channels)); err != nil {
			return [3]float64{}, fmt.Errorf("remote scorer: write wav data: %w", err)
		}
	}
	if err := mw.WriteField("transcript", transcript); err != nil {
		return [3]float64{}, fmt.Errorf("remote scorer: write transcript field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return [3]float64{}, fmt.Errorf("remote scorer: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+scoreEndpoint, &body)
	if err != nil {
		return [3]float64{}, fmt.Errorf("remote scorer: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return [3]float64{}, fmt.Errorf("remote scorer: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return [3]float64{}, fmt.Errorf("remote scorer: server returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var parsed struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return [3]float64{}, fmt.Errorf("remote scorer: decode response: %w", err)
	}
	if len(parsed.Scores) != 3 {
		return [3]float64{}, fmt.Errorf("remote scorer: expected 3 scores, got %d", len(parsed.Scores))
	}
	return [3]float64{parsed.Scores[0], parsed.Scores[1], parsed.Scores[2]}, nil
}
