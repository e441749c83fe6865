// Package llm provides an emotion scorer backed by a large language model
// via github.com/mozilla-ai/any-llm-go, a unified multi-provider interface
// that supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq,
// and more. The model is prompted to rate the transcript on the three
// emotion categories and must answer with a single JSON object; the scorer
// parses that object into a raw score vector.
//
// Audio content is not sent to the model — only the transcript plus a short
// energy hint derived from the clip, which keeps the request cheap while
// still letting the model weigh vocal intensity.
//
// Usage:
//
//	s, err := llm.New("ollama", "llama3.2")
//	scores, err := s.Score(ctx, clip, "i guess that could work")
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/sainte-ai/emotion-engine/pkg/audio"
	"github.com/sainte-ai/emotion-engine/pkg/provider/scorer"
)

// Compile-time interface assertion.
var _ scorer.Provider = (*Scorer)(nil)

// systemPrompt instructs the model to act as a fixed-output classifier.
// Temperature 0 plus a strict output contract keeps responses parseable.
const systemPrompt = `You rate the emotional tone of a speaker.
Rate the utterance on three qualities, each from 0.0 to 1.0:
- "calm": settled, steady, at ease
- "guarded": hesitant, uncertain, withdrawn
- "lit": energised, excited, enthusiastic
Respond with ONLY a JSON object of the form
{"calm": 0.0, "guarded": 0.0, "lit": 0.0} and nothing else.`

// Energy bands for the hint line appended to the user message.
const (
	highEnergy = 0.5
	lowEnergy  = 0.2
)

// Scorer implements scorer.Provider by asking an LLM to rate the utterance.
type Scorer struct {
	backend anyllmlib.Provider
	model   string
}

// New creates a Scorer backed by the given LLM provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "mistral", "groq", "llamacpp". model is the specific model to use (e.g.,
// "gpt-4o-mini", "llama3.2"). opts are any-llm-go configuration options
// (e.g., anyllmlib.WithAPIKey, anyllmlib.WithBaseURL); without an API key
// option the provider falls back to its environment variable.
func New(providerName, model string, opts ...anyllmlib.Option) (*Scorer, error) {
	if providerName == "" {
		return nil, fmt.Errorf("llm scorer: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("llm scorer: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("llm scorer: create %q backend: %w", providerName, err)
	}
	return &Scorer{backend: backend, model: model}, nil
}

// createBackend creates the underlying any-llm-go provider.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, mistral, groq, llamacpp", providerName)
	}
}

// Score implements scorer.Provider.
func (s *Scorer) Score(ctx context.Context, clip audio.Clip, transcript string) ([3]float64, error) {
	if len(clip.Data) == 0 && strings.TrimSpace(transcript) == "" {
		return [3]float64{}, scorer.ErrEmptyInput
	}

	temperature := 0.0
	params := anyllmlib.CompletionParams{
		Model: s.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: systemPrompt},
			{Role: "user", Content: buildUserMessage(clip, transcript)},
		},
		Temperature: &temperature,
	}

	resp, err := s.backend.Completion(ctx, params)
	if err != nil {
		return [3]float64{}, fmt.Errorf("llm scorer: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return [3]float64{}, fmt.Errorf("llm scorer: empty choices in response")
	}

	scores, err := parseScores(resp.Choices[0].Message.ContentString())
	if err != nil {
		return [3]float64{}, fmt.Errorf("llm scorer: %w", err)
	}
	return scores, nil
}

// buildUserMessage renders the transcript with an optional vocal-energy
// hint line.
func buildUserMessage(clip audio.Clip, transcript string) string {
	var b strings.Builder
	b.WriteString("Utterance: ")
	b.WriteString(strings.TrimSpace(transcript))

	if len(clip.Data) > 0 {
		hint := "moderate"
		switch energy := audio.RMS(clip.Data); {
		case energy > highEnergy:
			hint = "high"
		case energy < lowEnergy:
			hint = "low"
		}
		fmt.Fprintf(&b, "\nVocal energy: %s", hint)
	}
	return b.String()
}

// parseScores extracts the three scores from the model's reply. Code fences
// and surrounding prose are tolerated as long as a JSON object is present.
func parseScores(content string) ([3]float64, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return [3]float64{}, fmt.Errorf("no JSON object in reply %q", content)
	}

	var parsed struct {
		Calm    float64 `json:"calm"`
		Guarded float64 `json:"guarded"`
		Lit     float64 `json:"lit"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err != nil {
		return [3]float64{}, fmt.Errorf("parse reply: %w", err)
	}
	return [3]float64{parsed.Calm, parsed.Guarded, parsed.Lit}, nil
}
