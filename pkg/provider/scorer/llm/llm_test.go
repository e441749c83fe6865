package llm

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/sainte-ai/emotion-engine/pkg/audio"
)

func TestParseScores(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    [3]float64
		wantErr bool
	}{
		{
			name:    "bare object",
			content: `{"calm": 0.7, "guarded": 0.2, "lit": 0.1}`,
			want:    [3]float64{0.7, 0.2, 0.1},
		},
		{
			name:    "fenced",
			content: "```json\n{\"calm\": 0.1, \"guarded\": 0.6, \"lit\": 0.3}\n```",
			want:    [3]float64{0.1, 0.6, 0.3},
		},
		{
			name:    "surrounding prose",
			content: `Sure! Here is my rating: {"calm": 0.25, "guarded": 0.25, "lit": 0.5} Hope that helps.`,
			want:    [3]float64{0.25, 0.25, 0.5},
		},
		{
			name:    "no json",
			content: "calm, I think",
			wantErr: true,
		},
		{
			name:    "malformed json",
			content: `{"calm": oops}`,
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseScores(tc.content)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseScores(%q) = %v, want error", tc.content, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseScores: %v", err)
			}
			if got != tc.want {
				t.Errorf("parseScores = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBuildUserMessage_EnergyHint(t *testing.T) {
	loud := make([]byte, 3200)
	amplitude := 0.8 * 32767
	for i := 0; i < len(loud)/2; i++ {
		binary.LittleEndian.PutUint16(loud[i*2:], uint16(int16(amplitude)))
	}

	msg := buildUserMessage(audio.Clip{Data: loud, SampleRate: 16000, Channels: 1}, "we did it!")
	if !strings.Contains(msg, "Vocal energy: high") {
		t.Errorf("message %q should carry a high energy hint", msg)
	}

	msg = buildUserMessage(audio.Clip{}, "just text")
	if strings.Contains(msg, "Vocal energy") {
		t.Errorf("message %q should omit the energy hint without audio", msg)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Error("New with empty provider name should fail")
	}
	if _, err := New("ollama", ""); err == nil {
		t.Error("New with empty model should fail")
	}
	if _, err := New("smoke-signals", "m"); err == nil {
		t.Error("New with unknown provider should fail")
	}
}
