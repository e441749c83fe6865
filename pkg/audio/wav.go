// Package audio provides the minimal PCM plumbing the emotion engine needs:
// RIFF/WAV (PCM16) decoding and encoding, stereo downmixing, linear
// resampling, and RMS energy measurement. Uploaded audio is normalised to
// 16 kHz mono int16 PCM before it reaches any scorer or STT provider.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Decoding errors.
var (
	// ErrNotWAV indicates the payload is not a RIFF/WAVE container.
	ErrNotWAV = errors.New("audio: not a RIFF/WAVE file")

	// ErrUnsupportedFormat indicates a WAV encoding other than 16-bit PCM.
	ErrUnsupportedFormat = errors.New("audio: unsupported WAV format (need 16-bit PCM)")
)

// Clip holds decoded PCM audio. Data is little-endian int16 samples,
// interleaved when Channels > 1.
type Clip struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	samples := len(c.Data) / 2 / c.Channels
	return float64(samples) / float64(c.SampleRate)
}

// DecodeWAV parses a RIFF/WAVE container holding 16-bit PCM audio and
// returns the raw sample data with its format. Chunks other than "fmt " and
// "data" are skipped. Returns [ErrNotWAV] for non-WAV payloads and
// [ErrUnsupportedFormat] for compressed or non-16-bit encodings.
func DecodeWAV(b []byte) (Clip, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return Clip{}, ErrNotWAV
	}

	var (
		clip     Clip
		haveFmt  bool
		haveData bool
	)
	offset := 12

	for offset+8 <= len(b) {
		chunkID := string(b[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(b[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(b) {
			chunkSize = len(b) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return Clip{}, fmt.Errorf("%w: fmt chunk too short", ErrNotWAV)
			}
			format := binary.LittleEndian.Uint16(b[body : body+2])
			channels := int(binary.LittleEndian.Uint16(b[body+2 : body+4]))
			sampleRate := int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			bitsPerSample := binary.LittleEndian.Uint16(b[body+14 : body+16])

			if format != 1 || bitsPerSample != 16 {
				return Clip{}, fmt.Errorf("%w: format %d, %d bits", ErrUnsupportedFormat, format, bitsPerSample)
			}
			if channels < 1 || channels > 2 || sampleRate <= 0 {
				return Clip{}, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedFormat, channels, sampleRate)
			}
			clip.Channels = channels
			clip.SampleRate = sampleRate
			haveFmt = true

		case "data":
			// Trim a trailing odd byte; samples are 2 bytes each.
			size := chunkSize &^ 1
			clip.Data = b[body : body+size]
			haveData = true
		}

		// Chunks are word-aligned.
		offset = body + chunkSize + chunkSize%2
	}

	if !haveFmt || !haveData {
		return Clip{}, fmt.Errorf("%w: missing fmt or data chunk", ErrNotWAV)
	}
	return clip, nil
}

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container, suitable for multipart upload to a transcription
// server.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bps = 16
	blockAlign := channels * bps / 8
	byteRate := sampleRate * blockAlign
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], bps)                // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)
	return buf
}

// Normalize converts a clip to mono PCM at the target sample rate.
// Conversion order: downmix first, then resample, so only a mono stream is
// interpolated. A clip already in the target format is returned unchanged
// (zero allocation).
func Normalize(c Clip, targetRate int) Clip {
	pcm := c.Data
	if c.Channels == 2 {
		pcm = StereoToMono(pcm)
	}
	if c.SampleRate != targetRate {
		pcm = ResampleMono16(pcm, c.SampleRate, targetRate)
	}
	return Clip{Data: pcm, SampleRate: targetRate, Channels: 1}
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono
// output. Uses int32 arithmetic to prevent overflow and clamps to int16
// range.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		lSample := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		rSample := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := (lSample + rSample) / 2

		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}

		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using
// linear interpolation. The input must be little-endian int16 samples. If
// srcRate == dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		var s1 int16
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		} else {
			s1 = s0
		}

		interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(interpolated)
		out[i*2+1] = byte(interpolated >> 8)
	}
	return out
}

// RMS returns the root-mean-square energy of 16-bit signed little-endian PCM
// data, normalised to [0, 1] (1.0 = full-scale). Returns 0 for empty input.
func RMS(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < samples; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(samples))
}
