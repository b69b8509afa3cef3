package audio

import (
	"encoding/binary"
	"errors"
)

// Canonical output format for every normalized fragment.
const (
	TargetSampleRate = 16000
	TargetChannels   = 1
	BytesPerSample   = 2
)

const maxPayloadSize = 10 * 1024 * 1024

var ErrPayloadTooLarge = errors.New("audio payload exceeds maximum size")

// Normalizer converts arbitrary-format audio fragments into canonical
// mono 16 kHz signed 16-bit little-endian PCM.
type Normalizer struct {
	maxSize int
}

func NewNormalizer() *Normalizer {
	return &Normalizer{maxSize: maxPayloadSize}
}

// Normalize returns (nil, nil) when the fragment cannot be decoded, a common
// outcome for streamed chunks that do not contain a complete frame. Oversized
// payloads are a hard validation failure and are rejected before any decode.
func (n *Normalizer) Normalize(data []byte, sourceFormat string) ([]byte, error) {
	if len(data) > n.maxSize {
		return nil, ErrPayloadTooLarge
	}
	if len(data) == 0 {
		return nil, nil
	}

	switch sourceFormat {
	case "wav", "wave":
		return n.normalizeWAV(data), nil
	case "pcm", "raw", "s16le":
		if len(data)%BytesPerSample != 0 {
			return nil, nil
		}
		return data, nil
	default:
		// No container decoder for streamed webm/ogg fragments; skip them.
		return nil, nil
	}
}

// normalizeWAV parses a RIFF/WAVE container holding 16-bit PCM. Any parse
// failure collapses to nil: truncated headers and partial data chunks are
// expected while a client is still streaming.
func (n *Normalizer) normalizeWAV(data []byte) []byte {
	if len(data) < 44 {
		return nil
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil
	}

	var (
		sampleRate    int
		channels      int
		bitsPerSample int
		pcm           []byte
	)

	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		if chunkSize < 0 || body > len(data) {
			return nil
		}

		switch chunkID {
		case "fmt ":
			if body+16 > len(data) {
				return nil
			}
			audioFormat := int(binary.LittleEndian.Uint16(data[body : body+2]))
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))

			if audioFormat != 1 || bitsPerSample != 16 || channels < 1 || sampleRate <= 0 {
				return nil
			}
		case "data":
			end := body + chunkSize
			if end > len(data) {
				// Streaming encoders write the data header before the
				// samples finish arriving; take what is actually present.
				end = len(data)
			}
			pcm = data[body:end]
		}

		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if pcm == nil || sampleRate == 0 || len(pcm) < BytesPerSample*channels {
		return nil
	}

	samples := bytesToSamples(pcm)
	if channels > 1 {
		samples = downmix(samples, channels)
	}
	if sampleRate != TargetSampleRate {
		samples = resample(samples, sampleRate, TargetSampleRate)
	}
	if len(samples) == 0 {
		return nil
	}

	return samplesToBytes(samples)
}

func bytesToSamples(pcm []byte) []int16 {
	count := len(pcm) / BytesPerSample
	samples := make([]int16, count)
	for i := 0; i < count; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}
	return samples
}

func samplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(s))
	}
	return out
}

func downmix(samples []int16, channels int) []int16 {
	frames := len(samples) / channels
	mono := make([]int16, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		mono[i] = int16(sum / channels)
	}
	return mono
}

// resample performs linear interpolation between neighboring samples. Good
// enough for speech headed to a transcription model.
func resample(samples []int16, from, to int) []int16 {
	if from == to || len(samples) == 0 {
		return samples
	}

	outLen := len(samples) * to / from
	if outLen == 0 {
		return nil
	}

	out := make([]int16, outLen)
	ratio := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		a := float64(samples[idx])
		b := float64(samples[idx+1])
		out[i] = int16(a + (b-a)*frac)
	}
	return out
}

// Duration reports the playable length of canonical PCM.
func Duration(pcm []byte) float64 {
	return float64(len(pcm)) / float64(TargetSampleRate*TargetChannels*BytesPerSample)
}
