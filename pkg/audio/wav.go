package audio

import "encoding/binary"

// WrapWAV frames canonical PCM in a minimal RIFF/WAVE header so it can be
// handed to collaborators that expect a complete file.
func WrapWAV(pcm []byte) []byte {
	out := make([]byte, 44+len(pcm))

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], TargetChannels)
	binary.LittleEndian.PutUint32(out[24:28], TargetSampleRate)
	binary.LittleEndian.PutUint32(out[28:32], TargetSampleRate*TargetChannels*BytesPerSample)
	binary.LittleEndian.PutUint16(out[32:34], TargetChannels*BytesPerSample)
	binary.LittleEndian.PutUint16(out[34:36], 16)

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[44:], pcm)

	return out
}
