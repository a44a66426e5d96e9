package stt

import "encoding/binary"

const wavHeaderSize = 44

// WrapPCMAsWAV prepends a canonical 44-byte RIFF/WAVE header to raw
// little-endian PCM samples.
func WrapPCMAsWAV(pcmData []byte, sampleRate, channels, bitsPerSample int) []byte {
	le := binary.LittleEndian
	dataSize := len(pcmData)
	blockAlign := channels * bitsPerSample / 8

	wav := make([]byte, wavHeaderSize+dataSize)
	copy(wav[0:4], "RIFF")
	le.PutUint32(wav[4:8], uint32(36+dataSize))
	copy(wav[8:12], "WAVE")

	copy(wav[12:16], "fmt ")
	le.PutUint32(wav[16:20], 16) // fmt chunk size for PCM
	le.PutUint16(wav[20:22], 1)  // PCM
	le.PutUint16(wav[22:24], uint16(channels))
	le.PutUint32(wav[24:28], uint32(sampleRate))
	le.PutUint32(wav[28:32], uint32(sampleRate*blockAlign))
	le.PutUint16(wav[32:34], uint16(blockAlign))
	le.PutUint16(wav[34:36], uint16(bitsPerSample))

	copy(wav[36:40], "data")
	le.PutUint32(wav[40:44], uint32(dataSize))
	copy(wav[wavHeaderSize:], pcmData)
	return wav
}
