package recorder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV wraps s16le PCM in a WAV container. The encoder needs a
// seekable writer, so the file is assembled in a temporary file.
func EncodeWAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	file, err := os.CreateTemp("", "memographic-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp wav: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := writePCMToWav(file, pcm, sampleRate, channels); err != nil {
		return nil, err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind wav: %w", err)
	}
	return io.ReadAll(file)
}

func writePCMToWav(file *os.File, pcm []byte, sampleRate int, channels int) error {
	if len(pcm)%2 != 0 {
		return fmt.Errorf("pcm payload not aligned")
	}
	buffer := &audio.IntBuffer{Format: &audio.Format{NumChannels: channels, SampleRate: sampleRate}}
	samples := make([]int, len(pcm)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer.Data = samples

	enc := wav.NewEncoder(file, sampleRate, 16, channels, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// WAVDuration reads the playing time of a WAV file from its PCM chunk
func WAVDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("%s is not a valid wav file", path)
	}
	if err := dec.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("find pcm chunk: %w", err)
	}

	bytesPerSec := int(dec.SampleRate) * int(dec.NumChans) * int(dec.BitDepth) / 8
	if bytesPerSec == 0 {
		return 0, fmt.Errorf("%s has an empty format", path)
	}
	return time.Duration(dec.PCMSize) * time.Second / time.Duration(bytesPerSec), nil
}

// DecodeWAV returns the raw s16le PCM payload of a WAV file and its format
func DecodeWAV(data []byte) ([]byte, Format, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, Format{}, fmt.Errorf("not a valid wav file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, Format{}, fmt.Errorf("find pcm chunk: %w", err)
	}
	if dec.BitDepth != 16 {
		return nil, Format{}, fmt.Errorf("unsupported bit depth %d", dec.BitDepth)
	}

	pcm, err := io.ReadAll(io.LimitReader(dec.PCMChunk, int64(dec.PCMSize)))
	if err != nil {
		return nil, Format{}, fmt.Errorf("read pcm: %w", err)
	}
	return pcm, Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}, nil
}
