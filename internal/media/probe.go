package media

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// bytesPerFrame is the size of one decoded MP3 frame: the decoder always
// emits 16-bit little-endian stereo PCM.
const bytesPerFrame = 4

// ErrEmptyAudio is returned when there is nothing to probe.
var ErrEmptyAudio = errors.New("empty audio")

// MP3Duration decodes the MP3 stream headers in data and returns the
// playback length. Synthesis backends return opaque bytes, so callers treat
// an error here as "unknown duration", never as a reason to reject audio.
func MP3Duration(data []byte) (time.Duration, error) {
	if len(data) == 0 {
		return 0, ErrEmptyAudio
	}

	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("decoding mp3: %w", err)
	}

	rate := dec.SampleRate()
	length := dec.Length()
	if rate <= 0 || length < 0 {
		return 0, fmt.Errorf("mp3 length unknown (rate %d, length %d)", rate, length)
	}

	frames := length / bytesPerFrame
	return time.Duration(frames) * time.Second / time.Duration(rate), nil
}
