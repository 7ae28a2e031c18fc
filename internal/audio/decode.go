package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dgnsrekt/readaloud/tts"
	"github.com/hajimehoshi/go-mp3"
)

// PCM is decoded 16-bit little endian interleaved audio.
type PCM struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// Duration returns the playing time of the samples.
func (p *PCM) Duration() time.Duration {
	frame := p.Channels * 2
	if frame == 0 || p.SampleRate == 0 {
		return 0
	}
	frames := len(p.Data) / frame
	return time.Duration(frames) * time.Second / time.Duration(p.SampleRate)
}

var (
	ErrEmptyAudio        = errors.New("audio data is empty")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Decode turns a synthesis result into stereo PCM. LINEAR16 results may be
// WAV files or bare samples at the result's sample rate.
func Decode(res *tts.SynthesisResult) (*PCM, error) {
	if res == nil || len(res.Audio) == 0 {
		return nil, ErrEmptyAudio
	}

	var (
		pcm *PCM
		err error
	)
	switch res.Encoding {
	case tts.EncodingMP3:
		pcm, err = decodeMP3(res.Audio)
	case tts.EncodingLinear16, "":
		if isWAV(res.Audio) {
			pcm, err = decodeWAV(res.Audio)
		} else {
			rate := res.SampleRate
			if rate == 0 {
				rate = 24000
			}
			pcm = &PCM{Data: res.Audio, SampleRate: rate, Channels: 1}
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, res.Encoding)
	}
	if err != nil {
		return nil, err
	}
	return toStereo(pcm), nil
}

func decodeMP3(data []byte) (*PCM, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error decoding mp3: %w", err)
	}
	out, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("error decoding mp3: %w", err)
	}
	// go-mp3 always produces 16-bit stereo.
	return &PCM{Data: out, SampleRate: d.SampleRate(), Channels: 2}, nil
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func decodeWAV(data []byte) (*PCM, error) {
	var (
		pcm    PCM
		gotFmt bool
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(data) {
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedFormat)
			}
			format := binary.LittleEndian.Uint16(data[body:])
			bits := binary.LittleEndian.Uint16(data[body+14:])
			if format != 1 || bits != 16 {
				return nil, fmt.Errorf("%w: wav format %d with %d bits", ErrUnsupportedFormat, format, bits)
			}
			pcm.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			pcm.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			gotFmt = true
		case "data":
			if !gotFmt {
				return nil, fmt.Errorf("%w: data before fmt chunk", ErrUnsupportedFormat)
			}
			pcm.Data = data[body:end]
			return &pcm, nil
		}

		pos = body + size + size%2
	}
	return nil, fmt.Errorf("%w: no data chunk", ErrUnsupportedFormat)
}

// EncodeWAV wraps 16-bit samples in a RIFF header.
func EncodeWAV(samples []byte, sampleRate, channels int) []byte {
	var buf bytes.Buffer
	w := func(v interface{}) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	buf.WriteString("RIFF")
	w(uint32(36 + len(samples)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	w(uint32(16))
	w(uint16(1))
	w(uint16(channels))
	w(uint32(sampleRate))
	w(uint32(sampleRate * channels * 2))
	w(uint16(channels * 2))
	w(uint16(16))
	buf.WriteString("data")
	w(uint32(len(samples)))
	buf.Write(samples)
	return buf.Bytes()
}

func toStereo(p *PCM) *PCM {
	if p.Channels != 1 {
		return p
	}
	out := make([]byte, len(p.Data)/2*4)
	for i, j := 0, 0; i+1 < len(p.Data); i, j = i+2, j+4 {
		out[j], out[j+1] = p.Data[i], p.Data[i+1]
		out[j+2], out[j+3] = p.Data[i], p.Data[i+1]
	}
	return &PCM{Data: out, SampleRate: p.SampleRate, Channels: 2}
}

// Resample converts stereo PCM to another sample rate by linear
// interpolation.
func Resample(p *PCM, rate int) *PCM {
	if p.SampleRate == rate || p.SampleRate == 0 || rate <= 0 {
		return p
	}
	frames := len(p.Data) / 4
	if frames == 0 {
		return &PCM{SampleRate: rate, Channels: p.Channels}
	}
	outFrames := int(int64(frames) * int64(rate) / int64(p.SampleRate))
	out := make([]byte, outFrames*4)

	sample := func(frame, ch int) float64 {
		off := frame*4 + ch*2
		return float64(int16(binary.LittleEndian.Uint16(p.Data[off:])))
	}
	step := float64(p.SampleRate) / float64(rate)
	for i := 0; i < outFrames; i++ {
		src := float64(i) * step
		f0 := int(src)
		f1 := f0 + 1
		if f1 >= frames {
			f1 = frames - 1
		}
		frac := src - float64(f0)
		for ch := 0; ch < 2; ch++ {
			v := sample(f0, ch)*(1-frac) + sample(f1, ch)*frac
			binary.LittleEndian.PutUint16(out[i*4+ch*2:], uint16(int16(v)))
		}
	}
	return &PCM{Data: out, SampleRate: rate, Channels: 2}
}
