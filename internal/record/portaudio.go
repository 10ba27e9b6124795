package record

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/gordonklaus/portaudio"

	"github.com/Car-Role/Whisper-dictation/internal/config"
)

// PortAudio opens blocking-read streams on the configured input device.
type PortAudio struct{}

// Open initialises PortAudio for the lifetime of the stream.
func (PortAudio) Open(cfg config.AudioConfig) (Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	s, err := openStream(cfg)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}
	return s, nil
}

func openStream(cfg config.AudioConfig) (*paStream, error) {
	dev, err := inputDevice(cfg.Device)
	if err != nil {
		return nil, err
	}
	if dev.MaxInputChannels < cfg.Channels {
		return nil, fmt.Errorf("device %q supports %d input channels, %d requested", dev.Name, dev.MaxInputChannels, cfg.Channels)
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = cfg.Channels
	params.SampleRate = float64(cfg.Rate)
	params.FramesPerBuffer = cfg.Chunk

	n := cfg.Chunk * cfg.Channels
	s := &paStream{format: cfg.Format}
	var buf any
	switch cfg.Format {
	case config.FormatInt24, config.FormatInt32:
		// 24-bit is read as int32 and narrowed, avoiding packed buffers.
		s.i32 = make([]int32, n)
		buf = s.i32
	case config.FormatFloat32:
		s.f32 = make([]float32, n)
		buf = s.f32
	default:
		s.i16 = make([]int16, n)
		buf = s.i16
	}

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("open stream on %q: %w", dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start stream: %w", err)
	}
	s.stream = stream
	return s, nil
}

func inputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		return portaudio.DefaultInputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.MaxInputChannels > 0 && strings.EqualFold(d.Name, name) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("input device %q not found", name)
}

type paStream struct {
	stream *portaudio.Stream
	format config.SampleFormat
	i16    []int16
	i32    []int32
	f32    []float32
}

func (s *paStream) Read() ([]int, error) {
	if err := s.stream.Read(); err != nil {
		if errors.Is(err, portaudio.InputOverflowed) {
			return nil, fmt.Errorf("%w: %v", ErrTransientRead, err)
		}
		return nil, err
	}
	switch {
	case s.i16 != nil:
		out := make([]int, len(s.i16))
		for i, v := range s.i16 {
			out[i] = int(v)
		}
		return out, nil
	case s.format == config.FormatInt24:
		out := make([]int, len(s.i32))
		for i, v := range s.i32 {
			out[i] = int(v >> 8)
		}
		return out, nil
	case s.i32 != nil:
		out := make([]int, len(s.i32))
		for i, v := range s.i32 {
			out[i] = int(v)
		}
		return out, nil
	default:
		out := make([]int, len(s.f32))
		for i, v := range s.f32 {
			out[i] = floatToInt32(v)
		}
		return out, nil
	}
}

func (s *paStream) Close() error {
	return errors.Join(s.stream.Stop(), s.stream.Close(), portaudio.Terminate())
}

func floatToInt32(v float32) int {
	f := float64(v)
	if f > 1 {
		f = 1
	} else if f < -1 {
		f = -1
	}
	return int(math.Round(f * math.MaxInt32))
}

// Device describes a capture-capable device.
type Device struct {
	Name              string
	HostAPI           string
	MaxInputChannels  int
	DefaultSampleRate float64
	Default           bool
}

// ListDevices enumerates input devices.
func ListDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	def, _ := portaudio.DefaultInputDevice()

	var out []Device
	for _, d := range devices {
		if d.MaxInputChannels <= 0 {
			continue
		}
		dev := Device{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Default:           def != nil && def.Name == d.Name,
		}
		if d.HostApi != nil {
			dev.HostAPI = d.HostApi.Name
		}
		out = append(out, dev)
	}
	return out, nil
}
