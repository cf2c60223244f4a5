//go:build whisper

package audio

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"
)

// paMu serializes PortAudio init, enumeration and terminate, which are not
// safe to call from several goroutines at once.
var paMu sync.Mutex

// PortAudioCapture records from a PortAudio input device.
type PortAudioCapture struct {
	deviceName string
	sampleRate int
	channels   int
	frameMS    int
	logger     *logrus.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	samples []float32
	done    chan struct{}
	stopped chan struct{}
}

// NewCapture returns a PortAudio-backed Capture.
func NewCapture(deviceName string, sampleRate, channels, frameMS int, logger *logrus.Logger) (Capture, error) {
	if channels < 1 {
		channels = 1
	}
	if sampleRate <= 0 {
		sampleRate = TargetRate
	}
	if frameMS <= 0 {
		frameMS = 20
	}
	return &PortAudioCapture{
		deviceName: deviceName,
		sampleRate: sampleRate,
		channels:   channels,
		frameMS:    frameMS,
		logger:     logger,
	}, nil
}

func (c *PortAudioCapture) Start(level func(float64)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return fmt.Errorf("capture already running")
	}
	paMu.Lock()
	defer paMu.Unlock()
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	dev, err := selectDevice(c.deviceName)
	if err != nil {
		portaudio.Terminate()
		return err
	}
	frames := c.sampleRate * c.frameMS / 1000
	buf := make([]int16, frames*c.channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: c.channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(c.sampleRate),
		FramesPerBuffer: frames,
	}, &buf)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("start stream: %w", err)
	}
	c.stream = stream
	c.samples = c.samples[:0]
	c.done = make(chan struct{})
	c.stopped = make(chan struct{})
	c.logger.Debugf("capturing from %s @ %d Hz", dev.Name, c.sampleRate)
	go c.read(stream, buf, level, c.done, c.stopped)
	return nil
}

func (c *PortAudioCapture) read(stream *portaudio.Stream, buf []int16, level func(float64), done, stopped chan struct{}) {
	defer close(stopped)
	for {
		select {
		case <-done:
			return
		default:
		}
		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				c.logger.Warn("input overflow")
				continue
			}
			c.logger.Errorf("stream read: %v", err)
			return
		}
		frame := DownmixInterleaved(Int16ToFloat(buf), c.channels)
		c.mu.Lock()
		c.samples = append(c.samples, frame...)
		c.mu.Unlock()
		if level != nil {
			level(Level(frame))
		}
	}
}

func (c *PortAudioCapture) Stop() []float32 {
	c.mu.Lock()
	stream, done, stopped := c.stream, c.done, c.stopped
	c.stream = nil
	c.mu.Unlock()
	if stream == nil {
		return nil
	}
	close(done)
	<-stopped
	paMu.Lock()
	_ = stream.Stop()
	_ = stream.Close()
	portaudio.Terminate()
	paMu.Unlock()

	c.mu.Lock()
	raw := c.samples
	c.samples = nil
	c.mu.Unlock()
	return Resample(raw, c.sampleRate, TargetRate)
}

func selectDevice(preferred string) (*portaudio.DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if preferred != "" {
		for _, d := range devs {
			if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), strings.ToLower(preferred)) {
				return d, nil
			}
		}
	}
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		return def, nil
	}
	for _, d := range devs {
		if d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no input devices found")
}

// Devices lists input-capable devices.
func Devices() ([]Device, error) {
	paMu.Lock()
	defer paMu.Unlock()
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	def, _ := portaudio.DefaultInputDevice()
	out := []Device{}
	for i, d := range devs {
		if d.MaxInputChannels < 1 {
			continue
		}
		out = append(out, Device{
			Index:     i,
			Name:      d.Name,
			Channels:  d.MaxInputChannels,
			LatencyMs: d.DefaultLowInputLatency.Seconds() * 1000,
			Default:   def != nil && d.Name == def.Name,
		})
	}
	return out, nil
}
