// Package audio plays the audible availability alert through portaudio.
package audio

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	apperrors "github.com/cheminotify/agent/internal/errors"
)

const (
	DefaultSampleRate = 44100
	framesPerBuffer   = 1024 // ~23ms at 44100Hz
	fadeSamples       = 256
)

// Tone describes a beep pattern.
type Tone struct {
	Freq    float64
	Length  time.Duration
	Gap     time.Duration
	Repeats int
	Volume  float32
}

// DefaultTone is three short A5 beeps.
func DefaultTone() Tone {
	return Tone{Freq: 880, Length: 300 * time.Millisecond, Gap: 150 * time.Millisecond, Repeats: 3, Volume: 0.4}
}

// Alert plays a tone on the preferred output device. It satisfies
// notify.Channel.
type Alert struct {
	tone       Tone
	sampleRate int
	excluded   []string

	mu sync.Mutex // one playback at a time
}

// NewAlert creates an alert. Devices whose name contains one of excluded
// are never used.
func NewAlert(tone Tone, excluded []string) *Alert {
	return &Alert{tone: tone, sampleRate: DefaultSampleRate, excluded: excluded}
}

func (a *Alert) Name() string { return "sound" }

func (a *Alert) Send(ctx context.Context, subject, _, _ string) bool {
	if err := a.Play(ctx); err != nil {
		slog.Warn("alert sound failed", "subject", subject, "error", err)
		return false
	}
	return true
}

// Play renders the tone and blocks until it has been written or ctx ends.
func (a *Alert) Play(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		return apperrors.Wrap(err, apperrors.NotifyFailed, "portaudio init")
	}
	defer portaudio.Terminate()

	dev, err := a.pickDevice()
	if err != nil {
		return err
	}

	buf := make([]float32, framesPerBuffer)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowOutputLatency,
		},
		SampleRate:      float64(a.sampleRate),
		FramesPerBuffer: framesPerBuffer,
	}, buf)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.NotifyFailed, "open output %s", dev.Name)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return apperrors.Wrap(err, apperrors.NotifyFailed, "start stream")
	}
	defer stream.Stop()

	samples := Synth(a.tone, a.sampleRate)
	for off := 0; off < len(samples); off += framesPerBuffer {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(buf, samples[off:])
		clear(buf[n:])
		if err := stream.Write(); err != nil {
			return apperrors.Wrap(err, apperrors.NotifyFailed, "write stream")
		}
	}
	slog.Debug("alert played", "device", dev.Name, "samples", len(samples))
	return nil
}

func (a *Alert) pickDevice() (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.NotifyFailed, "list audio devices")
	}

	var best *portaudio.DeviceInfo
	for _, dev := range devices {
		if dev.MaxOutputChannels < 1 || a.isExcluded(dev.Name) || isVirtual(dev.Name) {
			continue
		}
		if best == nil || preferDevice(dev.Name, best.Name) {
			best = dev
		}
	}
	if best != nil {
		return best, nil
	}

	def, err := portaudio.DefaultOutputDevice()
	if err != nil || def == nil {
		return nil, apperrors.Wrap(err, apperrors.NotifyFailed, "no output device")
	}
	return def, nil
}

func (a *Alert) isExcluded(name string) bool {
	for _, ex := range a.excluded {
		if containsFold(name, ex) {
			return true
		}
	}
	return false
}

// isVirtual reports loopback and capture-only routing devices.
func isVirtual(name string) bool {
	for _, kw := range []string{"blackhole", "vb-cable", "loopback", "monitor of", "soundflower"} {
		if containsFold(name, kw) {
			return true
		}
	}
	return false
}

// preferDevice reports whether name beats current: speakers and headphones
// first, then built-in outputs.
func preferDevice(name, current string) bool {
	for _, p := range []string{"headphone", "speaker", "built-in"} {
		nameHas, currHas := containsFold(name, p), containsFold(current, p)
		if nameHas != currHas {
			return nameHas
		}
	}
	return false
}

// Synth renders tone as mono float32 samples with short fades to avoid clicks.
func Synth(t Tone, sampleRate int) []float32 {
	if t.Repeats < 1 || t.Length <= 0 || sampleRate <= 0 {
		return nil
	}
	beep := int(t.Length.Seconds() * float64(sampleRate))
	gap := int(t.Gap.Seconds() * float64(sampleRate))
	fade := min(fadeSamples, beep/2)

	out := make([]float32, 0, t.Repeats*(beep+gap))
	for r := 0; r < t.Repeats; r++ {
		for i := 0; i < beep; i++ {
			env := float32(1)
			if i < fade {
				env = float32(i) / float32(fade)
			} else if i >= beep-fade {
				env = float32(beep-1-i) / float32(fade)
			}
			s := math.Sin(2 * math.Pi * t.Freq * float64(i) / float64(sampleRate))
			out = append(out, t.Volume*env*float32(s))
		}
		if r < t.Repeats-1 {
			out = append(out, make([]float32, gap)...)
		}
	}
	return out
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
