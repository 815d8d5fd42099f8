package testclips

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"math"
	"math/big"

	"github.com/google/uuid"
	"github.com/okian/servecoach/pkg/logger"
)

// Default clip geometry.
const (
	DefaultWidth  = 160
	DefaultHeight = 120
	DefaultFrames = 24
	DefaultDelay  = 10 // hundredths of a second per frame
	DefaultBlob   = 12 // blob side in pixels
)

const randomDivisor = 1_000_000

var palette = color.Palette{
	color.Gray{Y: 0},
	color.Gray{Y: 128},
	color.Gray{Y: 255},
}

// Spec describes one synthetic serve clip: a bright blob on a dark court that
// starts low, rises to the toss peak, then swings down and across.
type Spec struct {
	Name   string  `json:"name"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Frames int     `json:"frames"`
	Delay  int     `json:"delay"`
	Blob   int     `json:"blob"`
	Peak   float64 `json:"peak"`   // fraction of the clip at which the toss peaks
	StartX float64 `json:"startX"` // normalized x at the start
	EndX   float64 `json:"endX"`   // normalized x after the follow-through
	Drop   float64 `json:"drop"`   // normalized y reached after contact
	Static bool    `json:"static"` // no movement at all
}

// DefaultSpec returns a clean right-handed serve.
func DefaultSpec() Spec {
	return Spec{
		Name:   "default",
		Width:  DefaultWidth,
		Height: DefaultHeight,
		Frames: DefaultFrames,
		Delay:  DefaultDelay,
		Blob:   DefaultBlob,
		Peak:   0.4,
		StartX: 0.3,
		EndX:   0.8,
		Drop:   0.85,
	}
}

// StaticSpec returns a clip whose frames are identical.
func StaticSpec() Spec {
	s := DefaultSpec()
	s.Name = "static"
	s.Static = true
	return s
}

// Center returns the blob center of frame i in normalized coordinates.
func (s Spec) Center(i int) (float64, float64) {
	if s.Static || s.Frames < 2 {
		return s.StartX, s.Drop
	}
	t := float64(i) / float64(s.Frames-1)
	if t <= s.Peak {
		u := t / s.Peak
		return s.StartX, 0.8 - 0.65*u
	}
	u := (t - s.Peak) / (1 - s.Peak)
	return s.StartX + (s.EndX-s.StartX)*u, 0.15 + (s.Drop-0.15)*u
}

// Render draws every frame of the clip.
func Render(s Spec) []*image.Paletted {
	frames := make([]*image.Paletted, s.Frames)
	half := s.Blob / 2
	for i := range frames {
		img := image.NewPaletted(image.Rect(0, 0, s.Width, s.Height), palette)
		cx, cy := s.Center(i)
		px := int(math.Round(cx * float64(s.Width-1)))
		py := int(math.Round(cy * float64(s.Height-1)))
		r := image.Rect(px-half, py-half, px+half, py+half).Intersect(img.Bounds())
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.SetColorIndex(x, y, 2)
			}
		}
		frames[i] = img
	}
	return frames
}

// GIF encodes the clip as an animated GIF.
func GIF(s Spec) ([]byte, error) {
	if s.Width <= 0 || s.Height <= 0 || s.Frames <= 0 {
		return nil, fmt.Errorf("invalid clip geometry %dx%d/%d", s.Width, s.Height, s.Frames)
	}
	frames := Render(s)
	anim := &gif.GIF{
		Image: frames,
		Delay: make([]int, len(frames)),
	}
	for i := range anim.Delay {
		anim.Delay[i] = s.Delay
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, fmt.Errorf("encode %s: %w", s.Name, err)
	}
	return buf.Bytes(), nil
}

// MustGIF is GIF for fixtures; it panics on error.
func MustGIF(s Spec) []byte {
	data, err := GIF(s)
	if err != nil {
		panic(err)
	}
	return data
}

func randomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomDivisor))
	return float64(n.Int64()) / float64(randomDivisor)
}

// RandomSpec varies timing and trajectory around DefaultSpec.
func RandomSpec() Spec {
	s := DefaultSpec()
	s.Name = uuid.NewString()
	s.Frames = 16 + int(randomFloat()*16)
	s.Peak = 0.25 + randomFloat()*0.35
	s.StartX = 0.2 + randomFloat()*0.25
	s.EndX = 0.55 + randomFloat()*0.4
	s.Drop = 0.65 + randomFloat()*0.3
	return s
}

// generateClips builds config.NumClips random clips.
func generateClips(ctx context.Context, config *Config, stats *Stats) ([]Clip, error) {
	logger.Get().Info(ctx, "generating clips", logger.Int("numClips", config.NumClips))

	clips := make([]Clip, 0, config.NumClips)
	for i := 0; i < config.NumClips; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during clip generation: %w", err)
		}
		spec := RandomSpec()
		data, err := GIF(spec)
		if err != nil {
			return nil, fmt.Errorf("failed to generate clip %d: %w", i, err)
		}
		clips = append(clips, Clip{Spec: spec, Data: data})
	}

	stats.ClipsGenerated = len(clips)
	logger.Get().Info(ctx, "generated clips successfully", logger.Int("count", len(clips)))
	return clips, nil
}
