package strata

import (
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"gopkg.in/yaml.v3"
)

// Screenshot queues a capture of the next Draw. Each capture writes two
// files to ScreenshotDir sharing one base name: the drawn frame as PNG and
// the mirrored layer tree (see Dump) as YAML, so a picture can be matched
// to the state that produced it.
func (s *Scene) Screenshot(label string) {
	s.screenshots = append(s.screenshots, label)
}

// flushScreenshots writes every queued capture of target.
func (s *Scene) flushScreenshots(target *ebiten.Image) {
	if len(s.screenshots) == 0 {
		return
	}
	defer func() { s.screenshots = s.screenshots[:0] }()

	if err := os.MkdirAll(s.ScreenshotDir, 0o755); err != nil {
		Logger().Warn("screenshot directory", slog.String("dir", s.ScreenshotDir), slog.Any("error", err))
		return
	}
	img := straightAlpha(target)
	dump := s.Dump()
	stamp := time.Now().Format("20060102_150405")

	for _, label := range s.screenshots {
		base := filepath.Join(s.ScreenshotDir,
			fmt.Sprintf("%s_f%d_%s", stamp, s.frame, sanitizeLabel(label)))
		if err := writeCapture(base, img, dump); err != nil {
			Logger().Warn("screenshot", slog.String("label", label), slog.Any("error", err))
			continue
		}
		Logger().Info("screenshot", slog.String("path", base+".png"))
	}
}

// straightAlpha reads img back and converts its premultiplied pixels to
// NRGBA, which is what image/png expects.
func straightAlpha(img *ebiten.Image) *image.NRGBA {
	size := img.Bounds().Size()
	out := image.NewNRGBA(image.Rectangle{Max: size})
	img.ReadPixels(out.Pix)
	for i := 0; i < len(out.Pix); i += 4 {
		a := int(out.Pix[i+3])
		if a == 0 || a == 255 {
			continue
		}
		for c := i; c < i+3; c++ {
			out.Pix[c] = uint8(min(int(out.Pix[c])*255/a, 255))
		}
	}
	return out
}

func writeCapture(base string, img image.Image, dump SceneDump) error {
	f, err := os.Create(base + ".png")
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("strata: encode %s.png: %w", base, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	data, err := yaml.Marshal(dump)
	if err != nil {
		return fmt.Errorf("strata: encode %s.yaml: %w", base, err)
	}
	return os.WriteFile(base+".yaml", data, 0o644)
}

// sanitizeLabel keeps letters, digits, '-' and '.', turns anything else
// into '_' and names empty labels "unlabeled".
func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unlabeled"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, label)
}
