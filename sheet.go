package strata

import (
	"encoding/json"
	"fmt"
	"image"
	"maps"
	"math"
	"slices"

	"github.com/hajimehoshi/ebiten/v2"
)

// sheetFrame is one named sprite inside a sheet page.
type sheetFrame struct {
	page    int
	rect    image.Rectangle // stored rect in the page
	source  image.Point     // untrimmed size
	offset  image.Point     // trim offset inside the untrimmed size
	rotated bool            // stored 90 degrees clockwise
}

// SpriteSheet is a TexturePacker sheet: page images plus named frames. It
// turns frames into image backings for layers.
type SpriteSheet struct {
	Pages  []*ebiten.Image
	frames map[string]sheetFrame
}

// LoadSpriteSheet parses TexturePacker JSON and associates the page images.
// Both the hash format (single "frames" object) and the array format
// ("textures" with per-page frame lists) are accepted.
func LoadSpriteSheet(jsonData []byte, pages []*ebiten.Image) (*SpriteSheet, error) {
	var probe struct {
		Frames   json.RawMessage `json:"frames"`
		Textures json.RawMessage `json:"textures"`
	}
	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("strata: parse sprite sheet: %w", err)
	}
	sheet := &SpriteSheet{Pages: pages, frames: make(map[string]sheetFrame)}
	switch {
	case probe.Textures != nil:
		var textures []jsonTexturePage
		if err := json.Unmarshal(probe.Textures, &textures); err != nil {
			return nil, fmt.Errorf("strata: parse sprite sheet textures: %w", err)
		}
		for i, tex := range textures {
			sheet.addFrames(tex.Frames, i)
		}
	case probe.Frames != nil:
		var frames map[string]jsonFrame
		if err := json.Unmarshal(probe.Frames, &frames); err != nil {
			return nil, fmt.Errorf("strata: parse sprite sheet frames: %w", err)
		}
		sheet.addFrames(frames, 0)
	default:
		return nil, fmt.Errorf("strata: sprite sheet has neither \"frames\" nor \"textures\"")
	}
	for name, f := range sheet.frames {
		if f.page >= len(pages) {
			return nil, fmt.Errorf("strata: sprite sheet frame %q is on page %d of %d", name, f.page, len(pages))
		}
	}
	return sheet, nil
}

type jsonRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type jsonSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

type jsonFrame struct {
	Frame            jsonRect `json:"frame"`
	Rotated          bool     `json:"rotated"`
	SpriteSourceSize jsonRect `json:"spriteSourceSize"`
	SourceSize       jsonSize `json:"sourceSize"`
}

type jsonTexturePage struct {
	Image  string               `json:"image"`
	Frames map[string]jsonFrame `json:"frames"`
}

func (s *SpriteSheet) addFrames(frames map[string]jsonFrame, page int) {
	for name, f := range frames {
		w, h := f.Frame.W, f.Frame.H
		if f.Rotated {
			w, h = h, w
		}
		source := image.Pt(f.SourceSize.W, f.SourceSize.H)
		if source.X == 0 || source.Y == 0 {
			source = image.Pt(f.Frame.W, f.Frame.H)
		}
		s.frames[name] = sheetFrame{
			page:    page,
			rect:    image.Rect(f.Frame.X, f.Frame.Y, f.Frame.X+w, f.Frame.Y+h),
			source:  source,
			offset:  image.Pt(f.SpriteSourceSize.X, f.SpriteSourceSize.Y),
			rotated: f.Rotated,
		}
	}
}

// Names returns the frame names in sorted order.
func (s *SpriteSheet) Names() []string {
	return slices.Sorted(maps.Keys(s.frames))
}

// Image returns a new image of the frame's untrimmed size with the frame
// restored to its authored orientation and offset.
func (s *SpriteSheet) Image(name string) (*ebiten.Image, error) {
	f, ok := s.frames[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrame, name)
	}
	if f.source.X <= 0 || f.source.Y <= 0 {
		return nil, fmt.Errorf("strata: sprite sheet frame %q: %w", name, ErrInvalidSize)
	}
	src := s.Pages[f.page].SubImage(f.rect).(*ebiten.Image)
	dst := ebiten.NewImage(f.source.X, f.source.Y)
	var op ebiten.DrawImageOptions
	if f.rotated {
		// Stored clockwise; turn it back and move it into place.
		op.GeoM.Rotate(-math.Pi / 2)
		op.GeoM.Translate(0, float64(f.rect.Dx()))
	}
	op.GeoM.Translate(float64(f.offset.X), float64(f.offset.Y))
	// SubImage keeps the page's coordinates.
	var base ebiten.GeoM
	base.Translate(float64(-f.rect.Min.X), float64(-f.rect.Min.Y))
	base.Concat(op.GeoM)
	op.GeoM = base
	dst.DrawImage(src, &op)
	return dst, nil
}

// CreateImageBackings creates one image backing per frame on c and returns
// their ids by name. On error the backings created so far are kept and
// returned with it.
func (s *SpriteSheet) CreateImageBackings(c *Coordinator) (map[string]ImageID, error) {
	ids := make(map[string]ImageID, len(s.frames))
	for _, name := range s.Names() {
		img, err := s.Image(name)
		if err != nil {
			return ids, err
		}
		id, err := c.CreateImageBacking(img)
		img.Deallocate()
		if err != nil {
			return ids, fmt.Errorf("strata: sprite sheet frame %q: %w", name, err)
		}
		ids[name] = id
	}
	return ids, nil
}
