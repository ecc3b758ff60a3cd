package strata

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

// submitTarget is an image commands are drawn into. origin is the screen
// position of the image's top-left pixel.
type submitTarget struct {
	img    *ebiten.Image
	origin image.Point
	bounds image.Rectangle
}

// submit executes cmds on target. Groups and masks render into pooled
// offscreens that are released by the caller once the frame is drawn.
func (s *Scene) submit(target *ebiten.Image, cmds []DrawCommand) {
	s.targets = append(s.targets[:0], submitTarget{img: target, bounds: target.Bounds()})
	for i := range cmds {
		cmd := &cmds[i]
		top := &s.targets[len(s.targets)-1]
		switch cmd.Type {
		case DrawTexture:
			s.submitTexture(top, cmd)
		case DrawSolid:
			s.submitSolid(top, cmd)
		case DrawBeginGroup, DrawBeginMask:
			s.pushTarget(cmd.Bounds)
		case DrawEndMask:
			s.popMask()
		case DrawEndGroup:
			s.popGroup(cmd)
		}
	}
	// Unbalanced streams leave offscreens on the stack; they still return
	// to the pool through heldImages.
	s.targets = s.targets[:1]
}

func (s *Scene) pushTarget(bounds image.Rectangle) {
	w, h := max(bounds.Dx(), 1), max(bounds.Dy(), 1)
	img := s.offscreens.Acquire(w, h)
	s.heldImages = append(s.heldImages, img)
	s.targets = append(s.targets, submitTarget{img: img, origin: bounds.Min, bounds: bounds})
}

// popMask multiplies the group below by the mask's alpha.
func (s *Scene) popMask() {
	if len(s.targets) < 3 {
		return
	}
	mask := s.targets[len(s.targets)-1]
	s.targets = s.targets[:len(s.targets)-1]
	group := s.targets[len(s.targets)-1]

	op := &s.drawOp
	op.GeoM.Reset()
	op.ColorScale.Reset()
	op.Filter = ebiten.FilterNearest
	op.Blend = BlendMask.EbitenBlend()
	group.img.DrawImage(mask.img, op)
}

// popGroup filters the group offscreen and composites it onto the target
// below.
func (s *Scene) popGroup(cmd *DrawCommand) {
	if len(s.targets) < 2 {
		return
	}
	group := s.targets[len(s.targets)-1]
	s.targets = s.targets[:len(s.targets)-1]
	parent := s.targets[len(s.targets)-1]

	size := group.bounds.Size()
	src := group.img.SubImage(image.Rectangle{Max: size}).(*ebiten.Image)
	if len(cmd.Filters) > 0 {
		out, scratch := applyFilters(s.filters.build(cmd.Filters), src, &s.offscreens)
		s.heldImages = append(s.heldImages, scratch...)
		src = out.SubImage(image.Rectangle{Max: size}).(*ebiten.Image)
	}

	dst := parent.img
	if !cmd.Clip.Empty() {
		clip := cmd.Clip.Sub(parent.origin).Intersect(dst.Bounds())
		if clip.Empty() {
			return
		}
		dst = dst.SubImage(clip).(*ebiten.Image)
	}

	op := &s.drawOp
	op.GeoM.Reset()
	off := group.origin.Sub(parent.origin)
	op.GeoM.Translate(float64(off.X), float64(off.Y))
	op.ColorScale.Reset()
	a := float32(cmd.Opacity)
	op.ColorScale.Scale(a, a, a, a)
	op.Filter = ebiten.FilterNearest
	op.Blend = BlendNormal.EbitenBlend()
	dst.DrawImage(src, op)
}

// submitTexture draws cmd.Image stretched over cmd.Rect.
func (s *Scene) submitTexture(t *submitTarget, cmd *DrawCommand) {
	if cmd.Image == nil || cmd.Rect.IsEmpty() {
		return
	}
	img := cmd.Image.Image
	a := float32(cmd.Opacity)
	s.drawQuad(t, img, cmd.Matrix, cmd.Rect, [4]float32{a, a, a, a})
}

// submitSolid fills cmd.Rect with a premultiplied color.
func (s *Scene) submitSolid(t *submitTarget, cmd *DrawCommand) {
	if cmd.Rect.IsEmpty() {
		return
	}
	c := cmd.Color
	a := float32(c.A * cmd.Opacity)
	s.drawQuad(t, WhitePixel, cmd.Matrix, cmd.Rect, [4]float32{float32(c.R) * a, float32(c.G) * a, float32(c.B) * a, a})
}

// drawQuad draws img mapped onto rect, then through m, into t. Affine
// matrices go through DrawImage; projective ones through DrawTriangles
// on the projected corners.
func (s *Scene) drawQuad(t *submitTarget, img *ebiten.Image, m Matrix, rect Rect, scale [4]float32) {
	sw, sh := img.Bounds().Dx(), img.Bounds().Dy()
	if sw == 0 || sh == 0 {
		return
	}
	if projectsAffine(m) {
		op := &s.drawOp
		op.GeoM.Reset()
		op.GeoM.Scale(rect.Width/float64(sw), rect.Height/float64(sh))
		op.GeoM.Translate(rect.X, rect.Y)
		op.GeoM.Concat(matrixGeoM(m))
		op.GeoM.Translate(-float64(t.origin.X), -float64(t.origin.Y))
		op.ColorScale.Reset()
		op.ColorScale.Scale(scale[0], scale[1], scale[2], scale[3])
		op.Filter = ebiten.FilterLinear
		op.Blend = BlendNormal.EbitenBlend()
		t.img.DrawImage(img, op)
		return
	}

	q := m.MapQuad(rect)
	b := img.Bounds()
	src := [4][2]float32{
		{float32(b.Min.X), float32(b.Min.Y)},
		{float32(b.Max.X), float32(b.Min.Y)},
		{float32(b.Max.X), float32(b.Max.Y)},
		{float32(b.Min.X), float32(b.Max.Y)},
	}
	for i := range s.verts {
		s.verts[i] = ebiten.Vertex{
			DstX:   float32(q[i].X - float64(t.origin.X)),
			DstY:   float32(q[i].Y - float64(t.origin.Y)),
			SrcX:   src[i][0],
			SrcY:   src[i][1],
			ColorR: scale[0],
			ColorG: scale[1],
			ColorB: scale[2],
			ColorA: scale[3],
		}
	}
	s.triOp.Filter = ebiten.FilterLinear
	s.triOp.Blend = BlendNormal.EbitenBlend()
	t.img.DrawTriangles(s.verts[:], quadIndices, img, &s.triOp)
}

// projectsAffine reports whether m maps the z=0 plane without perspective.
func projectsAffine(m Matrix) bool {
	return m[12] == 0 && m[13] == 0 && m[15] == 1
}

var quadIndices = []uint16{0, 1, 2, 0, 2, 3}

// matrixGeoM converts the affine part of m to an ebiten.GeoM.
func matrixGeoM(m Matrix) ebiten.GeoM {
	a := m.Aff3()
	var g ebiten.GeoM
	g.SetElement(0, 0, a[0])
	g.SetElement(0, 1, a[1])
	g.SetElement(0, 2, a[2])
	g.SetElement(1, 0, a[3])
	g.SetElement(1, 1, a[4])
	g.SetElement(1, 2, a[5])
	return g
}
