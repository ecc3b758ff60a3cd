package strata

import (
	"math"

	"golang.org/x/image/math/f64"
)

// Matrix is a 4x4 transform stored row-major. Points are column vectors, so
// a.Multiply(b) applies b first and then a. Element (row r, column c) is
// m[r*4+c]; the translation lives in m[3], m[7] and m[11].
type Matrix f64.Mat4

// Identity returns the identity matrix.
func Identity() Matrix {
	return Matrix{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translate3D returns a translation matrix.
func Translate3D(x, y, z float64) Matrix {
	return Matrix{
		1, 0, 0, x,
		0, 1, 0, y,
		0, 0, 1, z,
		0, 0, 0, 1,
	}
}

// Scale3D returns a scale matrix.
func Scale3D(x, y, z float64) Matrix {
	return Matrix{
		x, 0, 0, 0,
		0, y, 0, 0,
		0, 0, z, 0,
		0, 0, 0, 1,
	}
}

// Rotate3D returns a rotation of deg degrees around the axis (x, y, z). A
// zero axis yields the identity.
func Rotate3D(x, y, z, deg float64) Matrix {
	l := math.Sqrt(x*x + y*y + z*z)
	if l == 0 {
		return Identity()
	}
	x, y, z = x/l, y/l, z/l
	s, c := math.Sincos(deg * math.Pi / 180)
	t := 1 - c
	return Matrix{
		t*x*x + c, t*x*y - s*z, t*x*z + s*y, 0,
		t*x*y + s*z, t*y*y + c, t*y*z - s*x, 0,
		t*x*z - s*y, t*y*z + s*x, t*z*z + c, 0,
		0, 0, 0, 1,
	}
}

// RotateZ returns a 2D rotation of deg degrees. Positive angles turn the X
// axis toward the Y axis (clockwise on a Y-down screen).
func RotateZ(deg float64) Matrix {
	return Rotate3D(0, 0, 1, deg)
}

// Skew returns a 2D skew by ax and ay degrees.
func Skew(ax, ay float64) Matrix {
	m := Identity()
	m[1] = math.Tan(ax * math.Pi / 180)
	m[4] = math.Tan(ay * math.Pi / 180)
	return m
}

// Perspective returns a perspective projection with viewer distance d. A
// non-positive distance yields the identity.
func Perspective(d float64) Matrix {
	m := Identity()
	if d > 0 {
		m[14] = -1 / d
	}
	return m
}

// Multiply returns m·n.
func (m Matrix) Multiply(n Matrix) Matrix {
	var out Matrix
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[r*4+c] = m[r*4]*n[c] + m[r*4+1]*n[4+c] + m[r*4+2]*n[8+c] + m[r*4+3]*n[12+c]
		}
	}
	return out
}

// Translate returns m·Translate3D(x, y, z).
func (m Matrix) Translate(x, y, z float64) Matrix {
	return m.Multiply(Translate3D(x, y, z))
}

// IsIdentity reports whether m is exactly the identity.
func (m Matrix) IsIdentity() bool {
	return m == Identity()
}

// IsAffine reports whether m only transforms in the XY plane.
func (m Matrix) IsAffine() bool {
	return m[2] == 0 && m[6] == 0 && m[8] == 0 && m[9] == 0 && m[10] == 1 &&
		m[11] == 0 && m[12] == 0 && m[13] == 0 && m[14] == 0 && m[15] == 1
}

// To2D flattens m into the XY plane: the Z row and column are dropped.
func (m Matrix) To2D() Matrix {
	m[2], m[6], m[14] = 0, 0, 0
	m[8], m[9], m[10], m[11] = 0, 0, 1, 0
	return m
}

// MapPoint transforms p, dividing by w when the matrix projects.
func (m Matrix) MapPoint(p Vec3) Vec3 {
	x := m[0]*p.X + m[1]*p.Y + m[2]*p.Z + m[3]
	y := m[4]*p.X + m[5]*p.Y + m[6]*p.Z + m[7]
	z := m[8]*p.X + m[9]*p.Y + m[10]*p.Z + m[11]
	w := m[12]*p.X + m[13]*p.Y + m[14]*p.Z + m[15]
	if w != 1 && w != 0 {
		x, y, z = x/w, y/w, z/w
	}
	return Vec3{x, y, z}
}

// MapQuad transforms the corners of r, in clockwise order from the origin.
func (m Matrix) MapQuad(r Rect) [4]Vec2 {
	corners := [4]Vec3{
		{r.X, r.Y, 0},
		{r.X + r.Width, r.Y, 0},
		{r.X + r.Width, r.Y + r.Height, 0},
		{r.X, r.Y + r.Height, 0},
	}
	var q [4]Vec2
	for i, c := range corners {
		p := m.MapPoint(c)
		q[i] = Vec2{p.X, p.Y}
	}
	return q
}

// MapRect returns the bounding box of r's transformed quad.
func (m Matrix) MapRect(r Rect) Rect {
	q := m.MapQuad(r)
	x0, y0 := q[0].X, q[0].Y
	x1, y1 := x0, y0
	for _, p := range q[1:] {
		x0, y0 = math.Min(x0, p.X), math.Min(y0, p.Y)
		x1, y1 = math.Max(x1, p.X), math.Max(y1, p.Y)
	}
	return Rect{x0, y0, x1 - x0, y1 - y0}
}

// Aff3 returns the 2D affine part of m as an f64.Aff3 laid out
// {a, c, tx, b, d, ty}, suitable for ebiten.GeoM.SetElement.
func (m Matrix) Aff3() f64.Aff3 {
	return f64.Aff3{m[0], m[1], m[3], m[4], m[5], m[7]}
}

// Inverse returns the inverse of m. ok is false for singular matrices.
func (m Matrix) Inverse() (Matrix, bool) {
	var inv Matrix
	inv[0] = m[5]*m[10]*m[15] - m[5]*m[11]*m[14] - m[9]*m[6]*m[15] + m[9]*m[7]*m[14] + m[13]*m[6]*m[11] - m[13]*m[7]*m[10]
	inv[4] = -m[4]*m[10]*m[15] + m[4]*m[11]*m[14] + m[8]*m[6]*m[15] - m[8]*m[7]*m[14] - m[12]*m[6]*m[11] + m[12]*m[7]*m[10]
	inv[8] = m[4]*m[9]*m[15] - m[4]*m[11]*m[13] - m[8]*m[5]*m[15] + m[8]*m[7]*m[13] + m[12]*m[5]*m[11] - m[12]*m[7]*m[9]
	inv[12] = -m[4]*m[9]*m[14] + m[4]*m[10]*m[13] + m[8]*m[5]*m[14] - m[8]*m[6]*m[13] - m[12]*m[5]*m[10] + m[12]*m[6]*m[9]
	inv[1] = -m[1]*m[10]*m[15] + m[1]*m[11]*m[14] + m[9]*m[2]*m[15] - m[9]*m[3]*m[14] - m[13]*m[2]*m[11] + m[13]*m[3]*m[10]
	inv[5] = m[0]*m[10]*m[15] - m[0]*m[11]*m[14] - m[8]*m[2]*m[15] + m[8]*m[3]*m[14] + m[12]*m[2]*m[11] - m[12]*m[3]*m[10]
	inv[9] = -m[0]*m[9]*m[15] + m[0]*m[11]*m[13] + m[8]*m[1]*m[15] - m[8]*m[3]*m[13] - m[12]*m[1]*m[11] + m[12]*m[3]*m[9]
	inv[13] = m[0]*m[9]*m[14] - m[0]*m[10]*m[13] - m[8]*m[1]*m[14] + m[8]*m[2]*m[13] + m[12]*m[1]*m[10] - m[12]*m[2]*m[9]
	inv[2] = m[1]*m[6]*m[15] - m[1]*m[7]*m[14] - m[5]*m[2]*m[15] + m[5]*m[3]*m[14] + m[13]*m[2]*m[7] - m[13]*m[3]*m[6]
	inv[6] = -m[0]*m[6]*m[15] + m[0]*m[7]*m[14] + m[4]*m[2]*m[15] - m[4]*m[3]*m[14] - m[12]*m[2]*m[7] + m[12]*m[3]*m[6]
	inv[10] = m[0]*m[5]*m[15] - m[0]*m[7]*m[13] - m[4]*m[1]*m[15] + m[4]*m[3]*m[13] + m[12]*m[1]*m[7] - m[12]*m[3]*m[5]
	inv[14] = -m[0]*m[5]*m[14] + m[0]*m[6]*m[13] + m[4]*m[1]*m[14] - m[4]*m[2]*m[13] - m[12]*m[1]*m[6] + m[12]*m[2]*m[5]
	inv[3] = -m[1]*m[6]*m[11] + m[1]*m[7]*m[10] + m[5]*m[2]*m[11] - m[5]*m[3]*m[10] - m[9]*m[2]*m[7] + m[9]*m[3]*m[6]
	inv[7] = m[0]*m[6]*m[11] - m[0]*m[7]*m[10] - m[4]*m[2]*m[11] + m[4]*m[3]*m[10] + m[8]*m[2]*m[7] - m[8]*m[3]*m[6]
	inv[11] = -m[0]*m[5]*m[11] + m[0]*m[7]*m[9] + m[4]*m[1]*m[11] - m[4]*m[3]*m[9] - m[8]*m[1]*m[7] + m[8]*m[3]*m[5]
	inv[15] = m[0]*m[5]*m[10] - m[0]*m[6]*m[9] - m[4]*m[1]*m[10] + m[4]*m[2]*m[9] + m[8]*m[1]*m[6] - m[8]*m[2]*m[5]

	det := m[0]*inv[0] + m[1]*inv[4] + m[2]*inv[8] + m[3]*inv[12]
	if det == 0 {
		return Identity(), false
	}
	for i := range inv {
		inv[i] /= det
	}
	return inv, true
}

// decomposed2D is an affine matrix split into translate, rotate, skew and
// scale, recomposed as T·R·K·S.
type decomposed2D struct {
	tx, ty, angle, skew, sx, sy float64
}

func (m Matrix) decompose2D() decomposed2D {
	a, b, c, d := m[0], m[4], m[1], m[5]
	sx := math.Hypot(a, b)
	if a*d-b*c < 0 {
		sx = -sx
	}
	if sx != 0 {
		a, b = a/sx, b/sx
	}
	skew := a*c + b*d
	c -= a * skew
	d -= b * skew
	sy := math.Hypot(c, d)
	if sy != 0 {
		skew /= sy
	}
	return decomposed2D{
		tx: m[3], ty: m[7],
		angle: math.Atan2(b, a),
		skew:  skew,
		sx:    sx, sy: sy,
	}
}

func (d decomposed2D) recompose() Matrix {
	s, c := math.Sincos(d.angle)
	r := Matrix{
		c, -s, 0, 0,
		s, c, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	k := Identity()
	k[1] = d.skew
	return Translate3D(d.tx, d.ty, 0).Multiply(r).Multiply(k).Multiply(Scale3D(d.sx, d.sy, 1))
}

// Blend interpolates from `from` (t=0) to m (t=1). Affine matrices are
// decomposed and interpolated component-wise, taking the short way around
// for rotation; other matrices are interpolated element by element.
func (m Matrix) Blend(from Matrix, t float64) Matrix {
	return m.blendDecomposed(from, t, func(start, end float64) float64 {
		return nearestTurn(end, start)
	})
}

// blendTurning is Blend with the rotation following turn, the unwrapped
// angle change in degrees, instead of the shortest arc. The end angle is
// the representation of m's angle closest to the start angle plus turn.
func (m Matrix) blendTurning(from Matrix, t, turn float64) Matrix {
	return m.blendDecomposed(from, t, func(start, end float64) float64 {
		return nearestTurn(end, start+turn*math.Pi/180)
	})
}

// nearestTurn returns angle shifted by whole turns to lie closest to ref.
func nearestTurn(angle, ref float64) float64 {
	return angle + 2*math.Pi*math.Round((ref-angle)/(2*math.Pi))
}

func (m Matrix) blendDecomposed(from Matrix, t float64, endAngle func(start, end float64) float64) Matrix {
	if !m.IsAffine() || !from.IsAffine() {
		var out Matrix
		for i := range out {
			out[i] = lerp(from[i], m[i], t)
		}
		return out
	}
	f, to := from.decompose2D(), m.decompose2D()
	to.angle = endAngle(f.angle, to.angle)
	return decomposed2D{
		tx:    lerp(f.tx, to.tx, t),
		ty:    lerp(f.ty, to.ty, t),
		angle: lerp(f.angle, to.angle, t),
		skew:  lerp(f.skew, to.skew, t),
		sx:    lerp(f.sx, to.sx, t),
		sy:    lerp(f.sy, to.sy, t),
	}.recompose()
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
