package strata

import "math"

// TransformOpType names a transform primitive.
type TransformOpType uint8

const (
	OpTranslate   TransformOpType = iota // X, Y, Z offsets
	OpScale                              // X, Y, Z factors
	OpRotate                             // Angle degrees around axis (X, Y, Z)
	OpSkew                               // X, Y angles in degrees
	OpPerspective                        // Distance
	OpMatrix                             // Matrix
)

// TransformOperation is one primitive of a decomposed transform.
type TransformOperation struct {
	Type     TransformOpType `json:"type"`
	X        float64         `json:"x,omitempty"`
	Y        float64         `json:"y,omitempty"`
	Z        float64         `json:"z,omitempty"`
	Angle    float64         `json:"angle,omitempty"`
	Distance float64         `json:"distance,omitempty"`
	Matrix   *Matrix         `json:"matrix,omitempty"`
}

// TranslateOp returns a translation primitive.
func TranslateOp(x, y, z float64) TransformOperation {
	return TransformOperation{Type: OpTranslate, X: x, Y: y, Z: z}
}

// ScaleOp returns a scale primitive.
func ScaleOp(x, y, z float64) TransformOperation {
	return TransformOperation{Type: OpScale, X: x, Y: y, Z: z}
}

// RotateOp returns a rotation of deg degrees around (x, y, z).
func RotateOp(x, y, z, deg float64) TransformOperation {
	return TransformOperation{Type: OpRotate, X: x, Y: y, Z: z, Angle: deg}
}

// RotateZOp returns a 2D rotation primitive.
func RotateZOp(deg float64) TransformOperation {
	return RotateOp(0, 0, 1, deg)
}

// SkewOp returns a skew primitive.
func SkewOp(ax, ay float64) TransformOperation {
	return TransformOperation{Type: OpSkew, X: ax, Y: ay}
}

// PerspectiveOp returns a perspective primitive.
func PerspectiveOp(d float64) TransformOperation {
	return TransformOperation{Type: OpPerspective, Distance: d}
}

// MatrixOp wraps an arbitrary matrix.
func MatrixOp(m Matrix) TransformOperation {
	return TransformOperation{Type: OpMatrix, Matrix: &m}
}

// identityOf returns the no-op primitive of the same type as op.
func identityOf(op TransformOperation) TransformOperation {
	switch op.Type {
	case OpScale:
		return ScaleOp(1, 1, 1)
	case OpRotate:
		return RotateOp(op.X, op.Y, op.Z, 0)
	case OpMatrix:
		return MatrixOp(Identity())
	default:
		return TransformOperation{Type: op.Type}
	}
}

// ToMatrix returns the matrix of a single primitive.
func (op TransformOperation) ToMatrix() Matrix {
	switch op.Type {
	case OpTranslate:
		return Translate3D(op.X, op.Y, op.Z)
	case OpScale:
		return Scale3D(op.X, op.Y, op.Z)
	case OpRotate:
		return Rotate3D(op.X, op.Y, op.Z, op.Angle)
	case OpSkew:
		return Skew(op.X, op.Y)
	case OpPerspective:
		return Perspective(op.Distance)
	case OpMatrix:
		if op.Matrix != nil {
			return *op.Matrix
		}
	}
	return Identity()
}

func sameAxis(a, b TransformOperation) bool {
	la := math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z)
	lb := math.Sqrt(b.X*b.X + b.Y*b.Y + b.Z*b.Z)
	if la == 0 || lb == 0 {
		return la == lb
	}
	const eps = 1e-9
	return math.Abs(a.X/la-b.X/lb) < eps && math.Abs(a.Y/la-b.Y/lb) < eps && math.Abs(a.Z/la-b.Z/lb) < eps
}

// blend interpolates from `from` (t=0) to op (t=1). Both must share a type.
func (op TransformOperation) blend(from TransformOperation, t float64) TransformOperation {
	switch op.Type {
	case OpTranslate, OpScale:
		return TransformOperation{Type: op.Type, X: lerp(from.X, op.X, t), Y: lerp(from.Y, op.Y, t), Z: lerp(from.Z, op.Z, t)}
	case OpSkew:
		return SkewOp(lerp(from.X, op.X, t), lerp(from.Y, op.Y, t))
	case OpRotate:
		if sameAxis(op, from) || from.Angle == 0 {
			return RotateOp(op.X, op.Y, op.Z, lerp(from.Angle, op.Angle, t))
		}
		if op.Angle == 0 {
			return RotateOp(from.X, from.Y, from.Z, lerp(from.Angle, 0, t))
		}
	case OpPerspective:
		inv := func(d float64) float64 {
			if d <= 0 {
				return 0
			}
			return 1 / d
		}
		p := lerp(inv(from.Distance), inv(op.Distance), t)
		if p <= 0 {
			return PerspectiveOp(0)
		}
		return PerspectiveOp(1 / p)
	}
	return MatrixOp(op.ToMatrix().Blend(from.ToMatrix(), t))
}

// TransformOperations is an ordered list of primitives, applied left to
// right as in CSS.
type TransformOperations []TransformOperation

// Apply multiplies the primitives together.
func (ops TransformOperations) Apply() Matrix {
	m := Identity()
	for _, op := range ops {
		m = m.Multiply(op.ToMatrix())
	}
	return m
}

// zRotation sums the angles of rotations about the Z axis, in degrees.
func (ops TransformOperations) zRotation() float64 {
	var deg float64
	for _, op := range ops {
		if op.Type == OpRotate && op.X == 0 && op.Y == 0 && op.Z != 0 {
			deg += math.Copysign(op.Angle, op.Z)
		}
	}
	return deg
}

// Matches reports whether ops and other can be blended primitive by
// primitive: same length and the same type at every index. An empty list
// matches anything.
func (ops TransformOperations) Matches(other TransformOperations) bool {
	if len(ops) == 0 || len(other) == 0 {
		return true
	}
	if len(ops) != len(other) {
		return false
	}
	for i := range ops {
		if ops[i].Type != other[i].Type {
			return false
		}
	}
	return true
}

// Blend interpolates from `from` (t=0) to ops (t=1). Matching lists blend
// per primitive; otherwise the composed matrices are blended.
func (ops TransformOperations) Blend(from TransformOperations, t float64) TransformOperations {
	if !ops.Matches(from) {
		return TransformOperations{MatrixOp(ops.Apply().Blend(from.Apply(), t))}
	}
	n := max(len(ops), len(from))
	out := make(TransformOperations, n)
	for i := 0; i < n; i++ {
		var to, fr TransformOperation
		switch {
		case len(ops) == 0:
			fr = from[i]
			to = identityOf(fr)
		case len(from) == 0:
			to = ops[i]
			fr = identityOf(to)
		default:
			to, fr = ops[i], from[i]
		}
		out[i] = to.blend(fr, t)
	}
	return out
}
