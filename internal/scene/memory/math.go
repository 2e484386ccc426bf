package memory

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/gsnap/extension/internal/scene"
)

const gimbalEpsilon = 1e-9

// localMatrix builds T * Rz * Ry * Rx, i.e. XYZ rotate order.
func localMatrix(t scene.Transform) mgl64.Mat4 {
	rx := mgl64.HomogRotate3DX(mgl64.DegToRad(t.Rotate[0]))
	ry := mgl64.HomogRotate3DY(mgl64.DegToRad(t.Rotate[1]))
	rz := mgl64.HomogRotate3DZ(mgl64.DegToRad(t.Rotate[2]))
	tr := mgl64.Translate3D(t.Translate[0], t.Translate[1], t.Translate[2])
	return tr.Mul4(rz).Mul4(ry).Mul4(rx)
}

// decompose is the inverse of localMatrix for rigid matrices.
func decompose(m mgl64.Mat4) scene.Transform {
	var t scene.Transform
	t.Translate = [3]float64{m.At(0, 3), m.At(1, 3), m.At(2, 3)}

	sy := -m.At(2, 0)
	if sy > 1 {
		sy = 1
	} else if sy < -1 {
		sy = -1
	}
	ry := math.Asin(sy)

	var rx, rz float64
	if math.Abs(math.Cos(ry)) > gimbalEpsilon {
		rx = math.Atan2(m.At(2, 1), m.At(2, 2))
		rz = math.Atan2(m.At(1, 0), m.At(0, 0))
	} else {
		rx = math.Atan2(-m.At(1, 2), m.At(1, 1))
		rz = 0
	}

	t.Rotate = [3]float64{
		cleanZero(mgl64.RadToDeg(rx)),
		cleanZero(mgl64.RadToDeg(ry)),
		cleanZero(mgl64.RadToDeg(rz)),
	}
	t.Translate = [3]float64{cleanZero(t.Translate[0]), cleanZero(t.Translate[1]), cleanZero(t.Translate[2])}
	return t
}

// cleanZero folds -0 and float noise around zero to 0.
func cleanZero(v float64) float64 {
	if math.Abs(v) < 1e-12 {
		return 0
	}
	return v
}
