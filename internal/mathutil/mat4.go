package mathutil

import "math"

// Mat4 is a 4×4 matrix stored row-major, acting on column vectors.
type Mat4 [16]float64

func Mat4Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mat4Mul returns a × b.
func Mat4Mul(a, b Mat4) Mat4 {
	var m Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m[r*4+c] = a[r*4+0]*b[0*4+c] + a[r*4+1]*b[1*4+c] +
				a[r*4+2]*b[2*4+c] + a[r*4+3]*b[3*4+c]
		}
	}
	return m
}

// MulPoint transforms a 3D point (w=1) by the affine part of the matrix.
func (m Mat4) MulPoint(v Vec3) Vec3 {
	return Vec3{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2] + m[3],
		m[4]*v[0] + m[5]*v[1] + m[6]*v[2] + m[7],
		m[8]*v[0] + m[9]*v[1] + m[10]*v[2] + m[11],
	}
}

// Project transforms the point v (w=1) and divides by the resulting w,
// which is returned as well.
func (m Mat4) Project(v Vec3) (Vec3, float64) {
	p := m.MulPoint(v)
	w := m[12]*v[0] + m[13]*v[1] + m[14]*v[2] + m[15]
	if w == 0 {
		return p, 0
	}
	return p.Scale(1 / w), w
}

// Inverse returns the inverse of m by Gauss-Jordan elimination with partial
// pivoting. ok is false for a singular matrix.
func (m Mat4) Inverse() (inv Mat4, ok bool) {
	a := m
	inv = Mat4Identity()
	for col := 0; col < 4; col++ {
		p := col
		for r := col + 1; r < 4; r++ {
			if math.Abs(a[r*4+col]) > math.Abs(a[p*4+col]) {
				p = r
			}
		}
		if math.Abs(a[p*4+col]) < 1e-15 {
			return Mat4{}, false
		}
		if p != col {
			for c := 0; c < 4; c++ {
				a[p*4+c], a[col*4+c] = a[col*4+c], a[p*4+c]
				inv[p*4+c], inv[col*4+c] = inv[col*4+c], inv[p*4+c]
			}
		}
		d := 1 / a[col*4+col]
		for c := 0; c < 4; c++ {
			a[col*4+c] *= d
			inv[col*4+c] *= d
		}
		for r := 0; r < 4; r++ {
			if r == col {
				continue
			}
			f := a[r*4+col]
			if f == 0 {
				continue
			}
			for c := 0; c < 4; c++ {
				a[r*4+c] -= f * a[col*4+c]
				inv[r*4+c] -= f * inv[col*4+c]
			}
		}
	}
	return inv, true
}

// LookAt returns the view matrix of an eye at eye looking at center: the eye
// sits at the origin looking down -z with up along +y.
func LookAt(eye, center, up Vec3) Mat4 {
	f := center.Sub(eye).Normalize()
	s := f.Cross(up).Normalize()
	u := s.Cross(f)
	return Mat4{
		s[0], s[1], s[2], -s.Dot(eye),
		u[0], u[1], u[2], -u.Dot(eye),
		-f[0], -f[1], -f[2], f.Dot(eye),
		0, 0, 0, 1,
	}
}

// Perspective maps the view frustum with vertical field of view fovy
// (radians) to x, y in [-1, 1] and depth in [0, 1] from near to far.
func Perspective(fovy, aspect, near, far float64) Mat4 {
	f := 1 / math.Tan(fovy/2)
	return Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, far / (near - far), near * far / (near - far),
		0, 0, -1, 0,
	}
}

// Orthographic maps a box of half height halfHeight to x, y in [-1, 1] and
// depth in [0, 1] from near to far.
func Orthographic(halfHeight, aspect, near, far float64) Mat4 {
	return Mat4{
		1 / (halfHeight * aspect), 0, 0, 0,
		0, 1 / halfHeight, 0, 0,
		0, 0, 1 / (near - far), near / (near - far),
		0, 0, 0, 1,
	}
}

// IsIdentity checks if the matrix is approximately identity.
func (m Mat4) IsIdentity() bool {
	id := Mat4Identity()
	for i := 0; i < 16; i++ {
		d := m[i] - id[i]
		if d > 1e-8 || d < -1e-8 {
			return false
		}
	}
	return true
}
