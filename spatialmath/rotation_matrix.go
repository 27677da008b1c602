package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/macro-rover/navigator/utils"
)

// RotationMatrix is a 3x3 matrix in row major order.
// m[3*r + c] is the element in the r'th row and c'th column.
type RotationMatrix struct {
	mat [9]float64
}

// NewRotationMatrix creates the rotation matrix from a slice of 9 values in row major order. The
// values are not checked for orthonormality; use IsOrthonormal for that.
func NewRotationMatrix(m []float64) (*RotationMatrix, error) {
	if len(m) != 9 {
		return nil, errors.New("input slice has to have length of 9")
	}
	var values [9]float64
	copy(values[:], m)
	return &RotationMatrix{values}, nil
}

// IdentityRotationMatrix is the rotation that leaves every vector alone.
func IdentityRotationMatrix() *RotationMatrix {
	return &RotationMatrix{[9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// At returns the element at row r, column c.
func (rm *RotationMatrix) At(r, c int) float64 {
	return rm.mat[3*r+c]
}

// Row returns the row r as a vector.
func (rm *RotationMatrix) Row(r int) r3.Vector {
	return r3.Vector{X: rm.mat[3*r], Y: rm.mat[3*r+1], Z: rm.mat[3*r+2]}
}

// Col returns the column c as a vector.
func (rm *RotationMatrix) Col(c int) r3.Vector {
	return r3.Vector{X: rm.mat[c], Y: rm.mat[c+3], Z: rm.mat[c+6]}
}

// Mul returns rm·v.
func (rm *RotationMatrix) Mul(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: rm.Row(0).Dot(v),
		Y: rm.Row(1).Dot(v),
		Z: rm.Row(2).Dot(v),
	}
}

// MatMul returns rm·other.
func (rm *RotationMatrix) MatMul(other *RotationMatrix) *RotationMatrix {
	var out [9]float64
	for r := 0; r < 3; r++ {
		row := rm.Row(r)
		for c := 0; c < 3; c++ {
			out[3*r+c] = row.Dot(other.Col(c))
		}
	}
	return &RotationMatrix{out}
}

// Transpose returns rmᵗ, which is also the inverse of a rotation.
func (rm *RotationMatrix) Transpose() *RotationMatrix {
	m := rm.mat
	return &RotationMatrix{[9]float64{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}}
}

// Dense copies the matrix into a gonum dense matrix.
func (rm *RotationMatrix) Dense() *mat.Dense {
	data := rm.mat
	return mat.NewDense(3, 3, data[:])
}

// Det returns the determinant.
func (rm *RotationMatrix) Det() float64 {
	return mat.Det(rm.Dense())
}

// IsOrthonormal checks R·Rᵗ = I and det(R) = 1 elementwise within tol.
func (rm *RotationMatrix) IsOrthonormal(tol float64) bool {
	var product mat.Dense
	dense := rm.Dense()
	product.Mul(dense, dense.T())
	if !mat.EqualApprox(&product, IdentityRotationMatrix().Dense(), tol) {
		return false
	}
	return math.Abs(rm.Det()-1) <= tol
}

// AlmostEqual compares two matrices elementwise within tol.
func (rm *RotationMatrix) AlmostEqual(other *RotationMatrix, tol float64) bool {
	for i := range rm.mat {
		if !utils.Float64AlmostEqual(rm.mat[i], other.mat[i], tol) {
			return false
		}
	}
	return true
}

func (rm *RotationMatrix) String() string {
	m := rm.mat
	return fmt.Sprintf("[[%.6f %.6f %.6f] [%.6f %.6f %.6f] [%.6f %.6f %.6f]]",
		m[0], m[1], m[2], m[3], m[4], m[5], m[6], m[7], m[8])
}
