package utils

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// EPS absorbs the float error accumulated by repeated add/sub of demands.
const EPS = 1e-9

func SubVec(a, b *mat.VecDense) *mat.VecDense {
	if a.Len() != b.Len() {
		panic("Two vectors should have the same length.")
	}

	ret := mat.NewVecDense(a.Len(), nil)
	ret.SubVec(a, b)

	return ret
}

func SSubVec(a, b *mat.VecDense) {
	a.SubVec(a, b)
}

func SAddVec(a, b *mat.VecDense) {
	a.AddVec(a, b)
}

func LEThan(a, b *mat.VecDense) bool {
	if a.Len() != b.Len() {
		panic("Two vectors should have the same length.")
	}

	for i := 0; i < a.Len(); i += 1 {
		if a.AtVec(i) > b.AtVec(i)+EPS {
			return false
		}
	}

	return true
}

func LThan(a, b *mat.VecDense) bool {
	return !LEThan(b, a)
}

func ToString(v *mat.VecDense) string {
	if v == nil {
		return "()"
	}

	parts := make([]string, v.Len())
	for i := 0; i < v.Len(); i++ {
		parts[i] = fmt.Sprintf("%g", v.AtVec(i))
	}

	return "(" + strings.Join(parts, ", ") + ")"
}
