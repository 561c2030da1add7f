package utils

import "gonum.org/v1/gonum/mat"

// CalcHeadroom sums the residual resources normalized by the largest
// capacity of each dimension, so cpu and memory weigh the same.
func CalcHeadroom(resources *mat.VecDense, maxResources *mat.VecDense) float64 {
	var ret float64

	for i := 0; i < resources.Len(); i++ {
		if maxResources.AtVec(i) <= 0 {
			continue
		}
		ret += resources.AtVec(i) / maxResources.AtVec(i)
	}

	return ret
}

// CalcUtilization is the product of per dimension usage ratios.
func CalcUtilization(used *mat.VecDense, capacity *mat.VecDense) float64 {
	var ret float64
	ret = 1

	for i := 0; i < used.Len(); i++ {
		if capacity.AtVec(i) <= 0 {
			return 0
		}
		ret *= used.AtVec(i) / capacity.AtVec(i)
	}

	return ret
}
