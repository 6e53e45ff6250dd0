package mathx

import "golang.org/x/exp/constraints"

// Map linearly maps x from [inMin,inMax] onto [outMin,outMax] using int64
// intermediates. The output range may be descending (outMin > outMax), which
// inverts the mapping. Inputs outside the input range are clamped first.
func Map[T constraints.Integer](x, inMin, inMax, outMin, outMax T) T {
	if inMax == inMin {
		return outMin
	}
	x = Clamp(x, inMin, inMax)
	num := (int64(x) - int64(inMin)) * (int64(outMax) - int64(outMin))
	den := int64(inMax) - int64(inMin)
	return T(int64(outMin) + num/den)
}
