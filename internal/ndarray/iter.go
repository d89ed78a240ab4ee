package ndarray

// Iterate visits every index of shape in row-major order. For each index it
// calls fn with one byte offset per operand, computed as base[k] plus the
// dot product of the index with strides[k]. The offsets slice is reused
// between calls.
func Iterate(shape Shape, base []int, strides []Strides, fn func(offsets []int)) {
	if shape.NumElements() == 0 {
		return
	}
	nd := len(shape)
	offsets := make([]int, len(base))
	copy(offsets, base)
	if nd == 0 {
		fn(offsets)
		return
	}

	idx := make([]int, nd)
	for {
		fn(offsets)

		axis := nd - 1
		for ; axis >= 0; axis-- {
			idx[axis]++
			for k := range offsets {
				offsets[k] += strides[k][axis]
			}
			if idx[axis] < shape[axis] {
				break
			}
			for k := range offsets {
				offsets[k] -= strides[k][axis] * shape[axis]
			}
			idx[axis] = 0
		}
		if axis < 0 {
			return
		}
	}
}
