package monitor

// Downsample reduces src to at most maxPoints elements by decimation for
// display. It reuses dst when it has enough capacity and returns the result.
// When src already fits, it is copied unchanged.
func Downsample[T any](dst, src []T, maxPoints int) []T {
	if maxPoints <= 0 {
		return dst[:0]
	}

	n := min(len(src), maxPoints)
	if cap(dst) >= n {
		dst = dst[:0]
	} else {
		dst = make([]T, 0, n)
	}

	if len(src) <= maxPoints {
		return append(dst, src...)
	}

	step := float64(len(src)) / float64(maxPoints)
	for i := range maxPoints {
		dst = append(dst, src[int(float64(i)*step)])
	}
	return dst
}
