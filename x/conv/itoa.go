package conv

// Itoa writes base-10 representation of n into buf and returns the used slice.
// buf should be length >= 20 for int64. Negative numbers supported.
// No allocations; no fmt/strconv dependency.
func Itoa(buf []byte, n int64) []byte {
	if len(buf) == 0 {
		return buf[:0]
	}
	i := len(buf)
	neg := n < 0
	u := uint64(n)
	if neg {
		u = uint64(-n)
	}
	i = putDigits(buf, i, u, 1)
	if neg && i > 0 {
		i--
		buf[i] = '-'
	}
	return buf[i:]
}

// putDigits writes u backwards ending at buf[i-1], at least min digits, and
// returns the new start index.
func putDigits(buf []byte, i int, u uint64, min int) int {
	for n := 0; (u > 0 || n < min) && i > 0; n++ {
		i--
		buf[i] = byte('0' + (u % 10))
		u /= 10
	}
	return i
}
