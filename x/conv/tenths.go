package conv

// Tenths writes a fixed-point value held in tenths (e.g. deci-°C) as a
// decimal with one fractional digit: 264 -> "26.4", -266 -> "-26.6",
// -5 -> "-0.5". buf should be length >= 8.
func Tenths(buf []byte, v int16) []byte {
	if len(buf) < 8 {
		return buf[:0]
	}
	neg := v < 0
	u := uint64(v)
	if neg {
		u = uint64(-int32(v))
	}
	i := len(buf)
	i--
	buf[i] = byte('0' + u%10)
	i--
	buf[i] = '.'
	i = putDigits(buf, i, u/10, 1)
	if neg {
		i--
		buf[i] = '-'
	}
	return buf[i:]
}

// AppendTenths appends Tenths(v) to dst.
func AppendTenths(dst []byte, v int16) []byte {
	var b [8]byte
	return append(dst, Tenths(b[:], v)...)
}

const hexd = "0123456789ABCDEF"

// AppendHex appends p as space-separated two-digit uppercase hex bytes.
func AppendHex(dst []byte, p []byte) []byte {
	for i, c := range p {
		if i > 0 {
			dst = append(dst, ' ')
		}
		dst = append(dst, hexd[c>>4], hexd[c&0xF])
	}
	return dst
}
