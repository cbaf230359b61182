package strx

// Coalesce returns s if non-empty, otherwise d.
func Coalesce[T ~string](s, d T) T {
	if s == "" {
		return d
	}
	return s
}
