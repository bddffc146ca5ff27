package embedding

// hashVector scatters each lower-cased alphanumeric byte of text across the
// vector, weighted by its position, with a 0.5 contribution to each adjacent
// dimension for smoothing, then L2-normalizes. Deterministic for identical
// input. Text with no alphanumeric content produces a zero vector.
func hashVector(text string, dims int) []float32 {
	values := make([]float32, dims)

	for i := 0; i < len(text); i++ {
		c := lowerByte(text[i])
		if !isAlnum(c) {
			continue
		}

		dim := (int(c) * (i + 1)) % dims
		values[dim] += 1.0

		if dim > 0 {
			values[dim-1] += 0.5
		}
		if dim < dims-1 {
			values[dim+1] += 0.5
		}
	}

	normalize(values)
	return values
}

func lowerByte(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
