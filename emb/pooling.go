package emb

import "math"

// Truncate shortens a token sequence to maxLen, keeping the final token so
// the closing special token survives.
func Truncate(ids []int, maxLen int) []int {
	if maxLen <= 0 || len(ids) <= maxLen {
		return ids
	}
	if maxLen == 1 {
		return ids[:1]
	}
	out := make([]int, maxLen)
	copy(out, ids[:maxLen-1])
	out[maxLen-1] = ids[len(ids)-1]
	return out
}

// MeanPool averages token embeddings of shape [batch, seqLen, hidden] over
// positions where mask is 1 and L2-normalizes each result.
func MeanPool(hidden []float32, batch, seqLen, dim int, mask []int64) [][]float32 {
	out := make([][]float32, batch)
	for b := 0; b < batch; b++ {
		acc := make([]float64, dim)
		var n float64
		for s := 0; s < seqLen; s++ {
			if mask != nil && mask[b*seqLen+s] == 0 {
				continue
			}
			n++
			base := (b*seqLen + s) * dim
			for d := 0; d < dim; d++ {
				acc[d] += float64(hidden[base+d])
			}
		}
		vec := make([]float32, dim)
		if n > 0 {
			for d := range acc {
				vec[d] = float32(acc[d] / n)
			}
		}
		out[b] = Normalize(vec)
	}
	return out
}

// Normalize scales v to unit length in place and returns it. Zero vectors are returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

func splitRows(data []float32, rows, dim int) [][]float32 {
	out := make([][]float32, rows)
	for r := 0; r < rows; r++ {
		vec := make([]float32, dim)
		copy(vec, data[r*dim:(r+1)*dim])
		out[r] = Normalize(vec)
	}
	return out
}
