package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// hashDimension matches the pgvector column width so the hash provider can
// stand in for the hosted one without a schema change.
const hashDimension = 1536

// HashClient is a deterministic, offline embedder. Tokens are hashed into
// fixed buckets and the vector is L2-normalized, so identical text always
// embeds identically and cosine distance stays meaningful. It is not a
// semantic model; it exists for local runs and tests.
type HashClient struct {
	dimension int
}

func NewHashClient() *HashClient {
	return &HashClient{dimension: hashDimension}
}

func (c *HashClient) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, c.dimension)
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return v, nil
	}

	h := fnv.New64a()
	for _, f := range fields {
		h.Reset()
		_, _ = h.Write([]byte(f))
		sum := h.Sum64()
		idx := int(sum % uint64(c.dimension))
		if sum&(1<<63) != 0 {
			v[idx] -= 1
		} else {
			v[idx] += 1
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range v {
			v[i] *= scale
		}
	}
	return v, nil
}

func (c *HashClient) Dimension() int {
	return c.dimension
}
