package nn

import (
	"fmt"
	"math"

	"github.com/strand-ml/strand/internal/tensor"
)

// PositionalEncoding adds fixed sinusoidal position information to a
// sequence tensor, the encoding from "Attention is All You Need"
// (Vaswani et al., 2017):
//
//	PE(pos, 2i)   = sin(pos / 10000^(2i/d))
//	PE(pos, 2i+1) = cos(pos / 10000^(2i/d))
//
// Attention itself is permutation-invariant, so encoders built from
// TransformerUnit rely on this layer to make position visible: the table
// is added to the input features before the first attention layer, then
// dropout is applied.
//
// The table is a fixed function of (maxLen, dim), precomputed once at
// construction. It is not a learned parameter and does not appear in
// Parameters or any state dict; rebuilding the layer reproduces it
// exactly.
//
// Example:
//
//	pe := nn.NewPositionalEncoding(200, 512, 0.1, backend)
//	features = pe.Forward(features) // (batch, seq, 512), seq <= 200
type PositionalEncoding[B tensor.Backend] struct {
	table   []float32 // (maxLen, dim), row-major
	maxLen  int
	dim     int
	dropout *Dropout[B]
	backend B
}

// NewPositionalEncoding creates a PositionalEncoding layer with encodings
// precomputed for positions [0, maxLen).
//
// Panics if maxLen or dim is not positive, or if dropout is outside [0, 1].
func NewPositionalEncoding[B tensor.Backend](maxLen, dim int, dropout float32, backend B) *PositionalEncoding[B] {
	if maxLen <= 0 {
		panic(fmt.Sprintf("PositionalEncoding: maxLen must be positive, got %d", maxLen))
	}
	if dim <= 0 {
		panic(fmt.Sprintf("PositionalEncoding: dim must be positive, got %d", dim))
	}

	table := make([]float32, maxLen*dim)
	for pos := 0; pos < maxLen; pos++ {
		for i := 0; i < dim; i++ {
			angle := float64(pos) / math.Pow(10000.0, float64(2*(i/2))/float64(dim))
			if i%2 == 0 {
				table[pos*dim+i] = float32(math.Sin(angle))
			} else {
				table[pos*dim+i] = float32(math.Cos(angle))
			}
		}
	}

	return &PositionalEncoding[B]{
		table:   table,
		maxLen:  maxLen,
		dim:     dim,
		dropout: NewDropout(dropout, backend),
		backend: backend,
	}
}

// Forward adds position encodings to x and applies dropout.
//
// x must have shape (batch, seq, dim) with seq <= maxLen and the dim the
// layer was built with; the encoding slice (1, seq, dim) broadcasts over
// the batch. Panics on rank, length, or width violations.
func (p *PositionalEncoding[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("PositionalEncoding: expected 3D input (batch, seq, dim), got %dD", len(shape)))
	}
	seqLen, dim := shape[1], shape[2]
	if seqLen > p.maxLen {
		panic(fmt.Sprintf("PositionalEncoding: sequence length %d exceeds maxLen %d", seqLen, p.maxLen))
	}
	if dim != p.dim {
		panic(fmt.Sprintf("PositionalEncoding: input dim %d does not match encoding dim %d", dim, p.dim))
	}

	pe, err := tensor.FromSlice(p.table[:seqLen*p.dim], tensor.Shape{1, seqLen, p.dim}, p.backend)
	if err != nil {
		panic(fmt.Sprintf("PositionalEncoding: %v", err))
	}

	// pe on the left: the slice is freshly allocated and ours to consume,
	// while x belongs to the caller.
	return p.dropout.Forward(pe.Add(x))
}

// Table returns the precomputed encodings for the first seqLen positions
// as a (1, seqLen, dim) tensor, without touching an input. Panics if
// seqLen is not in (0, maxLen].
func (p *PositionalEncoding[B]) Table(seqLen int) *tensor.Tensor[float32, B] {
	if seqLen <= 0 || seqLen > p.maxLen {
		panic(fmt.Sprintf("PositionalEncoding: seqLen %d out of range (0, %d]", seqLen, p.maxLen))
	}
	pe, err := tensor.FromSlice(p.table[:seqLen*p.dim], tensor.Shape{1, seqLen, p.dim}, p.backend)
	if err != nil {
		panic(fmt.Sprintf("PositionalEncoding: %v", err))
	}
	return pe
}

// MaxLen returns the largest sequence length the table covers.
func (p *PositionalEncoding[B]) MaxLen() int { return p.maxLen }

// Dim returns the encoding width.
func (p *PositionalEncoding[B]) Dim() int { return p.dim }

// SetTraining toggles the dropout between training and inference mode.
func (p *PositionalEncoding[B]) SetTraining(training bool) {
	p.dropout.SetTraining(training)
}

// Parameters returns an empty slice: the encoding table is fixed.
func (p *PositionalEncoding[B]) Parameters() []*Parameter[B] {
	return nil
}
