package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// Matmul multiplies the last two dimensions: (..., m, n) @ (..., n, p) -> (..., m, p).
//
// A 2D right operand is broadcast over every leading dimension of a, which is
// the shape of a linear projection. A 2D left operand is broadcast over the
// batch of b. Otherwise both operands must carry identical leading dimensions.
func Matmul(a, b *Tensor) (*Tensor, error) {
	if len(a.Shape) < 2 || len(b.Shape) < 2 {
		return nil, fmt.Errorf("matmul requires at least 2D tensors, got %dD and %dD: %w",
			len(a.Shape), len(b.Shape), ErrShapeMismatch)
	}

	m, n := a.Shape[len(a.Shape)-2], a.Shape[len(a.Shape)-1]
	n2, p := b.Shape[len(b.Shape)-2], b.Shape[len(b.Shape)-1]
	if n != n2 {
		return nil, fmt.Errorf("incompatible shapes for matmul: %v and %v (inner dimensions %d and %d don't match): %w",
			a.Shape, b.Shape, n, n2, ErrShapeMismatch)
	}

	switch {
	case len(b.Shape) == 2:
		// Fold every leading dimension of a into the row count.
		rows := numElements(a.Shape[:len(a.Shape)-1])
		outShape := append(copyShape(a.Shape[:len(a.Shape)-1]), p)
		result := NewTensor(outShape)
		gemm(a.Data, b.Data, result.Data, rows, n, p)
		return result, nil

	case len(a.Shape) == 2:
		batchDims := b.Shape[:len(b.Shape)-2]
		result := NewTensor(append(append(copyShape(batchDims), m), p))
		batch := numElements(batchDims)
		for i := 0; i < batch; i++ {
			gemm(a.Data, b.Data[i*n*p:(i+1)*n*p], result.Data[i*m*p:(i+1)*m*p], m, n, p)
		}
		return result, nil
	}

	batchDims := a.Shape[:len(a.Shape)-2]
	if len(batchDims) != len(b.Shape)-2 {
		return nil, fmt.Errorf("batch dimensions differ for matmul: %v and %v: %w", a.Shape, b.Shape, ErrShapeMismatch)
	}
	for i, d := range batchDims {
		if b.Shape[i] != d {
			return nil, fmt.Errorf("batch dimensions differ for matmul: %v and %v: %w", a.Shape, b.Shape, ErrShapeMismatch)
		}
	}

	result := NewTensor(append(append(copyShape(batchDims), m), p))
	batch := numElements(batchDims)
	for i := 0; i < batch; i++ {
		gemm(a.Data[i*m*n:(i+1)*m*n], b.Data[i*n*p:(i+1)*n*p], result.Data[i*m*p:(i+1)*m*p], m, n, p)
	}
	return result, nil
}

// gemm computes c = a @ b for row-major a (m×k), b (k×n) and c (m×n).
func gemm(a, b, c []float32, m, k, n int) {
	if m == 0 || n == 0 {
		return
	}
	if k == 0 {
		for i := range c[:m*n] {
			c[i] = 0
		}
		return
	}
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		blas32.General{Rows: m, Cols: k, Stride: k, Data: a},
		blas32.General{Rows: k, Cols: n, Stride: n, Data: b},
		0,
		blas32.General{Rows: m, Cols: n, Stride: n, Data: c},
	)
}

// Linear computes x @ w + bias, with bias broadcast over every row.
// bias may be nil.
func Linear(x, w, bias *Tensor) (*Tensor, error) {
	out, err := Matmul(x, w)
	if err != nil {
		return nil, err
	}
	if bias == nil {
		return out, nil
	}

	p := out.Shape[len(out.Shape)-1]
	if len(bias.Data) != p {
		return nil, fmt.Errorf("bias length %d does not match output features %d: %w",
			len(bias.Data), p, ErrShapeMismatch)
	}
	for base := 0; base < len(out.Data); base += p {
		for j := 0; j < p; j++ {
			out.Data[base+j] += bias.Data[j]
		}
	}
	return out, nil
}
