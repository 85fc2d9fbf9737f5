package attention

import (
	"errors"

	"gptcore/pkg/tensor"
)

var (
	// ErrInvalidConfig is returned by constructors for unusable configurations,
	// e.g. an output dimension not divisible by the number of heads.
	ErrInvalidConfig = errors.New("invalid attention config")

	// ErrSequenceTooLong is returned by Forward when the input has more
	// positions than the context length the layer was built for.
	ErrSequenceTooLong = errors.New("sequence length exceeds context length")

	// ErrShapeMismatch is returned by Forward for inputs of the wrong rank or width.
	ErrShapeMismatch = tensor.ErrShapeMismatch
)
