// Package nn implements the neural network building blocks for the chaintag
// sequence labeler.
//
// This package provides:
//   - Parameter: trainable parameters with gradient accumulation
//   - Linear: fully connected layer
//   - Embedding: id-to-vector lookup table
//   - Dropout: inverted dropout
//   - LSTM, StackedLSTM: recurrent layers, optionally bidirectional,
//     with explicit backpropagation through time
//
// Layers expose typed Forward/Backward pairs instead of a single generic
// Forward signature: the recurrent layers consume whole sequences and return
// per-call caches, so their signatures differ from the dense layers.
// Gradients are computed analytically and accumulated into each Parameter;
// an optimizer from the optim package consumes them between calls.
//
// Design follows PyTorch's nn.Module conventions adapted to Go.
package nn

// Module is the base interface for all neural network components.
//
// Every module must expose its trainable parameters so that optimizers can
// update them and checkpoints can serialize them. Modules without trainable
// parameters (e.g. Dropout) return an empty slice.
type Module interface {
	// Parameters returns all trainable parameters of this module,
	// including nested module parameters.
	Parameters() []*Parameter
}
