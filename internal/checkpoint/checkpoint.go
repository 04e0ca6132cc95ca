// Package checkpoint persists model state dicts to disk.
//
// A checkpoint is a gob-encoded map from parameter name to shape and raw
// float64 data. Loading validates shapes against nothing by itself; the
// model's LoadStateDict performs the shape checks when it copies the values
// back in.
package checkpoint

import (
	"encoding/gob"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
)

// tensor is the on-disk form of one parameter.
type tensor struct {
	Rows int
	Cols int
	Data []float64
}

// Save writes a state dict to path, replacing any existing file.
func Save(path string, sd map[string]*mat.Dense) error {
	tensors := make(map[string]tensor, len(sd))
	for name, m := range sd {
		r, c := m.Dims()
		data := make([]float64, r*c)
		for i := 0; i < r; i++ {
			copy(data[i*c:(i+1)*c], m.RawRowView(i))
		}
		tensors[name] = tensor{Rows: r, Cols: c, Data: data}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("checkpoint: create: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(tensors); err != nil {
		return fmt.Errorf("checkpoint: encode: %w", err)
	}
	return nil
}

// Load reads a state dict from path.
func Load(path string) (map[string]*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open: %w", err)
	}
	defer f.Close()

	var tensors map[string]tensor
	if err := gob.NewDecoder(f).Decode(&tensors); err != nil {
		return nil, fmt.Errorf("checkpoint: decode: %w", err)
	}

	sd := make(map[string]*mat.Dense, len(tensors))
	for name, t := range tensors {
		if t.Rows*t.Cols != len(t.Data) {
			return nil, fmt.Errorf("checkpoint: %s has %d values for shape %dx%d", name, len(t.Data), t.Rows, t.Cols)
		}
		sd[name] = mat.NewDense(t.Rows, t.Cols, t.Data)
	}
	return sd, nil
}
