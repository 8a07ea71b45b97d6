package evmcircuit

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// ConstraintInfo describes one constraint's shape.
type ConstraintInfo struct {
	Name   string `cbor:"1,keyasint"`
	Degree int    `cbor:"2,keyasint"`
}

// Manifest is the serialized shape of a configured gadget: cell counts,
// constraint names and degrees, lookup counts. Two configurations of the
// same gadget must produce identical manifests; the manifest is the
// artifact compared when diffing circuit versions.
type Manifest struct {
	State        string           `cbor:"1,keyasint"`
	Cells        int              `cbor:"2,keyasint"`
	BoolCells    int              `cbor:"3,keyasint"`
	ByteCells    int              `cbor:"4,keyasint"`
	Constraints  []ConstraintInfo `cbor:"5,keyasint"`
	RwLookups    int              `cbor:"6,keyasint"`
	FixedLookups int              `cbor:"7,keyasint"`
	CopyLookups  int              `cbor:"8,keyasint"`
	Transitions  int              `cbor:"9,keyasint"`
}

// Manifest returns the shape of the sealed builder.
func (cb *EVMConstraintBuilder) Manifest() Manifest {
	m := Manifest{
		State:        cb.state.String(),
		Cells:        len(cb.kinds),
		RwLookups:    len(cb.rwLookups),
		FixedLookups: len(cb.fixed),
		CopyLookups:  len(cb.copies),
		Transitions:  cb.transitions,
	}
	for _, k := range cb.kinds {
		switch k {
		case KindBool:
			m.BoolCells++
		case KindByte:
			m.ByteCells++
		}
	}
	m.Constraints = make([]ConstraintInfo, len(cb.constraints))
	for i, c := range cb.constraints {
		m.Constraints[i] = ConstraintInfo{Name: c.Name, Degree: c.Expr.Degree()}
	}
	return m
}

// Encode writes the manifest in cbor.
func (m Manifest) Encode(w io.Writer) error {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return fmt.Errorf("evmcircuit: cbor encoder: %w", err)
	}
	return enc.NewEncoder(w).Encode(m)
}

// DecodeManifest reads a cbor manifest.
func DecodeManifest(r io.Reader) (Manifest, error) {
	var m Manifest
	if err := cbor.NewDecoder(r).Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("evmcircuit: cbor decode: %w", err)
	}
	return m, nil
}
