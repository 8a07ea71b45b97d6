package evmcircuit

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/consensys/zkevm-gadgets/evmcircuit/expr"
)

// CachedRegion holds the concrete cell values of assigned rows. Cells not
// assigned on a row read back as zero, matching the behaviour of the
// underlying proving substrate.
type CachedRegion struct {
	rows      []row
	challenge fr.Element
}

type row struct {
	values   []fr.Element
	assigned *bitset.BitSet
}

// NewCachedRegion returns an empty region using challenge as the byte-RLC
// randomness.
func NewCachedRegion(challenge fr.Element) *CachedRegion {
	return &CachedRegion{challenge: challenge}
}

// Challenge returns the RLC randomness.
func (r *CachedRegion) Challenge() fr.Element { return r.challenge }

func (r *CachedRegion) row(offset int) *row {
	for len(r.rows) <= offset {
		r.rows = append(r.rows, row{assigned: bitset.New(64)})
	}
	return &r.rows[offset]
}

// AssignCell writes v into cell id at the given row offset. Re-assigning the
// same value is a no-op; a different value is an error.
func (r *CachedRegion) AssignCell(offset int, id expr.CellID, v fr.Element) error {
	if offset < 0 {
		return fmt.Errorf("evmcircuit: negative row offset %d", offset)
	}
	rw := r.row(offset)
	for len(rw.values) <= int(id) {
		rw.values = append(rw.values, fr.Element{})
	}
	if rw.assigned.Test(uint(id)) {
		if !rw.values[id].Equal(&v) {
			return fmt.Errorf("%w: cell %d row %d: %s vs %s",
				ErrCellConflict, id, offset, rw.values[id].String(), v.String())
		}
		return nil
	}
	rw.values[id] = v
	rw.assigned.Set(uint(id))
	return nil
}

// Value returns the value of cell id on the row, and whether it was
// explicitly assigned.
func (r *CachedRegion) Value(offset int, id expr.CellID) (fr.Element, bool) {
	if offset < 0 || offset >= len(r.rows) {
		return fr.Element{}, false
	}
	rw := &r.rows[offset]
	if int(id) >= len(rw.values) || !rw.assigned.Test(uint(id)) {
		return fr.Element{}, false
	}
	return rw.values[id], true
}

// AssignedCount returns the number of assigned cells on the row.
func (r *CachedRegion) AssignedCount(offset int) int {
	if offset < 0 || offset >= len(r.rows) {
		return 0
	}
	return int(r.rows[offset].assigned.Count())
}

// Resolver returns a cell resolver over the row, suitable for
// expr.Expression.Eval. Unassigned cells resolve to zero.
func (r *CachedRegion) Resolver(offset int) func(expr.CellID) fr.Element {
	return func(id expr.CellID) fr.Element {
		v, _ := r.Value(offset, id)
		return v
	}
}
