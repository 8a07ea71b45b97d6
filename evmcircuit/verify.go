package evmcircuit

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"

	"github.com/consensys/zkevm-gadgets/evmcircuit/expr"
	"github.com/consensys/zkevm-gadgets/witness"
)

// Satisfied checks one assigned row against the builder's sealed constraint
// set: every scoped constraint must evaluate to zero, cell range kinds must
// hold, fixed and copy lookups must hit their tables, and the rw lookups
// with an active selector must match the step's recorded entries exactly,
// in order and accounting for every entry.
func Satisfied(cb *EVMConstraintBuilder, region *CachedRegion, offset int, block *witness.Block, step *witness.ExecStep) error {
	resolve := region.Resolver(offset)

	evalCond := func(c *expr.Expression) (bool, error) {
		if c == nil {
			return true, nil
		}
		v := c.Eval(resolve)
		if v.IsZero() {
			return false, nil
		}
		if v.IsOne() {
			return true, nil
		}
		return false, fmt.Errorf("evmcircuit: selector is not boolean: %s", v.String())
	}
	evalU64 := func(e *expr.Expression) (uint64, error) {
		v := e.Eval(resolve)
		if !v.IsUint64() {
			return 0, fmt.Errorf("%w: %s", ErrValueOverflow, v.String())
		}
		return v.Uint64(), nil
	}

	// Range kinds.
	for id, kind := range cb.kinds {
		v, ok := region.Value(offset, expr.CellID(id))
		if !ok {
			continue
		}
		switch kind {
		case KindBool:
			if !v.IsZero() && !v.IsOne() {
				return fmt.Errorf("evmcircuit: bool cell %d holds %s", id, v.String())
			}
		case KindByte:
			if !v.IsUint64() || v.Uint64() > 255 {
				return fmt.Errorf("evmcircuit: byte cell %d holds %s", id, v.String())
			}
		}
	}

	// Polynomial constraints.
	for _, c := range cb.constraints {
		if v := c.Expr.Eval(resolve); !v.IsZero() {
			return fmt.Errorf("evmcircuit: constraint %q not satisfied: %s", c.Name, v.String())
		}
	}

	// Opcode lookups.
	for _, l := range cb.opcodes {
		pc, err := evalU64(l.pc)
		if err != nil {
			return fmt.Errorf("opcode lookup pc: %w", err)
		}
		op, err := evalU64(l.opcode)
		if err != nil {
			return fmt.Errorf("opcode lookup value: %w", err)
		}
		if pc != step.ProgramCounter || op != uint64(step.Opcode) {
			return fmt.Errorf("evmcircuit: opcode lookup (pc=%d, op=%#x) does not match step (pc=%d, op=%#x)",
				pc, op, step.ProgramCounter, step.Opcode)
		}
	}

	// Fixed lookups.
	for _, l := range cb.fixed {
		active, err := evalCond(l.Condition)
		if err != nil {
			return fmt.Errorf("fixed lookup %q: %w", l.Name, err)
		}
		if !active {
			continue
		}
		switch l.Tag {
		case FixedPow2:
			n := l.Values[0].Eval(resolve)
			lo := l.Values[1].Eval(resolve)
			hi := l.Values[2].Eval(resolve)
			if !pow2TableContains(n, lo, hi) {
				return fmt.Errorf("evmcircuit: fixed lookup %q misses the pow2 table (n=%s)", l.Name, n.String())
			}
		default:
			return fmt.Errorf("evmcircuit: unknown fixed table tag %d", l.Tag)
		}
	}

	// Rw lookups, matched by their symbolic counter offset.
	used := bitset.New(uint(len(step.Rws)))
	for _, l := range cb.rwLookups {
		active, err := evalCond(l.Condition)
		if err != nil {
			return fmt.Errorf("rw lookup %q: %w", l.Name, err)
		}
		if !active {
			continue
		}
		pos, err := evalU64(l.CounterOffset)
		if err != nil {
			return fmt.Errorf("rw lookup %q offset: %w", l.Name, err)
		}
		if pos >= uint64(len(step.Rws)) {
			return fmt.Errorf("evmcircuit: rw lookup %q at offset %d, step recorded %d entries", l.Name, pos, len(step.Rws))
		}
		if used.Test(uint(pos)) {
			return fmt.Errorf("evmcircuit: rw entry %d matched twice (lookup %q)", pos, l.Name)
		}
		used.Set(uint(pos))
		if err := matchRwLookup(&l, &step.Rws[pos], resolve); err != nil {
			return fmt.Errorf("evmcircuit: rw lookup %q vs entry %d: %w", l.Name, pos, err)
		}
	}

	// Copy lookups consume their accounted rw rows and must match the
	// block's copy events in declaration order.
	copyIdx := 0
	for _, l := range cb.copies {
		active, err := evalCond(l.Condition)
		if err != nil {
			return fmt.Errorf("copy lookup %q: %w", l.Name, err)
		}
		if !active {
			continue
		}
		pos, err := evalU64(l.CounterOffset)
		if err != nil {
			return fmt.Errorf("copy lookup %q offset: %w", l.Name, err)
		}
		cnt, err := evalU64(l.RwCount)
		if err != nil {
			return fmt.Errorf("copy lookup %q rw count: %w", l.Name, err)
		}
		if pos+cnt > uint64(len(step.Rws)) {
			return fmt.Errorf("evmcircuit: copy lookup %q covers rw entries [%d,%d), step recorded %d", l.Name, pos, pos+cnt, len(step.Rws))
		}
		for i := pos; i < pos+cnt; i++ {
			if used.Test(uint(i)) {
				return fmt.Errorf("evmcircuit: rw entry %d matched twice (copy lookup %q)", i, l.Name)
			}
			used.Set(uint(i))
			if step.Rws[i].Tag != witness.RwMemory {
				return fmt.Errorf("evmcircuit: copy lookup %q covers non-memory rw entry %d (%v)", l.Name, i, step.Rws[i].Tag)
			}
		}
		if copyIdx >= len(block.CopyEvents) {
			return fmt.Errorf("evmcircuit: copy lookup %q has no matching copy event", l.Name)
		}
		if err := matchCopyLookup(&l, &block.CopyEvents[copyIdx], resolve); err != nil {
			return fmt.Errorf("evmcircuit: copy lookup %q vs event %d: %w", l.Name, copyIdx, err)
		}
		copyIdx++
	}

	if got := used.Count(); got != uint(len(step.Rws)) {
		return fmt.Errorf("evmcircuit: constraints account for %d rw entries, step recorded %d", got, len(step.Rws))
	}
	return nil
}

func matchRwLookup(l *RwLookup, rw *witness.Rw, resolve func(expr.CellID) fr.Element) error {
	if rw.Tag != l.Tag {
		return fmt.Errorf("tag %v, want %v", rw.Tag, l.Tag)
	}
	if rw.IsWrite != l.IsWrite {
		return fmt.Errorf("isWrite %v, want %v", rw.IsWrite, l.IsWrite)
	}
	if l.ID != nil {
		if v := l.ID.Eval(resolve); !v.IsUint64() || v.Uint64() != rw.CallID {
			return fmt.Errorf("id %s, entry has %d", v.String(), rw.CallID)
		}
	}
	if l.Address != nil {
		var want fr.Element
		want.SetBytes(rw.Address[:])
		if v := l.Address.Eval(resolve); !v.Equal(&want) {
			return fmt.Errorf("address %s, entry has %s", v.String(), want.String())
		}
	}
	if l.FieldTag != nil {
		if v := l.FieldTag.Eval(resolve); !v.IsUint64() || v.Uint64() != uint64(rw.FieldTag) {
			return fmt.Errorf("field tag %s, entry has %d", v.String(), rw.FieldTag)
		}
	}
	if err := matchWord(l.Value, &rw.Value, resolve); err != nil {
		return fmt.Errorf("value: %w", err)
	}
	if l.HasPrev {
		if err := matchWord(l.ValuePrev, &rw.ValuePrev, resolve); err != nil {
			return fmt.Errorf("previous value: %w", err)
		}
	}
	return nil
}

func matchWord(w WordLoHi, v *uint256.Int, resolve func(expr.CellID) fr.Element) error {
	wantLo, wantHi := WordToLoHi(v)
	if lo := w.Lo.Eval(resolve); !lo.Equal(&wantLo) {
		return fmt.Errorf("lo limb %s, entry has %s", lo.String(), wantLo.String())
	}
	if hi := w.Hi.Eval(resolve); !hi.Equal(&wantHi) {
		return fmt.Errorf("hi limb %s, entry has %s", hi.String(), wantHi.String())
	}
	return nil
}

func matchCopyLookup(l *CopyLookup, ev *witness.CopyEvent, resolve func(expr.CellID) fr.Element) error {
	if l.SrcTag != ev.SrcTag || l.DstTag != ev.DstTag {
		return fmt.Errorf("tags (%d,%d), event has (%d,%d)", l.SrcTag, l.DstTag, ev.SrcTag, ev.DstTag)
	}
	scalars := []struct {
		name string
		e    *expr.Expression
		want uint64
	}{
		{"src id", l.SrcID, ev.SrcID},
		{"dst id", l.DstID, ev.DstID},
		{"src addr", l.SrcAddr, ev.SrcAddr},
		{"src end", l.SrcEnd, ev.SrcEnd},
		{"dst addr", l.DstAddr, ev.DstAddr},
		{"length", l.Length, ev.Length},
		{"rw count", l.RwCount, ev.RwCounter},
	}
	for _, s := range scalars {
		v := s.e.Eval(resolve)
		if !v.IsUint64() || v.Uint64() != s.want {
			return fmt.Errorf("%s %s, event has %d", s.name, v.String(), s.want)
		}
	}
	if rlc := l.Rlc.Eval(resolve); !rlc.Equal(&ev.Rlc) {
		return fmt.Errorf("rlc %s, event has %s", rlc.String(), ev.Rlc.String())
	}
	return nil
}
