package evmcircuit

import (
	"github.com/consensys/zkevm-gadgets/evmcircuit/expr"
	"github.com/consensys/zkevm-gadgets/witness"
)

// ReversionInfo tracks a call's reversion bookkeeping: the rw counter at
// which its effects are undone and whether the call's writes persist.
type ReversionInfo struct {
	rwCounterEndOfReversion *Cell
	isPersistent            *Cell
	// reversibleWriteCounter is the owning row's current reversible write
	// counter, captured at construction.
	reversibleWriteCounter *expr.Expression
}

// ReversionInfoRead declares the two call-context reads populating a
// ReversionInfo for callID (nil for the current call).
func (cb *EVMConstraintBuilder) ReversionInfoRead(callID *expr.Expression) *ReversionInfo {
	return &ReversionInfo{
		rwCounterEndOfReversion: cb.CallContext(callID, witness.RwCounterEndOfReversion),
		isPersistent:            cb.CallContext(callID, witness.IsPersistent),
		reversibleWriteCounter:  cb.curr.ReversibleWriteCounter.Expr(),
	}
}

// ReversionInfoWriteUnchecked declares the two call-context writes
// propagating a ReversionInfo to callID. The cell values are unconstrained
// here; callers add the propagation constraints.
func (cb *EVMConstraintBuilder) ReversionInfoWriteUnchecked(callID *expr.Expression) *ReversionInfo {
	ri := &ReversionInfo{
		rwCounterEndOfReversion: cb.QueryCell(),
		isPersistent:            cb.QueryBool(),
		reversibleWriteCounter:  cb.curr.ReversibleWriteCounter.Expr(),
	}
	cb.CallContextLookupWrite(callID, witness.RwCounterEndOfReversion, WordFromLo(ri.rwCounterEndOfReversion.Expr()))
	cb.CallContextLookupWrite(callID, witness.IsPersistent, WordFromLo(ri.isPersistent.Expr()))
	return ri
}

// RwCounterEndOfReversion returns the reversion end counter expression.
func (ri *ReversionInfo) RwCounterEndOfReversion() *expr.Expression {
	return ri.rwCounterEndOfReversion.Expr()
}

// IsPersistent returns the persistence flag expression.
func (ri *ReversionInfo) IsPersistent() *expr.Expression {
	return ri.isPersistent.Expr()
}

// RwCounterOfReversion returns the rw counter at which the next reversible
// write of this row is undone: the reversion end minus the pending
// reversible writes plus delta.
func (ri *ReversionInfo) RwCounterOfReversion(delta *expr.Expression) *expr.Expression {
	return expr.Sub(ri.rwCounterEndOfReversion.Expr(), expr.Add(ri.reversibleWriteCounter, delta))
}

// RwDelta returns the number of rw entries the ReversionInfo declared.
func (ri *ReversionInfo) RwDelta() *expr.Expression { return expr.U64(2) }

// Assign writes the concrete reversion values.
func (ri *ReversionInfo) Assign(region *CachedRegion, offset int, rwCounterEndOfReversion uint64, isPersistent bool) error {
	if err := ri.rwCounterEndOfReversion.AssignU64(region, offset, rwCounterEndOfReversion); err != nil {
		return err
	}
	return ri.isPersistent.AssignBool(region, offset, isPersistent)
}
