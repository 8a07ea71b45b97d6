package evmcircuit

import (
	"github.com/holiman/uint256"

	"github.com/consensys/zkevm-gadgets/evmcircuit/expr"
	"github.com/consensys/zkevm-gadgets/logger"
	"github.com/consensys/zkevm-gadgets/witness"
)

// EmptyCodeHash is keccak256 of the empty byte string, the code hash of an
// existing account without code.
var EmptyCodeHash = uint256.MustFromHex("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")

// Constraint is one polynomial zero-assertion, already scoped by the
// selector conditions active when it was added.
type Constraint struct {
	Name string
	Expr *expr.Expression
}

// RwLookup is one declared rw-table access. CounterOffset is the symbolic
// count of rw entries consumed before this one; under any concrete branch
// assignment it evaluates to the entry's index in the step's trace.
type RwLookup struct {
	Name          string
	Condition     *expr.Expression
	CounterOffset *expr.Expression
	Tag           witness.RwTag
	IsWrite       bool
	ID            *expr.Expression
	Address       *expr.Expression
	FieldTag      *expr.Expression
	Value         WordLoHi
	ValuePrev     WordLoHi
	HasPrev       bool
}

// FixedTableTag identifies a small fixed lookup table.
type FixedTableTag uint8

const (
	// FixedPow2 maps a byte n to the lo/hi 128-bit limbs of 2^n.
	FixedPow2 FixedTableTag = iota + 1
)

// FixedLookup is one declared fixed-table lookup.
type FixedLookup struct {
	Name      string
	Condition *expr.Expression
	Tag       FixedTableTag
	Values    [3]*expr.Expression
}

// CopyLookup is one declared copy-table access, covering a bulk byte copy
// whose rw rows are accounted by RwCount.
type CopyLookup struct {
	Name          string
	Condition     *expr.Expression
	CounterOffset *expr.Expression
	SrcID         *expr.Expression
	SrcTag        witness.CopyDataType
	DstID         *expr.Expression
	DstTag        witness.CopyDataType
	SrcAddr       *expr.Expression
	SrcEnd        *expr.Expression
	DstAddr       *expr.Expression
	Length        *expr.Expression
	Rlc           *expr.Expression
	RwCount       *expr.Expression
}

type opcodeLookup struct {
	pc     *expr.Expression
	opcode *expr.Expression
}

// EVMConstraintBuilder accumulates the constraints, lookups and cell
// allocations of one execution gadget. Configuration runs once; the
// resulting sets are immutable afterwards.
type EVMConstraintBuilder struct {
	state ExecutionState

	curr StepState
	next StepState

	kinds       []CellKind
	constraints []Constraint
	rwLookups   []RwLookup
	fixed       []FixedLookup
	copies      []CopyLookup
	opcodes     []opcodeLookup

	conditions         []*expr.Expression
	rwCounterOffset    *expr.Expression
	stackPointerOffset *expr.Expression

	transitions int
	finalized   bool
}

// NewEVMConstraintBuilder returns a builder for the gadget owning state,
// with current and next step-state cells pre-allocated.
func NewEVMConstraintBuilder(state ExecutionState) *EVMConstraintBuilder {
	cb := &EVMConstraintBuilder{
		state:              state,
		rwCounterOffset:    expr.Zero(),
		stackPointerOffset: expr.Zero(),
	}
	cb.curr = cb.queryStepState()
	cb.next = cb.queryStepState()
	return cb
}

func (cb *EVMConstraintBuilder) queryStepState() StepState {
	return StepState{
		RwCounter:              cb.QueryCell(),
		CallID:                 cb.QueryCell(),
		IsRoot:                 cb.QueryBool(),
		IsCreate:               cb.QueryBool(),
		CodeHash:               cb.QueryWordLoHi(),
		ProgramCounter:         cb.QueryCell(),
		StackPointer:           cb.QueryCell(),
		GasLeft:                cb.QueryCell(),
		MemoryWordSize:         cb.QueryCell(),
		ReversibleWriteCounter: cb.QueryCell(),
	}
}

// State returns the execution state this builder belongs to.
func (cb *EVMConstraintBuilder) State() ExecutionState { return cb.state }

// Curr exposes the current row's step-state cells.
func (cb *EVMConstraintBuilder) Curr() *StepState { return &cb.curr }

// Next exposes the next row's step-state cells.
func (cb *EVMConstraintBuilder) Next() *StepState { return &cb.next }

func (cb *EVMConstraintBuilder) queryKind(kind CellKind) *Cell {
	if cb.finalized {
		panic("evmcircuit: cell query after Finalize")
	}
	id := expr.CellID(len(cb.kinds))
	cb.kinds = append(cb.kinds, kind)
	return &Cell{id: id, kind: kind, e: expr.CellVar(id)}
}

// QueryCell allocates an unconstrained cell.
func (cb *EVMConstraintBuilder) QueryCell() *Cell { return cb.queryKind(KindAny) }

// QueryBool allocates a cell range-constrained to {0,1}.
func (cb *EVMConstraintBuilder) QueryBool() *Cell { return cb.queryKind(KindBool) }

// QueryByte allocates a cell range-constrained to [0,256).
func (cb *EVMConstraintBuilder) QueryByte() *Cell { return cb.queryKind(KindByte) }

// QueryBytes allocates n byte-range cells.
func (cb *EVMConstraintBuilder) QueryBytes(n int) []*Cell {
	cells := make([]*Cell, n)
	for i := range cells {
		cells[i] = cb.QueryByte()
	}
	return cells
}

// QueryWord32 allocates a 256-bit word as 32 byte cells.
func (cb *EVMConstraintBuilder) QueryWord32() *Word32Cell {
	var w Word32Cell
	for i := range w.Limbs {
		w.Limbs[i] = cb.QueryByte()
	}
	return &w
}

// QueryWordLoHi allocates a 256-bit word as two unchecked 128-bit limb
// cells.
func (cb *EVMConstraintBuilder) QueryWordLoHi() WordLoHiCell {
	return WordLoHiCell{Lo: cb.QueryCell(), Hi: cb.QueryCell()}
}

// NumCells returns the number of allocated cells.
func (cb *EVMConstraintBuilder) NumCells() int { return len(cb.kinds) }

func (cb *EVMConstraintBuilder) condition() *expr.Expression {
	if len(cb.conditions) == 0 {
		return nil
	}
	// The stack is resliced on Condition exit and its backing array is
	// reused by the next sibling scope; And keeps the slice it is given,
	// so hand it a copy.
	conds := append([]*expr.Expression(nil), cb.conditions...)
	return expr.And(conds...)
}

func (cb *EVMConstraintBuilder) scoped(e *expr.Expression) *expr.Expression {
	if c := cb.condition(); c != nil {
		return expr.Mul(c, e)
	}
	return e
}

func (cb *EVMConstraintBuilder) conditionOrOne() *expr.Expression {
	if c := cb.condition(); c != nil {
		return c
	}
	return expr.One()
}

// Condition runs fn with every constraint and lookup inside scoped by the
// boolean selector sel. Conditions nest multiplicatively.
func (cb *EVMConstraintBuilder) Condition(sel *expr.Expression, fn func()) {
	cb.conditions = append(cb.conditions, sel)
	fn()
	cb.conditions = cb.conditions[:len(cb.conditions)-1]
}

// AddConstraint asserts that e equals zero, under the active conditions.
func (cb *EVMConstraintBuilder) AddConstraint(name string, e *expr.Expression) {
	if cb.finalized {
		panic("evmcircuit: constraint added after Finalize")
	}
	cb.constraints = append(cb.constraints, Constraint{Name: name, Expr: cb.scoped(e)})
}

// RequireZero is AddConstraint under a clearer name at call sites.
func (cb *EVMConstraintBuilder) RequireZero(name string, e *expr.Expression) {
	cb.AddConstraint(name, e)
}

// RequireEqual asserts a == b.
func (cb *EVMConstraintBuilder) RequireEqual(name string, a, b *expr.Expression) {
	cb.AddConstraint(name, expr.Sub(a, b))
}

// RequireTrue asserts that the boolean e is 1.
func (cb *EVMConstraintBuilder) RequireTrue(name string, e *expr.Expression) {
	cb.RequireEqual(name, e, expr.One())
}

// RequireBoolean asserts e ∈ {0,1}.
func (cb *EVMConstraintBuilder) RequireBoolean(name string, e *expr.Expression) {
	cb.AddConstraint(name, expr.Mul(e, expr.Sub(expr.One(), e)))
}

// RequireZeroWord asserts both limbs of w are zero.
func (cb *EVMConstraintBuilder) RequireZeroWord(name string, w WordLoHi) {
	cb.AddConstraint(name+" (lo)", w.Lo)
	cb.AddConstraint(name+" (hi)", w.Hi)
}

// RequireEqualWord asserts a == b limb-wise.
func (cb *EVMConstraintBuilder) RequireEqualWord(name string, a, b WordLoHi) {
	cb.RequireZeroWord(name, a.SubUnchecked(b))
}

// RwCounterOffset returns the symbolic number of rw entries declared so far.
// Emitted transitions should use this as their rw-counter delta; under any
// branch assignment the selector-scoped terms of inactive branches vanish.
func (cb *EVMConstraintBuilder) RwCounterOffset() *expr.Expression {
	return cb.rwCounterOffset
}

// StackPointerOffset returns the symbolic net stack pointer movement
// declared so far (pops minus pushes).
func (cb *EVMConstraintBuilder) StackPointerOffset() *expr.Expression {
	return cb.stackPointerOffset
}

func (cb *EVMConstraintBuilder) addRwLookup(rl RwLookup) {
	if cb.finalized {
		panic("evmcircuit: lookup added after Finalize")
	}
	rl.Condition = cb.condition()
	rl.CounterOffset = cb.rwCounterOffset
	cb.rwLookups = append(cb.rwLookups, rl)
	cb.rwCounterOffset = expr.Add(cb.rwCounterOffset, cb.conditionOrOne())
}

// StackPop declares a stack read popping value.
func (cb *EVMConstraintBuilder) StackPop(value WordLoHi) {
	cb.addRwLookup(RwLookup{
		Name:  "stack pop",
		Tag:   witness.RwStack,
		ID:    cb.curr.CallID.Expr(),
		Value: value,
	})
	cb.stackPointerOffset = expr.Add(cb.stackPointerOffset, cb.conditionOrOne())
}

// StackPush declares a stack write pushing value.
func (cb *EVMConstraintBuilder) StackPush(value WordLoHi) {
	cb.stackPointerOffset = expr.Sub(cb.stackPointerOffset, cb.conditionOrOne())
	cb.addRwLookup(RwLookup{
		Name:    "stack push",
		Tag:     witness.RwStack,
		IsWrite: true,
		ID:      cb.curr.CallID.Expr(),
		Value:   value,
	})
}

// CallContext declares a call-context read of field into a fresh cell and
// returns the cell. A nil callID scopes the read to the current call.
func (cb *EVMConstraintBuilder) CallContext(callID *expr.Expression, field witness.CallContextFieldTag) *Cell {
	cell := cb.QueryCell()
	cb.CallContextLookupRead(callID, field, WordFromLo(cell.Expr()))
	return cell
}

// CallContextAsWord declares a call-context read of field into a fresh word
// cell pair.
func (cb *EVMConstraintBuilder) CallContextAsWord(callID *expr.Expression, field witness.CallContextFieldTag) WordLoHiCell {
	w := cb.QueryWordLoHi()
	cb.CallContextLookupRead(callID, field, w.ToWord())
	return w
}

func (cb *EVMConstraintBuilder) callID(callID *expr.Expression) *expr.Expression {
	if callID == nil {
		return cb.curr.CallID.Expr()
	}
	return callID
}

// CallContextLookupRead declares a call-context read of field with value.
func (cb *EVMConstraintBuilder) CallContextLookupRead(callID *expr.Expression, field witness.CallContextFieldTag, value WordLoHi) {
	cb.addRwLookup(RwLookup{
		Name:     "call context read",
		Tag:      witness.RwCallContext,
		ID:       cb.callID(callID),
		FieldTag: expr.U64(uint64(field)),
		Value:    value,
	})
}

// CallContextLookupWrite declares a call-context write of field with value.
func (cb *EVMConstraintBuilder) CallContextLookupWrite(callID *expr.Expression, field witness.CallContextFieldTag, value WordLoHi) {
	cb.addRwLookup(RwLookup{
		Name:     "call context write",
		Tag:      witness.RwCallContext,
		IsWrite:  true,
		ID:       cb.callID(callID),
		FieldTag: expr.U64(uint64(field)),
		Value:    value,
	})
}

// AccountRead declares an account field read. address is the account
// address as a scalar expression.
func (cb *EVMConstraintBuilder) AccountRead(address *expr.Expression, field witness.AccountFieldTag, value WordLoHi) {
	cb.addRwLookup(RwLookup{
		Name:     "account read",
		Tag:      witness.RwAccount,
		Address:  address,
		FieldTag: expr.U64(uint64(field)),
		Value:    value,
	})
}

// AccountWrite declares an account field write carrying the value pair.
func (cb *EVMConstraintBuilder) AccountWrite(address *expr.Expression, field witness.AccountFieldTag, value, valuePrev WordLoHi) {
	cb.addRwLookup(RwLookup{
		Name:      "account write",
		Tag:       witness.RwAccount,
		IsWrite:   true,
		Address:   address,
		FieldTag:  expr.U64(uint64(field)),
		Value:     value,
		ValuePrev: valuePrev,
		HasPrev:   true,
	})
}

// AccountAccessListWrite declares the warmth flip of address in the tx
// access list.
func (cb *EVMConstraintBuilder) AccountAccessListWrite(txID, address, isWarm, isWarmPrev *expr.Expression) {
	cb.addRwLookup(RwLookup{
		Name:      "tx access list write",
		Tag:       witness.RwTxAccessListAccount,
		IsWrite:   true,
		ID:        txID,
		Address:   address,
		Value:     WordFromLo(isWarm),
		ValuePrev: WordFromLo(isWarmPrev),
		HasPrev:   true,
	})
}

// Pow2Lookup declares a fixed-table lookup asserting (lo, hi) are the
// 128-bit limbs of 2^n for the byte n.
func (cb *EVMConstraintBuilder) Pow2Lookup(name string, n, lo, hi *expr.Expression) {
	cb.fixed = append(cb.fixed, FixedLookup{
		Name:      name,
		Condition: cb.condition(),
		Tag:       FixedPow2,
		Values:    [3]*expr.Expression{n, lo, hi},
	})
}

// CopyTableLookup declares a bulk byte copy between two data sources, whose
// rw rows are accounted by rwCount.
func (cb *EVMConstraintBuilder) CopyTableLookup(
	name string,
	srcID *expr.Expression, srcTag witness.CopyDataType,
	dstID *expr.Expression, dstTag witness.CopyDataType,
	srcAddr, srcEnd, dstAddr, length, rlc, rwCount *expr.Expression,
) {
	cb.copies = append(cb.copies, CopyLookup{
		Name:          name,
		Condition:     cb.condition(),
		CounterOffset: cb.rwCounterOffset,
		SrcID:         srcID,
		SrcTag:        srcTag,
		DstID:         dstID,
		DstTag:        dstTag,
		SrcAddr:       srcAddr,
		SrcEnd:        srcEnd,
		DstAddr:       dstAddr,
		Length:        length,
		Rlc:           rlc,
		RwCount:       rwCount,
	})
	cb.rwCounterOffset = expr.Add(cb.rwCounterOffset, expr.Mul(cb.conditionOrOne(), rwCount))
}

// OpcodeLookup asserts that the bytecode identified by the current code
// hash holds opcode at the current program counter.
func (cb *EVMConstraintBuilder) OpcodeLookup(opcode *expr.Expression) {
	cb.opcodes = append(cb.opcodes, opcodeLookup{
		pc:     cb.curr.ProgramCounter.Expr(),
		opcode: opcode,
	})
}

// EmptyCodeHashWord returns the constant word of the empty code hash.
func (cb *EVMConstraintBuilder) EmptyCodeHashWord() WordLoHi {
	lo, hi := WordToLoHi(EmptyCodeHash)
	return WordLoHi{Lo: expr.Constant(lo), Hi: expr.Constant(hi)}
}

// RequireStepStateTransition constrains the movement of every step-state
// field from the current row to the next, under the active conditions.
func (cb *EVMConstraintBuilder) RequireStepStateTransition(t StepStateTransition) {
	cb.transitions++
	fields := []struct {
		name string
		curr *Cell
		next *Cell
		tr   Transition
	}{
		{"rw_counter", cb.curr.RwCounter, cb.next.RwCounter, t.RwCounter},
		{"call_id", cb.curr.CallID, cb.next.CallID, t.CallID},
		{"is_root", cb.curr.IsRoot, cb.next.IsRoot, t.IsRoot},
		{"is_create", cb.curr.IsCreate, cb.next.IsCreate, t.IsCreate},
		{"program_counter", cb.curr.ProgramCounter, cb.next.ProgramCounter, t.ProgramCounter},
		{"stack_pointer", cb.curr.StackPointer, cb.next.StackPointer, t.StackPointer},
		{"gas_left", cb.curr.GasLeft, cb.next.GasLeft, t.GasLeft},
		{"memory_word_size", cb.curr.MemoryWordSize, cb.next.MemoryWordSize, t.MemoryWordSize},
		{"reversible_write_counter", cb.curr.ReversibleWriteCounter, cb.next.ReversibleWriteCounter, t.ReversibleWriteCounter},
	}
	for _, f := range fields {
		switch f.tr.Kind {
		case TransitionSame:
			cb.RequireEqual("state transition: "+f.name+" same", f.next.Expr(), f.curr.Expr())
		case TransitionDelta:
			cb.RequireEqual("state transition: "+f.name+" delta", f.next.Expr(), expr.Add(f.curr.Expr(), f.tr.Value))
		case TransitionTo:
			cb.RequireEqual("state transition: "+f.name+" to", f.next.Expr(), f.tr.Value)
		case TransitionAny:
		}
	}
	switch t.CodeHash.Kind {
	case TransitionSame:
		cb.RequireEqualWord("state transition: code_hash same", cb.next.CodeHash.ToWord(), cb.curr.CodeHash.ToWord())
	case TransitionTo:
		cb.RequireEqualWord("state transition: code_hash to", cb.next.CodeHash.ToWord(), t.CodeHash.Value)
	case TransitionDelta:
		panic("evmcircuit: delta transition is meaningless for code_hash")
	case TransitionAny:
	}
}

// AssignCurrState writes the current row's step-state cell values.
func (cb *EVMConstraintBuilder) AssignCurrState(region *CachedRegion, offset int, v StepStateValues) error {
	return cb.curr.assign(region, offset, v)
}

// AssignNextState writes the next row's step-state cell values.
func (cb *EVMConstraintBuilder) AssignNextState(region *CachedRegion, offset int, v StepStateValues) error {
	return cb.next.assign(region, offset, v)
}

// Finalize seals the builder: no further cells, constraints or lookups may
// be added. It logs the configured shape.
func (cb *EVMConstraintBuilder) Finalize() {
	if cb.finalized {
		return
	}
	cb.finalized = true
	log := logger.Logger().With().Str("state", cb.state.String()).Logger()
	log.Debug().
		Int("cells", len(cb.kinds)).
		Int("constraints", len(cb.constraints)).
		Int("rwLookups", len(cb.rwLookups)).
		Int("fixedLookups", len(cb.fixed)).
		Int("copyLookups", len(cb.copies)).
		Int("transitions", cb.transitions).
		Msg("configured execution gadget")
}
