package witness

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrTraceUnderflow is returned when a gadget consumes more rw entries
	// than the step recorded.
	ErrTraceUnderflow = errors.New("witness: rw trace underflow")
	// ErrTraceTagMismatch is returned when the next rw entry is not of the
	// kind the constraints expect at that position.
	ErrTraceTagMismatch = errors.New("witness: rw trace tag mismatch")
)

// Rw is one recorded read/write event. Which fields are meaningful depends
// on Tag.
type Rw struct {
	Tag     RwTag
	IsWrite bool

	// CallID scopes stack, memory and call-context entries.
	CallID uint64
	// Address scopes account and access-list entries.
	Address common.Address
	// FieldTag is an AccountFieldTag or CallContextFieldTag value.
	FieldTag uint8

	Value     uint256.Int
	ValuePrev uint256.Int
}

// StackRw builds a stack slot access.
func StackRw(callID uint64, isWrite bool, value uint256.Int) Rw {
	return Rw{Tag: RwStack, IsWrite: isWrite, CallID: callID, Value: value}
}

// MemoryRw builds a single memory byte access.
func MemoryRw(callID uint64, isWrite bool, b byte) Rw {
	return Rw{Tag: RwMemory, IsWrite: isWrite, CallID: callID, Value: *uint256.NewInt(uint64(b))}
}

// CallContextRw builds a call-context field access.
func CallContextRw(callID uint64, isWrite bool, field CallContextFieldTag, value uint256.Int) Rw {
	return Rw{Tag: RwCallContext, IsWrite: isWrite, CallID: callID, FieldTag: uint8(field), Value: value}
}

// AccountRw builds an account field access carrying the value pair
// (committed, previous).
func AccountRw(addr common.Address, isWrite bool, field AccountFieldTag, value, valuePrev uint256.Int) Rw {
	return Rw{Tag: RwAccount, IsWrite: isWrite, Address: addr, FieldTag: uint8(field), Value: value, ValuePrev: valuePrev}
}

// AccessListRw builds a tx access-list warmth flip for addr.
func AccessListRw(txID uint64, addr common.Address, isWarm, isWarmPrev bool) Rw {
	rw := Rw{Tag: RwTxAccessListAccount, IsWrite: true, CallID: txID, Address: addr}
	if isWarm {
		rw.Value = *uint256.NewInt(1)
	}
	if isWarmPrev {
		rw.ValuePrev = *uint256.NewInt(1)
	}
	return rw
}

// StepRws is a strictly sequential cursor over one step's rw entries. A
// consumption error (underflow or tag mismatch) is sticky: subsequent reads
// return zero values and Err reports the first failure. Gadgets must check
// Err once all entries are consumed.
type StepRws struct {
	rws []Rw
	idx int
	err error
}

// NewStepRws returns a cursor over the entries step recorded, in order.
func NewStepRws(step *ExecStep) *StepRws {
	return &StepRws{rws: step.Rws}
}

var zeroRw Rw

func (r *StepRws) take(tag RwTag) *Rw {
	if r.err != nil {
		return &zeroRw
	}
	if r.idx >= len(r.rws) {
		r.err = fmt.Errorf("%w: want %v at index %d, trace has %d entries", ErrTraceUnderflow, tag, r.idx, len(r.rws))
		return &zeroRw
	}
	rw := &r.rws[r.idx]
	r.idx++
	if rw.Tag != tag {
		r.err = fmt.Errorf("%w: want %v at index %d, got %v", ErrTraceTagMismatch, tag, r.idx-1, rw.Tag)
		return &zeroRw
	}
	return rw
}

// Next consumes and returns the next entry regardless of its tag.
func (r *StepRws) Next() Rw {
	if r.err != nil {
		return zeroRw
	}
	if r.idx >= len(r.rws) {
		r.err = fmt.Errorf("%w: index %d, trace has %d entries", ErrTraceUnderflow, r.idx, len(r.rws))
		return zeroRw
	}
	rw := r.rws[r.idx]
	r.idx++
	return rw
}

// OffsetAdd skips n entries.
func (r *StepRws) OffsetAdd(n int) {
	if r.err != nil {
		return
	}
	if r.idx+n > len(r.rws) {
		r.err = fmt.Errorf("%w: skip %d at index %d, trace has %d entries", ErrTraceUnderflow, n, r.idx, len(r.rws))
		return
	}
	r.idx += n
}

// StackValue consumes a stack entry and returns its value.
func (r *StepRws) StackValue() uint256.Int {
	return r.take(RwStack).Value
}

// MemoryValue consumes a memory entry and returns its byte.
func (r *StepRws) MemoryValue() byte {
	return byte(r.take(RwMemory).Value.Uint64())
}

// CallContextValue consumes a call-context entry and returns its value.
func (r *StepRws) CallContextValue() uint256.Int {
	return r.take(RwCallContext).Value
}

// CallContextValueTagged consumes a call-context entry, checking it carries
// the expected field tag.
func (r *StepRws) CallContextValueTagged(field CallContextFieldTag) uint256.Int {
	rw := r.take(RwCallContext)
	if r.err == nil && rw.FieldTag != uint8(field) {
		r.err = fmt.Errorf("%w: call-context field %d at index %d, want %d", ErrTraceTagMismatch, rw.FieldTag, r.idx-1, field)
		return uint256.Int{}
	}
	return rw.Value
}

// AccountBalancePair consumes an account balance entry and returns
// (value, previous value).
func (r *StepRws) AccountBalancePair() (uint256.Int, uint256.Int) {
	rw := r.take(RwAccount)
	if r.err == nil && rw.FieldTag != uint8(AccountBalance) {
		r.err = fmt.Errorf("%w: account field %d at index %d, want balance", ErrTraceTagMismatch, rw.FieldTag, r.idx-1)
		return uint256.Int{}, uint256.Int{}
	}
	return rw.Value, rw.ValuePrev
}

// AccountCodeHashPair consumes an account code-hash entry and returns
// (value, previous value).
func (r *StepRws) AccountCodeHashPair() (uint256.Int, uint256.Int) {
	rw := r.take(RwAccount)
	if r.err == nil && rw.FieldTag != uint8(AccountCodeHash) {
		r.err = fmt.Errorf("%w: account field %d at index %d, want code hash", ErrTraceTagMismatch, rw.FieldTag, r.idx-1)
		return uint256.Int{}, uint256.Int{}
	}
	return rw.Value, rw.ValuePrev
}

// TxAccessListValuePair consumes an access-list entry and returns
// (isWarm, isWarmPrev).
func (r *StepRws) TxAccessListValuePair() (bool, bool) {
	rw := r.take(RwTxAccessListAccount)
	return !rw.Value.IsZero(), !rw.ValuePrev.IsZero()
}

// Consumed returns the number of entries consumed so far.
func (r *StepRws) Consumed() int { return r.idx }

// Remaining returns the number of entries not yet consumed.
func (r *StepRws) Remaining() int { return len(r.rws) - r.idx }

// Err returns the first consumption error, if any.
func (r *StepRws) Err() error { return r.err }

// Finish checks that the cursor consumed the trace exactly: no error and no
// leftover entries.
func (r *StepRws) Finish() error {
	if r.err != nil {
		return r.err
	}
	if r.idx != len(r.rws) {
		return fmt.Errorf("witness: step recorded %d rw entries, gadget consumed %d", len(r.rws), r.idx)
	}
	return nil
}
