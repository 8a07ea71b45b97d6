// Package witness holds the per-trace data consumed at assignment time: the
// recorded execution steps, call frames and the ordered read/write entries
// each step produced. Gadgets never mutate a witness; they only read it
// through the sequential StepRws cursor.
package witness

// RwTag discriminates the kinds of read/write trace entries.
type RwTag uint8

const (
	RwStack RwTag = iota + 1
	RwMemory
	RwAccount
	RwCallContext
	RwTxAccessListAccount
)

func (t RwTag) String() string {
	switch t {
	case RwStack:
		return "stack"
	case RwMemory:
		return "memory"
	case RwAccount:
		return "account"
	case RwCallContext:
		return "callContext"
	case RwTxAccessListAccount:
		return "txAccessListAccount"
	}
	return "rwTag(?)"
}

// AccountFieldTag selects the account field an account rw touches.
type AccountFieldTag uint8

const (
	AccountBalance AccountFieldTag = iota + 1
	AccountCodeHash
	AccountNonce
)

// CallContextFieldTag selects the call-context field a call-context rw
// touches. The numbering matches the order the call-family gadget writes a
// new callee frame.
type CallContextFieldTag uint8

const (
	TxID CallContextFieldTag = iota + 1
	RwCounterEndOfReversion
	IsPersistent
	IsStatic
	Depth
	CallerAddress
	CalleeAddress
	CallDataOffset
	CallDataLength
	ReturnDataOffset
	ReturnDataLength
	Value
	IsSuccess
	CallerID
	IsRoot
	IsCreate
	CodeHash
	ProgramCounter
	StackPointer
	GasLeft
	MemorySize
	ReversibleWriteCounter
	LastCalleeID
	LastCalleeReturnDataOffset
	LastCalleeReturnDataLength
)

// CopyDataType tags one side of a copy-table row.
type CopyDataType uint8

const (
	CopyMemory CopyDataType = iota + 1
	CopyRlcAcc
)
