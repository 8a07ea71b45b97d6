package execution

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/consensys/zkevm-gadgets/evmcircuit"
	"github.com/consensys/zkevm-gadgets/logger"
	"github.com/consensys/zkevm-gadgets/witness"
)

// Gadget is one configured execution gadget, assignable once per matching
// step.
type Gadget interface {
	Assign(region *evmcircuit.CachedRegion, offset int,
		block *witness.Block, tx *witness.Transaction, call *witness.Call, step *witness.ExecStep) error
}

type boundGadget struct {
	cb     *evmcircuit.EVMConstraintBuilder
	gadget Gadget
}

// Circuit owns the configured execution gadgets, one per execution state.
// Configuration happens once in NewCircuit; the constraint sets are
// immutable afterwards and safe for concurrent assignment.
type Circuit struct {
	gadgets map[evmcircuit.ExecutionState]boundGadget
}

func NewCircuit() *Circuit {
	c := &Circuit{gadgets: make(map[evmcircuit.ExecutionState]boundGadget)}
	for state, construct := range map[evmcircuit.ExecutionState]func(*evmcircuit.EVMConstraintBuilder) Gadget{
		evmcircuit.StateSdivSmod: func(cb *evmcircuit.EVMConstraintBuilder) Gadget { return NewSignedDivMod(cb) },
		evmcircuit.StateShlShr:   func(cb *evmcircuit.EVMConstraintBuilder) Gadget { return NewShlShr(cb) },
		evmcircuit.StateCallOp:   func(cb *evmcircuit.EVMConstraintBuilder) Gadget { return NewCallOp(cb) },
	} {
		cb := evmcircuit.NewEVMConstraintBuilder(state)
		g := construct(cb)
		cb.Finalize()
		c.gadgets[state] = boundGadget{cb: cb, gadget: g}
	}
	return c
}

// Builder returns the sealed constraint builder of state.
func (c *Circuit) Builder(state evmcircuit.ExecutionState) (*evmcircuit.EVMConstraintBuilder, bool) {
	bg, ok := c.gadgets[state]
	return bg.cb, ok
}

// Manifest returns the constraint manifest of state.
func (c *Circuit) Manifest(state evmcircuit.ExecutionState) (evmcircuit.Manifest, bool) {
	bg, ok := c.gadgets[state]
	if !ok {
		return evmcircuit.Manifest{}, false
	}
	return bg.cb.Manifest(), true
}

// AssignedRow records where one step landed: which gadget's region and at
// what row offset.
type AssignedRow struct {
	State    evmcircuit.ExecutionState
	Offset   int
	StepIdx  int
}

// Assignment is the result of assigning a block: one cached region per
// execution state, plus the row index.
type Assignment struct {
	Regions map[evmcircuit.ExecutionState]*evmcircuit.CachedRegion
	Rows    []AssignedRow
}

// AssignBlock assigns every handled step of the block. Each step needs a
// successor step to fill the next-state cells, so the last step of a trace
// must be a terminator the circuit does not handle. Regions are filled
// concurrently, one goroutine per execution state; rows within a state are
// assigned in trace order.
func (c *Circuit) AssignBlock(block *witness.Block) (*Assignment, error) {
	asg := &Assignment{Regions: make(map[evmcircuit.ExecutionState]*evmcircuit.CachedRegion)}

	// Plan row offsets first so they are deterministic regardless of
	// goroutine scheduling.
	perState := make(map[evmcircuit.ExecutionState][]AssignedRow)
	for i := range block.Steps {
		state, ok := evmcircuit.StateForOpcode(block.Steps[i].Opcode)
		if !ok {
			continue
		}
		if i+1 >= len(block.Steps) {
			return nil, fmt.Errorf("execution: step %d (%v) has no successor step", i, block.Steps[i].Opcode)
		}
		row := AssignedRow{State: state, Offset: len(perState[state]), StepIdx: i}
		perState[state] = append(perState[state], row)
		asg.Rows = append(asg.Rows, row)
	}
	for state := range perState {
		asg.Regions[state] = evmcircuit.NewCachedRegion(block.Challenge)
	}

	var eg errgroup.Group
	for state, rows := range perState {
		bg, ok := c.gadgets[state]
		if !ok {
			return nil, fmt.Errorf("execution: no gadget configured for %v", state)
		}
		region := asg.Regions[state]
		rows := rows
		eg.Go(func() error {
			for _, row := range rows {
				if err := c.assignRow(bg, region, block, row); err != nil {
					return fmt.Errorf("execution: step %d (%v): %w", row.StepIdx, block.Steps[row.StepIdx].Opcode, err)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	log := logger.Logger()
	log.Debug().
		Int("steps", len(block.Steps)).
		Int("rows", len(asg.Rows)).
		Int("states", len(asg.Regions)).
		Msg("assigned block")
	return asg, nil
}

func (c *Circuit) assignRow(bg boundGadget, region *evmcircuit.CachedRegion, block *witness.Block, row AssignedRow) error {
	step := &block.Steps[row.StepIdx]
	next := &block.Steps[row.StepIdx+1]

	curr, err := stepValues(block, step)
	if err != nil {
		return err
	}
	nextValues, err := stepValues(block, next)
	if err != nil {
		return err
	}
	if err := bg.cb.AssignCurrState(region, row.Offset, curr); err != nil {
		return err
	}
	if err := bg.cb.AssignNextState(region, row.Offset, nextValues); err != nil {
		return err
	}

	call, err := findCall(block, step.CallID)
	if err != nil {
		return err
	}
	tx := &witness.Transaction{}
	if len(block.Txs) > 0 {
		tx = &block.Txs[0]
	}
	return bg.gadget.Assign(region, row.Offset, block, tx, call, step)
}

// Verify checks every assigned row against its gadget's constraint set.
func (c *Circuit) Verify(block *witness.Block, asg *Assignment) error {
	for _, row := range asg.Rows {
		bg, ok := c.gadgets[row.State]
		if !ok {
			return fmt.Errorf("execution: no gadget configured for %v", row.State)
		}
		step := &block.Steps[row.StepIdx]
		if err := evmcircuit.Satisfied(bg.cb, asg.Regions[row.State], row.Offset, block, step); err != nil {
			return fmt.Errorf("execution: step %d (%v): %w", row.StepIdx, step.Opcode, err)
		}
	}
	return nil
}

func stepValues(block *witness.Block, step *witness.ExecStep) (evmcircuit.StepStateValues, error) {
	call, err := findCall(block, step.CallID)
	if err != nil {
		return evmcircuit.StepStateValues{}, err
	}
	return evmcircuit.StepStateValues{
		RwCounter:              step.RwCounter,
		CallID:                 step.CallID,
		IsRoot:                 call.IsRoot,
		IsCreate:               call.IsCreate,
		CodeHash:               call.CodeHash,
		ProgramCounter:         step.ProgramCounter,
		StackPointer:           step.StackPointer,
		GasLeft:                step.GasLeft,
		MemoryWordSize:         step.MemoryWordSize,
		ReversibleWriteCounter: step.ReversibleWriteCounter,
	}, nil
}

func findCall(block *witness.Block, callID uint64) (*witness.Call, error) {
	for i := range block.Calls {
		if block.Calls[i].ID == callID {
			return &block.Calls[i], nil
		}
	}
	return nil, fmt.Errorf("execution: no call with id %d in block", callID)
}
