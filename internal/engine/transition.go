package engine

import (
	"math"

	"github.com/roach88/abacus/internal/ir"
)

// ApplyCalculator computes the calculator record that follows inst.
//
// Add and Subtract overwrite: the prior result is never an input, so the
// same instruction yields the same record whatever state it runs against.
// Arithmetic is plain IEEE-754; NaN and infinities propagate.
func ApplyCalculator(inst ir.Instruction, _ ir.AccountRecord) (ir.AccountRecord, error) {
	switch v := inst.(type) {
	case ir.Add:
		return ir.AccountRecord{Result: v.A + v.B}, nil
	case ir.Subtract:
		return ir.AccountRecord{Result: v.A - v.B}, nil
	default:
		return ir.AccountRecord{}, ir.NewProgramError(ir.ErrCodeUnknownOpcode,
			"calculator cannot apply %s", inst.Opcode())
	}
}

// ApplyCounter computes the counter record that follows inst.
//
// initialized reports whether the account already holds a counter; signer
// is the identity that signed for the authority account.
//
// Create records signer as the authority. Increment and Decrement require
// signer to equal the stored authority, and reject a count that would wrap.
func ApplyCounter(inst ir.Instruction, cur ir.CounterRecord, initialized bool, signer ir.Identity) (ir.CounterRecord, error) {
	if _, ok := inst.(ir.Create); ok {
		if initialized {
			return cur, ir.NewProgramError(ir.ErrCodeAccountAlreadyInitialized,
				"counter is already initialized with authority %s", cur.Authority.Short())
		}
		return ir.CounterRecord{Authority: signer, Count: 0}, nil
	}

	if !initialized {
		return cur, ir.NewProgramError(ir.ErrCodeUninitializedAccount,
			"%s on an account the counter program does not own", inst.Opcode())
	}
	if cur.Authority != signer {
		return cur, ir.NewProgramError(ir.ErrCodeConstraintHasOne,
			"authority %s does not match signer %s", cur.Authority.Short(), signer.Short())
	}

	next := cur
	switch inst.(type) {
	case ir.Increment:
		if cur.Count == math.MaxUint64 {
			return cur, ir.NewProgramError(ir.ErrCodeArithmeticOverflow, "count would overflow past %d", cur.Count)
		}
		next.Count++
	case ir.Decrement:
		if cur.Count == 0 {
			return cur, ir.NewProgramError(ir.ErrCodeArithmeticOverflow, "count would underflow below 0")
		}
		next.Count--
	default:
		return cur, ir.NewProgramError(ir.ErrCodeUnknownOpcode,
			"counter cannot apply %s", inst.Opcode())
	}
	return next, nil
}
