// Package instruction decodes raw instruction payloads into ir.Instruction
// values, and encodes them back for tooling.
//
// Payload layout: byte 0 is the opcode. Calculator opcodes are followed by
// two little-endian doubles at [1..9) and [9..17). Counter opcodes carry no
// operands. Bytes past the end of an opcode's layout are ignored.
package instruction

import (
	"github.com/roach88/abacus/internal/ir"
	"github.com/roach88/abacus/internal/layout"
)

// OperandLayout describes a calculator payload.
var OperandLayout = layout.Pack("binary_operands",
	layout.Uint8("opcode"),
	layout.Float64LE("a"),
	layout.Float64LE("b"),
)

// BareLayout describes a payload that is only an opcode.
var BareLayout = layout.Pack("bare_opcode",
	layout.Uint8("opcode"),
)

// Decoder parses payloads for one program's opcode set.
// Decoders are pure: they never mutate the payload and hold no state.
type Decoder func(payload []byte) (ir.Instruction, error)

// ParseCalculator decodes a calculator payload. Recognized opcodes: add (0)
// and subtract (1).
func ParseCalculator(payload []byte) (ir.Instruction, error) {
	op, err := opcodeOf(payload)
	if err != nil {
		return nil, err
	}

	switch op {
	case ir.OpAdd, ir.OpSubtract:
		a, b, err := operands(payload, op)
		if err != nil {
			return nil, err
		}
		if op == ir.OpAdd {
			return ir.Add{A: a, B: b}, nil
		}
		return ir.Subtract{A: a, B: b}, nil
	default:
		return nil, unknown(op, "calculator")
	}
}

// ParseCounter decodes a counter payload. Recognized opcodes: increment (2),
// decrement (3) and create (4), none of which take operands.
func ParseCounter(payload []byte) (ir.Instruction, error) {
	op, err := opcodeOf(payload)
	if err != nil {
		return nil, err
	}

	switch op {
	case ir.OpIncrement:
		return ir.Increment{}, nil
	case ir.OpDecrement:
		return ir.Decrement{}, nil
	case ir.OpCreate:
		return ir.Create{}, nil
	default:
		return nil, unknown(op, "counter")
	}
}

func opcodeOf(payload []byte) (ir.Opcode, error) {
	if err := BareLayout.Check(payload); err != nil {
		return 0, ir.NewProgramError(ir.ErrCodeEmptyInstruction, "instruction payload is empty")
	}
	return ir.Opcode(BareLayout.Uint8(payload, "opcode")), nil
}

func operands(payload []byte, op ir.Opcode) (float64, float64, error) {
	if err := OperandLayout.Check(payload); err != nil {
		return 0, 0, ir.NewProgramError(ir.ErrCodeTruncatedOperands,
			"%s needs %d payload bytes, got %d", op, OperandLayout.Size(), len(payload))
	}
	return OperandLayout.Float64(payload, "a"), OperandLayout.Float64(payload, "b"), nil
}

func unknown(op ir.Opcode, program string) error {
	return ir.NewProgramError(ir.ErrCodeUnknownOpcode, "opcode %d is not a %s instruction", uint8(op), program)
}

// Encode serializes inst into a fresh payload.
func Encode(inst ir.Instruction) []byte {
	switch v := inst.(type) {
	case ir.Add:
		return encodeBinary(ir.OpAdd, v.A, v.B)
	case ir.Subtract:
		return encodeBinary(ir.OpSubtract, v.A, v.B)
	default:
		buf := make([]byte, BareLayout.Size())
		BareLayout.PutUint8(buf, "opcode", uint8(inst.Opcode()))
		return buf
	}
}

func encodeBinary(op ir.Opcode, a, b float64) []byte {
	buf := make([]byte, OperandLayout.Size())
	OperandLayout.PutUint8(buf, "opcode", uint8(op))
	OperandLayout.PutFloat64(buf, "a", a)
	OperandLayout.PutFloat64(buf, "b", b)
	return buf
}

// Build assembles an instruction from a mnemonic and its operands, as typed
// on the command line or in a scenario file.
func Build(name string, operands ...float64) (ir.Instruction, error) {
	op, ok := ir.OpcodeByName(name)
	if !ok {
		return nil, ir.NewProgramError(ir.ErrCodeUnknownOpcode, "unknown instruction %q", name)
	}

	switch op {
	case ir.OpAdd, ir.OpSubtract:
		if len(operands) != 2 {
			return nil, ir.NewProgramError(ir.ErrCodeTruncatedOperands,
				"%s takes 2 operands, got %d", op, len(operands))
		}
		if op == ir.OpAdd {
			return ir.Add{A: operands[0], B: operands[1]}, nil
		}
		return ir.Subtract{A: operands[0], B: operands[1]}, nil
	}

	if len(operands) != 0 {
		return nil, ir.NewProgramError(ir.ErrCodeUnknownOpcode, "%s takes no operands, got %d", op, len(operands))
	}
	switch op {
	case ir.OpIncrement:
		return ir.Increment{}, nil
	case ir.OpDecrement:
		return ir.Decrement{}, nil
	default:
		return ir.Create{}, nil
	}
}
