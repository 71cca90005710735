package ir

import (
	"errors"
	"fmt"
)

// ErrorCode identifies why an invocation failed.
// Codes are surfaced verbatim to the host as the failure reason.
type ErrorCode string

const (
	// ErrCodeMissingAccount indicates the host passed an empty account list.
	ErrCodeMissingAccount ErrorCode = "MissingAccount"

	// ErrCodeMalformedState indicates the buffer is too short or does not hold a valid record.
	ErrCodeMalformedState ErrorCode = "MalformedState"

	// ErrCodeBufferTooSmall indicates the encode target cannot hold the record.
	ErrCodeBufferTooSmall ErrorCode = "BufferTooSmall"

	// ErrCodeEmptyInstruction indicates a zero-length payload.
	ErrCodeEmptyInstruction ErrorCode = "EmptyInstruction"

	// ErrCodeTruncatedOperands indicates the payload ends before the operand block does.
	ErrCodeTruncatedOperands ErrorCode = "TruncatedOperands"

	// ErrCodeUnknownOpcode indicates an opcode outside the program's recognized set.
	ErrCodeUnknownOpcode ErrorCode = "UnknownOpcode"

	// ErrCodeReadonlyAccount indicates the target account was not passed as writable.
	ErrCodeReadonlyAccount ErrorCode = "ReadonlyAccount"

	// ErrCodeAccountAlreadyInitialized indicates create on an account the program already owns.
	ErrCodeAccountAlreadyInitialized ErrorCode = "AccountAlreadyInitialized"

	// ErrCodeUninitializedAccount indicates a counter operation on an account the program does not own.
	ErrCodeUninitializedAccount ErrorCode = "UninitializedAccount"

	// ErrCodeConstraintHasOne indicates the signer does not match the stored authority.
	ErrCodeConstraintHasOne ErrorCode = "ConstraintHasOne"

	// ErrCodeMissingSigner indicates an operation that needs a signing authority got none.
	ErrCodeMissingSigner ErrorCode = "MissingSigner"

	// ErrCodeArithmeticOverflow indicates an integer counter would wrap.
	ErrCodeArithmeticOverflow ErrorCode = "ArithmeticOverflow"

	// ErrCodeUnknownProgram indicates no program is registered under the invoked id.
	ErrCodeUnknownProgram ErrorCode = "UnknownProgram"
)

// Stage names a step of the per-invocation state machine.
type Stage string

const (
	StageStart             Stage = "Start"
	StageAccountResolved   Stage = "AccountResolved"
	StageStateLoaded       Stage = "StateLoaded"
	StageInstructionParsed Stage = "InstructionParsed"
	StageTransitioned      Stage = "Transitioned"
	StagePersisted         Stage = "Persisted"
	StageDone              Stage = "Done"
)

// ProgramError is the terminal failure of an invocation.
//
// Stage records the last stage the invocation reached before failing, so a
// MalformedState raised while loading reports StageAccountResolved.
type ProgramError struct {
	Code    ErrorCode
	Stage   Stage
	Message string
}

// Error implements the error interface.
func (e *ProgramError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s (stage=%s)", e.Code, e.Message, e.Stage)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any ProgramError with the same code, which lets callers compare
// against the sentinel values below with errors.Is.
func (e *ProgramError) Is(target error) bool {
	var pe *ProgramError
	if !errors.As(target, &pe) {
		return false
	}
	return pe.Code == e.Code
}

// Sentinels for errors.Is comparisons. Never returned directly.
var (
	ErrMissingAccount            = &ProgramError{Code: ErrCodeMissingAccount}
	ErrMalformedState            = &ProgramError{Code: ErrCodeMalformedState}
	ErrBufferTooSmall            = &ProgramError{Code: ErrCodeBufferTooSmall}
	ErrEmptyInstruction          = &ProgramError{Code: ErrCodeEmptyInstruction}
	ErrTruncatedOperands         = &ProgramError{Code: ErrCodeTruncatedOperands}
	ErrUnknownOpcode             = &ProgramError{Code: ErrCodeUnknownOpcode}
	ErrReadonlyAccount           = &ProgramError{Code: ErrCodeReadonlyAccount}
	ErrAccountAlreadyInitialized = &ProgramError{Code: ErrCodeAccountAlreadyInitialized}
	ErrUninitializedAccount      = &ProgramError{Code: ErrCodeUninitializedAccount}
	ErrConstraintHasOne          = &ProgramError{Code: ErrCodeConstraintHasOne}
	ErrMissingSigner             = &ProgramError{Code: ErrCodeMissingSigner}
	ErrArithmeticOverflow        = &ProgramError{Code: ErrCodeArithmeticOverflow}
	ErrUnknownProgram            = &ProgramError{Code: ErrCodeUnknownProgram}
)

// NewProgramError creates a ProgramError without a stage.
// The dispatcher stamps the stage when the error crosses it.
func NewProgramError(code ErrorCode, format string, args ...any) *ProgramError {
	return &ProgramError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// AtStage returns a copy of err stamped with stage. Errors that already carry
// a stage keep it; non-program errors are returned unchanged.
func AtStage(err error, stage Stage) error {
	var pe *ProgramError
	if !errors.As(err, &pe) || pe.Stage != "" {
		return err
	}
	stamped := *pe
	stamped.Stage = stage
	return &stamped
}

// CodeOf extracts the ErrorCode from err, or "" if err is not a ProgramError.
func CodeOf(err error) ErrorCode {
	var pe *ProgramError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
