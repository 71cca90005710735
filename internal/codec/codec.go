// Package codec encodes and decodes persisted account records.
//
// Both record kinds are described by internal/layout descriptions and read
// or written in place: decode never copies the buffer, encode never
// reallocates it. Bytes past the record's fixed size are left untouched.
package codec

import (
	"bytes"
	"crypto/sha256"

	"github.com/roach88/abacus/internal/ir"
	"github.com/roach88/abacus/internal/layout"
)

// AccountLayout is the calculator record: one little-endian double.
var AccountLayout = layout.Pack("calculator_account",
	layout.Float64LE("result"),
)

// CounterLayout is the counter record: an 8-byte account discriminator,
// the authority identity and the count.
var CounterLayout = layout.Pack("counter_account",
	layout.Bytes("discriminator", 8),
	layout.Bytes("authority", ir.IdentitySize),
	layout.Uint64LE("count"),
)

// AccountSize and CounterSize are the serialized record sizes.
var (
	AccountSize = AccountLayout.Size()
	CounterSize = CounterLayout.Size()
)

// CounterDiscriminator tags counter buffers: sha256("account:Counter")[:8].
var CounterDiscriminator = func() []byte {
	sum := sha256.Sum256([]byte("account:Counter"))
	return sum[:8]
}()

// DecodeAccount reads a calculator record from the front of buf.
// Any bit pattern is a valid double, so the only failure is a short buffer.
func DecodeAccount(buf []byte) (ir.AccountRecord, error) {
	if err := AccountLayout.Check(buf); err != nil {
		return ir.AccountRecord{}, malformed(err)
	}
	return ir.AccountRecord{
		Result: AccountLayout.Float64(buf, "result"),
	}, nil
}

// EncodeAccount writes rec into the front of buf in place.
func EncodeAccount(rec ir.AccountRecord, buf []byte) error {
	if err := AccountLayout.Check(buf); err != nil {
		return tooSmall(err)
	}
	AccountLayout.PutFloat64(buf, "result", rec.Result)
	return nil
}

// DecodeCounter reads a counter record, rejecting buffers that do not carry
// the counter discriminator.
func DecodeCounter(buf []byte) (ir.CounterRecord, error) {
	if err := CounterLayout.Check(buf); err != nil {
		return ir.CounterRecord{}, malformed(err)
	}
	if !bytes.Equal(CounterLayout.Bytes(buf, "discriminator"), CounterDiscriminator) {
		return ir.CounterRecord{}, ir.NewProgramError(ir.ErrCodeMalformedState,
			"account discriminator %x does not match counter %x",
			CounterLayout.Bytes(buf, "discriminator"), CounterDiscriminator)
	}

	var rec ir.CounterRecord
	copy(rec.Authority[:], CounterLayout.Bytes(buf, "authority"))
	rec.Count = CounterLayout.Uint64(buf, "count")
	return rec, nil
}

// EncodeCounter writes rec, discriminator included, into buf in place.
func EncodeCounter(rec ir.CounterRecord, buf []byte) error {
	if err := CounterLayout.Check(buf); err != nil {
		return tooSmall(err)
	}
	CounterLayout.PutBytes(buf, "discriminator", CounterDiscriminator)
	CounterLayout.PutBytes(buf, "authority", rec.Authority[:])
	CounterLayout.PutUint64(buf, "count", rec.Count)
	return nil
}

func malformed(err error) error {
	return ir.NewProgramError(ir.ErrCodeMalformedState, "%s", err)
}

func tooSmall(err error) error {
	return ir.NewProgramError(ir.ErrCodeBufferTooSmall, "%s", err)
}
