package codec

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/abacus/internal/ir"
)

func TestAccountSize(t *testing.T) {
	assert.Equal(t, 8, AccountSize)
	assert.Equal(t, 48, CounterSize)
}

func TestAccountRoundTripBitExact(t *testing.T) {
	values := []float64{
		0,
		math.Copysign(0, -1),
		5.5,
		3.2,
		-1e308,
		math.SmallestNonzeroFloat64,
		math.MaxFloat64,
		math.Inf(1),
		math.Inf(-1),
		math.NaN(),
		math.Float64frombits(0x7ff0_0000_0000_0001), // signalling NaN
		math.Float64frombits(0xfff8_1234_5678_9abc), // negative quiet NaN with payload
	}

	for _, v := range values {
		buf := make([]byte, AccountSize)
		require.NoError(t, EncodeAccount(ir.AccountRecord{Result: v}, buf))

		got, err := DecodeAccount(buf)
		require.NoError(t, err)
		assert.Equal(t, math.Float64bits(v), math.Float64bits(got.Result), "bits of %v", v)
	}
}

func TestAccountRoundTripRandomBits(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	buf := make([]byte, AccountSize)

	for i := 0; i < 1000; i++ {
		bits := r.Uint64()
		require.NoError(t, EncodeAccount(ir.AccountRecord{Result: math.Float64frombits(bits)}, buf))

		got, err := DecodeAccount(buf)
		require.NoError(t, err)
		require.Equal(t, bits, math.Float64bits(got.Result))
	}
}

func TestAccountWireFormat(t *testing.T) {
	buf := make([]byte, AccountSize)
	require.NoError(t, EncodeAccount(ir.AccountRecord{Result: 5.5}, buf))

	// 5.5 = 0x4016000000000000, little-endian.
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0x16, 0x40}, buf)
}

func TestDecodeAccountZeroBufferIsZeroRecord(t *testing.T) {
	rec, err := DecodeAccount(make([]byte, AccountSize))
	require.NoError(t, err)
	assert.Equal(t, ir.AccountRecord{}, rec)
}

func TestDecodeAccountShortBuffer(t *testing.T) {
	for n := 0; n < AccountSize; n++ {
		_, err := DecodeAccount(make([]byte, n))
		require.Error(t, err, "length %d", n)
		assert.True(t, errors.Is(err, ir.ErrMalformedState), "length %d: %v", n, err)
	}
}

func TestEncodeAccountShortBuffer(t *testing.T) {
	buf := []byte{1, 2, 3}
	err := EncodeAccount(ir.AccountRecord{Result: 1}, buf)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ir.ErrBufferTooSmall))
	assert.Equal(t, []byte{1, 2, 3}, buf, "failed encode must not write")
}

func TestEncodeAccountInPlaceLeavesTail(t *testing.T) {
	buf := []byte{9, 9, 9, 9, 9, 9, 9, 9, 0xAB, 0xCD}
	orig := &buf[0]

	require.NoError(t, EncodeAccount(ir.AccountRecord{Result: 0}, buf))

	assert.Same(t, orig, &buf[0])
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 0xAB, 0xCD}, buf)

	rec, err := DecodeAccount(buf)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rec.Result)
}

func TestCounterRoundTrip(t *testing.T) {
	rec := ir.CounterRecord{
		Authority: ir.AccountIdentity("alice"),
		Count:     math.MaxUint64,
	}
	buf := make([]byte, CounterSize)

	require.NoError(t, EncodeCounter(rec, buf))
	assert.Equal(t, CounterDiscriminator, buf[:8])

	got, err := DecodeCounter(buf)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestDecodeCounterRejectsForeignDiscriminator(t *testing.T) {
	_, err := DecodeCounter(make([]byte, CounterSize))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ir.ErrMalformedState))
	assert.Contains(t, err.Error(), "discriminator")
}

func TestCounterShortBuffers(t *testing.T) {
	_, err := DecodeCounter(make([]byte, CounterSize-1))
	assert.True(t, errors.Is(err, ir.ErrMalformedState))

	err = EncodeCounter(ir.CounterRecord{}, make([]byte, CounterSize-1))
	assert.True(t, errors.Is(err, ir.ErrBufferTooSmall))
}

func TestCounterDiscriminatorIsStable(t *testing.T) {
	// sha256("account:Counter")[:8]
	assert.Equal(t, []byte{0xff, 0xb0, 0x04, 0xf5, 0xbc, 0xfd, 0x7c, 0x19}, CounterDiscriminator)
}
