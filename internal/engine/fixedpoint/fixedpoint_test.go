package fixedpoint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name    string
		a, b    uint64
		den     uint64
		want    uint64
		wantErr error
	}{
		{name: "simple", a: 1000, b: 15000, den: 10000, want: 1500},
		{name: "truncates", a: 7, b: 3, den: 2, want: 10},
		{name: "zero amount", a: 0, b: 9999, den: 10000, want: 0},
		{name: "large intermediate", a: math.MaxUint64, b: 10000, den: 10000, want: math.MaxUint64},
		{name: "result overflows", a: math.MaxUint64, b: 3, den: 2, wantErr: ErrOverflow},
		{name: "divide by zero", a: 1, b: 1, den: 0, wantErr: ErrDivideByZero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MulDiv(tt.a, tt.b, tt.den)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddSub(t *testing.T) {
	sum, err := Add(math.MaxUint64-1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), sum)

	_, err = Add(math.MaxUint64, 1)
	assert.ErrorIs(t, err, ErrOverflow)

	diff, err := Sub(10, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), diff)

	_, err = Sub(3, 10)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestMul(t *testing.T) {
	got, err := Mul(1<<32, 1<<31)
	require.NoError(t, err)
	assert.Equal(t, uint64(1)<<63, got)

	_, err = Mul(1<<32, 1<<32)
	assert.ErrorIs(t, err, ErrOverflow)
}
