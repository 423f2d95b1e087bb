package chunk

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/lox/pkg/value"
)

func TestWriteAndLines(t *testing.T) {
	c := New()
	c.WriteOp(OpNil, 1)
	c.WriteOp(OpReturn, 2)

	require.Equal(t, []byte{byte(OpNil), byte(OpReturn)}, c.Code)
	require.Equal(t, []int{1, 2}, c.Lines)
	require.Equal(t, 1, c.LineAt(0))
	require.Equal(t, 2, c.LineAt(1))
}

func TestAddConstant(t *testing.T) {
	c := New()
	idx, err := c.AddConstant(value.Number(42))
	require.NoError(t, err)
	require.Equal(t, 0, idx)
	require.Equal(t, 42.0, c.Constants[idx].AsNumber())
}

func TestAddConstant_CapacityLimit(t *testing.T) {
	c := New()
	for i := 0; i < 256; i++ {
		_, err := c.AddConstant(value.Number(float64(i)))
		require.NoError(t, err)
	}
	_, err := c.AddConstant(value.Number(256))
	require.Error(t, err)
}

func TestOpcodeStringExhaustive(t *testing.T) {
	require.Equal(t, "OP_FALSE", OpFalse.String())
	require.Equal(t, "OP_TRUE", OpTrue.String())
	require.Equal(t, "OP_UNKNOWN", Op(255).String())
	for op := OpConstant; op <= OpInvokeSuper; op++ {
		require.NotEqualf(t, "OP_UNKNOWN", op.String(), "opcode %d has no name", op)
	}
}
