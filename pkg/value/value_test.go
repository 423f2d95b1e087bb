package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeObj struct{ name string }

func (f *fakeObj) ObjType() string { return "fake" }

func TestTruthiness(t *testing.T) {
	require.True(t, Nil.IsFalsey())
	require.True(t, False.IsFalsey())
	require.False(t, True.IsFalsey())
	require.False(t, Number(0).IsFalsey())
	require.False(t, FromObj(&fakeObj{}).IsFalsey())
}

func TestEqual_CrossKindIsFalse(t *testing.T) {
	require.False(t, Equal(Nil, False))
	require.False(t, Equal(Number(0), False))
}

func TestEqual_Numbers(t *testing.T) {
	require.True(t, Equal(Number(0), Number(-0.0*1)))
	require.True(t, Equal(Number(math.Copysign(0, -1)), Number(0)))
	nan := Number(math.NaN())
	require.False(t, Equal(nan, nan))
}

func TestEqual_ObjIdentity(t *testing.T) {
	a := &fakeObj{"x"}
	b := &fakeObj{"x"}
	require.True(t, Equal(FromObj(a), FromObj(a)))
	require.False(t, Equal(FromObj(a), FromObj(b)))
}

func TestBoolSingletons(t *testing.T) {
	require.True(t, Bool(true).AsBool())
	require.False(t, Bool(false).AsBool())
}
