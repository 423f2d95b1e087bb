package table

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/lox/pkg/value"
)

func hashString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

func TestSetGetDelete(t *testing.T) {
	tbl := New[string](hashString)

	isNew := tbl.Set("a", value.Number(1))
	require.True(t, isNew)

	v, ok := tbl.Get("a")
	require.True(t, ok)
	require.Equal(t, 1.0, v.AsNumber())

	isNew = tbl.Set("a", value.Number(2))
	require.False(t, isNew)
	v, _ = tbl.Get("a")
	require.Equal(t, 2.0, v.AsNumber())

	require.True(t, tbl.Delete("a"))
	_, ok = tbl.Get("a")
	require.False(t, ok)
	require.False(t, tbl.Delete("a"))
}

func TestTombstoneDoesNotBreakProbeChain(t *testing.T) {
	tbl := New[string](func(string) uint32 { return 0 }) // force collisions

	tbl.Set("a", value.Number(1))
	tbl.Set("b", value.Number(2))
	tbl.Set("c", value.Number(3))

	require.True(t, tbl.Delete("b"))

	v, ok := tbl.Get("c")
	require.True(t, ok)
	require.Equal(t, 3.0, v.AsNumber())
}

func TestGrowthRehashDropsTombstones(t *testing.T) {
	tbl := New[string](hashString)
	for i := 0; i < 20; i++ {
		tbl.Set(string(rune('a'+i)), value.Number(float64(i)))
	}
	for i := 0; i < 10; i++ {
		tbl.Delete(string(rune('a' + i)))
	}
	require.Equal(t, 20, tbl.Count(), "tombstones are counted until the next rehash")
	tbl.grow()
	require.Equal(t, 10, tbl.Count(), "rehash drops tombstones")
	for i := 10; i < 20; i++ {
		v, ok := tbl.Get(string(rune('a' + i)))
		require.True(t, ok)
		require.Equal(t, float64(i), v.AsNumber())
	}
}

func TestAddAllFrom(t *testing.T) {
	src := New[string](hashString)
	src.Set("x", value.Number(1))
	src.Set("y", value.Number(2))

	dst := New[string](hashString)
	dst.Set("y", value.Number(99))
	dst.AddAllFrom(src)

	v, _ := dst.Get("x")
	require.Equal(t, 1.0, v.AsNumber())
	v, _ = dst.Get("y")
	require.Equal(t, 2.0, v.AsNumber())
}

func TestDeleteUnmarked(t *testing.T) {
	tbl := New[string](hashString)
	tbl.Set("keep", value.Number(1))
	tbl.Set("drop", value.Number(2))

	tbl.DeleteUnmarked(func(k string) bool { return k == "keep" })

	_, ok := tbl.Get("keep")
	require.True(t, ok)
	_, ok = tbl.Get("drop")
	require.False(t, ok)
}

func TestPointerIdentityKeys(t *testing.T) {
	type handle struct{ s string }
	a := &handle{"same bytes"}
	b := &handle{"same bytes"}

	tbl := New[*handle](func(h *handle) uint32 { return hashString(h.s) })
	tbl.Set(a, value.Number(1))

	_, ok := tbl.Get(a)
	require.True(t, ok)
	_, ok = tbl.Get(b)
	require.False(t, ok, "distinct pointers with equal contents must not alias")
}
