package object

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/lox/pkg/value"
)

func TestClassInheritIsSnapshot(t *testing.T) {
	super := NewClass(&String{Chars: "Animal"})
	speak := &String{Chars: "speak", Hash: HashFNV1a("speak")}
	super.Methods.Set(speak, value.FromObj(&Closure{}))

	sub := NewClass(&String{Chars: "Dog"})
	sub.Inherit(super)

	_, ok := sub.Methods.Get(speak)
	require.True(t, ok)

	fly := &String{Chars: "fly", Hash: HashFNV1a("fly")}
	super.Methods.Set(fly, value.FromObj(&Closure{}))
	_, ok = sub.Methods.Get(fly)
	require.False(t, ok, "inheritance must not be a live link")
}

func TestUpvalueOpenClose(t *testing.T) {
	slot := value.Number(10)
	uv := &Upvalue{Location: &slot}
	require.True(t, uv.IsOpen())
	require.Equal(t, 10.0, uv.Get().AsNumber())

	slot = value.Number(20)
	require.Equal(t, 20.0, uv.Get().AsNumber())

	uv.Close()
	require.False(t, uv.IsOpen())
	require.Equal(t, 20.0, uv.Get().AsNumber())

	slot = value.Number(999)
	require.Equal(t, 20.0, uv.Get().AsNumber(), "closed upvalue must not alias the old slot")
}

func TestStringify(t *testing.T) {
	require.Equal(t, "nil", Stringify(value.Nil))
	require.Equal(t, "true", Stringify(value.True))
	require.Equal(t, "false", Stringify(value.False))
	require.Equal(t, "3", Stringify(value.Number(3)))
	require.Equal(t, "3.5", Stringify(value.Number(3.5)))

	s := &String{Chars: "hi"}
	require.Equal(t, "hi", Stringify(value.FromObj(s)))
}

func TestHashFNV1aStable(t *testing.T) {
	require.Equal(t, HashFNV1a("abc"), HashFNV1a("abc"))
	require.NotEqual(t, HashFNV1a("abc"), HashFNV1a("abd"))
}

func TestNewInstance(t *testing.T) {
	class := NewClass(&String{Chars: "Point"})
	inst := NewInstance(class)
	inst.Fields.Set(&String{Chars: "x", Hash: HashFNV1a("x")}, value.Number(1))
	require.Equal(t, "Point instance", Stringify(value.FromObj(inst)))
}
