package vm

import "github.com/kristofer/lox/pkg/object"

// callFrame is one activation record: a closure, the instruction
// pointer into that closure's chunk, and the base stack slot its
// locals start at. The VM is a single flat value stack shared by
// every frame, so a frame only records where its own window into
// that stack begins.
type callFrame struct {
	closure *object.Closure
	ip      int
	slots   int
}

const framesMax = 64
const stackMax = framesMax * 256
