package vm

import (
	"github.com/kristofer/lox/pkg/object"
	"github.com/kristofer/lox/pkg/value"
)

const gcHeapGrowFactor = 1.5

// collectGarbage runs one precise mark-and-sweep cycle: mark every
// object reachable from a root, trace outward from the gray worklist
// until it drains, drop unmarked entries from the string-intern table
// so dead strings don't keep false hash-equal matches alive, then
// sweep the allocation list and grow the next collection threshold.
//
// Roots are the value stack, every live call frame's closure, every
// still-open upvalue, the globals table, and the interned "init"
// string. Compile-time temporaries are already covered: Interner's
// PinTemp pushes them onto this same stack.
func (vm *VM) collectGarbage() {
	if vm.log != nil {
		vm.log.TraceGC("gc begin, bytesAllocated=%d nextGC=%d", vm.bytesAllocated, vm.nextGC)
	}

	vm.markRoots()
	vm.traceReferences()
	vm.strings.DeleteUnmarked(func(s string) bool {
		v, ok := vm.strings.Get(s)
		return ok && v.AsObj().(*object.String).Marked()
	})
	before := vm.bytesAllocated
	vm.sweep()
	vm.nextGC = int(float64(vm.bytesAllocated) * gcHeapGrowFactor)
	if vm.nextGC < initialNextGC {
		vm.nextGC = initialNextGC
	}

	if vm.log != nil {
		vm.log.TraceGC("gc end, collected %d bytes, next at %d", before-vm.bytesAllocated, vm.nextGC)
	}
}

func (vm *VM) markRoots() {
	for i := 0; i < vm.stackTop; i++ {
		vm.markValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		vm.markObject(vm.frames[i].closure)
	}
	for _, up := range vm.openUpvalues {
		vm.markObject(up)
	}
	vm.globals.Each(func(k *object.String, v value.Value) {
		vm.markObject(k)
		vm.markValue(v)
	})
	vm.markObject(vm.initString)
}

func (vm *VM) markValue(v value.Value) {
	if v.IsObj() {
		vm.markObject(v.AsObj())
	}
}

func (vm *VM) markObject(o value.Obj) {
	if o == nil {
		return
	}
	tracked, ok := o.(object.Tracked)
	if !ok || tracked.Marked() {
		return
	}
	tracked.SetMarked(true)
	vm.grayStack = append(vm.grayStack, tracked)
}

// blacken marks every object a live object references, per its
// concrete kind. Strings and natives have no outgoing references.
func (vm *VM) blacken(o object.Tracked) {
	switch obj := o.(type) {
	case *object.Function:
		if obj.Name != nil {
			vm.markObject(obj.Name)
		}
		for _, c := range obj.Chunk.Constants {
			vm.markValue(c)
		}
	case *object.Closure:
		vm.markObject(obj.Function)
		for _, up := range obj.Upvalues {
			if up != nil {
				vm.markObject(up)
			}
		}
	case *object.Upvalue:
		vm.markValue(obj.Get())
	case *object.Class:
		vm.markObject(obj.Name)
		obj.Methods.Each(func(k *object.String, v value.Value) {
			vm.markObject(k)
			vm.markValue(v)
		})
	case *object.Instance:
		vm.markObject(obj.Class)
		obj.Fields.Each(func(k *object.String, v value.Value) {
			vm.markObject(k)
			vm.markValue(v)
		})
	case *object.BoundMethod:
		vm.markValue(obj.Receiver)
		vm.markObject(obj.Method)
	}
}

func (vm *VM) traceReferences() {
	for len(vm.grayStack) > 0 {
		o := vm.grayStack[len(vm.grayStack)-1]
		vm.grayStack = vm.grayStack[:len(vm.grayStack)-1]
		vm.blacken(o)
	}
}

// sweep walks the intrusive allocation list, unlinking anything left
// unmarked (it was not reached from any root this cycle) and clearing
// the mark bit on everything that survives, ready for the next cycle.
func (vm *VM) sweep() {
	var previous object.Tracked
	obj := vm.objects
	for obj != nil {
		next, _ := obj.Next().(object.Tracked)
		if obj.Marked() {
			obj.SetMarked(false)
			previous = obj
			obj = next
			continue
		}
		vm.bytesAllocated -= objectSize(obj)
		if previous == nil {
			vm.objects = next
		} else {
			previous.SetNext(next)
		}
		obj = next
	}
}
