package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// Str renders a value for display. Rendering needs the VM because
// symbols, strings, and cons cells are table indices.
func (vm *VM) Str(v Value) string {
	var b strings.Builder
	vm.render(&b, v, 0)
	return b.String()
}

const maxRenderDepth = 64

func (vm *VM) render(b *strings.Builder, v Value, depth int) {
	if depth > maxRenderDepth {
		b.WriteString("...")
		return
	}

	switch {
	case v == Nil:
		b.WriteString("nil")
	case v == True:
		b.WriteString("#t")
	case v == False:
		b.WriteString("#f")
	case v.IsSmallInt():
		b.WriteString(strconv.FormatInt(v.SmallInt(), 10))
	case v.IsFloat():
		b.WriteString(strconv.FormatFloat(v.Float64(), 'g', -1, 64))
	case v.IsSymbol():
		name := vm.Symbols.Name(v.SymbolID())
		if name == "" {
			fmt.Fprintf(b, "#<symbol %d>", v.SymbolID())
		} else {
			b.WriteString(name)
		}
	case v.IsString():
		fmt.Fprintf(b, "%q", vm.StringOf(v))
	case v.IsCons():
		vm.renderList(b, v, depth)
	default:
		b.WriteString("#<unknown>")
	}
}

func (vm *VM) renderList(b *strings.Builder, v Value, depth int) {
	b.WriteByte('(')
	first := true
	for v.IsCons() {
		if !first {
			b.WriteByte(' ')
		}
		vm.render(b, vm.Car(v), depth+1)
		first = false
		v = vm.Cdr(v)
	}
	if !v.IsNil() {
		b.WriteString(" . ")
		vm.render(b, v, depth+1)
	}
	b.WriteByte(')')
}
