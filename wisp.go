// Package wisp ties the runtime core to the reader: the load-and-eval
// conveniences parse source text and hand the resulting values to a
// running VM through its control API. This is thin glue; everything
// interesting lives in the vm and reader packages.
package wisp

import (
	"fmt"

	"github.com/chazu/wisp/reader"
	"github.com/chazu/wisp/vm"
)

// LoadAndLaunch parses src as a program (any number of forms) and
// launches a context evaluating it. Execution begins once the VM's Run
// loop is active.
func LoadAndLaunch(m *vm.VM, src string) (vm.CID, error) {
	prog, err := reader.ReadProgram(m, src)
	if err != nil {
		return 0, fmt.Errorf("load program: %w", err)
	}
	cid := m.Launch(prog)
	if cid == 0 {
		return 0, fmt.Errorf("launch: no context available")
	}
	return cid, nil
}

// LoadAndLaunchExpression parses a single expression and launches a
// context evaluating it.
func LoadAndLaunchExpression(m *vm.VM, src string) (vm.CID, error) {
	exp, err := reader.ReadExpression(m, src)
	if err != nil {
		return 0, fmt.Errorf("load expression: %w", err)
	}
	cid := m.Launch(m.List(exp))
	if cid == 0 {
		return 0, fmt.Errorf("launch: no context available")
	}
	return cid, nil
}

// LoadAndDefineProgram parses src as a program and launches a context
// that binds the form list to name in the global environment. The
// bound program can later be run with LaunchDefinedProgram.
func LoadAndDefineProgram(m *vm.VM, src, name string) (vm.CID, error) {
	prog, err := reader.ReadProgram(m, src)
	if err != nil {
		return 0, fmt.Errorf("load program: %w", err)
	}
	return define(m, name, prog)
}

// LoadAndDefineExpression parses a single expression and launches a
// context that binds it (unevaluated) to name in the global
// environment.
func LoadAndDefineExpression(m *vm.VM, src, name string) (vm.CID, error) {
	exp, err := reader.ReadExpression(m, src)
	if err != nil {
		return 0, fmt.Errorf("load expression: %w", err)
	}
	return define(m, name, exp)
}

func define(m *vm.VM, name string, data vm.Value) (vm.CID, error) {
	form := m.List(
		vm.FromSymbolID(vm.SymDefine),
		m.Sym(name),
		m.List(vm.FromSymbolID(vm.SymQuote), data),
	)
	cid := m.Launch(m.List(form))
	if cid == 0 {
		return 0, fmt.Errorf("launch: no context available")
	}
	return cid, nil
}
