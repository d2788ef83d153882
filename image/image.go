// Package image snapshots a VM's global environment to disk and
// restores it into another VM. Values are flattened into a portable
// tree (symbols travel by name, cons cells by structure) and encoded
// as canonical CBOR, so an image is deterministic for a given
// environment and independent of either VM's heap layout.
package image

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/wisp/vm"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Node kinds in the portable value tree.
const (
	kindNil uint8 = iota
	kindBool
	kindInt
	kindFloat
	kindSymbol
	kindString
	kindCons
)

// Node is one flattened value.
type Node struct {
	Kind  uint8   `cbor:"k"`
	Bool  bool    `cbor:"b,omitempty"`
	Int   int64   `cbor:"i,omitempty"`
	Float float64 `cbor:"f,omitempty"`
	Str   string  `cbor:"s,omitempty"`
	Car   *Node   `cbor:"a,omitempty"`
	Cdr   *Node   `cbor:"d,omitempty"`
}

// Snapshot is an encoded global environment.
type Snapshot struct {
	Version  int              `cbor:"v"`
	Bindings map[string]*Node `cbor:"env"`
}

const snapshotVersion = 1

// Capture flattens the VM's current global environment. Bindings that
// reach a cyclic cons structure (a recursive closure bound with let)
// cannot be flattened into a tree and make Capture fail.
func Capture(m *vm.VM) (*Snapshot, error) {
	snap := &Snapshot{
		Version:  snapshotVersion,
		Bindings: make(map[string]*Node),
	}
	for _, b := range m.GlobalBindings() {
		name := m.Symbols.Name(b.Sym)
		if name == "" {
			continue
		}
		if _, seen := snap.Bindings[name]; seen {
			// Older shadowed binding of the same name.
			continue
		}
		node, err := encode(m, b.Val, make(map[vm.Value]bool))
		if err != nil {
			return nil, fmt.Errorf("image: binding %s: %w", name, err)
		}
		snap.Bindings[name] = node
	}
	return snap, nil
}

// Restore defines every binding of snap in the VM's global environment.
func Restore(m *vm.VM, snap *Snapshot) error {
	if snap.Version != snapshotVersion {
		return fmt.Errorf("image: unsupported snapshot version %d", snap.Version)
	}
	for name, node := range snap.Bindings {
		v, err := decode(m, node)
		if err != nil {
			return fmt.Errorf("image: binding %s: %w", name, err)
		}
		m.Define(m.Symbols.Intern(name), v)
	}
	return nil
}

// Marshal serializes a Snapshot to CBOR bytes.
func Marshal(snap *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(snap)
}

// Unmarshal deserializes a Snapshot from CBOR bytes.
func Unmarshal(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("image: unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Save writes the VM's global environment to path. Pause the VM first
// if guest code may be defining concurrently.
func Save(m *vm.VM, path string) error {
	snap, err := Capture(m)
	if err != nil {
		return err
	}
	data, err := Marshal(snap)
	if err != nil {
		return fmt.Errorf("image: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("image: write %s: %w", path, err)
	}
	return nil
}

// Load reads an image from path and restores it into the VM.
func Load(m *vm.VM, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("image: read %s: %w", path, err)
	}
	snap, err := Unmarshal(data)
	if err != nil {
		return err
	}
	return Restore(m, snap)
}

// encode flattens v. seen holds the cons cells on the current path so
// a cycle is caught instead of recursing forever; shared acyclic
// structure is still encoded once per reference.
func encode(m *vm.VM, v vm.Value, seen map[vm.Value]bool) (*Node, error) {
	switch {
	case v == vm.Nil:
		return &Node{Kind: kindNil}, nil
	case v == vm.True:
		return &Node{Kind: kindBool, Bool: true}, nil
	case v == vm.False:
		return &Node{Kind: kindBool}, nil
	case v.IsSmallInt():
		return &Node{Kind: kindInt, Int: v.SmallInt()}, nil
	case v.IsFloat():
		return &Node{Kind: kindFloat, Float: v.Float64()}, nil
	case v.IsSymbol():
		return &Node{Kind: kindSymbol, Str: m.Symbols.Name(v.SymbolID())}, nil
	case v.IsString():
		return &Node{Kind: kindString, Str: m.StringOf(v)}, nil
	case v.IsCons():
		if seen[v] {
			return nil, fmt.Errorf("cyclic structure")
		}
		seen[v] = true
		car, err := encode(m, m.Car(v), seen)
		if err != nil {
			return nil, err
		}
		cdr, err := encode(m, m.Cdr(v), seen)
		if err != nil {
			return nil, err
		}
		delete(seen, v)
		return &Node{Kind: kindCons, Car: car, Cdr: cdr}, nil
	}
	return &Node{Kind: kindNil}, nil
}

func decode(m *vm.VM, n *Node) (vm.Value, error) {
	if n == nil {
		return vm.Nil, nil
	}
	switch n.Kind {
	case kindNil:
		return vm.Nil, nil
	case kindBool:
		if n.Bool {
			return vm.True, nil
		}
		return vm.False, nil
	case kindInt:
		v, ok := vm.TryFromSmallInt(n.Int)
		if !ok {
			return vm.Nil, fmt.Errorf("integer %d out of range", n.Int)
		}
		return v, nil
	case kindFloat:
		return vm.FromFloat64(n.Float), nil
	case kindSymbol:
		return m.Sym(n.Str), nil
	case kindString:
		return m.NewString(n.Str), nil
	case kindCons:
		car, err := decode(m, n.Car)
		if err != nil {
			return vm.Nil, err
		}
		cdr, err := decode(m, n.Cdr)
		if err != nil {
			return vm.Nil, err
		}
		return m.Cons(car, cdr), nil
	}
	return vm.Nil, fmt.Errorf("unknown node kind %d", n.Kind)
}
