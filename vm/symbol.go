package vm

import (
	"sync"
)

// SymbolID identifies an interned symbol.
type SymbolID uint32

// Reserved symbol IDs. The evaluator dispatches special forms on these,
// so they are interned first, in this order, by NewSymbolTable.
const (
	SymQuote SymbolID = iota
	SymIf
	SymLambda
	SymClosure
	SymLet
	SymProgn
	SymDefine
	SymAnd
	SymOr
	SymSpawn
	SymYield
	SymSleep
	SymSend
	SymReceive

	// Error symbols. A failed context's result is one of these.
	SymEvalError
	SymTypeError
	SymVariableNotBound
	SymStackError
	SymArityError
	SymDivisionByZero
	SymReadError
)

const (
	symErrorFirst = SymEvalError
	symErrorLast  = SymReadError
)

var reservedSymbols = []string{
	"quote",
	"if",
	"lambda",
	"closure",
	"let",
	"progn",
	"define",
	"and",
	"or",
	"spawn",
	"yield",
	"sleep",
	"send",
	"receive",
	"eval-error",
	"type-error",
	"variable-not-bound",
	"stack-error",
	"arity-error",
	"division-by-zero",
	"read-error",
}

// ---------------------------------------------------------------------------
// SymbolTable: interned symbol names
// ---------------------------------------------------------------------------

// SymbolTable interns symbol names, mapping each distinct name to a
// stable SymbolID. Interning is safe for concurrent use.
type SymbolTable struct {
	mu    sync.RWMutex
	names []string
	ids   map[string]SymbolID
}

// NewSymbolTable creates a symbol table seeded with the reserved
// symbols the evaluator depends on.
func NewSymbolTable() *SymbolTable {
	t := &SymbolTable{
		names: make([]string, 0, len(reservedSymbols)+64),
		ids:   make(map[string]SymbolID, len(reservedSymbols)+64),
	}
	for _, name := range reservedSymbols {
		t.Intern(name)
	}
	return t
}

// Intern returns the SymbolID for name, creating one if needed.
func (t *SymbolTable) Intern(name string) SymbolID {
	t.mu.RLock()
	id, ok := t.ids[name]
	t.mu.RUnlock()
	if ok {
		return id
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[name]; ok {
		return id
	}
	id = SymbolID(len(t.names))
	t.names = append(t.names, name)
	t.ids[name] = id
	return id
}

// Name returns the name of an interned symbol, or "" if id is unknown.
func (t *SymbolTable) Name(id SymbolID) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.names) {
		return ""
	}
	return t.names[id]
}

// Len returns the number of interned symbols.
func (t *SymbolTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.names)
}
