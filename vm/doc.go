// Package vm implements the wisp runtime: a continuation-passing-style
// evaluator for a small Lisp, cooperatively multiplexed across many
// lightweight processes ("contexts") on a single evaluator goroutine.
//
// Each context owns an explicit continuation stack, so evaluation at
// any depth can be suspended between steps and resumed later; no native
// call stack is used for guest evaluation. Contexts communicate only
// through per-context FIFO mailboxes, and the scheduler moves them
// between ready, blocked, and done queues under external pause, step,
// and kill control.
//
// A VM is driven by calling Run on a dedicated goroutine; every other
// exported method is a control-surface call safe to make concurrently
// with Run.
package vm
