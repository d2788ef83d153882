// Package reader turns wisp source text into values. The evaluator
// core never sees text; the load-and-eval conveniences at the module
// root pull parsed values from here.
package reader

import (
	"fmt"
	"strconv"

	"github.com/chazu/wisp/vm"
)

// ReadProgram reads every form in src and returns them as a list, the
// shape vm.Launch expects.
func ReadProgram(m *vm.VM, src string) (vm.Value, error) {
	r := &reader{m: m, lx: NewLexer(src)}
	r.next()

	forms := []vm.Value{}
	for r.tok.Type != TokenEOF {
		v, err := r.form()
		if err != nil {
			return vm.Nil, err
		}
		forms = append(forms, v)
	}
	return m.List(forms...), nil
}

// ReadExpression reads exactly one form from src.
func ReadExpression(m *vm.VM, src string) (vm.Value, error) {
	r := &reader{m: m, lx: NewLexer(src)}
	r.next()

	if r.tok.Type == TokenEOF {
		return vm.Nil, r.errorf("empty input")
	}
	v, err := r.form()
	if err != nil {
		return vm.Nil, err
	}
	if r.tok.Type != TokenEOF {
		return vm.Nil, r.errorf("trailing input after expression")
	}
	return v, nil
}

type reader struct {
	m   *vm.VM
	lx  *Lexer
	tok Token
}

func (r *reader) next() {
	r.tok = r.lx.NextToken()
}

func (r *reader) errorf(format string, args ...any) error {
	return &Error{Line: r.tok.Line, Col: r.tok.Col, Msg: fmt.Sprintf(format, args...)}
}

// form parses one datum, consuming its tokens.
func (r *reader) form() (vm.Value, error) {
	tok := r.tok

	switch tok.Type {
	case TokenError:
		return vm.Nil, r.errorf("%s", tok.Literal)

	case TokenLParen:
		return r.list()

	case TokenRParen:
		return vm.Nil, r.errorf("unexpected )")

	case TokenQuote:
		r.next()
		v, err := r.form()
		if err != nil {
			return vm.Nil, err
		}
		return r.m.List(vm.FromSymbolID(vm.SymQuote), v), nil

	case TokenInt:
		r.next()
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return vm.Nil, r.errorf("bad integer %q", tok.Literal)
		}
		v, ok := vm.TryFromSmallInt(n)
		if !ok {
			return vm.FromFloat64(float64(n)), nil
		}
		return v, nil

	case TokenFloat:
		r.next()
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return vm.Nil, r.errorf("bad float %q", tok.Literal)
		}
		return vm.FromFloat64(f), nil

	case TokenString:
		r.next()
		return r.m.NewString(tok.Literal), nil

	case TokenSymbol:
		r.next()
		switch tok.Literal {
		case "nil":
			return vm.Nil, nil
		case "#t":
			return vm.True, nil
		case "#f":
			return vm.False, nil
		}
		return r.m.Sym(tok.Literal), nil
	}

	return vm.Nil, r.errorf("unexpected token %q", tok.Literal)
}

// list parses a parenthesized form, including dotted pairs.
func (r *reader) list() (vm.Value, error) {
	r.next() // consume (

	elems := []vm.Value{}
	tail := vm.Nil

	for {
		switch r.tok.Type {
		case TokenEOF:
			return vm.Nil, r.errorf("unterminated list")
		case TokenRParen:
			r.next()
			l := tail
			for i := len(elems) - 1; i >= 0; i-- {
				l = r.m.Cons(elems[i], l)
			}
			return l, nil
		case TokenSymbol:
			if r.tok.Literal == "." && len(elems) > 0 {
				r.next()
				v, err := r.form()
				if err != nil {
					return vm.Nil, err
				}
				if r.tok.Type != TokenRParen {
					return vm.Nil, r.errorf("expected ) after dotted tail")
				}
				tail = v
				continue
			}
		}

		v, err := r.form()
		if err != nil {
			return vm.Nil, err
		}
		elems = append(elems, v)
	}
}
