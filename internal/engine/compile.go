package engine

import (
	"fmt"
	"strconv"
)

// CompileError reports malformed or unresolvable expression text.
type CompileError struct {
	Channel int
	Text    string
	Pos     int
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s %q at %d: %s", ChannelName(e.Channel), e.Text, e.Pos, e.Message)
}

type operand struct {
	op   opcode
	slot int
}

// symbolTable resolves single-character leaf symbols.
type symbolTable map[byte]operand

func newSymbolTable(alphabet, stateSymbols string) symbolTable {
	st := make(symbolTable, len(alphabet))
	for i := 0; i < len(stateSymbols); i++ {
		st[stateSymbols[i]] = operand{op: opState, slot: i}
	}
	slot := 0
	for i := 0; i < len(alphabet); i++ {
		if _, ok := st[alphabet[i]]; ok {
			continue
		}
		st[alphabet[i]] = operand{op: opConst, slot: slot}
		slot++
	}
	return st
}

func (st symbolTable) constCount() int {
	n := 0
	for _, o := range st {
		if o.op == opConst {
			n++
		}
	}
	return n
}

var binaryOps = map[byte]opcode{
	'+': opAdd,
	'-': opSub,
	'*': opMul,
	'/': opDiv,
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// compilePostfix accepts single-character symbols and binary operators.
func compilePostfix(st symbolTable, text string) (*Program, error) {
	p := &Program{}
	depth := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if isSpace(c) {
			continue
		}
		if op, ok := binaryOps[c]; ok {
			if depth < 2 {
				return nil, &CompileError{Text: text, Pos: i, Message: fmt.Sprintf("operator %q needs two operands", c)}
			}
			depth--
			p.code = append(p.code, instr{op: op})
			continue
		}
		sym, ok := st[c]
		if !ok {
			return nil, &CompileError{Text: text, Pos: i, Message: fmt.Sprintf("unknown symbol %q", c)}
		}
		depth++
		if depth > maxStack {
			return nil, &CompileError{Text: text, Pos: i, Message: "expression too deep"}
		}
		p.code = append(p.code, instr{op: sym.op, slot: sym.slot, symbol: c})
	}
	if len(p.code) == 0 {
		return nil, &CompileError{Text: text, Message: "empty expression"}
	}
	if depth != 1 {
		return nil, &CompileError{Text: text, Pos: len(text), Message: fmt.Sprintf("%d operands left on stack", depth)}
	}
	return p, nil
}

// infixParser is a recursive-descent parser emitting postfix code:
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/") unary }
//	unary   = "-" unary | primary
//	primary = number | symbol | "(" expr ")"
type infixParser struct {
	st    symbolTable
	text  string
	pos   int
	code  []instr
	depth int
	max   int
}

func compileInfix(st symbolTable, text string) (*Program, error) {
	p := &infixParser{st: st, text: text}
	p.skipSpace()
	if p.pos == len(p.text) {
		return nil, p.fail("empty expression")
	}
	if err := p.expr(); err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.text) {
		return nil, p.fail(fmt.Sprintf("unexpected %q", p.text[p.pos]))
	}
	if p.max > maxStack {
		return nil, p.fail("expression too deep")
	}
	return &Program{code: p.code}, nil
}

func (p *infixParser) fail(msg string) error {
	return &CompileError{Text: p.text, Pos: p.pos, Message: msg}
}

func (p *infixParser) skipSpace() {
	for p.pos < len(p.text) && isSpace(p.text[p.pos]) {
		p.pos++
	}
}

func (p *infixParser) peek() byte {
	p.skipSpace()
	if p.pos < len(p.text) {
		return p.text[p.pos]
	}
	return 0
}

func (p *infixParser) push(in instr) {
	p.code = append(p.code, in)
	switch in.op {
	case opState, opConst, opLiteral:
		p.depth++
		if p.depth > p.max {
			p.max = p.depth
		}
	case opNeg:
	default:
		p.depth--
	}
}

func (p *infixParser) expr() error {
	if err := p.term(); err != nil {
		return err
	}
	for {
		c := p.peek()
		if c != '+' && c != '-' {
			return nil
		}
		p.pos++
		if err := p.term(); err != nil {
			return err
		}
		p.push(instr{op: binaryOps[c]})
	}
}

func (p *infixParser) term() error {
	if err := p.unary(); err != nil {
		return err
	}
	for {
		c := p.peek()
		if c != '*' && c != '/' {
			return nil
		}
		p.pos++
		if err := p.unary(); err != nil {
			return err
		}
		p.push(instr{op: binaryOps[c]})
	}
}

func (p *infixParser) unary() error {
	if p.peek() == '-' {
		p.pos++
		if err := p.unary(); err != nil {
			return err
		}
		p.push(instr{op: opNeg})
		return nil
	}
	return p.primary()
}

func (p *infixParser) primary() error {
	c := p.peek()
	switch {
	case c == 0:
		return p.fail("unexpected end of expression")
	case c == '(':
		p.pos++
		if err := p.expr(); err != nil {
			return err
		}
		if p.peek() != ')' {
			return p.fail("missing ')'")
		}
		p.pos++
		return nil
	case (c >= '0' && c <= '9') || c == '.':
		return p.number()
	}
	sym, ok := p.st[c]
	if !ok {
		return p.fail(fmt.Sprintf("unknown symbol %q", c))
	}
	p.push(instr{op: sym.op, slot: sym.slot, symbol: c})
	p.pos++
	return nil
}

func (p *infixParser) number() error {
	start := p.pos
	for p.pos < len(p.text) {
		c := p.text[p.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			p.pos++
			continue
		}
		break
	}
	lit := p.text[start:p.pos]
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		p.pos = start
		return p.fail(fmt.Sprintf("bad number %q", lit))
	}
	p.push(instr{op: opLiteral, value: v})
	return nil
}
