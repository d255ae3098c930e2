package engine

import (
	"strconv"
	"strings"

	"github.com/san-kum/zoosearch/internal/dynamo"
)

// maxStack bounds evaluation depth so Eval can use a fixed array.
const maxStack = 64

type opcode uint8

const (
	opState opcode = iota
	opConst
	opLiteral
	opAdd
	opSub
	opMul
	opDiv
	opNeg
)

type instr struct {
	op     opcode
	slot   int
	value  float64
	symbol byte
}

// Program is an immutable compiled channel definition.
type Program struct {
	code []instr
}

func (p *Program) Len() int { return len(p.code) }

// Eval runs the program against a position and the resolved constants.
func (p *Program) Eval(pos dynamo.State, consts []float64) (float64, error) {
	var stack [maxStack]float64
	sp := 0
	for _, in := range p.code {
		switch in.op {
		case opState:
			stack[sp] = pos[in.slot]
			sp++
		case opConst:
			stack[sp] = consts[in.slot]
			sp++
		case opLiteral:
			stack[sp] = in.value
			sp++
		case opNeg:
			stack[sp-1] = -stack[sp-1]
		default:
			sp--
			a, b := stack[sp-1], stack[sp]
			switch in.op {
			case opAdd:
				stack[sp-1] = a + b
			case opSub:
				stack[sp-1] = a - b
			case opMul:
				stack[sp-1] = a * b
			case opDiv:
				if b == 0 {
					return 0, dynamo.ErrDivideByZero
				}
				stack[sp-1] = a / b
			}
		}
	}
	return stack[0], nil
}

func (in instr) token() string {
	switch in.op {
	case opState, opConst:
		return string(in.symbol)
	case opLiteral:
		return strconv.FormatFloat(in.value, 'g', -1, 64)
	case opAdd:
		return "+"
	case opSub:
		return "-"
	case opMul:
		return "*"
	case opDiv:
		return "/"
	case opNeg:
		return "neg"
	}
	return "?"
}

// Postfix renders the program as space-separated postfix tokens.
func (p *Program) Postfix() string {
	tokens := make([]string, len(p.code))
	for i, in := range p.code {
		tokens[i] = in.token()
	}
	return strings.Join(tokens, " ")
}

// Infix renders the program as a fully parenthesised infix expression.
func (p *Program) Infix() string {
	stack := make([]string, 0, 8)
	for _, in := range p.code {
		switch in.op {
		case opState, opConst, opLiteral:
			stack = append(stack, in.token())
		case opNeg:
			stack[len(stack)-1] = "-" + stack[len(stack)-1]
		default:
			a, b := stack[len(stack)-2], stack[len(stack)-1]
			stack = stack[:len(stack)-2]
			stack = append(stack, "("+a+" "+in.token()+" "+b+")")
		}
	}
	if len(stack) == 0 {
		return "0"
	}
	out := stack[0]
	if last := p.code[len(p.code)-1].op; last >= opAdd && last <= opDiv {
		out = out[1 : len(out)-1]
	}
	return out
}
