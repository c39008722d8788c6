package builtin

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrInvalidExpression wraps every evaluation failure.
var ErrInvalidExpression = errors.New("invalid math expression")

const (
	maxExpressionLength = 4096
	maxExpressionDepth  = 64
)

// Evaluate parses and evaluates an arithmetic expression. The grammar is
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/") unary }
//	unary   = ("+" | "-") unary | primary
//	primary = number | "(" expr ")"
//	number  = digits [ "." digits ] [ ("e" | "E") [ "+" | "-" ] digits ]
//
// Nothing else is accepted: no names, calls, or other operators.
func Evaluate(input string) (float64, error) {
	if len(input) > maxExpressionLength {
		return 0, fmt.Errorf("%w: expression longer than %d bytes", ErrInvalidExpression, maxExpressionLength)
	}
	p := &exprParser{src: input}
	p.skipSpace()
	if p.done() {
		return 0, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}

	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if !p.done() {
		return 0, p.errorf("unexpected %q", p.src[p.pos])
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: result is not a finite number", ErrInvalidExpression)
	}
	return v, nil
}

// FormatNumber renders v without trailing zeros ("4", "3.5").
func FormatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	if math.Abs(v) >= 1e21 || math.Abs(v) < 1e-6 {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type exprParser struct {
	src   string
	pos   int
	depth int
}

func (p *exprParser) done() bool { return p.pos >= len(p.src) }

func (p *exprParser) peek() byte {
	if p.done() {
		return 0
	}
	return p.src[p.pos]
}

func (p *exprParser) skipSpace() {
	for !p.done() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *exprParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrInvalidExpression, p.pos, fmt.Sprintf(format, args...))
}

func (p *exprParser) enter() error {
	p.depth++
	if p.depth > maxExpressionDepth {
		return p.errorf("nesting deeper than %d", maxExpressionDepth)
	}
	return nil
}

func (p *exprParser) leave() { p.depth-- }

func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		// "**" is not part of the language.
		if op == '*' && p.peek() == '*' {
			return 0, p.errorf("unsupported operator **")
		}
		right, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			left *= right
		} else {
			if right == 0 {
				return 0, p.errorf("division by zero")
			}
			left /= right
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.leave()

	p.skipSpace()
	switch p.peek() {
	case '+':
		p.pos++
		return p.parseUnary()
	case '-':
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (float64, error) {
	p.skipSpace()
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return 0, p.errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case isDigit(c) || c == '.':
		return p.parseNumber()
	case p.done():
		return 0, p.errorf("unexpected end of expression")
	default:
		return 0, p.errorf("unexpected %q", c)
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	digits := p.consumeDigits()
	if p.peek() == '.' {
		p.pos++
		digits += p.consumeDigits()
	}
	if digits == 0 {
		return 0, p.errorf("malformed number")
	}
	if c := p.peek(); c == 'e' || c == 'E' {
		p.pos++
		if c := p.peek(); c == '+' || c == '-' {
			p.pos++
		}
		if p.consumeDigits() == 0 {
			return 0, p.errorf("malformed exponent")
		}
	}
	v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return 0, p.errorf("malformed number %q", p.src[start:p.pos])
	}
	return v, nil
}

func (p *exprParser) consumeDigits() int {
	n := 0
	for isDigit(p.peek()) {
		p.pos++
		n++
	}
	return n
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
