// Package parser implements recursive-descent parsing with a precedence-
// climbing expression ladder, following the structure of the teacher's
// internal/parser/parser.go (parseBinary(minPrec), match/check/consume/
// advance helpers, block/if/while/for statement shape). The teacher's
// visitor-pattern Expr/Stmt tree and panic-based error signalling are
// replaced: nodes are built directly in an ast.Arena, and failures
// accumulate as *errors.CompilerError instead of unwinding the stack, per
// the design note that exceptions-for-control-flow translate to a result
// type carrying a value or a typed error.
package parser

import (
	"strconv"
	"strings"

	"wasmjit/internal/ast"
	"wasmjit/internal/errors"
	"wasmjit/internal/lexer"
)

// precedence levels, lowest to highest, per spec §4.2. Assignment is
// handled outside this table since it is right-associative and sits above
// plain expression parsing.
const (
	precNone = iota
	precOr
	precAnd
	precEquality
	precRelational
	precAdditive
	precMultiplicative
)

var binaryPrec = map[lexer.Kind]int{
	lexer.OrOr:      precOr,
	lexer.AndAnd:    precAnd,
	lexer.EqEq:      precEquality,
	lexer.EqEqEq:    precEquality,
	lexer.NotEq:     precEquality,
	lexer.NotEqEq:   precEquality,
	lexer.Lt:        precRelational,
	lexer.Gt:        precRelational,
	lexer.Le:        precRelational,
	lexer.Ge:        precRelational,
	lexer.Plus:      precAdditive,
	lexer.Minus:     precAdditive,
	lexer.Star:      precMultiplicative,
	lexer.Slash:     precMultiplicative,
	lexer.Percent:   precMultiplicative,
}

// recoverySet names the tokens the synchronize step treats as a statement
// boundary, per spec §4.2.
var recoverySet = map[lexer.Kind]bool{
	lexer.KwFunction: true,
	lexer.KwVar:      true,
	lexer.KwLet:      true,
	lexer.KwConst:    true,
	lexer.KwIf:       true,
	lexer.KwWhile:    true,
	lexer.KwFor:      true,
	lexer.KwReturn:   true,
}

// Parser consumes a token slice and builds an ast.Arena rooted at a single
// Program node.
type Parser struct {
	tokens  []lexer.Token
	current int
	file    string

	arena *ast.Arena
	errs  []*errors.CompilerError
}

// New creates a Parser over tokens produced by the lexer for file.
func New(tokens []lexer.Token, file string) *Parser {
	return &Parser{tokens: tokens, file: file, arena: ast.NewArena()}
}

// Parse runs the full grammar and returns the Program node id, the backing
// arena, and any accumulated parse errors. Parsing never stops at the
// first error: on a non-recoverable mismatch it synchronizes to the next
// statement boundary and keeps going, so multiple errors may surface per
// call, per spec §4.2.
func (p *Parser) Parse() (ast.NodeID, *ast.Arena, []*errors.CompilerError) {
	var body []ast.NodeID
	for !p.isAtEnd() {
		stmt, ok := p.declarationRecovering()
		if ok {
			body = append(body, stmt)
		}
	}
	root := p.arena.Add(ast.Node{Kind: ast.Program, Body: body, Line: 1, Col: 1})
	return root, p.arena, p.errs
}

func (p *Parser) declarationRecovering() (id ast.NodeID, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.synchronize()
			ok = false
		}
	}()
	return p.statement(), true
}

func (p *Parser) synchronize() {
	for !p.isAtEnd() {
		if p.check(lexer.Semicolon) {
			p.advance()
			return
		}
		if recoverySet[p.peek().Kind] {
			return
		}
		p.advance()
	}
}

// statement dispatches on the leading token. It may panic with a sentinel
// value on unrecoverable mismatch; declarationRecovering is the only
// place that recovers it and turns that into synchronization, keeping panic strictly
// internal to this package (never observed by callers of Parse).
func (p *Parser) statement() ast.NodeID {
	switch {
	case p.check(lexer.KwFunction):
		return p.functionDeclaration()
	case p.check(lexer.KwVar), p.check(lexer.KwLet), p.check(lexer.KwConst):
		return p.variableDeclaration()
	case p.check(lexer.LBrace):
		return p.blockStatement()
	case p.check(lexer.KwReturn):
		return p.returnStatement()
	case p.check(lexer.KwIf):
		return p.ifStatement()
	case p.check(lexer.KwWhile):
		return p.whileStatement()
	case p.check(lexer.KwFor):
		return p.forStatement()
	default:
		return p.expressionStatement()
	}
}

func (p *Parser) functionDeclaration() ast.NodeID {
	tok := p.advance() // 'function'
	name := p.consume(lexer.Ident, "function name")
	p.consume(lexer.LParen, "'('")
	var params []string
	if !p.check(lexer.RParen) {
		for {
			params = append(params, p.consume(lexer.Ident, "parameter name").Value)
			if !p.match(lexer.Comma) {
				break
			}
		}
	}
	p.consume(lexer.RParen, "')'")
	body := p.blockStatement()
	p.optionalSemicolon()
	return p.arena.Add(ast.Node{
		Kind: ast.FunctionDeclaration, Name: name.Value, Params: params,
		FuncBody: body, Line: tok.Line, Col: tok.Column,
	})
}

func (p *Parser) variableDeclaration() ast.NodeID {
	kindTok := p.advance()
	name := p.consume(lexer.Ident, "variable name")
	init := ast.Invalid
	if p.match(lexer.Eq) {
		init = p.expression()
	}
	p.optionalSemicolon()
	return p.arena.Add(ast.Node{
		Kind: ast.VariableDeclaration, DeclKind: kindTok.Value, IdentName: name.Value,
		Init: init, Line: kindTok.Line, Col: kindTok.Column,
	})
}

func (p *Parser) blockStatement() ast.NodeID {
	open := p.consume(lexer.LBrace, "'{'")
	var body []ast.NodeID
	for !p.check(lexer.RBrace) && !p.isAtEnd() {
		stmt, ok := p.declarationRecovering()
		if ok {
			body = append(body, stmt)
		}
	}
	p.consume(lexer.RBrace, "'}'")
	return p.arena.Add(ast.Node{Kind: ast.BlockStatement, Body: body, Line: open.Line, Col: open.Column})
}

func (p *Parser) returnStatement() ast.NodeID {
	tok := p.advance()
	arg := ast.Invalid
	if !p.check(lexer.Semicolon) && !p.check(lexer.RBrace) && !p.isAtEnd() {
		arg = p.expression()
	}
	p.optionalSemicolon()
	return p.arena.Add(ast.Node{Kind: ast.ReturnStatement, Argument: arg, Line: tok.Line, Col: tok.Column})
}

func (p *Parser) ifStatement() ast.NodeID {
	tok := p.advance()
	p.consume(lexer.LParen, "'('")
	test := p.expression()
	p.consume(lexer.RParen, "')'")
	conseq := p.statement()
	alt := ast.Invalid
	if p.match(lexer.KwElse) {
		alt = p.statement()
	}
	return p.arena.Add(ast.Node{
		Kind: ast.IfStatement, Test: test, Consequent: conseq, Alternate: alt,
		Line: tok.Line, Col: tok.Column,
	})
}

func (p *Parser) whileStatement() ast.NodeID {
	tok := p.advance()
	p.consume(lexer.LParen, "'('")
	test := p.expression()
	p.consume(lexer.RParen, "')'")
	body := p.statement()
	return p.arena.Add(ast.Node{Kind: ast.WhileStatement, Test: test, Loop: body, Line: tok.Line, Col: tok.Column})
}

func (p *Parser) forStatement() ast.NodeID {
	tok := p.advance()
	p.consume(lexer.LParen, "'('")

	init := ast.Invalid
	if !p.check(lexer.Semicolon) {
		if p.check(lexer.KwVar) || p.check(lexer.KwLet) || p.check(lexer.KwConst) {
			init = p.variableDeclaration()
		} else {
			init = p.expressionStatement()
		}
	} else {
		p.advance()
	}

	test := ast.Invalid
	if !p.check(lexer.Semicolon) {
		test = p.expression()
	}
	p.consume(lexer.Semicolon, "';'")

	update := ast.Invalid
	if !p.check(lexer.RParen) {
		update = p.expression()
	}
	p.consume(lexer.RParen, "')'")

	body := p.statement()
	return p.arena.Add(ast.Node{
		Kind: ast.ForStatement, ForInit: init, ForTest: test, ForUpdate: update, ForBody: body,
		Line: tok.Line, Col: tok.Column,
	})
}

func (p *Parser) expressionStatement() ast.NodeID {
	tok := p.peek()
	expr := p.expression()
	p.optionalSemicolon()
	return p.arena.Add(ast.Node{Kind: ast.ExpressionStatement, Expr: expr, Line: tok.Line, Col: tok.Column})
}

// optionalSemicolon implements the grammar's "semicolons are optional
// between statements" rule.
func (p *Parser) optionalSemicolon() {
	p.match(lexer.Semicolon)
}

// expression enters the precedence ladder at assignment, the lowest
// level, per spec §4.2 level 1 (right-associative).
func (p *Parser) expression() ast.NodeID {
	return p.assignment()
}

func (p *Parser) assignment() ast.NodeID {
	left := p.binary(precOr)
	if p.check(lexer.Eq) {
		tok := p.advance()
		right := p.assignment() // right-associative
		return p.arena.Add(ast.Node{
			Kind: ast.AssignmentExpression, Operator: "=", Left: left, Right: right,
			Line: tok.Line, Col: tok.Column,
		})
	}
	return left
}

// binary implements precedence climbing from minPrec upward through
// levels 2-7 of the spec's ladder (logical OR down to multiplicative).
func (p *Parser) binary(minPrec int) ast.NodeID {
	left := p.unary()
	for {
		kind := p.peek().Kind
		prec, ok := binaryPrec[kind]
		if !ok || prec < minPrec {
			return left
		}
		tok := p.advance()
		right := p.binary(prec + 1)
		left = p.arena.Add(ast.Node{
			Kind: ast.BinaryExpression, Operator: tok.Value, Left: left, Right: right,
			Line: tok.Line, Col: tok.Column,
		})
	}
}

// unary is level 8: `! - +`, right-associative.
func (p *Parser) unary() ast.NodeID {
	if p.check(lexer.Bang) || p.check(lexer.Minus) || p.check(lexer.Plus) {
		tok := p.advance()
		operand := p.unary()
		return p.arena.Add(ast.Node{
			Kind: ast.UnaryExpression, Operator: tok.Value, Operand: operand, Prefix: true,
			Line: tok.Line, Col: tok.Column,
		})
	}
	return p.postfix()
}

// postfix is level 9: call, member `.x`, computed member `[...]`, chainable.
func (p *Parser) postfix() ast.NodeID {
	expr := p.primary()
	for {
		switch {
		case p.check(lexer.LParen):
			tok := p.advance()
			var args []ast.NodeID
			if !p.check(lexer.RParen) {
				for {
					args = append(args, p.expression())
					if !p.match(lexer.Comma) {
						break
					}
				}
			}
			p.consume(lexer.RParen, "')'")
			expr = p.arena.Add(ast.Node{Kind: ast.CallExpression, Callee: expr, Args: args, Line: tok.Line, Col: tok.Column})
		case p.check(lexer.Dot):
			tok := p.advance()
			name := p.consume(lexer.Ident, "property name")
			prop := p.arena.Add(ast.Node{Kind: ast.Identifier, IdentName: name.Value, Line: name.Line, Col: name.Column})
			expr = p.arena.Add(ast.Node{Kind: ast.MemberExpression, Object: expr, Property: prop, Computed: false, Line: tok.Line, Col: tok.Column})
		case p.check(lexer.LBracket):
			tok := p.advance()
			prop := p.expression()
			p.consume(lexer.RBracket, "']'")
			expr = p.arena.Add(ast.Node{Kind: ast.MemberExpression, Object: expr, Property: prop, Computed: true, Line: tok.Line, Col: tok.Column})
		default:
			return expr
		}
	}
}

// primary is level 10: literal, identifier, parenthesized expression, or
// an arrow-function head. Arrow heads are disambiguated by scanning ahead
// for `(params) =>` or the single-identifier `x =>` shorthand.
func (p *Parser) primary() ast.NodeID {
	tok := p.peek()
	switch {
	case p.check(lexer.Number):
		p.advance()
		return p.numberLiteral(tok)
	case p.check(lexer.String):
		p.advance()
		return p.arena.Add(ast.Node{Kind: ast.StringLiteral, StrValue: tok.Value, Line: tok.Line, Col: tok.Column})
	case p.check(lexer.True), p.check(lexer.False):
		p.advance()
		return p.arena.Add(ast.Node{Kind: ast.BooleanLiteral, BoolValue: tok.Kind == lexer.True, Line: tok.Line, Col: tok.Column})
	case p.check(lexer.Null):
		p.advance()
		return p.arena.Add(ast.Node{Kind: ast.NullLiteral, Line: tok.Line, Col: tok.Column})
	case p.check(lexer.LParen):
		if id, ok := p.tryArrowHead(); ok {
			return id
		}
		p.advance()
		inner := p.expression()
		p.consume(lexer.RParen, "')'")
		return inner
	case p.check(lexer.Ident):
		if p.checkNext(lexer.Arrow) {
			name := p.advance()
			p.advance() // '=>'
			return p.arrowBody([]string{name.Value}, name)
		}
		p.advance()
		return p.arena.Add(ast.Node{Kind: ast.Identifier, IdentName: tok.Value, Line: tok.Line, Col: tok.Column})
	default:
		panic(p.errorf("expression", tok))
	}
}

// tryArrowHead attempts to parse `(params) => body`, backtracking the
// cursor if the parenthesized group turns out not to be followed by `=>`.
func (p *Parser) tryArrowHead() (ast.NodeID, bool) {
	save := p.current
	tok := p.peek()
	p.advance() // '('
	var params []string
	okShape := true
	if !p.check(lexer.RParen) {
		for {
			if !p.check(lexer.Ident) {
				okShape = false
				break
			}
			params = append(params, p.advance().Value)
			if !p.match(lexer.Comma) {
				break
			}
		}
	}
	if okShape && p.check(lexer.RParen) {
		p.advance()
		if p.check(lexer.Arrow) {
			p.advance()
			return p.arrowBody(params, tok), true
		}
	}
	p.current = save
	return ast.Invalid, false
}

func (p *Parser) arrowBody(params []string, tok lexer.Token) ast.NodeID {
	n := ast.Node{Kind: ast.ArrowFunctionExpression, Params: params, IsArrow: true, Line: tok.Line, Col: tok.Column}
	if p.check(lexer.LBrace) {
		n.FuncBody = p.blockStatement()
	} else {
		n.FuncBody = p.expression()
		n.IsExprArrow = true
	}
	return p.arena.Add(n)
}

func (p *Parser) numberLiteral(tok lexer.Token) ast.NodeID {
	hasFraction := strings.Contains(tok.Value, ".")
	v, err := strconv.ParseFloat(tok.Value, 64)
	if err != nil {
		p.errs = append(p.errs, errors.NewTypeError("invalid numeric literal '"+tok.Value+"'",
			errors.SourceLocation{File: p.file, Line: tok.Line, Column: tok.Column}))
	}
	return p.arena.Add(ast.Node{
		Kind: ast.NumberLiteral, NumValue: v, HasFraction: hasFraction,
		Line: tok.Line, Col: tok.Column,
	})
}

// --- token-stream primitives, mirroring the teacher's match/check/
// consume/advance helper set in internal/parser/parser.go. ---

func (p *Parser) match(kinds ...lexer.Kind) bool {
	for _, k := range kinds {
		if p.check(k) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) check(k lexer.Kind) bool {
	if p.isAtEnd() {
		return k == lexer.EOF
	}
	return p.peek().Kind == k
}

func (p *Parser) checkNext(k lexer.Kind) bool {
	if p.current+1 >= len(p.tokens) {
		return false
	}
	return p.tokens[p.current+1].Kind == k
}

func (p *Parser) consume(k lexer.Kind, what string) lexer.Token {
	if p.check(k) {
		return p.advance()
	}
	tok := p.peek()
	panic(p.errorf(what, tok))
}

func (p *Parser) errorf(expected string, got lexer.Token) *errors.CompilerError {
	err := errors.NewParseError(expected, got.Kind.String(), errors.SourceLocation{
		File: p.file, Line: got.Line, Column: got.Column,
	})
	p.errs = append(p.errs, err)
	return err
}

func (p *Parser) advance() lexer.Token {
	tok := p.tokens[p.current]
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

func (p *Parser) peek() lexer.Token {
	return p.tokens[p.current]
}

func (p *Parser) isAtEnd() bool {
	return p.tokens[p.current].Kind == lexer.EOF
}
