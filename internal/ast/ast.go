// Package ast defines the tagged-variant Abstract Syntax Tree produced by
// the parser. Node kinds are a closed discriminant dispatched by switch,
// replacing the visitor-pattern Accept(visitor) double dispatch the teacher
// uses in internal/parser/ast.go and stmt.go — per the design note on
// duck-typed AST nodes becoming a tagged variant with a closed kind set.
//
// Nodes live in a single Arena and are addressed by integer index (NodeID)
// rather than pointer, so the tree (and the environments that reference it)
// never needs back-pointers — per the design note on mutually recursive
// object graphs becoming an arena of nodes addressed by integer indices.
package ast

import "wasmjit/internal/types"

// Kind discriminates the AST node variants named in the data model.
type Kind int

const (
	Program Kind = iota
	FunctionDeclaration
	VariableDeclaration
	BlockStatement
	ReturnStatement
	IfStatement
	WhileStatement
	ForStatement
	ExpressionStatement
	BinaryExpression
	UnaryExpression
	AssignmentExpression
	CallExpression
	MemberExpression
	ArrowFunctionExpression
	Identifier
	NumberLiteral
	StringLiteral
	BooleanLiteral
	NullLiteral
)

func (k Kind) String() string {
	switch k {
	case Program:
		return "Program"
	case FunctionDeclaration:
		return "FunctionDeclaration"
	case VariableDeclaration:
		return "VariableDeclaration"
	case BlockStatement:
		return "BlockStatement"
	case ReturnStatement:
		return "ReturnStatement"
	case IfStatement:
		return "IfStatement"
	case WhileStatement:
		return "WhileStatement"
	case ForStatement:
		return "ForStatement"
	case ExpressionStatement:
		return "ExpressionStatement"
	case BinaryExpression:
		return "BinaryExpression"
	case UnaryExpression:
		return "UnaryExpression"
	case AssignmentExpression:
		return "AssignmentExpression"
	case CallExpression:
		return "CallExpression"
	case MemberExpression:
		return "MemberExpression"
	case ArrowFunctionExpression:
		return "ArrowFunctionExpression"
	case Identifier:
		return "Identifier"
	case NumberLiteral:
		return "NumberLiteral"
	case StringLiteral:
		return "StringLiteral"
	case BooleanLiteral:
		return "BooleanLiteral"
	case NullLiteral:
		return "NullLiteral"
	default:
		return "Unknown"
	}
}

// NodeID addresses a Node within an Arena.
type NodeID int

// Invalid marks the absence of a child, e.g. an omitted else-branch.
const Invalid NodeID = -1

// Node is the single node representation for every Kind. Only the fields
// relevant to a given Kind are populated; this mirrors the teacher's
// per-variant struct set (Binary, Literal, Variable, IfExpr, ...) collapsed
// into one tagged struct instead of one Go type per variant, so arena
// storage and switch-dispatch stay flat.
type Node struct {
	Kind Kind
	Line int
	Col  int

	// inferredType is attached by the type analyzer (phase 3) and starts
	// nil for every node the parser produces.
	InferredType *types.Type

	// Program, BlockStatement
	Body []NodeID

	// FunctionDeclaration, ArrowFunctionExpression
	Name        string
	Params      []string
	ParamTypes  []*types.Type
	ReturnHint  *types.Type
	FuncBody    NodeID // BlockStatement, or an expression for arrow shorthand
	IsArrow     bool
	IsExprArrow bool // arrow body is a bare expression, not a block

	// VariableDeclaration
	DeclKind string // "var" | "let" | "const"
	Init     NodeID // Invalid if no initializer

	// ReturnStatement
	Argument NodeID // Invalid if bare `return;`

	// IfStatement
	Test       NodeID
	Consequent NodeID
	Alternate  NodeID // Invalid if no else branch

	// WhileStatement
	// reuses Test for the condition; the loop body (a block or a single
	// statement) is stored in Loop.
	Loop NodeID

	// ForStatement
	ForInit   NodeID // Invalid if omitted
	ForTest   NodeID // Invalid if omitted
	ForUpdate NodeID // Invalid if omitted
	ForBody   NodeID

	// ExpressionStatement
	Expr NodeID

	// BinaryExpression, AssignmentExpression
	Operator string
	Left     NodeID
	Right    NodeID

	// UnaryExpression
	Prefix   bool
	Operand  NodeID

	// CallExpression
	Callee NodeID
	Args   []NodeID

	// MemberExpression
	Object   NodeID
	Property NodeID // Identifier node for `.x`, arbitrary expr for `[...]`
	Computed bool

	// Identifier
	IdentName string

	// NumberLiteral
	NumValue    float64
	HasFraction bool

	// StringLiteral
	StrValue string

	// BooleanLiteral
	BoolValue bool
}

// Arena owns every node created while parsing one source unit.
type Arena struct {
	nodes []Node
}

// NewArena returns an empty, ready-to-use Arena.
func NewArena() *Arena {
	return &Arena{}
}

// Add stores n and returns the NodeID it can be retrieved by.
func (a *Arena) Add(n Node) NodeID {
	a.nodes = append(a.nodes, n)
	return NodeID(len(a.nodes) - 1)
}

// Get dereferences id. Callers must not retain the returned pointer past
// the next Add call, since Add may reallocate the backing slice.
func (a *Arena) Get(id NodeID) *Node {
	if id == Invalid {
		return nil
	}
	return &a.nodes[id]
}

// Len reports how many nodes the arena currently holds.
func (a *Arena) Len() int {
	return len(a.nodes)
}
