// Package ast defines the syntax tree produced by internal/parser. Nodes
// are stored in a per-translation-unit arena and referenced by index
// rather than pointer (§3, §9: "no shared subtrees, no node aliasing"),
// which is the one deliberate structural break from the teacher's
// pointer-linked ir.Node (hhramberg-go-vslc/src/ir/nodetype.go): the
// template instantiation engine clones subtrees wholesale per
// instantiation, and index-into-arena cloning is a slice copy while
// pointer-tree cloning would need a full deep-copy walk of its own.
package ast

import "cppc/internal/lexer"

// Kind tags the variant held by a Node.
type Kind int

const (
	Invalid Kind = iota

	TranslationUnit
	NamespaceDecl
	UsingDecl
	FunctionDecl
	FunctionDef
	ParamDecl
	VarDecl
	ClassDecl
	ClassDef
	FieldDecl
	EnumDecl
	EnumeratorDecl
	TypedefDecl
	TemplateDecl
	StaticAssertDecl

	CompoundStmt
	ExprStmt
	IfStmt
	WhileStmt
	DoStmt
	ForStmt
	RangeForStmt
	SwitchStmt
	CaseStmt
	DefaultStmt
	BreakStmt
	ContinueStmt
	ReturnStmt
	GotoStmt
	LabelStmt
	DeclStmt
	TryStmt
	CatchClause
	ThrowStmt

	BinaryExpr
	UnaryExpr
	PostfixExpr
	CallExpr
	IndexExpr
	MemberExpr
	ArrowMemberExpr
	ConditionalExpr
	AssignExpr
	CommaExpr
	CastExpr
	StaticCastExpr
	DynamicCastExpr
	ReinterpretCastExpr
	ConstCastExpr
	SizeofExpr
	SizeofTypeExpr
	AlignofExpr
	NewExpr
	DeleteExpr
	LambdaExpr
	ThisExpr
	IdExpr
	IntLiteralExpr
	FloatLiteralExpr
	StringLiteralExpr
	CharLiteralExpr
	BoolLiteralExpr
	NullptrExpr
	InitListExpr
	FoldExpr
	RequiresExpr
	TypeidExpr
	StructuredBindingDecl

	TypeRef
)

// NodeID indexes into an Arena. The zero value is the invalid node.
type NodeID int32

const InvalidID NodeID = 0

// Node is a tagged union of every AST shape. Only the fields relevant to
// Kind are meaningful; Children/Extra hold variant-specific payload as
// NodeID slices so the arena stays a single flat allocation.
type Node struct {
	Kind     Kind
	Tok      lexer.Token // Primary source token, for diagnostics.
	Text     string      // Identifier name, literal spelling, operator text.
	Children []NodeID    // Ordered sub-nodes (statements in a block, args in a call, ...).
	Type     NodeID      // TypeRef child, when this node has a declared/annotated type.
	Flags    uint32      // Kind-specific bit flags (const, virtual, explicit, variadic, ...).
	Int      int64       // Literal integer value / enumerator value / array bound.
	Float    float64     // Literal floating value.
}

// Flag bits, reused across Kinds where they apply.
const (
	FlagConst uint32 = 1 << iota
	FlagVirtual
	FlagOverride
	FlagFinal
	FlagExplicit
	FlagStatic
	FlagInline
	FlagConstexpr
	FlagConsteval
	FlagVariadic
	FlagUnsigned
	FlagMutable
	FlagFriend
	FlagDefault
	FlagDeleted
	FlagNoexcept
)

// Arena owns every node of one translation unit.
type Arena struct {
	nodes []Node
}

// NewArena returns an Arena whose index 0 is reserved for InvalidID.
func NewArena() *Arena {
	return &Arena{nodes: []Node{{Kind: Invalid}}}
}

// Add appends n and returns its new NodeID.
func (a *Arena) Add(n Node) NodeID {
	a.nodes = append(a.nodes, n)
	return NodeID(len(a.nodes) - 1)
}

// At returns the node stored at id.
func (a *Arena) At(id NodeID) *Node {
	return &a.nodes[id]
}

// Len reports how many nodes (including the reserved slot) the arena holds.
func (a *Arena) Len() int { return len(a.nodes) }

// Clone deep-copies the subtree rooted at id into dst, returning the new
// root's NodeID. Used by internal/template to materialize an
// instantiation without aliasing the generic definition's nodes.
func Clone(dst *Arena, src *Arena, id NodeID) NodeID {
	if id == InvalidID {
		return InvalidID
	}
	n := *src.At(id)
	children := make([]NodeID, len(n.Children))
	for i, c := range n.Children {
		children[i] = Clone(dst, src, c)
	}
	n.Children = children
	n.Type = Clone(dst, src, n.Type)
	return dst.Add(n)
}

// Walk calls visit on id and every descendant, pre-order.
func Walk(a *Arena, id NodeID, visit func(NodeID, *Node)) {
	if id == InvalidID {
		return
	}
	n := a.At(id)
	visit(id, n)
	Walk(a, n.Type, visit)
	for _, c := range n.Children {
		Walk(a, c, visit)
	}
}
