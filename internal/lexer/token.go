// Package lexer turns C++ source text into a token stream with exact
// source positions, implementing §4.2: maximal-munch punctuators,
// alternative operator tokens, numeric literal grammar with digit
// separators, and raw string literals. The preprocessor (internal/preprocess)
// sits in front of this package and re-lexes macro-expanded text through
// the same token kind set.
package lexer

import "fmt"

// Kind differentiates the tokens the lexer emits.
type Kind int

const (
	EOF Kind = iota
	Error

	Identifier
	IntegerLiteral
	FloatLiteral
	StringLiteral
	CharLiteral
	BoolLiteral

	// Keywords.
	KwAlignas
	KwAlignof
	KwAuto
	KwBool
	KwBreak
	KwCase
	KwCatch
	KwChar
	KwChar8T
	KwChar16T
	KwChar32T
	KwClass
	KwConcept
	KwConst
	KwConsteval
	KwConstexpr
	KwContinue
	KwDecltype
	KwDefault
	KwDelete
	KwDo
	KwDouble
	KwDynamicCast
	KwStaticCast
	KwReinterpretCast
	KwConstCast
	KwElse
	KwEnum
	KwExplicit
	KwExtern
	KwFalse
	KwFinal
	KwFloat
	KwFor
	KwFriend
	KwGoto
	KwIf
	KwInline
	KwInt
	KwLong
	KwMutable
	KwNamespace
	KwNew
	KwNoexcept
	KwNullptr
	KwOperator
	KwOverride
	KwPrivate
	KwProtected
	KwPublic
	KwRequires
	KwReturn
	KwShort
	KwSigned
	KwSizeof
	KwStatic
	KwStaticAssert
	KwStruct
	KwSwitch
	KwTemplate
	KwThis
	KwThrow
	KwTrue
	KwTry
	KwTypedef
	KwTypeid
	KwTypename
	KwUnion
	KwUnsigned
	KwUsing
	KwVirtual
	KwVoid
	KwVolatile
	KwWchatT
	KwWhile

	// Punctuators.
	LBrace
	RBrace
	LBracket
	RBracket
	LParen
	RParen
	Semi
	Colon
	ColonColon
	Comma
	Dot
	DotStar
	Arrow
	ArrowStar
	Ellipsis

	Plus
	Minus
	Star
	Slash
	Percent
	Caret
	Amp
	Pipe
	Tilde
	Bang
	Assign
	Lt
	Gt
	PlusAssign
	MinusAssign
	StarAssign
	SlashAssign
	PercentAssign
	CaretAssign
	AmpAssign
	PipeAssign
	LShift
	RShift
	LShiftAssign
	RShiftAssign
	Eq
	Neq
	Le
	Ge
	Spaceship
	AmpAmp
	PipePipe
	PlusPlus
	MinusMinus
	Question
	Hash
	HashHash
	At
)

var keywords = map[string]Kind{
	"alignas": KwAlignas, "alignof": KwAlignof, "auto": KwAuto, "bool": KwBool,
	"break": KwBreak, "case": KwCase, "catch": KwCatch, "char": KwChar,
	"char8_t": KwChar8T, "char16_t": KwChar16T, "char32_t": KwChar32T, "class": KwClass,
	"concept": KwConcept, "const": KwConst, "consteval": KwConsteval,
	"constexpr": KwConstexpr, "continue": KwContinue, "decltype": KwDecltype,
	"default": KwDefault, "delete": KwDelete, "do": KwDo, "double": KwDouble,
	"dynamic_cast": KwDynamicCast, "static_cast": KwStaticCast,
	"reinterpret_cast": KwReinterpretCast, "const_cast": KwConstCast,
	"else": KwElse, "enum": KwEnum,
	"explicit": KwExplicit, "extern": KwExtern, "false": KwFalse, "final": KwFinal,
	"float": KwFloat, "for": KwFor, "friend": KwFriend, "goto": KwGoto, "if": KwIf,
	"inline": KwInline, "int": KwInt, "long": KwLong, "mutable": KwMutable,
	"namespace": KwNamespace, "new": KwNew, "noexcept": KwNoexcept,
	"nullptr": KwNullptr, "operator": KwOperator, "override": KwOverride,
	"private": KwPrivate, "protected": KwProtected, "public": KwPublic,
	"requires": KwRequires, "return": KwReturn, "short": KwShort,
	"signed": KwSigned, "sizeof": KwSizeof, "static": KwStatic,
	"static_assert": KwStaticAssert, "struct": KwStruct, "switch": KwSwitch,
	"template": KwTemplate, "this": KwThis, "throw": KwThrow, "true": KwTrue,
	"try": KwTry, "typedef": KwTypedef, "typeid": KwTypeid, "typename": KwTypename,
	"union": KwUnion, "unsigned": KwUnsigned, "using": KwUsing, "virtual": KwVirtual,
	"void": KwVoid, "volatile": KwVolatile, "wchar_t": KwWchatT, "while": KwWhile,

	// Alternative operator tokens (§4.1/§4.2): mapped to their symbolic
	// equivalent kind at lex time, never surfaced to the parser as
	// identifiers.
	"and": AmpAmp, "or": PipePipe, "not": Bang, "bitand": Amp, "bitor": Pipe,
	"xor": Caret, "compl": Tilde, "and_eq": AmpAssign, "or_eq": PipeAssign,
	"xor_eq": CaretAssign, "not_eq": Neq,
}

// Token is a single lexeme with its source position.
type Token struct {
	Kind Kind
	Text string // Raw source spelling, for literals too (suffixes and digit separators included).
	File string
	Line int
	Col  int

	// IntValue/FloatValue/IsUnsigned/IsLong/IsFloat32 hold the parsed value and
	// type suffix for numeric literals (§4.2).
	IntValue   uint64
	FloatValue float64
	IsUnsigned bool
	IsLong     int // count of 'l'/'L' suffix characters (0, 1 or 2).
	IsFloat32  bool
}

func (t Token) String() string {
	if t.Kind == EOF {
		return "EOF"
	}
	if len(t.Text) > 24 {
		return fmt.Sprintf("%.21q... (%s:%d:%d)", t.Text, t.File, t.Line, t.Col)
	}
	return fmt.Sprintf("%q (%s:%d:%d)", t.Text, t.File, t.Line, t.Col)
}

// IsTemplateCloser reports whether k can participate in maximal-munch
// reversal when closing a template argument list (§4.1 rule 2): '>>' and
// '>>=' must be split into '>' '>' / '>' '>=' there.
func IsTemplateCloser(k Kind) bool {
	return k == RShift || k == RShiftAssign || k == Ge
}
