package types

// NodeType tags the variant held by an Expr node. The AST is a tagged
// union dispatched by structural matching on Type, not by Go interfaces --
// one node shape, many fields, most of them unused by any given variant.
type NodeType string

const (
	NodeLiteral   NodeType = "Literal"
	NodeRoot      NodeType = "Root"
	NodeCtx       NodeType = "Ctx"
	NodeCtxArg    NodeType = "CtxArg"
	NodeScopeRef  NodeType = "ScopeRef"
	NodeEnvVar    NodeType = "EnvVar"
	NodeAccessor  NodeType = "Accessor"
	NodeMethod    NodeType = "Method"
	NodeBinop     NodeType = "Binop"
	NodeUnop      NodeType = "Unop"
	NodeUdfCall   NodeType = "UdfCall"
	NodeLambda    NodeType = "Lambda"
	NodeObjectLit NodeType = "ObjectLit"
	NodeArrayLit  NodeType = "ArrayLit"
)

// AccessorKind tags the variant of an AccessorOp carried by a NodeAccessor
// Expr.
type AccessorKind string

const (
	AccField       AccessorKind = "Field"
	AccIndexInt    AccessorKind = "IndexInt"
	AccIndexFloat  AccessorKind = "IndexFloat"
	AccComputedKey AccessorKind = "ComputedKey"
	AccExistence   AccessorKind = "Existence"
)

// ObjectPair is one key/value entry of an ObjectLit. Keys are literal
// strings (from a bare identifier or a quoted string) -- the grammar does
// not support computed object-literal keys.
type ObjectPair struct {
	Key   string
	Value *Expr
}

// Expr is the tagged-variant expression node. Fields are grouped by which
// NodeType variants read them; see the NodeType constants above.
type Expr struct {
	Type NodeType
	Pos  Position

	Lit *Value // NodeLiteral

	Name string // ScopeRef/EnvVar/UdfCall/Method name
	N    int    // NodeCtxArg index (1..9)

	Object *Expr // Accessor/Method receiver

	AccKind   AccessorKind // NodeAccessor
	FieldName string       // AccField
	IntVal    int64        // AccIndexInt
	DecVal    *Value       // AccIndexFloat (a Dec Value)
	KeyExpr   *Expr        // AccComputedKey

	BinOp string // NodeBinop: "==" "!=" "<" ">" "<=" ">=" "+" "-" "*" "/" "%" "and" "or" "??"
	UnOp  string // NodeUnop: "-" "!"
	LHS   *Expr  // Binop left / Unop operand
	RHS   *Expr  // Binop right

	Args []*Expr // Method/UdfCall args, ArrayLit elements

	Pairs []ObjectPair // NodeObjectLit

	Param string // NodeLambda parameter identifier
	Body  *Expr  // NodeLambda body
}

// RhsKind tags a Transform stage's right-hand side classification.
type RhsKind string

const (
	RhsValue  RhsKind = "AssignValue"
	RhsFilter RhsKind = "AssignFilter"
	RhsMap    RhsKind = "AssignMap"
)

// Rhs is a Transform stage's classified right-hand side.
type Rhs struct {
	Kind RhsKind
	Expr *Expr
}

// StageKind tags the variant held by a Stage.
type StageKind string

const (
	StageRootStart StageKind = "RootStart"
	StageBind      StageKind = "Bind"
	StageFilter    StageKind = "Filter"
	StageTransform StageKind = "Transform"
	StageDelete    StageKind = "Delete"
	StageOutput    StageKind = "Output"
	StageBareExpr  StageKind = "BareExpr"
)

// Stage is one pipe-separated unit of a Query's pipeline.
type Stage struct {
	Kind StageKind
	Pos  Position

	Name string // Bind scope name

	Expr *Expr // Bind value / Filter condition / Output expr / BareExpr

	Path *Expr // Transform/Delete target, as an accessor chain rooted at $ or @name
	Rhs  *Rhs  // Transform right-hand side
}

// UdfDef is one `&name,arity := body` definition.
type UdfDef struct {
	Name  string
	Arity int
	Body  *Expr
	Pos   Position
}

// Query is the full parsed program: zero or more UDF definitions followed
// by a pipeline of stages.
type Query struct {
	Udfs   []*UdfDef
	Stages []*Stage
}
