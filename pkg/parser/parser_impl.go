package parser

import (
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/tardy-sh/clove-lang/pkg/types"
)

const (
	bpCoalesce       = 10
	bpOr             = 20
	bpAnd            = 30
	bpCompare        = 40
	bpAdditive       = 50
	bpMultiplicative = 60
	bpUnary          = 65
	bpPostfix        = 80
)

// Parser consumes a token stream and produces a types.Query via Pratt-style
// precedence climbing. It keeps a one-token lookahead beyond current so
// that `Ident "=>"` (a lambda argument) can be distinguished from a plain
// expression without backtracking.
type Parser struct {
	lexer   *Lexer
	current Token
	next    Token

	lambdaParam string // identifier currently bound to @ inside a `x => expr` body, "" if none

	depth    int
	maxDepth int

	recovery bool
	errs     []error
}

func NewParser(src string, opts CompileOptions) *Parser {
	l := NewLexer(src)
	p := &Parser{lexer: l, maxDepth: opts.MaxDepth, recovery: opts.EnableRecovery}
	p.current = l.Next()
	p.next = l.Next()
	return p
}

func (p *Parser) advance() {
	p.current = p.next
	p.next = p.lexer.Next()
}

func (p *Parser) expect(tt TokenType) error {
	if p.current.Type != tt {
		return p.unexpected(tt.String())
	}
	p.advance()
	return nil
}

func (p *Parser) unexpected(expected string) error {
	return types.NewError(types.ErrParse, p.current.Pos, "expected %s, found %s", expected, p.describeCurrent())
}

func (p *Parser) describeCurrent() string {
	if p.current.Type == TokenError {
		return p.current.Value
	}
	if p.current.Value != "" {
		return p.current.Value
	}
	return p.current.Type.String()
}

// Parse consumes the whole token stream and returns a Query.
func (p *Parser) Parse() (*types.Query, error) {
	if p.current.Type == TokenError {
		return nil, p.lexer.Err()
	}
	q := &types.Query{}
	firstStage, err := p.parseUdfDefsAndHead(q)
	if err != nil {
		return nil, err
	}
	if firstStage != nil {
		q.Stages = append(q.Stages, firstStage)
	}
	for p.current.Type == TokenPipe {
		p.advance()
		st, err := p.parseStage()
		if err != nil {
			return nil, err
		}
		q.Stages = append(q.Stages, st)
	}
	if p.current.Type != TokenEOF {
		return nil, p.unexpected("end of query")
	}
	return q, nil
}

// parseUdfDefsAndHead consumes the `&name,arity := body` prefix and returns
// the pipeline's first stage -- either an explicit RootStart ("$"), a
// UDF-call expression that turned out to begin the pipeline rather than
// another UDF definition, or an ordinary stage.
func (p *Parser) parseUdfDefsAndHead(q *types.Query) (*types.Stage, error) {
	for p.current.Type == TokenAmp {
		pos := p.current.Pos
		p.advance()
		if p.current.Type != TokenIdent {
			return nil, p.unexpected("UDF name")
		}
		name := p.current.Value
		namePos := p.current.Pos
		p.advance()

		if p.current.Type == TokenComma {
			p.advance()
			if p.current.Type != TokenIntLit {
				return nil, p.unexpected("UDF arity")
			}
			arity, convErr := strconv.Atoi(p.current.Value)
			if convErr != nil || arity < 0 || arity > 9 {
				return nil, types.NewError(types.ErrParse, p.current.Pos, "UDF arity must be 0..9, got %q", p.current.Value)
			}
			p.advance()
			if err := p.expect(TokenColonEq); err != nil {
				return nil, err
			}
			body, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			q.Udfs = append(q.Udfs, &types.UdfDef{Name: name, Arity: arity, Body: body, Pos: pos})
			continue
		}

		// Not a definition: this '&' opens the pipeline's first stage as a
		// UDF-call expression.
		lhs, err := p.finishUdfCall(name, namePos)
		if err != nil {
			return nil, err
		}
		lhs, err = p.parseInfixLoop(lhs, 0)
		if err != nil {
			return nil, err
		}
		return &types.Stage{Kind: types.StageBareExpr, Expr: lhs, Pos: pos}, nil
	}

	if p.current.Type == TokenDollar && (p.next.Type == TokenPipe || p.next.Type == TokenEOF) {
		pos := p.current.Pos
		p.advance()
		return &types.Stage{Kind: types.StageRootStart, Pos: pos}, nil
	}
	return p.parseStage()
}

func (p *Parser) parseStage() (*types.Stage, error) {
	switch p.current.Type {
	case TokenAt:
		return p.parseBindOrAccessStage()
	case TokenQuestion:
		return p.parseFilterStage()
	case TokenTilde:
		return p.parseTransformStage()
	case TokenMinus:
		if p.next.Type == TokenLParen {
			return p.parseDeleteStage()
		}
	case TokenBang:
		if p.next.Type == TokenLParen {
			return p.parseOutputStage()
		}
	}
	// Anything else, including a unary `-`/`!` not followed by `(`, is a
	// bare expression stage.
	pos := p.current.Pos
	e, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	return &types.Stage{Kind: types.StageBareExpr, Expr: e, Pos: pos}, nil
}

func (p *Parser) parseBindOrAccessStage() (*types.Stage, error) {
	pos := p.current.Pos
	atExpr, err := p.parseAtExpr(pos)
	if err != nil {
		return nil, err
	}
	if atExpr.Type == types.NodeScopeRef && p.current.Type == TokenColonEq {
		p.advance()
		val, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		return &types.Stage{Kind: types.StageBind, Name: atExpr.Name, Expr: val, Pos: pos}, nil
	}
	full, err := p.parseInfixLoop(atExpr, 0)
	if err != nil {
		return nil, err
	}
	return &types.Stage{Kind: types.StageBareExpr, Expr: full, Pos: pos}, nil
}

func (p *Parser) parseFilterStage() (*types.Stage, error) {
	pos := p.current.Pos
	p.advance() // '?'
	if err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return &types.Stage{Kind: types.StageFilter, Expr: cond, Pos: pos}, nil
}

func (p *Parser) parseOutputStage() (*types.Stage, error) {
	pos := p.current.Pos
	p.advance() // '!'
	if err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	e, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return &types.Stage{Kind: types.StageOutput, Expr: e, Pos: pos}, nil
}

func (p *Parser) parseDeleteStage() (*types.Stage, error) {
	pos := p.current.Pos
	p.advance() // '-'
	if err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	path, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return &types.Stage{Kind: types.StageDelete, Path: path, Pos: pos}, nil
}

func (p *Parser) parseTransformStage() (*types.Stage, error) {
	pos := p.current.Pos
	p.advance() // '~'
	if err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	path, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenColonEq); err != nil {
		return nil, err
	}

	var rhs *types.Rhs
	if p.current.Type == TokenQuestion {
		p.advance()
		if err := p.expect(TokenLParen); err != nil {
			return nil, err
		}
		cond, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		rhs = &types.Rhs{Kind: types.RhsFilter, Expr: cond}
	} else {
		e, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		kind := types.RhsValue
		if usesFreeCtx(e) {
			kind = types.RhsMap
		}
		rhs = &types.Rhs{Kind: kind, Expr: e}
	}
	if err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return &types.Stage{Kind: types.StageTransform, Path: path, Rhs: rhs, Pos: pos}, nil
}

// usesFreeCtx reports whether e references the lambda capture @ anywhere
// in its tree. Used to auto-classify a Transform's RHS as AssignMap.
func usesFreeCtx(e *types.Expr) bool {
	if e == nil {
		return false
	}
	switch e.Type {
	case types.NodeCtx:
		return true
	case types.NodeAccessor:
		if usesFreeCtx(e.Object) {
			return true
		}
		return usesFreeCtx(e.KeyExpr)
	case types.NodeMethod:
		if usesFreeCtx(e.Object) {
			return true
		}
		for _, a := range e.Args {
			if usesFreeCtx(a) {
				return true
			}
		}
		return false
	case types.NodeBinop:
		return usesFreeCtx(e.LHS) || usesFreeCtx(e.RHS)
	case types.NodeUnop:
		return usesFreeCtx(e.LHS)
	case types.NodeUdfCall:
		for _, a := range e.Args {
			if usesFreeCtx(a) {
				return true
			}
		}
		return false
	case types.NodeObjectLit:
		for _, pair := range e.Pairs {
			if usesFreeCtx(pair.Value) {
				return true
			}
		}
		return false
	case types.NodeArrayLit:
		for _, a := range e.Args {
			if usesFreeCtx(a) {
				return true
			}
		}
		return false
	case types.NodeLambda:
		return false // @ inside a nested lambda body is bound there, not free
	default:
		return false
	}
}

// --- expression parsing ---

func (p *Parser) parseExpr(minBP int) (*types.Expr, error) {
	p.depth++
	if p.maxDepth > 0 && p.depth > p.maxDepth {
		p.depth--
		return nil, types.NewError(types.ErrParse, p.current.Pos, "expression nesting exceeds max depth %d", p.maxDepth)
	}
	defer func() { p.depth-- }()

	lhs, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}
	return p.parseInfixLoop(lhs, minBP)
}

func (p *Parser) parsePrefix() (*types.Expr, error) {
	tok := p.current
	switch tok.Type {
	case TokenMinus:
		p.advance()
		operand, err := p.parseExpr(bpUnary)
		if err != nil {
			return nil, err
		}
		return &types.Expr{Type: types.NodeUnop, UnOp: "-", LHS: operand, Pos: tok.Pos}, nil
	case TokenBang:
		p.advance()
		operand, err := p.parseExpr(bpUnary)
		if err != nil {
			return nil, err
		}
		return &types.Expr{Type: types.NodeUnop, UnOp: "!", LHS: operand, Pos: tok.Pos}, nil
	case TokenIntLit:
		p.advance()
		bi := new(big.Int)
		if _, ok := bi.SetString(tok.Value, 10); !ok {
			return nil, types.NewError(types.ErrParse, tok.Pos, "invalid integer literal %q", tok.Value)
		}
		return &types.Expr{Type: types.NodeLiteral, Lit: types.IntFromBig(bi), Pos: tok.Pos}, nil
	case TokenDecLit:
		p.advance()
		d, err := decimal.NewFromString(tok.Value)
		if err != nil {
			return nil, types.NewError(types.ErrParse, tok.Pos, "invalid decimal literal %q", tok.Value)
		}
		return &types.Expr{Type: types.NodeLiteral, Lit: types.Dec(d), Pos: tok.Pos}, nil
	case TokenStrLit:
		p.advance()
		return &types.Expr{Type: types.NodeLiteral, Lit: types.Str(tok.Value), Pos: tok.Pos}, nil
	case TokenTrue:
		p.advance()
		return &types.Expr{Type: types.NodeLiteral, Lit: types.True, Pos: tok.Pos}, nil
	case TokenFalse:
		p.advance()
		return &types.Expr{Type: types.NodeLiteral, Lit: types.False, Pos: tok.Pos}, nil
	case TokenNull:
		p.advance()
		return &types.Expr{Type: types.NodeLiteral, Lit: types.Null, Pos: tok.Pos}, nil
	case TokenDollar:
		p.advance()
		if p.current.Type == TokenIdent {
			name := p.current.Value
			p.advance()
			return &types.Expr{Type: types.NodeEnvVar, Name: name, Pos: tok.Pos}, nil
		}
		return &types.Expr{Type: types.NodeRoot, Pos: tok.Pos}, nil
	case TokenAt:
		return p.parseAtExpr(tok.Pos)
	case TokenQuestion:
		// `?(expr)` as an expression (rather than a pipeline filter stage)
		// is transparent: it parses and evaluates exactly as `(expr)`.
		// UDF bodies use this form so a UDF can double as a HOF predicate
		// without the `?` consuming the whole body as a stage.
		p.advance()
		if err := p.expect(TokenLParen); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return inner, nil
	case TokenAmp:
		p.advance()
		if p.current.Type != TokenIdent {
			return nil, p.unexpected("UDF name")
		}
		name := p.current.Value
		namePos := p.current.Pos
		p.advance()
		return p.finishUdfCall(name, namePos)
	case TokenLParen:
		p.advance()
		inner, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return inner, nil
	case TokenLBracket:
		return p.parseArrayLit(tok.Pos)
	case TokenLBrace:
		return p.parseObjectLit(tok.Pos)
	case TokenIdent:
		if p.lambdaParam != "" && tok.Value == p.lambdaParam {
			p.advance()
			return &types.Expr{Type: types.NodeCtx, Pos: tok.Pos}, nil
		}
		return nil, types.NewError(types.ErrParse, tok.Pos, "unexpected identifier %q (bare names are only valid as field or method names)", tok.Value)
	default:
		return nil, p.unexpected("expression")
	}
}

// parseAtExpr consumes '@' plus whatever follows it: a positional UDF
// argument (@N), a scope reference (@name), or the bare lambda capture (@).
func (p *Parser) parseAtExpr(pos types.Position) (*types.Expr, error) {
	p.advance() // consume '@'
	if p.current.Type == TokenIntLit {
		n, convErr := strconv.Atoi(p.current.Value)
		if convErr != nil || n < 1 || n > 9 {
			return nil, types.NewError(types.ErrParse, p.current.Pos, "UDF argument reference @%s out of range 1..9", p.current.Value)
		}
		p.advance()
		return &types.Expr{Type: types.NodeCtxArg, N: n, Pos: pos}, nil
	}
	if p.current.Type == TokenIdent {
		name := p.current.Value
		p.advance()
		return &types.Expr{Type: types.NodeScopeRef, Name: name, Pos: pos}, nil
	}
	return &types.Expr{Type: types.NodeCtx, Pos: pos}, nil
}

func (p *Parser) finishUdfCall(name string, pos types.Position) (*types.Expr, error) {
	if err := p.expect(TokenLBracket); err != nil {
		return nil, err
	}
	var args []*types.Expr
	if p.current.Type != TokenRBracket {
		for {
			arg, err := p.parseArgument()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.current.Type == TokenComma {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expect(TokenRBracket); err != nil {
		return nil, err
	}
	return &types.Expr{Type: types.NodeUdfCall, Name: name, Args: args, Pos: pos}, nil
}

// parseArgument parses one call argument, recognizing the `ident => expr`
// lambda form and rewriting occurrences of ident within expr to Ctx.
func (p *Parser) parseArgument() (*types.Expr, error) {
	if p.current.Type == TokenIdent && p.next.Type == TokenArrow {
		param := p.current.Value
		pos := p.current.Pos
		p.advance() // ident
		p.advance() // =>
		saved := p.lambdaParam
		p.lambdaParam = param
		body, err := p.parseExpr(0)
		p.lambdaParam = saved
		if err != nil {
			return nil, err
		}
		return &types.Expr{Type: types.NodeLambda, Param: param, Body: body, Pos: pos}, nil
	}
	return p.parseExpr(0)
}

func (p *Parser) parseArrayLit(pos types.Position) (*types.Expr, error) {
	p.advance() // '['
	var elems []*types.Expr
	if p.current.Type != TokenRBracket {
		for {
			e, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if p.current.Type == TokenComma {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expect(TokenRBracket); err != nil {
		return nil, err
	}
	return &types.Expr{Type: types.NodeArrayLit, Args: elems, Pos: pos}, nil
}

func (p *Parser) parseObjectLit(pos types.Position) (*types.Expr, error) {
	p.advance() // '{'
	var pairs []types.ObjectPair
	if p.current.Type != TokenRBrace {
		for {
			var key string
			switch p.current.Type {
			case TokenStrLit, TokenIdent:
				key = p.current.Value
				p.advance()
			default:
				return nil, p.unexpected("object key")
			}
			if err := p.expect(TokenColon); err != nil {
				return nil, err
			}
			val, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, types.ObjectPair{Key: key, Value: val})
			if p.current.Type == TokenComma {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expect(TokenRBrace); err != nil {
		return nil, err
	}
	return &types.Expr{Type: types.NodeObjectLit, Pairs: pairs, Pos: pos}, nil
}

// --- infix / postfix ---

func infixBP(tt TokenType) (int, bool) {
	switch tt {
	case TokenCoalesce:
		return bpCoalesce, true
	case TokenOrKw, TokenOrSym:
		return bpOr, true
	case TokenAndKw, TokenAndSym:
		return bpAnd, true
	case TokenEq, TokenNotEq, TokenLt, TokenGt, TokenLtEq, TokenGtEq:
		return bpCompare, true
	case TokenPlus, TokenMinus:
		return bpAdditive, true
	case TokenStar, TokenSlash, TokenPercent:
		return bpMultiplicative, true
	case TokenDot, TokenLBracket, TokenQuestion:
		return bpPostfix, true
	default:
		return 0, false
	}
}

func binOpString(tt TokenType) string {
	switch tt {
	case TokenCoalesce:
		return "??"
	case TokenOrKw, TokenOrSym:
		return "or"
	case TokenAndKw, TokenAndSym:
		return "and"
	case TokenEq:
		return "=="
	case TokenNotEq:
		return "!="
	case TokenLt:
		return "<"
	case TokenGt:
		return ">"
	case TokenLtEq:
		return "<="
	case TokenGtEq:
		return ">="
	case TokenPlus:
		return "+"
	case TokenMinus:
		return "-"
	case TokenStar:
		return "*"
	case TokenSlash:
		return "/"
	case TokenPercent:
		return "%"
	default:
		return "?"
	}
}

func (p *Parser) parseInfixLoop(lhs *types.Expr, minBP int) (*types.Expr, error) {
	for {
		bp, ok := infixBP(p.current.Type)
		if !ok || bp <= minBP {
			return lhs, nil
		}
		tok := p.current
		var err error
		switch tok.Type {
		case TokenDot:
			lhs, err = p.parseDotAccessorOrMethod(lhs)
		case TokenLBracket:
			lhs, err = p.parseBracketAccessor(lhs)
		case TokenQuestion:
			p.advance()
			lhs = &types.Expr{Type: types.NodeAccessor, Object: lhs, AccKind: types.AccExistence, Pos: tok.Pos}
		default:
			p.advance()
			var rhs *types.Expr
			rhs, err = p.parseExpr(bp)
			if err == nil {
				lhs = &types.Expr{Type: types.NodeBinop, BinOp: binOpString(tok.Type), LHS: lhs, RHS: rhs, Pos: tok.Pos}
			}
		}
		if err != nil {
			return nil, err
		}
	}
}

func (p *Parser) parseDotAccessorOrMethod(lhs *types.Expr) (*types.Expr, error) {
	p.advance() // '.'
	if p.current.Type != TokenIdent {
		return nil, p.unexpected("field or method name")
	}
	name := p.current.Value
	pos := p.current.Pos
	p.advance()
	if p.current.Type != TokenLParen {
		return &types.Expr{Type: types.NodeAccessor, Object: lhs, AccKind: types.AccField, FieldName: name, Pos: pos}, nil
	}
	p.advance() // '('
	var args []*types.Expr
	if p.current.Type != TokenRParen {
		for {
			arg, err := p.parseArgument()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.current.Type == TokenComma {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return &types.Expr{Type: types.NodeMethod, Object: lhs, Name: name, Args: args, Pos: pos}, nil
}

func (p *Parser) parseBracketAccessor(lhs *types.Expr) (*types.Expr, error) {
	pos := p.current.Pos
	p.advance() // '['
	if p.current.Type == TokenQuestion {
		p.advance()
		if err := p.expect(TokenRBracket); err != nil {
			return nil, err
		}
		return &types.Expr{Type: types.NodeAccessor, Object: lhs, AccKind: types.AccExistence, Pos: pos}, nil
	}
	switch p.current.Type {
	case TokenIntLit:
		n, convErr := strconv.ParseInt(p.current.Value, 10, 64)
		if convErr != nil {
			return nil, types.NewError(types.ErrParse, p.current.Pos, "index literal %q out of range", p.current.Value)
		}
		p.advance()
		if err := p.expect(TokenRBracket); err != nil {
			return nil, err
		}
		return &types.Expr{Type: types.NodeAccessor, Object: lhs, AccKind: types.AccIndexInt, IntVal: n, Pos: pos}, nil
	case TokenDecLit:
		d, err := decimal.NewFromString(p.current.Value)
		if err != nil {
			return nil, types.NewError(types.ErrParse, p.current.Pos, "invalid decimal literal %q", p.current.Value)
		}
		p.advance()
		if err := p.expect(TokenRBracket); err != nil {
			return nil, err
		}
		return &types.Expr{Type: types.NodeAccessor, Object: lhs, AccKind: types.AccIndexFloat, DecVal: types.Dec(d), Pos: pos}, nil
	case TokenStrLit:
		s := p.current.Value
		p.advance()
		if err := p.expect(TokenRBracket); err != nil {
			return nil, err
		}
		return &types.Expr{Type: types.NodeAccessor, Object: lhs, AccKind: types.AccField, FieldName: s, Pos: pos}, nil
	case TokenIdent:
		name := p.current.Value
		p.advance()
		if err := p.expect(TokenRBracket); err != nil {
			return nil, err
		}
		return &types.Expr{Type: types.NodeAccessor, Object: lhs, AccKind: types.AccField, FieldName: name, Pos: pos}, nil
	default:
		keyExpr, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRBracket); err != nil {
			return nil, err
		}
		return &types.Expr{Type: types.NodeAccessor, Object: lhs, AccKind: types.AccComputedKey, KeyExpr: keyExpr, Pos: pos}, nil
	}
}
