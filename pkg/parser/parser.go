package parser

import "github.com/tardy-sh/clove-lang/pkg/types"

// CompileOptions configures a Parse call. The zero value is the default
// configuration: unbounded nesting depth and no error recovery.
type CompileOptions struct {
	// MaxDepth bounds expression nesting depth; 0 means unbounded. Guards
	// against pathological input driving the recursive-descent parser into
	// a stack overflow of its own.
	MaxDepth int

	// EnableRecovery, when set, makes Parse collect errors from as many
	// pipeline stages as it can rather than aborting at the first one.
	EnableRecovery bool
}

// CompileOption mutates a CompileOptions value.
type CompileOption func(*CompileOptions)

func WithMaxDepth(n int) CompileOption {
	return func(o *CompileOptions) { o.MaxDepth = n }
}

func WithRecovery() CompileOption {
	return func(o *CompileOptions) { o.EnableRecovery = true }
}

// Parse compiles source text into a Query.
func Parse(src string, opts ...CompileOption) (*types.Query, error) {
	var cfg CompileOptions
	for _, o := range opts {
		o(&cfg)
	}
	if !cfg.EnableRecovery {
		p := NewParser(src, cfg)
		return p.Parse()
	}
	return parseWithRecovery(src, cfg)
}

// ParseExpr compiles a standalone expression, with no pipeline or UDF
// definition wrapped around it. It exists for hosts that load UDF bodies
// from an external document one expression at a time (see pkg/udfset)
// rather than from `&name,arity := body` syntax inside a query.
func ParseExpr(src string, opts ...CompileOption) (*types.Expr, error) {
	var cfg CompileOptions
	for _, o := range opts {
		o(&cfg)
	}
	p := NewParser(src, cfg)
	e, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if p.current.Type != TokenEOF {
		return nil, p.unexpected("end of expression")
	}
	return e, nil
}

// parseWithRecovery parses UDF definitions and as many pipeline stages as
// possible, skipping to the next '|' after a stage-level error instead of
// aborting. The first collected error is returned, with the second
// attached as its cause and the text of every later error appended to its
// message.
func parseWithRecovery(src string, cfg CompileOptions) (*types.Query, error) {
	p := NewParser(src, cfg)
	q := &types.Query{}

	firstStage, err := p.parseUdfDefsAndHead(q)
	if err != nil {
		p.errs = append(p.errs, err)
		p.skipToNextStageBoundary()
	} else if firstStage != nil {
		q.Stages = append(q.Stages, firstStage)
	}

	for p.current.Type == TokenPipe {
		p.advance()
		st, err := p.parseStage()
		if err != nil {
			p.errs = append(p.errs, err)
			p.skipToNextStageBoundary()
			continue
		}
		q.Stages = append(q.Stages, st)
	}

	if len(p.errs) == 0 && p.current.Type != TokenEOF {
		p.errs = append(p.errs, p.unexpected("end of query"))
	}
	if len(p.errs) == 0 {
		return q, nil
	}

	first := p.errs[0]
	combined, ok := first.(*types.Error)
	if !ok {
		combined = types.NewError(types.ErrParse, types.Position{}, "%s", first.Error())
	}
	for _, e := range p.errs[1:] {
		combined = combined.WithCause(e)
		break // WithCause only chains one cause; remaining errors are summarized in Message below
	}
	if len(p.errs) > 1 {
		combined.Message = combined.Message + summarizeExtraErrors(p.errs[1:])
	}
	return q, combined
}

func summarizeExtraErrors(rest []error) string {
	s := " (and "
	for i, e := range rest {
		if i > 0 {
			s += "; "
		}
		s += e.Error()
	}
	return s + ")"
}

func (p *Parser) skipToNextStageBoundary() {
	for p.current.Type != TokenPipe && p.current.Type != TokenEOF {
		p.advance()
	}
}
