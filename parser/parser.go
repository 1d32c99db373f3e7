// Package parser turns QAIL query text into the Command IR (ir.Command).
//
// Only the v2 keyword surface (get/set/add/del/make/with/index/over/put/
// drop plus keyword clauses) is parsed. The v1 symbolic cage forms ([…],
// '..., ^..., @...) are not accepted by any parsing path.
package parser

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/qail-lang/qail/ir"
	"github.com/qail-lang/qail/lexer"
	"github.com/qail-lang/qail/token"
)

// ParseError represents a parse error with its byte offset and a human
// message. Mirrors machparse's parser.ParseError shape exactly, per
// spec.md §4.C ("Errors: ParseError{ position, message }").
type ParseError struct {
	Pos     token.Pos
	Message string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("offset %d (line %d, column %d): %s", e.Pos.Offset, e.Pos.Line, e.Pos.Column, e.Message)
}

// Option configures a Parser.
type Option func(*Parser)

// WithV1Compat is a documented stub: spec.md demotes v1 symbolic syntax to
// a compatibility flag rather than a core requirement, and the source
// grammar shows signs of deprecating it. Enabling it here is not
// implemented; it exists so callers can opt in once/if it is.
func WithV1Compat() Option {
	return func(p *Parser) { p.v1Compat = true }
}

// Parser is a recursive-descent parser for QAIL query text.
type Parser struct {
	lexer    *lexer.Lexer
	errors   []ParseError
	cur      token.Item
	v1Compat bool
	paramSeq uint32
}

var parserPool = sync.Pool{New: func() any { return &Parser{} }}

// New creates a new parser for the given input.
func New(input string, opts ...Option) *Parser {
	p := &Parser{lexer: lexer.New(input)}
	for _, o := range opts {
		o(p)
	}
	p.advance()
	return p
}

// Get returns a pooled parser for the given input.
func Get(input string, opts ...Option) *Parser {
	p := parserPool.Get().(*Parser)
	p.lexer = lexer.Get(input)
	p.errors = p.errors[:0]
	p.cur = token.Item{}
	p.v1Compat = false
	p.paramSeq = 0
	for _, o := range opts {
		o(p)
	}
	p.advance()
	return p
}

// Put returns the parser and its lexer to their pools.
func Put(p *Parser) {
	if p.lexer != nil {
		lexer.Put(p.lexer)
		p.lexer = nil
	}
	parserPool.Put(p)
}

// Parse parses exactly one statement; trailing input is an error.
func Parse(input string) (*ir.Command, error) {
	p := Get(input)
	defer Put(p)
	return p.Parse()
}

// ParseAll parses every statement in the input, separated by `;`.
func ParseAll(input string) ([]*ir.Command, error) {
	p := Get(input)
	defer Put(p)
	return p.ParseAll()
}

// ParseFile parses a file of multiple statements, supplemented from
// original_source/core/src/parser/query_file.rs: statements may be
// separated by `;` or blank lines.
func ParseFile(input string) ([]*ir.Command, error) {
	return ParseAll(input)
}

func (p *Parser) Parse() (*ir.Command, error) {
	if p.curIs(token.EOF) {
		return nil, nil
	}
	cmd := p.parseCommand()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	for p.curIs(token.ILLEGAL) && p.cur.Value == ";" {
		p.advance()
	}
	if !p.curIs(token.EOF) {
		p.errorf("unexpected trailing input %q", p.cur.Value)
		return nil, p.errors[0]
	}
	return cmd, nil
}

func (p *Parser) ParseAll() ([]*ir.Command, error) {
	var cmds []*ir.Command
	for {
		for p.curIs(token.ILLEGAL) && p.cur.Value == ";" {
			p.advance()
		}
		if p.curIs(token.EOF) {
			break
		}
		cmd := p.parseCommand()
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
		if len(p.errors) > 0 {
			return cmds, p.errors[0]
		}
	}
	return cmds, nil
}

// --- token navigation -------------------------------------------------

func (p *Parser) advance()                  { p.cur = p.lexer.Next() }
func (p *Parser) curIs(t token.Token) bool  { return p.cur.Type == t }
func (p *Parser) peek() token.Item          { return p.lexer.Peek() }
func (p *Parser) peekIs(t token.Token) bool { return p.peek().Type == t }

func (p *Parser) curIsIdent() bool {
	return p.cur.Type == token.IDENT || p.cur.Type.IsKeyword()
}

func (p *Parser) expect(t token.Token) bool {
	if p.curIs(t) {
		p.advance()
		return true
	}
	p.errorf("expected %v, got %v %q", t, p.cur.Type, p.cur.Value)
	return false
}

func (p *Parser) errorf(format string, args ...any) {
	p.errors = append(p.errors, ParseError{Pos: p.cur.Pos, Message: fmt.Sprintf(format, args...)})
}

// ident consumes the current token as an identifier (IDENT or a keyword
// used positionally as one) and returns its text.
func (p *Parser) ident() string {
	if !p.curIsIdent() {
		p.errorf("expected identifier, got %v %q", p.cur.Type, p.cur.Value)
	}
	v := p.cur.Value
	p.advance()
	return v
}

// --- command ------------------------------------------------------------

func (p *Parser) parseCommand() *ir.Command {
	var ctes []ir.CTE
	if p.curIs(token.WITH) {
		ctes = p.parseWithPrefix()
	}

	var cmd *ir.Command
	switch p.cur.Type {
	case token.GET:
		cmd = p.parseGet()
	case token.SET:
		cmd = p.parseSet()
	case token.ADD:
		cmd = p.parseAdd()
	case token.DEL:
		cmd = p.parseDel()
	case token.MAKE:
		cmd = p.parseMake()
	case token.MOD:
		cmd = p.parseDDLTable(ir.ActionMod)
	case token.DROP:
		cmd = p.parseDrop()
	case token.DROPCOL:
		cmd = p.parseDDLTable(ir.ActionDropCol)
	case token.RENAMECOL:
		cmd = p.parseDDLTable(ir.ActionRenameCol)
	case token.INDEX:
		cmd = p.parseDDLTable(ir.ActionIndex)
	case token.OVER:
		cmd = p.parseDDLTable(ir.ActionOver)
	case token.PUT:
		cmd = p.parseDDLTable(ir.ActionPut)
	case token.GEN:
		cmd = p.parseDDLTable(ir.ActionGen)
	case token.BEGIN_KW:
		p.advance()
		cmd = ir.New(ir.ActionTxnStart, "")
	case token.COMMIT_KW:
		p.advance()
		cmd = ir.New(ir.ActionTxnCommit, "")
	case token.ROLLBACK_KW:
		p.advance()
		cmd = ir.New(ir.ActionTxnRollback, "")
		if p.curIs(token.TO_KW) {
			p.advance()
			if p.curIs(token.SAVEPOINT_KW) {
				p.advance()
			}
			cmd.SavepointName = p.ident()
		}
	case token.SAVEPOINT_KW:
		p.advance()
		cmd = ir.New(ir.ActionTxnStart, "")
		cmd.SavepointName = p.ident()
	case token.SEARCH:
		cmd = p.parseSearch()
	case token.UPSERT:
		cmd = p.parseUpsert()
	default:
		p.errorf("expected a verb (get/set/add/del/make/with/index/over/put/drop), got %v", p.cur.Type)
		return nil
	}
	if cmd != nil {
		cmd.CTEs = append(ctes, cmd.CTEs...)
		cmd.ResolveGroupBy()
	}
	return cmd
}

// parseWithPrefix parses a leading `with` clause opening one or more
// comma-separated CTE definitions.
func (p *Parser) parseWithPrefix() []ir.CTE {
	p.advance() // 'with'
	recursive := false
	if p.curIs(token.RECURSIVE) {
		recursive = true
		p.advance()
	}
	var ctes []ir.CTE
	for {
		name := p.ident()
		var cols []string
		if p.curIs(token.LPAREN) {
			p.advance()
			for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
				cols = append(cols, p.ident())
				if p.curIs(token.COMMA) {
					p.advance()
				}
			}
			p.expect(token.RPAREN)
		}
		p.expect(token.AS)
		p.expect(token.LPAREN)
		body := p.parseCommand()
		p.expect(token.RPAREN)
		ctes = append(ctes, ir.CTE{Name: name, Recursive: recursive, Columns: cols, BaseQuery: body})
		if p.curIs(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return ctes
}

func (p *Parser) parseSearch() *ir.Command {
	p.advance()
	table := p.ident()
	cmd := ir.New(ir.ActionSearch, table)
	p.parseGetClauses(cmd)
	return cmd
}

func (p *Parser) parseUpsert() *ir.Command {
	p.advance()
	table := p.ident()
	cmd := ir.New(ir.ActionUpsert, table)
	p.parseSetClauses(cmd)
	return cmd
}

// parseGet parses `get[!] table [fields ...] [from ...] [joins] [where ...]
// [group by ...] [having ...] [order by ...] [limit n] [offset n]`.
func (p *Parser) parseGet() *ir.Command {
	p.advance() // 'get'
	distinct := false
	if p.curIs(token.BANG) {
		distinct = true
		p.advance()
	}
	table := p.ident()
	cmd := ir.New(ir.ActionGet, table)
	cmd.Distinct = distinct
	p.parseGetClauses(cmd)
	return cmd
}

func (p *Parser) parseGetClauses(cmd *ir.Command) {
	for {
		switch p.cur.Type {
		case token.FIELDS:
			p.advance()
			cmd.Columns = p.parseExprList()
		case token.FROM:
			p.advance()
			cmd.FromTables = append(cmd.FromTables, p.ident())
			for p.curIs(token.COMMA) {
				p.advance()
				cmd.FromTables = append(cmd.FromTables, p.ident())
			}
		case token.JOIN, token.LEFT, token.RIGHT, token.INNER, token.FULL:
			cmd.Joins = append(cmd.Joins, p.parseJoin())
		case token.WHERE:
			p.advance()
			cmd.AddCage(ir.FilterCage(ir.LogicalAnd, p.parseConditionList()...))
		case token.GROUP:
			p.advance()
			p.expect(token.BY)
			cmd.GroupByMode = ir.GroupByExplicit
			cmd.GroupBy = p.parseExprList()
		case token.HAVING:
			p.advance()
			cmd.Having = p.parseConditionList()
		case token.ORDER:
			p.advance()
			p.expect(token.BY)
			cmd.AddCage(p.parseOrderBy())
		case token.LIMIT:
			p.advance()
			cmd.AddCage(ir.LimitCage(p.intLit()))
		case token.OFFSET:
			p.advance()
			cmd.AddCage(ir.OffsetCage(p.intLit()))
		case token.SAMPLE:
			p.advance()
			n := p.intLit()
			cmd.Sample = &n
			cmd.AddCage(ir.SampleCage(n))
		case token.QUALIFY:
			p.advance()
			cmd.AddCage(ir.QualifyCage(ir.LogicalAnd, p.parseConditionList()...))
		default:
			return
		}
	}
}

// parseJoin parses `[left|right|inner|full] join table on cond|on true`.
func (p *Parser) parseJoin() ir.Join {
	kind := ir.JoinInner
	switch p.cur.Type {
	case token.LEFT:
		kind = ir.JoinLeft
		p.advance()
	case token.RIGHT:
		kind = ir.JoinRight
		p.advance()
	case token.FULL:
		kind = ir.JoinFull
		p.advance()
	case token.INNER:
		p.advance()
	}
	p.expect(token.JOIN)
	table := p.ident()
	j := ir.Join{Table: table, Kind: kind}
	if p.curIs(token.ON) {
		p.advance()
		if p.curIs(token.TRUE_KW) {
			p.advance()
			j.OnTrue = true
		} else {
			j.On = p.parseConditionList()
		}
	}
	return j
}

func (p *Parser) parseOrderBy() ir.Cage {
	var conds []ir.Condition
	desc := false
	for {
		e := p.parseExpr()
		d := false
		if p.curIs(token.ASC) {
			p.advance()
		} else if p.curIs(token.DESC) {
			d = true
			p.advance()
		}
		desc = d
		conds = append(conds, ir.Condition{Left: e})
		if p.curIs(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return ir.SortCage(desc, conds...)
}

func (p *Parser) intLit() int {
	if !p.curIs(token.INT) {
		p.errorf("expected integer, got %v", p.cur.Type)
		return 0
	}
	n, err := strconv.Atoi(p.cur.Value)
	if err != nil {
		p.errorf("invalid integer %q", p.cur.Value)
	}
	p.advance()
	return n
}

// parseSet parses `set table [payload] where ... returning ...`.
func (p *Parser) parseSet() *ir.Command {
	p.advance() // 'set'
	table := p.ident()
	cmd := ir.New(ir.ActionSet, table)
	p.parseSetClauses(cmd)
	return cmd
}

func (p *Parser) parseSetClauses(cmd *ir.Command) {
	for {
		switch p.cur.Type {
		case token.WITH:
			p.advance()
			cmd.Payload = p.parseAssignList()
		case token.WHERE:
			p.advance()
			cmd.AddCage(ir.FilterCage(ir.LogicalAnd, p.parseConditionList()...))
		case token.RETURNING:
			p.advance()
			cmd.Returning = p.parseExprList()
		default:
			return
		}
	}
}

func (p *Parser) parseAssignList() []ir.Assignment {
	var out []ir.Assignment
	for {
		col := p.ident()
		p.expect(token.EQ)
		val := p.parseExpr()
		out = append(out, ir.Assignment{Column: col, Value: val})
		if p.curIs(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return out
}

// parseAdd parses `add table with col=val, ... [conflict (...) nothing|update ...] returning ...`.
func (p *Parser) parseAdd() *ir.Command {
	p.advance() // 'add'
	table := p.ident()
	cmd := ir.New(ir.ActionAdd, table)
	for {
		switch p.cur.Type {
		case token.WITH:
			p.advance()
			cmd.Payload = p.parseAssignList()
		case token.CONFLICT:
			p.advance()
			p.expect(token.LPAREN)
			var cols []string
			for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
				cols = append(cols, p.ident())
				if p.curIs(token.COMMA) {
					p.advance()
				}
			}
			p.expect(token.RPAREN)
			if p.curIs(token.NOTHING) {
				p.advance()
				cmd.OnConflict = &ir.OnConflict{TargetColumns: cols, Action: ir.ConflictNothing}
			} else if p.curIs(token.UPDATE) {
				p.advance()
				updates := p.parseAssignList()
				cmd.OnConflict = &ir.OnConflict{TargetColumns: cols, Action: ir.ConflictUpdate, Updates: updates}
			}
		case token.RETURNING:
			p.advance()
			cmd.Returning = p.parseExprList()
		default:
			return cmd
		}
	}
}

// parseDel parses `del table where ... returning ...`.
func (p *Parser) parseDel() *ir.Command {
	p.advance()
	table := p.ident()
	cmd := ir.New(ir.ActionDel, table)
	for {
		switch p.cur.Type {
		case token.WHERE:
			p.advance()
			cmd.AddCage(ir.FilterCage(ir.LogicalAnd, p.parseConditionList()...))
		case token.RETURNING:
			p.advance()
			cmd.Returning = p.parseExprList()
		default:
			return cmd
		}
	}
}

// parseMake parses `make table fields col type, ...` (DDL CREATE TABLE);
// the column list may also be wrapped in parentheses. Column definitions are kept as raw-SQL passthrough per column since the
// IR's Expr model has no dedicated "column definition" leaf; each
// definition is carried as a Literal holding its textual form, consumed
// verbatim by the dialect DDL emitter.
func (p *Parser) parseMake() *ir.Command {
	p.advance()
	table := p.ident()
	cmd := ir.New(ir.ActionMake, table)
	if p.curIs(token.FIELDS) {
		p.advance()
		paren := p.curIs(token.LPAREN)
		if paren {
			p.advance()
		}
		for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) && !(p.curIs(token.ILLEGAL) && p.cur.Value == ";") {
			var sb strings.Builder
			depth := 0
			for !p.curIs(token.EOF) {
				if p.curIs(token.ILLEGAL) && p.cur.Value == ";" {
					break
				}
				if p.curIs(token.LPAREN) {
					depth++
				}
				if p.curIs(token.RPAREN) {
					if depth == 0 {
						break
					}
					depth--
				}
				if p.curIs(token.COMMA) && depth == 0 {
					break
				}
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(p.cur.Value)
				p.advance()
			}
			cmd.Columns = append(cmd.Columns, ir.Literal(ir.String(sb.String())))
			if p.curIs(token.COMMA) {
				p.advance()
			}
		}
		if paren {
			p.expect(token.RPAREN)
		}
	}
	return cmd
}

func (p *Parser) parseDDLTable(action ir.Action) *ir.Command {
	p.advance()
	table := p.ident()
	return ir.New(action, table)
}

func (p *Parser) parseDrop() *ir.Command {
	p.advance()
	table := p.ident()
	return ir.New(ir.ActionDrop, table)
}

// --- conditions -----------------------------------------------------------

// parseConditionList parses a comma/AND/OR separated predicate list into
// flat Conditions (the cage's LogicalOp already records how the caller
// wants them joined; `and`/`or` keywords here are consumed as separators).
// Each condition's operands are parsed at the additive level, so a
// condition holds no nested OR/AND.
func (p *Parser) parseConditionList() []ir.Condition {
	var out []ir.Condition
	out = append(out, p.parseCondition())
	for p.curIs(token.AND) || p.curIs(token.OR) || p.curIs(token.COMMA) {
		p.advance()
		out = append(out, p.parseCondition())
	}
	return out
}

func (p *Parser) parseCondition() ir.Condition {
	left := p.parseAdditive()
	not := false
	if p.curIs(token.NOT) {
		not = true
		p.advance()
	}
	switch p.cur.Type {
	case token.EQ:
		p.advance()
		return ir.Cond(left, ir.OpEq, p.parseValueOrExpr())
	case token.NEQ:
		p.advance()
		return ir.Cond(left, ir.OpNe, p.parseValueOrExpr())
	case token.GT:
		p.advance()
		return ir.Cond(left, ir.OpGt, p.parseValueOrExpr())
	case token.GTE:
		p.advance()
		return ir.Cond(left, ir.OpGte, p.parseValueOrExpr())
	case token.LT:
		p.advance()
		return ir.Cond(left, ir.OpLt, p.parseValueOrExpr())
	case token.LTE:
		p.advance()
		return ir.Cond(left, ir.OpLte, p.parseValueOrExpr())
	case token.FUZZY:
		p.advance()
		return ir.Cond(left, ir.OpFuzzy, p.parseValueOrExpr())
	case token.LIKE:
		p.advance()
		op := ir.OpLike
		if not {
			op = ir.OpNotLike
		}
		return ir.Cond(left, op, p.parseValueOrExpr())
	case token.ILIKE:
		p.advance()
		op := ir.OpILike
		if not {
			op = ir.OpNotILike
		}
		return ir.Cond(left, op, p.parseValueOrExpr())
	case token.REGEXP:
		p.advance()
		return ir.Cond(left, ir.OpRegex, p.parseValueOrExpr())
	case token.SIMILAR:
		p.advance()
		p.expect(token.TO_KW)
		return ir.Cond(left, ir.OpSimilarTo, p.parseValueOrExpr())
	case token.CONTAINS:
		p.advance()
		return ir.Cond(left, ir.OpContains, p.parseValueOrExpr())
	case token.OVERLAPS:
		p.advance()
		return ir.Cond(left, ir.OpOverlaps, p.parseValueOrExpr())
	case token.IN:
		p.advance()
		op := ir.OpIn
		if not {
			op = ir.OpNotIn
		}
		return ir.Cond(left, op, p.parseValueList())
	case token.BETWEEN:
		p.advance()
		lo := p.parseValueOrExpr()
		p.expect(token.AND)
		hi := p.parseValueOrExpr()
		op := ir.OpBetween
		if not {
			op = ir.OpNotBetween
		}
		return ir.Condition{Left: left, Op: op, Value: ir.Array(lo, hi)}
	case token.IS:
		p.advance()
		isNot := false
		if p.curIs(token.NOT) {
			isNot = true
			p.advance()
		}
		p.expect(token.NULL_KW)
		if isNot {
			return ir.IsNotNullCond(left)
		}
		return ir.IsNullCond(left)
	}
	p.errorf("expected comparison operator, got %v", p.cur.Type)
	return ir.Condition{Left: left}
}

func (p *Parser) parseValueOrExpr() ir.Value {
	e := p.parseAdditive()
	if e.Kind == ir.EkLiteral {
		return e.Literal
	}
	if e.Kind == ir.EkNamed {
		if e.Qualifier != "" {
			return ir.Column(e.Qualifier + "." + e.Name)
		}
		return ir.Column(e.Name)
	}
	return ir.Subquery(nil)
}

func (p *Parser) parseValueList() ir.Value {
	p.expect(token.LPAREN)
	var vals []ir.Value
	for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
		vals = append(vals, p.parseValueOrExpr())
		if p.curIs(token.COMMA) {
			p.advance()
		}
	}
	p.expect(token.RPAREN)
	return ir.Array(vals...)
}

// --- expressions ------------------------------------------------------
//
// Precedence (lowest to highest):
//   OR, AND, || (concat), + -, * / %, unary, JSON access (-> ->>),
//   function call, atom. Left-associative chains. There is no comparison
//   level here: comparisons are parsed only by parseCondition.

func (p *Parser) parseExprList() []ir.Expr {
	var out []ir.Expr
	out = append(out, p.parseExpr())
	for p.curIs(token.COMMA) {
		p.advance()
		out = append(out, p.parseExpr())
	}
	return out
}

func (p *Parser) parseExpr() ir.Expr { return p.parseOr() }

func (p *Parser) parseOr() ir.Expr {
	left := p.parseAnd()
	for p.curIs(token.OR) {
		p.advance()
		right := p.parseAnd()
		left = ir.FunctionCall("OR", left, right)
	}
	return left
}

func (p *Parser) parseAnd() ir.Expr {
	left := p.parseConcat()
	for p.curIs(token.AND) {
		p.advance()
		right := p.parseConcat()
		left = ir.FunctionCall("AND", left, right)
	}
	return left
}

func (p *Parser) parseConcat() ir.Expr {
	left := p.parseAdditive()
	for p.curIs(token.CONCAT) {
		p.advance()
		right := p.parseAdditive()
		left = ir.Binary(left, ir.OpConcat, right)
	}
	return left
}

func (p *Parser) parseAdditive() ir.Expr {
	left := p.parseMultiplicative()
	for p.curIs(token.PLUS) || p.curIs(token.MINUS) {
		op := ir.OpAdd
		if p.curIs(token.MINUS) {
			op = ir.OpSub
		}
		p.advance()
		right := p.parseMultiplicative()
		left = ir.Binary(left, op, right)
	}
	return left
}

func (p *Parser) parseMultiplicative() ir.Expr {
	left := p.parseUnary()
	for p.curIs(token.ASTERISK) || p.curIs(token.SLASH) || p.curIs(token.PERCENT) {
		var op ir.BinaryOp
		switch p.cur.Type {
		case token.ASTERISK:
			op = ir.OpMul
		case token.SLASH:
			op = ir.OpDiv
		case token.PERCENT:
			op = ir.OpMod
		}
		p.advance()
		right := p.parseUnary()
		left = ir.Binary(left, op, right)
	}
	return left
}

func (p *Parser) parseUnary() ir.Expr {
	if p.curIs(token.MINUS) {
		p.advance()
		inner := p.parseUnary()
		return ir.Binary(ir.Literal(ir.Int(0)), ir.OpSub, inner)
	}
	return p.parseJSONAccess()
}

func (p *Parser) parseJSONAccess() ir.Expr {
	left := p.parseCall()
	var segs []ir.JsonSegment
	for p.curIs(token.ARROW) || p.curIs(token.DARROW) {
		asText := p.curIs(token.DARROW)
		p.advance()
		key := p.cur.Value
		p.advance()
		segs = append(segs, ir.JsonSegment{Key: key, AsText: asText})
	}
	if len(segs) > 0 {
		return ir.JsonAccess(left, segs...)
	}
	return left
}

func (p *Parser) parseCall() ir.Expr {
	e := p.parseAtom()
	if e.Kind == ir.EkNamed && p.curIs(token.LPAREN) {
		return p.finishCall(e.Name)
	}
	return e
}

func (p *Parser) finishCall(name string) ir.Expr {
	p.advance() // '('
	upper := strings.ToUpper(name)
	distinct := false
	if p.curIs(token.DISTINCT) {
		distinct = true
		p.advance()
	}
	if isAggregateName(upper) {
		var arg ir.Expr
		if p.curIs(token.ASTERISK) {
			arg = ir.Star()
			p.advance()
		} else if !p.curIs(token.RPAREN) {
			arg = p.parseExpr()
		}
		p.expect(token.RPAREN)
		return ir.Aggregate(upper, arg, distinct)
	}
	var args []ir.Expr
	for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
		args = append(args, p.parseExpr())
		if p.curIs(token.COMMA) {
			p.advance()
		}
	}
	p.expect(token.RPAREN)
	return ir.FunctionCall(upper, args...)
}

func isAggregateName(upper string) bool {
	switch upper {
	case "COUNT", "SUM", "AVG", "MIN", "MAX", "ARRAY_AGG", "STRING_AGG", "BOOL_AND", "BOOL_OR":
		return true
	}
	return false
}

func (p *Parser) parseAtom() ir.Expr {
	switch p.cur.Type {
	case token.LPAREN:
		p.advance()
		e := p.parseExpr()
		p.expect(token.RPAREN)
		return e
	case token.ASTERISK:
		p.advance()
		return ir.Star()
	case token.RAWSQL:
		v := p.cur.Value
		p.advance()
		return ir.Literal(ir.Value{Kind: ir.KFunction, Str: v})
	case token.STRING:
		v := p.cur.Value
		p.advance()
		return ir.Literal(ir.String(v))
	case token.INT:
		n, _ := strconv.ParseInt(p.cur.Value, 10, 64)
		p.advance()
		return ir.Literal(ir.Int(n))
	case token.FLOAT:
		f, _ := strconv.ParseFloat(p.cur.Value, 64)
		p.advance()
		return ir.Literal(ir.Float(f))
	case token.TRUE_KW:
		p.advance()
		return ir.Literal(ir.Bool(true))
	case token.FALSE_KW:
		p.advance()
		return ir.Literal(ir.Bool(false))
	case token.NULL_KW:
		p.advance()
		return ir.Literal(ir.Null())
	case token.PARAM_POS:
		n, _ := strconv.ParseUint(p.cur.Value, 10, 32)
		p.advance()
		return ir.Literal(ir.Param(uint32(n)))
	case token.PARAM_NAMED:
		v := p.cur.Value
		p.advance()
		return ir.Literal(ir.NamedParam(v))
	case token.CASE:
		return p.parseCase()
	case token.CAST:
		return p.parseCast()
	case token.SUBSTRING:
		return p.parseSubstring()
	case token.EXTRACT:
		return p.parseExtract()
	default:
		if p.curIsIdent() {
			return p.parseColumnRef()
		}
	}
	p.errorf("unexpected token %v %q in expression", p.cur.Type, p.cur.Value)
	p.advance()
	return ir.Literal(ir.Null())
}

func (p *Parser) parseColumnRef() ir.Expr {
	first := p.ident()
	if p.curIs(token.DOT) {
		p.advance()
		second := p.ident()
		e := ir.NamedQualified(first, second)
		if p.curIs(token.LPAREN) {
			return p.finishCall(second)
		}
		return p.maybeAlias(e)
	}
	e := ir.Named(first)
	if p.curIs(token.LPAREN) {
		return p.finishCall(first)
	}
	return p.maybeAlias(e)
}

// maybeAlias handles a trailing `as alias` for plain column references,
// routing through Expr.As to preserve the closed leaf shape. A bare alias
// without `as` is not recognized.
func (p *Parser) maybeAlias(e ir.Expr) ir.Expr {
	if p.curIs(token.AS) {
		p.advance()
		alias := p.ident()
		return e.As(alias)
	}
	return e
}

// parseCase parses `CASE WHEN cond THEN expr ... [ELSE expr] END`. The
// simple form with an operand after CASE is not accepted.
func (p *Parser) parseCase() ir.Expr {
	p.advance() // 'case'
	var whens []ir.WhenClause
	for p.curIs(token.WHEN) {
		p.advance()
		cond := p.parseCondition()
		p.expect(token.THEN)
		then := p.parseExpr()
		whens = append(whens, ir.WhenClause{When: cond, Then: then})
	}
	var els *ir.Expr
	if p.curIs(token.ELSE) {
		p.advance()
		e := p.parseExpr()
		els = &e
	}
	p.expect(token.END)
	return ir.Case(whens, els)
}

// parseCast parses `CAST(expr AS type)`.
func (p *Parser) parseCast() ir.Expr {
	p.advance() // 'cast'
	p.expect(token.LPAREN)
	e := p.parseExpr()
	p.expect(token.AS)
	typ := p.parseTypeName()
	p.expect(token.RPAREN)
	return ir.Cast(e, typ)
}

func (p *Parser) parseTypeName() string {
	var sb strings.Builder
	sb.WriteString(p.ident())
	if p.curIs(token.LPAREN) {
		sb.WriteByte('(')
		p.advance()
		for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
			sb.WriteString(p.cur.Value)
			p.advance()
			if p.curIs(token.COMMA) {
				sb.WriteString(", ")
				p.advance()
			}
		}
		p.expect(token.RPAREN)
		sb.WriteByte(')')
	}
	return sb.String()
}

// parseSubstring parses `SUBSTRING(expr FROM pos [FOR len])`.
func (p *Parser) parseSubstring() ir.Expr {
	p.advance() // 'substring'
	p.expect(token.LPAREN)
	var args []ir.KeywordArg
	args = append(args, ir.KeywordArg{Keyword: "", Expr: p.parseExpr()})
	if p.curIs(token.FROM) {
		p.advance()
		args = append(args, ir.KeywordArg{Keyword: "FROM", Expr: p.parseExpr()})
	}
	if p.curIs(token.FOR) {
		p.advance()
		args = append(args, ir.KeywordArg{Keyword: "FOR", Expr: p.parseExpr()})
	}
	p.expect(token.RPAREN)
	return ir.SpecialFunction("SUBSTRING", args...)
}

// parseExtract parses `EXTRACT(field FROM expr)`.
func (p *Parser) parseExtract() ir.Expr {
	p.advance() // 'extract'
	p.expect(token.LPAREN)
	field := p.ident()
	p.expect(token.FROM)
	src := p.parseExpr()
	p.expect(token.RPAREN)
	return ir.SpecialFunction("EXTRACT",
		ir.KeywordArg{Keyword: "FIELD", Expr: ir.Literal(ir.String(field))},
		ir.KeywordArg{Keyword: "FROM", Expr: src},
	)
}
