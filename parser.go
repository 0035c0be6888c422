package main

import (
	"fmt"
	"math"
)

// maxNestingDepth caps expression recursion so pathologically nested input
// is reported as a syntax error instead of exhausting the stack.
const maxNestingDepth = 200

// ParseScript parses a full token stream into a Script. Syntax errors are
// collected into diags across the whole stream; the parser resynchronizes
// at statement and top-level-item boundaries so one malformed construct
// does not hide the rest of the file.
func ParseScript(tokens []Token, diags *Diagnostics) *Script {
	p := &parser{tokens: tokens, diags: diags}
	script := &Script{}
	for !p.at(EOF) {
		switch {
		case p.at(IMPORT):
			if imp := p.parseImport(); imp != nil {
				script.Imports = append(script.Imports, imp)
			}
		case p.at(GLOBAL):
			if g := p.parseGlobal(); g != nil {
				script.Globals = append(script.Globals, g)
			}
		case p.at(MEMORY):
			if d := p.parseDataSegment(); d != nil {
				script.Data = append(script.Data, d)
			}
		case p.at(EXPORT) || p.at(FN) || p.atStartMarker():
			if f := p.parseFunction(); f != nil {
				script.Functions = append(script.Functions, f)
			}
		default:
			p.errorf(p.cur().Span, "expected a top-level item, found %s", describeToken(p.cur()))
			p.next()
			p.syncTopLevel()
		}
	}
	return script
}

type parser struct {
	tokens  []Token
	pos     int
	diags   *Diagnostics
	depth   int
	deepErr bool
}

func (p *parser) cur() Token {
	return p.tokens[p.pos]
}

func (p *parser) peek() Token {
	if p.pos+1 >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[p.pos+1]
}

func (p *parser) next() Token {
	tok := p.tokens[p.pos]
	if tok.Type != EOF {
		p.pos++
	}
	return tok
}

func (p *parser) at(tt TokenType) bool {
	return p.cur().Type == tt
}

func (p *parser) atOp(lit string) bool {
	c := p.cur()
	return c.Type == OP && c.Literal == lit
}

// atStartMarker recognizes the contextual `start` marker before a function.
// `start` is an ordinary identifier everywhere else.
func (p *parser) atStartMarker() bool {
	c := p.cur()
	if c.Type != IDENT || c.Literal != "start" {
		return false
	}
	n := p.peek().Type
	return n == FN || n == EXPORT
}

// prevEnd is the end offset of the last consumed token.
func (p *parser) prevEnd() int {
	if p.pos == 0 {
		return 0
	}
	return p.tokens[p.pos-1].Span.End
}

func (p *parser) errorf(span Span, format string, args ...any) {
	p.diags.Add(Diagnostic{
		Kind:    SyntaxError,
		Message: fmt.Sprintf(format, args...),
		Span:    span,
	})
}

func (p *parser) expect(tt TokenType) (Token, bool) {
	if p.at(tt) {
		return p.next(), true
	}
	p.errorf(p.cur().Span, "expected %s, found %s", describeType(tt), describeToken(p.cur()))
	return p.cur(), false
}

func (p *parser) expectOp(lit string) bool {
	if p.atOp(lit) {
		p.next()
		return true
	}
	p.errorf(p.cur().Span, "expected '%s', found %s", lit, describeToken(p.cur()))
	return false
}

func describeToken(tok Token) string {
	switch tok.Type {
	case EOF:
		return "end of file"
	case IDENT, INT, FLOAT, OP:
		return fmt.Sprintf("'%s'", tok.Literal)
	case STRING:
		return fmt.Sprintf("%q", tok.Literal)
	default:
		return fmt.Sprintf("'%s'", string(tok.Type))
	}
}

func describeType(tt TokenType) string {
	switch tt {
	case IDENT:
		return "an identifier"
	case INT:
		return "an integer"
	case STRING:
		return "a string"
	default:
		return fmt.Sprintf("'%s'", string(tt))
	}
}

// syncTopLevel skips tokens until the next plausible top-level item,
// tracking brace depth so item keywords inside a broken body are ignored.
func (p *parser) syncTopLevel() {
	depth := 0
	for !p.at(EOF) {
		switch p.cur().Type {
		case IMPORT, EXPORT, FN, GLOBAL, MEMORY:
			if depth == 0 {
				return
			}
		case LBRACE:
			depth++
		case RBRACE:
			if depth > 0 {
				depth--
			}
		}
		if depth == 0 && p.atStartMarker() {
			return
		}
		p.next()
	}
}

// syncItem skips past the terminating ';' of a broken top-level item.
func (p *parser) syncItem() {
	depth := 0
	for !p.at(EOF) {
		switch p.next().Type {
		case SEMICOLON:
			if depth == 0 {
				return
			}
		case LBRACE:
			depth++
		case RBRACE:
			if depth > 0 {
				depth--
			}
		}
	}
}

// syncStatement skips to just past the next ';' (or stops before the '}'
// that closes the enclosing block).
func (p *parser) syncStatement() {
	depth := 0
	for !p.at(EOF) {
		switch p.cur().Type {
		case SEMICOLON:
			if depth == 0 {
				p.next()
				return
			}
		case LBRACE:
			depth++
		case RBRACE:
			if depth == 0 {
				return
			}
			depth--
		}
		p.next()
	}
}

// skipBalanced consumes a balanced (possibly nested) delimiter group
// starting at the current '(' or '{' and returns its span.
func (p *parser) skipBalanced() Span {
	start := p.cur().Span
	var stack []TokenType
	for !p.at(EOF) {
		switch p.cur().Type {
		case LPAREN:
			stack = append(stack, RPAREN)
		case LBRACE:
			stack = append(stack, RBRACE)
		case RPAREN, RBRACE:
			if len(stack) > 0 && stack[len(stack)-1] == p.cur().Type {
				stack = stack[:len(stack)-1]
			}
		}
		tok := p.next()
		if len(stack) == 0 {
			return start.Cover(tok.Span)
		}
	}
	return start.Cover(Span{p.prevEnd(), p.prevEnd()})
}

func (p *parser) parseType() (Type, bool) {
	if p.at(IDENT) {
		if t, ok := typeByName(p.cur().Literal); ok {
			p.next()
			return t, true
		}
	}
	p.errorf(p.cur().Span, "expected a type (i32, i64, f32 or f64), found %s", describeToken(p.cur()))
	return TypeVoid, false
}

// import := "import" STRING (memory | global | fn) ";"
func (p *parser) parseImport() *Import {
	impTok := p.next()
	src, ok := p.expect(STRING)
	if !ok {
		p.syncItem()
		return nil
	}
	imp := &Import{Source: src.Literal, Result: TypeVoid}
	switch {
	case p.at(MEMORY):
		p.next()
		imp.Kind = ImportMemory
		if _, ok := p.expect(LPAREN); !ok {
			p.syncItem()
			return nil
		}
		n, ok := p.expect(INT)
		if !ok {
			p.syncItem()
			return nil
		}
		imp.MinPages = n.Int
		p.expect(RPAREN)
	case p.at(GLOBAL):
		p.next()
		imp.Kind = ImportVariable
		if p.at(MUT) {
			p.next()
			imp.Mutable = true
		}
		name, ok := p.expect(IDENT)
		if !ok {
			p.syncItem()
			return nil
		}
		imp.Name = name.Literal
		if _, ok := p.expect(COLON); !ok {
			p.syncItem()
			return nil
		}
		imp.VarType, _ = p.parseType()
	case p.at(FN):
		p.next()
		imp.Kind = ImportFunction
		name, ok := p.expect(IDENT)
		if !ok {
			p.syncItem()
			return nil
		}
		imp.Name = name.Literal
		if _, ok := p.expect(LPAREN); !ok {
			p.syncItem()
			return nil
		}
		for !p.at(RPAREN) && !p.at(EOF) {
			t, ok := p.parseType()
			if !ok {
				p.syncItem()
				return nil
			}
			imp.Params = append(imp.Params, t)
			if p.at(COMMA) {
				p.next()
				continue
			}
			break
		}
		p.expect(RPAREN)
		if p.atOp("->") {
			p.next()
			imp.Result, _ = p.parseType()
		}
	default:
		p.errorf(p.cur().Span, "expected 'memory', 'global' or 'fn' after the import source, found %s", describeToken(p.cur()))
		p.syncItem()
		return nil
	}
	p.expect(SEMICOLON)
	imp.Span = Span{impTok.Span.Start, p.prevEnd()}
	return imp
}

// global := "global" "mut"? IDENT (":" type)? "=" expr ";"
func (p *parser) parseGlobal() *GlobalVar {
	gTok := p.next()
	g := &GlobalVar{Type: TypeVoid}
	if p.at(MUT) {
		p.next()
		g.Mutable = true
	}
	name, ok := p.expect(IDENT)
	if !ok {
		p.syncItem()
		return nil
	}
	g.Name = name.Literal
	if p.at(COLON) {
		p.next()
		g.Type, _ = p.parseType()
	}
	if !p.expectOp("=") {
		p.syncItem()
		return nil
	}
	g.Value = p.parseExpression()
	p.expect(SEMICOLON)
	g.Span = Span{gTok.Span.Start, p.prevEnd()}
	return g
}

// data := "memory" "(" expr ")" "=" values ("," values)* ";"
func (p *parser) parseDataSegment() *DataSegment {
	memTok := p.next()
	if _, ok := p.expect(LPAREN); !ok {
		p.syncItem()
		return nil
	}
	d := &DataSegment{Offset: p.parseExpression()}
	p.expect(RPAREN)
	if !p.expectOp("=") {
		p.syncItem()
		return nil
	}
	for {
		v, ok := p.parseDataValues()
		if !ok {
			p.syncItem()
			return nil
		}
		d.Values = append(d.Values, v)
		if p.at(COMMA) {
			p.next()
			continue
		}
		break
	}
	p.expect(SEMICOLON)
	d.Span = Span{memTok.Span.Start, p.prevEnd()}
	return d
}

// values := STRING | WIDTH "{" expr ("," expr)* "}"
func (p *parser) parseDataValues() (DataValues, bool) {
	if p.at(STRING) {
		tok := p.next()
		return DataValues{Span: tok.Span, IsString: true, Str: tok.Literal}, true
	}
	if p.at(IDENT) {
		if w, ok := dataWidthByName(p.cur().Literal); ok {
			wTok := p.next()
			v := DataValues{Width: w}
			if _, ok := p.expect(LBRACE); !ok {
				return v, false
			}
			for !p.at(RBRACE) && !p.at(EOF) {
				v.Values = append(v.Values, p.parseExpression())
				if p.at(COMMA) {
					p.next()
					continue
				}
				break
			}
			p.expect(RBRACE)
			v.Span = Span{wTok.Span.Start, p.prevEnd()}
			return v, true
		}
	}
	p.errorf(p.cur().Span, "expected a string or a typed value list, found %s", describeToken(p.cur()))
	return DataValues{}, false
}

// function := "export"? "start"? "fn" IDENT "(" (IDENT ":" type),* ")"
//             ("->" type)? "{" block "}"
func (p *parser) parseFunction() *Function {
	startOff := p.cur().Span.Start
	f := &Function{Result: TypeVoid}
	for {
		if p.at(EXPORT) {
			p.next()
			f.Export = true
			continue
		}
		if p.atStartMarker() {
			p.next()
			f.Start = true
			continue
		}
		break
	}
	if _, ok := p.expect(FN); !ok {
		p.syncTopLevel()
		return nil
	}
	name, ok := p.expect(IDENT)
	if !ok {
		p.syncTopLevel()
		return nil
	}
	f.Name = name.Literal
	if _, ok := p.expect(LPAREN); !ok {
		p.syncTopLevel()
		return nil
	}
	for !p.at(RPAREN) && !p.at(EOF) {
		pname, ok := p.expect(IDENT)
		if !ok {
			p.syncTopLevel()
			return nil
		}
		if _, ok := p.expect(COLON); !ok {
			p.syncTopLevel()
			return nil
		}
		ptype, _ := p.parseType()
		f.Params = append(f.Params, Param{Name: pname.Literal, Type: ptype})
		if p.at(COMMA) {
			p.next()
			continue
		}
		break
	}
	p.expect(RPAREN)
	if p.atOp("->") {
		p.next()
		f.Result, _ = p.parseType()
	}
	lb, ok := p.expect(LBRACE)
	if !ok {
		p.syncTopLevel()
		return nil
	}
	f.Body = p.parseBlock()
	rb, _ := p.expect(RBRACE)
	f.Body.Span = lb.Span.Cover(rb.Span)
	f.Span = Span{startOff, p.prevEnd()}
	return f
}

// block := (expr ";")* expr?
//
// The trailing expression, when present, is the block's value. The caller
// owns the surrounding braces and sets the block's span.
func (p *parser) parseBlock() *Expr {
	b := &Expr{Kind: ExprBlock, LocalID: -1, Span: p.cur().Span}
	for !p.at(RBRACE) && !p.at(EOF) {
		e := p.parseExpression()
		if p.at(SEMICOLON) {
			p.next()
			b.Stmts = append(b.Stmts, e)
			continue
		}
		if p.at(RBRACE) || p.at(EOF) {
			b.Last = e
			break
		}
		p.errorf(p.cur().Span, "expected ';' or '}' after expression, found %s", describeToken(p.cur()))
		b.Stmts = append(b.Stmts, e)
		p.syncStatement()
	}
	return b
}

// parseExpression is the entry to the precedence layers. Assignment is
// recognized here, at the outermost layer, so a memory-op offset atom can
// never swallow the poke's '=' as an assignment.
func (p *parser) parseExpression() *Expr {
	if !p.enter() {
		tok := p.next()
		return &Expr{Kind: ExprError, LocalID: -1, Span: tok.Span}
	}
	defer p.leave()

	if p.at(IDENT) && p.peek().Type == OP && p.peek().Literal == "=" {
		name := p.next()
		p.next() // '='
		val := p.parseExpression()
		return &Expr{
			Kind: ExprAssign, Name: name.Literal, X: val, LocalID: -1,
			Span: name.Span.Cover(val.Span),
		}
	}
	return p.parseBinaryLayer(0)
}

func (p *parser) enter() bool {
	p.depth++
	if p.depth > maxNestingDepth {
		if !p.deepErr {
			p.deepErr = true
			p.errorf(p.cur().Span, "expression is nested too deeply")
		}
		return false
	}
	return true
}

func (p *parser) leave() {
	p.depth--
}

type binaryRule struct {
	lit string
	op  BinOp
}

// binaryLayers orders the left-associative layers from loosest to tightest
// binding: bitwise, comparison, sum, product.
var binaryLayers = [][]binaryRule{
	{{"&", OpAnd}, {"|", OpOr}, {"^", OpXor}},
	{{"==", OpEq}, {"!=", OpNe}, {"<", OpLt}, {"<=", OpLe}, {">", OpGt}, {">=", OpGe}},
	{{"+", OpAdd}, {"-", OpSub}},
	{{"*", OpMul}, {"/", OpDiv}, {"%", OpRem}},
}

func (p *parser) parseBinaryLayer(layer int) *Expr {
	if layer == len(binaryLayers) {
		return p.parseMemoryOp()
	}
	left := p.parseBinaryLayer(layer + 1)
	for {
		op, ok := p.matchBinOp(binaryLayers[layer])
		if !ok {
			return left
		}
		right := p.parseBinaryLayer(layer + 1)
		left = &Expr{
			Kind: ExprBinary, Bin: op, X: left, Y: right, LocalID: -1,
			Span: left.Span.Cover(right.Span),
		}
	}
}

func (p *parser) matchBinOp(rules []binaryRule) (BinOp, bool) {
	c := p.cur()
	if c.Type != OP {
		return 0, false
	}
	for _, r := range rules {
		if c.Literal == r.lit {
			p.next()
			return r.op, true
		}
	}
	return 0, false
}

// memory op := atom (('?' | '!') atom ("=" expr)?)*
//
// With the trailing "=" the suffix is a poke; without it, a peek.
func (p *parser) parseMemoryOp() *Expr {
	left := p.parseAtom()
	for p.at(QUESTION) || p.at(BANG) {
		size := MemByte
		if p.at(BANG) {
			size = MemWord
		}
		p.next()
		off := p.parseAtom()
		mem := &MemoryLocation{
			Span: left.Span.Cover(off.Span), Size: size, Addr: left, Offset: off,
		}
		if p.atOp("=") {
			p.next()
			val := p.parseExpression()
			left = &Expr{
				Kind: ExprPoke, Mem: mem, X: val, LocalID: -1,
				Span: mem.Span.Cover(val.Span),
			}
		} else {
			left = &Expr{Kind: ExprPeek, Mem: mem, LocalID: -1, Span: mem.Span}
		}
	}
	return left
}

func (p *parser) parseAtom() *Expr {
	if !p.enter() {
		tok := p.next()
		return &Expr{Kind: ExprError, LocalID: -1, Span: tok.Span}
	}
	defer p.leave()

	tok := p.cur()
	switch tok.Type {
	case INT:
		p.next()
		if tok.Int > math.MaxInt32 {
			p.errorf(tok.Span, "integer literal %s is out of range for i32", tok.Literal)
		}
		return &Expr{Kind: ExprI32Const, Int: tok.Int, LocalID: -1, Span: tok.Span}

	case FLOAT:
		p.next()
		return &Expr{Kind: ExprF32Const, Float: tok.Float, LocalID: -1, Span: tok.Span}

	case IDENT:
		nxt := p.peek()
		if nxt.Type == OP && nxt.Literal == ":=" {
			p.next()
			p.next()
			val := p.parseExpression()
			return &Expr{
				Kind: ExprLocalTee, Name: tok.Literal, X: val, LocalID: -1,
				Span: tok.Span.Cover(val.Span),
			}
		}
		if nxt.Type == LPAREN {
			return p.parseCall()
		}
		p.next()
		return &Expr{Kind: ExprVariable, Name: tok.Literal, LocalID: -1, Span: tok.Span}

	case LET:
		return p.parseLet()

	case LOOP:
		return p.parseLoop()

	case BRANCH_IF:
		return p.parseBranchIf()

	case LPAREN:
		p.next()
		e := p.parseExpression()
		if !p.at(RPAREN) {
			p.errorf(p.cur().Span, "expected ')', found %s", describeToken(p.cur()))
			p.syncStatement()
			return &Expr{Kind: ExprError, LocalID: -1, Span: tok.Span.Cover(Span{p.prevEnd(), p.prevEnd()})}
		}
		p.next()
		return e

	case OP:
		if tok.Literal == "-" {
			p.next()
			operand := p.parseAtom()
			return &Expr{
				Kind: ExprUnary, Unary: OpNegate, X: operand, LocalID: -1,
				Span: tok.Span.Cover(operand.Span),
			}
		}
	}
	return p.recoverAtom()
}

// recoverAtom reports a malformed atom. A delimiter group is skipped as a
// balanced unit; any other token is left for the statement-level sync so
// the enclosing parse can resume at a ';' boundary.
func (p *parser) recoverAtom() *Expr {
	tok := p.cur()
	p.errorf(tok.Span, "expected an expression, found %s", describeToken(tok))
	if tok.Type == LBRACE {
		span := p.skipBalanced()
		return &Expr{Kind: ExprError, LocalID: -1, Span: span}
	}
	return &Expr{Kind: ExprError, LocalID: -1, Span: tok.Span}
}

// parseCall parses NAME "(" args ")". Call syntax doubles as the cast form
// when the callee is a type name, and as the value-level ternary when it
// is `select`.
func (p *parser) parseCall() *Expr {
	name := p.next()
	p.next() // '('
	var args []*Expr
	for !p.at(RPAREN) && !p.at(EOF) {
		args = append(args, p.parseExpression())
		if p.at(COMMA) {
			p.next()
			continue
		}
		break
	}
	p.expect(RPAREN)
	span := Span{name.Span.Start, p.prevEnd()}

	if t, ok := typeByName(name.Literal); ok {
		if len(args) != 1 {
			p.errorf(span, "cast to %s takes exactly one argument, got %d", t, len(args))
			return &Expr{Kind: ExprError, LocalID: -1, Span: span}
		}
		return &Expr{Kind: ExprCast, CastTo: t, X: args[0], LocalID: -1, Span: span}
	}
	if name.Literal == "select" {
		if len(args) != 3 {
			p.errorf(span, "select takes exactly three arguments, got %d", len(args))
			return &Expr{Kind: ExprError, LocalID: -1, Span: span}
		}
		return &Expr{
			Kind: ExprSelect, X: args[0], Y: args[1], Z: args[2], LocalID: -1,
			Span: span,
		}
	}
	return &Expr{Kind: ExprCall, Name: name.Literal, Args: args, LocalID: -1, Span: span}
}

// let := "let" "defer"? IDENT (":" type)? ("=" expr)?
func (p *parser) parseLet() *Expr {
	letTok := p.next()
	mode := LetStored
	if p.at(DEFER) {
		p.next()
		mode = LetInline
	}
	name, ok := p.expect(IDENT)
	if !ok {
		return &Expr{Kind: ExprError, LocalID: -1, Span: Span{letTok.Span.Start, p.prevEnd()}}
	}
	e := &Expr{Kind: ExprLet, Name: name.Literal, Mode: mode, LetType: TypeVoid, LocalID: -1}
	if p.at(COLON) {
		p.next()
		e.LetType, _ = p.parseType()
	}
	if p.atOp("=") {
		p.next()
		e.X = p.parseExpression()
	}
	e.Span = Span{letTok.Span.Start, p.prevEnd()}
	return e
}

// loop := "loop" IDENT "{" block "}"
func (p *parser) parseLoop() *Expr {
	loopTok := p.next()
	label, ok := p.expect(IDENT)
	if !ok {
		return &Expr{Kind: ExprError, LocalID: -1, Span: Span{loopTok.Span.Start, p.prevEnd()}}
	}
	lb, ok := p.expect(LBRACE)
	if !ok {
		return &Expr{Kind: ExprError, LocalID: -1, Span: Span{loopTok.Span.Start, p.prevEnd()}}
	}
	body := p.parseBlock()
	rb, _ := p.expect(RBRACE)
	body.Span = lb.Span.Cover(rb.Span)
	return &Expr{
		Kind: ExprLoop, Name: label.Literal, X: body, LocalID: -1,
		Span: Span{loopTok.Span.Start, p.prevEnd()},
	}
}

// branch_if := "branch_if" expr ":" IDENT
func (p *parser) parseBranchIf() *Expr {
	brTok := p.next()
	cond := p.parseExpression()
	if _, ok := p.expect(COLON); !ok {
		return &Expr{Kind: ExprError, LocalID: -1, Span: Span{brTok.Span.Start, p.prevEnd()}}
	}
	label, ok := p.expect(IDENT)
	if !ok {
		return &Expr{Kind: ExprError, LocalID: -1, Span: Span{brTok.Span.Start, p.prevEnd()}}
	}
	return &Expr{
		Kind: ExprBranchIf, Name: label.Literal, X: cond, LocalID: -1,
		Span: Span{brTok.Span.Start, p.prevEnd()},
	}
}
