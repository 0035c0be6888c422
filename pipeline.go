package main

// AnalyzeSource runs the full front end over one source file: lexing,
// parsing, then type checking. The checker only ever runs on a tree from a
// clean parse; after lex or parse errors the partial tree is returned for
// inspection but left unchecked.
func AnalyzeSource(src []byte, intr IntrinsicTable) (*Script, *Diagnostics, bool) {
	diags := &Diagnostics{}
	tokens := Lex(src, diags)
	script := ParseScript(tokens, diags)
	if diags.HasErrors() {
		return script, diags, false
	}
	checker := NewChecker(intr, diags)
	ok := checker.CheckScript(script)
	return script, diags, ok
}

// CheckSnippet lexes, parses and checks a statement sequence as if it were
// the body of a function with no parameters and no return type, and reports
// the type the sequence yields. This is what the interactive mode evaluates
// line by line.
func CheckSnippet(src []byte, intr IntrinsicTable) (Type, *Diagnostics) {
	diags := &Diagnostics{}
	tokens := Lex(src, diags)
	p := &parser{tokens: tokens, diags: diags}
	block := p.parseBlock()
	if !p.at(EOF) {
		p.errorf(p.cur().Span, "expected end of input, found %s", describeToken(p.cur()))
	}
	if diags.HasErrors() {
		return TypeVoid, diags
	}
	c := NewChecker(intr, diags)
	if err := c.CheckExpression(block); err != nil {
		return TypeVoid, diags
	}
	return block.Type, diags
}
