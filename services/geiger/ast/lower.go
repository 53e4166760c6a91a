// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/geiger/services/geiger/syntax"
)

// itemScope says which container an item was declared in. function_item
// lowers to ItemFn, ImplMethod or TraitMethod depending on it.
type itemScope int

const (
	scopeModule itemScope = iota
	scopeImpl
	scopeTrait
)

// Tree-sitter node types that are bare name references.
var pathKinds = map[string]bool{
	"identifier":        true,
	"scoped_identifier": true,
	"generic_function":  true,
	"self":              true,
	"super":             true,
	"crate":             true,
	"metavariable":      true,
}

// Tree-sitter node types that are literal constants.
var literalKinds = map[string]bool{
	"string_literal":     true,
	"raw_string_literal": true,
	"char_literal":       true,
	"boolean_literal":    true,
	"integer_literal":    true,
	"float_literal":      true,
	"negative_literal":   true,
}

// Tree-sitter node types lowered to ExprCompound. if_let_expression and
// while_let_expression only exist in older grammar releases.
var compoundKinds = map[string]bool{
	"array_expression":         true,
	"assignment_expression":    true,
	"async_block":              true,
	"await_expression":         true,
	"binary_expression":        true,
	"block":                    true,
	"break_expression":         true,
	"call_expression":          true,
	"closure_expression":       true,
	"compound_assignment_expr": true,
	"const_block":              true,
	"continue_expression":      true,
	"field_expression":         true,
	"for_expression":           true,
	"if_expression":            true,
	"if_let_expression":        true,
	"index_expression":         true,
	"loop_expression":          true,
	"macro_invocation":         true,
	"match_expression":         true,
	"parenthesized_expression": true,
	"range_expression":         true,
	"reference_expression":     true,
	"return_expression":        true,
	"struct_expression":        true,
	"try_block":                true,
	"try_expression":           true,
	"tuple_expression":         true,
	"type_cast_expression":     true,
	"unit_expression":          true,
	"while_expression":         true,
	"while_let_expression":     true,
	"yield_expression":         true,
}

// Parents whose block child is a body rather than a block expression:
// the then branch of if, loop bodies, and the blocks of unsafe, async,
// const and try blocks. A block anywhere else (else branch, match arm,
// closure body, call argument) is itself an expression.
var blockBodyParents = map[string]bool{
	"async_block":          true,
	"const_block":          true,
	"for_expression":       true,
	"gen_block":            true,
	"if_expression":        true,
	"if_let_expression":    true,
	"loop_expression":      true,
	"try_block":            true,
	"unsafe_block":         true,
	"while_expression":     true,
	"while_let_expression": true,
}

// Declarations lowered to ItemOther whose nested expressions are kept.
var declWithExprs = map[string]bool{
	"enum_item":   true,
	"struct_item": true,
	"type_item":   true,
	"union_item":  true,
}

// Tree-sitter node types that are items when they appear in a block.
var itemKinds = map[string]bool{
	"associated_type":          true,
	"const_item":               true,
	"enum_item":                true,
	"extern_crate_declaration": true,
	"foreign_mod_item":         true,
	"function_item":            true,
	"function_signature_item":  true,
	"impl_item":                true,
	"macro_definition":         true,
	"mod_item":                 true,
	"static_item":              true,
	"struct_item":              true,
	"trait_item":               true,
	"type_item":                true,
	"union_item":               true,
	"use_declaration":          true,
}

func isComment(n *sitter.Node) bool {
	t := n.Type()
	return t == "line_comment" || t == "block_comment"
}

func isExprKind(t string) bool {
	return pathKinds[t] || literalKinds[t] || compoundKinds[t] || t == "unary_expression" || t == "unsafe_block"
}

// lowerer converts one tree-sitter tree into a syntax.File.
type lowerer struct {
	src  []byte
	path string
}

func newLowerer(src []byte, path string) *lowerer {
	return &lowerer{src: src, path: path}
}

func (l *lowerer) text(n *sitter.Node) string {
	return n.Content(l.src)
}

func (l *lowerer) file(root *sitter.Node) *syntax.File {
	items, inner := l.items(root, scopeModule)
	return &syntax.File{
		Path:  l.path,
		Attrs: inner,
		Items: items,
	}
}

// items lowers the named children of a source_file or declaration_list.
// Outer attributes attach to the item that follows them; inner attributes
// are returned separately for the enclosing file or module.
func (l *lowerer) items(container *sitter.Node, scope itemScope) (items []syntax.Item, inner []syntax.Attribute) {
	var pending []syntax.Attribute
	for i := 0; i < int(container.NamedChildCount()); i++ {
		child := container.NamedChild(i)
		switch {
		case isComment(child):
			continue
		case child.Type() == "attribute_item":
			pending = append(pending, l.attribute(child, false))
			continue
		case child.Type() == "inner_attribute_item":
			inner = append(inner, l.attribute(child, true))
			continue
		}
		items = append(items, l.item(child, pending, scope))
		pending = nil
	}
	return items, inner
}

// item lowers one declaration. Unclassified declarations become ItemOther.
func (l *lowerer) item(n *sitter.Node, attrs []syntax.Attribute, scope itemScope) syntax.Item {
	switch n.Type() {
	case "function_item", "function_signature_item":
		return l.function(n, attrs, scope)

	case "mod_item":
		m := &syntax.ItemMod{Name: l.fieldText(n, "name"), Attrs: attrs}
		if body := n.ChildByFieldName("body"); body != nil {
			items, inner := l.items(body, scopeModule)
			m.Items = items
			m.Attrs = append(m.Attrs, inner...)
			m.Inline = true
		}
		return m

	case "impl_item":
		im := &syntax.ItemImpl{
			Attrs:    attrs,
			Unsafe:   hasKeyword(n, "unsafe"),
			Trait:    l.fieldText(n, "trait"),
			SelfType: l.fieldText(n, "type"),
		}
		if body := n.ChildByFieldName("body"); body != nil {
			im.Items, _ = l.items(body, scopeImpl)
		}
		return im

	case "trait_item":
		tr := &syntax.ItemTrait{
			Name:   l.fieldText(n, "name"),
			Attrs:  attrs,
			Unsafe: hasKeyword(n, "unsafe"),
		}
		if body := n.ChildByFieldName("body"); body != nil {
			tr.Items, _ = l.items(body, scopeTrait)
		}
		return tr

	case "const_item", "static_item":
		return &syntax.ItemConst{
			Name:   l.fieldText(n, "name"),
			Attrs:  attrs,
			Static: n.Type() == "static_item",
			Value:  l.expr(n.ChildByFieldName("value")),
		}

	default:
		other := &syntax.ItemOther{Kind: n.Type(), Attrs: attrs}
		if declWithExprs[n.Type()] {
			other.Children = l.children(n, nil)
		}
		return other
	}
}

func (l *lowerer) function(n *sitter.Node, attrs []syntax.Attribute, scope itemScope) syntax.Item {
	name := l.fieldText(n, "name")
	isUnsafe := false
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c.Type() == "function_modifiers" && hasKeyword(c, "unsafe") {
			isUnsafe = true
			break
		}
	}

	var body *syntax.Block
	if b := n.ChildByFieldName("body"); b != nil {
		body = l.block(b)
	}
	text := l.renderWithAttrs(n, attrs)

	switch scope {
	case scopeImpl:
		return &syntax.ImplMethod{Name: name, Attrs: attrs, Unsafe: isUnsafe, Body: body, Text: text}
	case scopeTrait:
		return &syntax.TraitMethod{Name: name, Attrs: attrs, Unsafe: isUnsafe, Body: body, Text: text}
	default:
		return &syntax.ItemFn{Name: name, Attrs: attrs, Unsafe: isUnsafe, Body: body, Text: text}
	}
}

// block lowers a block node's statement list.
func (l *lowerer) block(n *sitter.Node) *syntax.Block {
	b := &syntax.Block{}
	var pending []syntax.Attribute
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		t := child.Type()
		switch {
		case isComment(child), t == "empty_statement", t == "inner_attribute_item":
			continue
		case t == "attribute_item":
			pending = append(pending, l.attribute(child, false))
			continue
		case t == "let_declaration":
			local := &syntax.StmtLocal{Init: l.expr(child.ChildByFieldName("value"))}
			for _, field := range []string{"pattern", "type"} {
				if c := child.ChildByFieldName(field); c != nil {
					local.Nested = l.children(c, local.Nested)
				}
			}
			if alt := child.ChildByFieldName("alternative"); alt != nil && alt.Type() == "block" {
				local.Else = l.block(alt)
			}
			b.Stmts = append(b.Stmts, local)
		case t == "expression_statement":
			b.Stmts = append(b.Stmts, &syntax.StmtExpr{X: l.expr(firstNamed(child))})
		case itemKinds[t]:
			b.Stmts = append(b.Stmts, &syntax.StmtItem{Item: l.item(child, pending, scopeModule)})
		case isExprKind(t):
			b.Stmts = append(b.Stmts, &syntax.StmtExpr{X: l.expr(child)})
		default:
			continue
		}
		pending = nil
	}
	return b
}

// expr lowers an expression node. It returns nil for nodes that are not
// expressions.
func (l *lowerer) expr(n *sitter.Node) syntax.Expr {
	if n == nil {
		return nil
	}
	t := n.Type()
	switch {
	case pathKinds[t]:
		return &syntax.ExprPath{Path: l.text(n)}
	case literalKinds[t]:
		return &syntax.ExprLit{Value: l.text(n)}
	case t == "unary_expression":
		return &syntax.ExprUnary{Op: unaryOp(n), X: l.expr(firstNamed(n))}
	case t == "unsafe_block":
		u := &syntax.ExprUnsafe{Text: syntax.Render(l.text(n)), Block: &syntax.Block{}}
		if b := firstNamedOfType(n, "block"); b != nil {
			u.Block = l.block(b)
		}
		return u
	case t == "macro_invocation":
		// Token trees are not parsed.
		return &syntax.ExprCompound{Kind: t}
	case t == "block":
		return &syntax.ExprCompound{Kind: t, Children: []syntax.Node{l.block(n)}}
	case t == "call_expression":
		if recv, ok := methodReceiver(n); ok {
			return l.methodCall(n, recv)
		}
		return &syntax.ExprCompound{Kind: t, Children: l.children(n, nil)}
	case compoundKinds[t]:
		return &syntax.ExprCompound{Kind: t, Children: l.children(n, nil)}
	default:
		return nil
	}
}

// methodReceiver reports whether call is a method call recv.m(args) and
// returns the receiver node. Turbofish calls recv.m::<T>(args) wrap the
// field expression in a generic_function.
func methodReceiver(call *sitter.Node) (*sitter.Node, bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return nil, false
	}
	if fn.Type() == "generic_function" {
		fn = fn.ChildByFieldName("function")
		if fn == nil {
			return nil, false
		}
	}
	if fn.Type() != "field_expression" {
		return nil, false
	}
	recv := fn.ChildByFieldName("value")
	return recv, recv != nil
}

// methodCall lowers recv.m(args) as one expression whose children are the
// receiver followed by the arguments.
func (l *lowerer) methodCall(call, recv *sitter.Node) syntax.Expr {
	m := &syntax.ExprCompound{Kind: "method_call_expression"}
	m.Children = l.child(call, recv, m.Children)
	if args := call.ChildByFieldName("arguments"); args != nil {
		m.Children = l.children(args, m.Children)
	}
	return m
}

// children collects the expressions and blocks nested under n in source
// order. Nodes that are neither (argument lists, match arms, else clauses,
// patterns, types) are searched recursively.
func (l *lowerer) children(n *sitter.Node, out []syntax.Node) []syntax.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = l.child(n, n.NamedChild(i), out)
	}
	return out
}

// child lowers c, a named child of parent, into out.
func (l *lowerer) child(parent, c *sitter.Node, out []syntax.Node) []syntax.Node {
	t := c.Type()
	switch {
	case isComment(c), t == "token_tree", t == "token_tree_pattern", t == "attribute_item":
		return out
	case t == "block" && blockBodyParents[parent.Type()]:
		return append(out, l.block(c))
	case isExprKind(t):
		if e := l.expr(c); e != nil {
			out = append(out, e)
		}
		return out
	default:
		return l.children(c, out)
	}
}

// attribute lowers an attribute_item or inner_attribute_item. The first
// path-like child is the attribute path; every identifier after it is an
// argument. Both the attribute and the older meta_item grammars are handled.
func (l *lowerer) attribute(n *sitter.Node, inner bool) syntax.Attribute {
	a := syntax.Attribute{Inner: inner, Text: syntax.Render(l.text(n))}

	body := firstNamedOfType(n, "attribute", "meta_item")
	if body == nil {
		body = n
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		if i == 0 && (c.Type() == "identifier" || c.Type() == "scoped_identifier") {
			a.Path = l.text(c)
			continue
		}
		a.Args = l.identifiers(c, a.Args)
	}
	return a
}

func (l *lowerer) identifiers(n *sitter.Node, out []string) []string {
	if n.Type() == "identifier" {
		return append(out, l.text(n))
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = l.identifiers(n.NamedChild(i), out)
	}
	return out
}

func (l *lowerer) fieldText(n *sitter.Node, field string) string {
	if c := n.ChildByFieldName(field); c != nil {
		return l.text(c)
	}
	return ""
}

// renderWithAttrs renders the node preceded by its outer attributes.
func (l *lowerer) renderWithAttrs(n *sitter.Node, attrs []syntax.Attribute) string {
	if len(attrs) == 0 {
		return syntax.Render(l.text(n))
	}
	parts := make([]string, 0, len(attrs)+1)
	for _, a := range attrs {
		parts = append(parts, a.Text)
	}
	parts = append(parts, syntax.Render(l.text(n)))
	return strings.Join(parts, " ")
}

// syntaxErrors describes every ERROR and MISSING node under n.
func (l *lowerer) syntaxErrors(n *sitter.Node) []string {
	var out []string
	var walk func(*sitter.Node)
	walk = func(c *sitter.Node) {
		switch {
		case c.IsMissing():
			p := c.StartPoint()
			out = append(out, NewParseError(l.path, int(p.Row)+1, int(p.Column)+1, "missing "+c.Type()).Error())
			return
		case c.Type() == "ERROR":
			p := c.StartPoint()
			out = append(out, NewParseError(l.path, int(p.Row)+1, int(p.Column)+1, "syntax error").Error())
			return
		}
		for i := 0; i < int(c.ChildCount()); i++ {
			walk(c.Child(i))
		}
	}
	walk(n)
	return out
}

// hasKeyword reports whether n has a direct anonymous child token kw.
func hasKeyword(n *sitter.Node, kw string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() && c.Type() == kw {
			return true
		}
	}
	return false
}

func unaryOp(n *sitter.Node) syntax.UnOp {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.IsNamed() {
			continue
		}
		switch c.Type() {
		case "*":
			return syntax.UnOpDeref
		case "!":
			return syntax.UnOpNot
		case "-":
			return syntax.UnOpNeg
		}
	}
	return ""
}

// firstNamed returns the first named child that is not a comment.
func firstNamed(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); !isComment(c) {
			return c
		}
	}
	return nil
}

func firstNamedOfType(n *sitter.Node, types ...string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		for _, t := range types {
			if c.Type() == t {
				return c
			}
		}
	}
	return nil
}
