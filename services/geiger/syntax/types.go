// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package syntax

// Node is any element of the syntax tree.
type Node interface {
	node()
}

// Item is a declaration that can appear at file, module, impl, trait or
// block scope.
type Item interface {
	Node
	item()
}

// Stmt is one entry of a block's statement list.
type Stmt interface {
	Node
	stmt()
}

// Expr is an expression.
type Expr interface {
	Node
	expr()
}

// Attribute is an outer (#[...]) or inner (#![...]) attribute.
type Attribute struct {
	// Path is the attribute path as written, e.g. "test", "cfg",
	// "tokio::test", "no_mangle".
	Path string

	// Args holds every identifier found in the attribute arguments, in
	// source order. For #[cfg(all(test, unix))] it is [all test unix].
	Args []string

	// Inner is true for #![...] attributes.
	Inner bool

	// Text is the rendered attribute source.
	Text string
}

// File is one parsed Rust source file.
type File struct {
	// Path is the file path the tree was parsed from.
	Path string

	// Attrs holds the file's inner attributes (#![...]).
	Attrs []Attribute

	// Items holds the top-level items in source order.
	Items []Item

	// Errors holds non-fatal syntax errors reported by the parser.
	Errors []string
}

// ItemFn is a free-standing function, at file, module or block scope.
type ItemFn struct {
	Name  string
	Attrs []Attribute

	// Unsafe is true when the signature carries the unsafe keyword.
	Unsafe bool

	// Body is nil for bodiless declarations.
	Body *Block

	// Text is the rendered source, attributes included.
	Text string
}

// ItemMod is a module declaration. Items is empty for out-of-line modules
// (mod foo;).
type ItemMod struct {
	Name   string
	Attrs  []Attribute
	Items  []Item
	Inline bool
}

// ItemImpl is an impl block, inherent or for a trait.
type ItemImpl struct {
	Attrs []Attribute

	// Unsafe is true for unsafe impl blocks.
	Unsafe bool

	// Trait is the implemented trait, empty for inherent impls.
	Trait string

	// SelfType is the implementing type as written.
	SelfType string

	// Items holds methods, associated consts and other impl members.
	Items []Item
}

// ItemTrait is a trait declaration.
type ItemTrait struct {
	Name   string
	Attrs  []Attribute
	Unsafe bool
	Items  []Item
}

// ItemConst is a const or static item, free-standing or associated.
// Value is nil when the item has no initializer.
type ItemConst struct {
	Name   string
	Attrs  []Attribute
	Static bool
	Value  Expr
}

// ItemOther is an item the scanner does not classify (struct, enum, use,
// type alias, extern block, item-level macro, ...).
//
// Children holds expressions nested in the declaration, such as enum
// discriminants and array lengths in field types. Each child is either an
// Expr or a *Block.
type ItemOther struct {
	Kind     string
	Attrs    []Attribute
	Children []Node
}

// ImplMethod is a function declared inside an impl block.
type ImplMethod struct {
	Name   string
	Attrs  []Attribute
	Unsafe bool
	Body   *Block
	Text   string
}

// TraitMethod is a function declared inside a trait. Body is nil when the
// trait provides no default implementation.
type TraitMethod struct {
	Name   string
	Attrs  []Attribute
	Unsafe bool
	Body   *Block
	Text   string
}

// Block is a braced statement list. The trailing expression, if any, is
// the last statement.
type Block struct {
	Stmts []Stmt
}

// StmtLocal is a let binding. Init and Else may be nil.
//
// Nested holds expressions found in the pattern and type annotation, e.g.
// the length of let b: [u8; N * 2]. Each entry is an Expr or a *Block.
type StmtLocal struct {
	Nested []Node
	Init   Expr
	Else   *Block
}

// StmtExpr is an expression statement, with or without semicolon.
type StmtExpr struct {
	X Expr
}

// StmtItem is an item declared inside a block.
type StmtItem struct {
	Item Item
}

// ExprPath is a bare name or path reference: x, self, std::ptr::null.
type ExprPath struct {
	Path string
}

// ExprLit is a literal constant.
type ExprLit struct {
	Value string
}

// UnOp is a prefix unary operator.
type UnOp string

// Unary operators.
const (
	UnOpDeref UnOp = "*"
	UnOpNot   UnOp = "!"
	UnOpNeg   UnOp = "-"
)

// ExprUnary is a prefix unary expression.
type ExprUnary struct {
	Op UnOp
	X  Expr
}

// ExprUnsafe is an unsafe { ... } block expression.
type ExprUnsafe struct {
	Block *Block
	Text  string
}

// ExprCompound is every other expression: calls, method calls, binary
// operators, field access, control flow, closures, macros and so on.
//
// Children holds the nested expressions and blocks in source order. Each
// child is either an Expr or a *Block.
type ExprCompound struct {
	Kind     string
	Children []Node
}

func (*File) node()         {}
func (*ItemFn) node()       {}
func (*ItemMod) node()      {}
func (*ItemImpl) node()     {}
func (*ItemTrait) node()    {}
func (*ItemConst) node()    {}
func (*ItemOther) node()    {}
func (*ImplMethod) node()   {}
func (*TraitMethod) node()  {}
func (*Block) node()        {}
func (*StmtLocal) node()    {}
func (*StmtExpr) node()     {}
func (*StmtItem) node()     {}
func (*ExprPath) node()     {}
func (*ExprLit) node()      {}
func (*ExprUnary) node()    {}
func (*ExprUnsafe) node()   {}
func (*ExprCompound) node() {}

func (*ItemFn) item()      {}
func (*ItemMod) item()     {}
func (*ItemImpl) item()    {}
func (*ItemTrait) item()   {}
func (*ItemConst) item()   {}
func (*ItemOther) item()   {}
func (*ImplMethod) item()  {}
func (*TraitMethod) item() {}

func (*StmtLocal) stmt() {}
func (*StmtExpr) stmt()  {}
func (*StmtItem) stmt()  {}

func (*ExprPath) expr()     {}
func (*ExprLit) expr()      {}
func (*ExprUnary) expr()    {}
func (*ExprUnsafe) expr()   {}
func (*ExprCompound) expr() {}

// Len returns the number of direct statements, 0 for a nil block.
func (b *Block) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Stmts)
}
