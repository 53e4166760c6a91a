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

// Visitor receives one call per node during a pre-order traversal.
//
// Description:
//
//	Each method handles one syntactic category. An implementation that does
//	not need to act on a category delegates to the matching Walk* helper,
//	which visits the node's children through the same visitor. Skipping the
//	Walk* call prunes the subtree.
//
// Thread Safety:
//
//	Traversal is synchronous. Walk* helpers hold no state of their own.
type Visitor interface {
	VisitFile(f *File)
	VisitItem(it Item)
	VisitItemFn(fn *ItemFn)
	VisitItemMod(m *ItemMod)
	VisitItemImpl(im *ItemImpl)
	VisitItemTrait(tr *ItemTrait)
	VisitItemConst(c *ItemConst)
	VisitImplMethod(m *ImplMethod)
	VisitTraitMethod(m *TraitMethod)
	VisitBlock(b *Block)
	VisitStmt(s Stmt)
	VisitExpr(e Expr)
	VisitExprUnary(u *ExprUnary)
	VisitExprUnsafe(u *ExprUnsafe)
}

// Walk visits f with v. It is shorthand for v.VisitFile(f).
func Walk(v Visitor, f *File) {
	if f == nil {
		return
	}
	v.VisitFile(f)
}

// WalkFile visits every top-level item.
func WalkFile(v Visitor, f *File) {
	for _, it := range f.Items {
		v.VisitItem(it)
	}
}

// WalkItem dispatches it to the visitor method for its concrete type.
// ItemOther has no visitor method; its nested expressions are visited
// directly.
func WalkItem(v Visitor, it Item) {
	switch n := it.(type) {
	case *ItemFn:
		v.VisitItemFn(n)
	case *ItemMod:
		v.VisitItemMod(n)
	case *ItemImpl:
		v.VisitItemImpl(n)
	case *ItemTrait:
		v.VisitItemTrait(n)
	case *ItemConst:
		v.VisitItemConst(n)
	case *ImplMethod:
		v.VisitImplMethod(n)
	case *TraitMethod:
		v.VisitTraitMethod(n)
	case *ItemOther:
		walkNodes(v, n.Children)
	}
}

// WalkItemFn visits the function body.
func WalkItemFn(v Visitor, fn *ItemFn) {
	if fn.Body != nil {
		v.VisitBlock(fn.Body)
	}
}

// WalkItemMod visits the module's inline items.
func WalkItemMod(v Visitor, m *ItemMod) {
	for _, it := range m.Items {
		v.VisitItem(it)
	}
}

// WalkItemImpl visits the impl members.
func WalkItemImpl(v Visitor, im *ItemImpl) {
	for _, it := range im.Items {
		v.VisitItem(it)
	}
}

// WalkItemTrait visits the trait members.
func WalkItemTrait(v Visitor, tr *ItemTrait) {
	for _, it := range tr.Items {
		v.VisitItem(it)
	}
}

// WalkItemConst visits the initializer.
func WalkItemConst(v Visitor, c *ItemConst) {
	if c.Value != nil {
		v.VisitExpr(c.Value)
	}
}

// WalkImplMethod visits the method body.
func WalkImplMethod(v Visitor, m *ImplMethod) {
	if m.Body != nil {
		v.VisitBlock(m.Body)
	}
}

// WalkTraitMethod visits the default body, if any.
func WalkTraitMethod(v Visitor, m *TraitMethod) {
	if m.Body != nil {
		v.VisitBlock(m.Body)
	}
}

// WalkBlock visits every statement in order.
func WalkBlock(v Visitor, b *Block) {
	for _, s := range b.Stmts {
		v.VisitStmt(s)
	}
}

// WalkStmt visits the statement's expression, else block or item.
func WalkStmt(v Visitor, s Stmt) {
	switch n := s.(type) {
	case *StmtLocal:
		walkNodes(v, n.Nested)
		if n.Init != nil {
			v.VisitExpr(n.Init)
		}
		if n.Else != nil {
			v.VisitBlock(n.Else)
		}
	case *StmtExpr:
		if n.X != nil {
			v.VisitExpr(n.X)
		}
	case *StmtItem:
		if n.Item != nil {
			v.VisitItem(n.Item)
		}
	}
}

// WalkExpr dispatches unary and unsafe expressions to their visitor
// methods and recurses into compound children. Paths and literals are
// leaves.
func WalkExpr(v Visitor, e Expr) {
	switch n := e.(type) {
	case *ExprUnary:
		v.VisitExprUnary(n)
	case *ExprUnsafe:
		v.VisitExprUnsafe(n)
	case *ExprCompound:
		walkNodes(v, n.Children)
	}
}

// walkNodes visits a mixed list of expressions and blocks.
func walkNodes(v Visitor, nodes []Node) {
	for _, child := range nodes {
		switch c := child.(type) {
		case *Block:
			v.VisitBlock(c)
		case Expr:
			v.VisitExpr(c)
		}
	}
}

// WalkExprUnary visits the operand.
func WalkExprUnary(v Visitor, u *ExprUnary) {
	if u.X != nil {
		v.VisitExpr(u.X)
	}
}

// WalkExprUnsafe visits the unsafe block.
func WalkExprUnsafe(v Visitor, u *ExprUnsafe) {
	if u.Block != nil {
		v.VisitBlock(u.Block)
	}
}
