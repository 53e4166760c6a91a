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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// recorder logs the visit order and optionally prunes functions.
type recorder struct {
	events   []string
	skipFunc string
}

func (r *recorder) VisitFile(f *File) { r.events = append(r.events, "file"); WalkFile(r, f) }
func (r *recorder) VisitItem(it Item) { WalkItem(r, it) }
func (r *recorder) VisitItemFn(fn *ItemFn) {
	r.events = append(r.events, "fn:"+fn.Name)
	if fn.Name == r.skipFunc {
		return
	}
	WalkItemFn(r, fn)
}
func (r *recorder) VisitItemMod(m *ItemMod) { r.events = append(r.events, "mod:"+m.Name); WalkItemMod(r, m) }
func (r *recorder) VisitItemImpl(im *ItemImpl) {
	r.events = append(r.events, "impl")
	WalkItemImpl(r, im)
}
func (r *recorder) VisitItemTrait(tr *ItemTrait) {
	r.events = append(r.events, "trait:"+tr.Name)
	WalkItemTrait(r, tr)
}
func (r *recorder) VisitItemConst(c *ItemConst) {
	r.events = append(r.events, "const:"+c.Name)
	WalkItemConst(r, c)
}
func (r *recorder) VisitImplMethod(m *ImplMethod) {
	r.events = append(r.events, "method:"+m.Name)
	WalkImplMethod(r, m)
}
func (r *recorder) VisitTraitMethod(m *TraitMethod) {
	r.events = append(r.events, "trait-method:"+m.Name)
	WalkTraitMethod(r, m)
}
func (r *recorder) VisitBlock(b *Block) { WalkBlock(r, b) }
func (r *recorder) VisitStmt(s Stmt)    { WalkStmt(r, s) }
func (r *recorder) VisitExpr(e Expr) {
	switch n := e.(type) {
	case *ExprPath:
		r.events = append(r.events, "path:"+n.Path)
	case *ExprLit:
		r.events = append(r.events, "lit:"+n.Value)
	case *ExprCompound:
		r.events = append(r.events, n.Kind)
	}
	WalkExpr(r, e)
}
func (r *recorder) VisitExprUnary(u *ExprUnary) {
	r.events = append(r.events, "unary:"+string(u.Op))
	WalkExprUnary(r, u)
}
func (r *recorder) VisitExprUnsafe(u *ExprUnsafe) {
	r.events = append(r.events, "unsafe")
	WalkExprUnsafe(r, u)
}

func sampleFile() *File {
	call := &ExprCompound{Kind: "call_expression", Children: []Node{
		&ExprPath{Path: "f"},
		&ExprPath{Path: "x"},
	}}
	deref := &ExprUnary{Op: UnOpDeref, X: &ExprPath{Path: "p"}}
	ifExpr := &ExprCompound{Kind: "if_expression", Children: []Node{
		&ExprPath{Path: "c"},
		&Block{Stmts: []Stmt{&StmtExpr{X: &ExprLit{Value: "1"}}}},
		&Block{Stmts: []Stmt{&StmtExpr{X: &ExprUnsafe{Block: &Block{Stmts: []Stmt{&StmtExpr{X: deref}}}}}}},
	}}

	return &File{Items: []Item{
		&ItemFn{Name: "main", Body: &Block{Stmts: []Stmt{
			&StmtLocal{Init: call},
			&StmtExpr{X: ifExpr},
			&StmtItem{Item: &ItemFn{Name: "nested", Body: &Block{}}},
		}}},
		&ItemMod{Name: "m", Inline: true, Items: []Item{
			&ItemConst{Name: "N", Value: &ExprLit{Value: "4"}},
			&ItemOther{Kind: "struct_item"},
		}},
		&ItemTrait{Name: "T", Items: []Item{
			&TraitMethod{Name: "required"},
			&TraitMethod{Name: "provided", Body: &Block{Stmts: []Stmt{&StmtExpr{X: &ExprLit{Value: "0"}}}}},
		}},
		&ItemImpl{Trait: "T", SelfType: "S", Items: []Item{
			&ImplMethod{Name: "required", Body: &Block{}},
		}},
	}}
}

func TestWalk_PreOrderSourceOrder(t *testing.T) {
	r := &recorder{}
	Walk(r, sampleFile())

	assert.Equal(t, []string{
		"file",
		"fn:main",
		"call_expression", "path:f", "path:x",
		"if_expression", "path:c", "lit:1", "unsafe", "unary:*", "path:p",
		"fn:nested",
		"mod:m", "const:N", "lit:4",
		"trait:T", "trait-method:required", "trait-method:provided", "lit:0",
		"impl", "method:required",
	}, r.events)
}

func TestWalk_SkippingPrunesSubtree(t *testing.T) {
	r := &recorder{skipFunc: "main"}
	Walk(r, sampleFile())

	assert.NotContains(t, r.events, "call_expression")
	assert.NotContains(t, r.events, "fn:nested")
	assert.Contains(t, r.events, "mod:m")
}

func TestWalk_NilFile(t *testing.T) {
	r := &recorder{}
	Walk(r, nil)
	assert.Empty(t, r.events)
}

func TestWalkStmt_LetElse(t *testing.T) {
	r := &recorder{}
	r.VisitStmt(&StmtLocal{
		Init: &ExprPath{Path: "opt"},
		Else: &Block{Stmts: []Stmt{&StmtExpr{X: &ExprCompound{Kind: "return_expression"}}}},
	})
	assert.Equal(t, []string{"path:opt", "return_expression"}, r.events)
}

func TestWalkStmt_LetNestedBeforeInit(t *testing.T) {
	r := &recorder{}
	r.VisitStmt(&StmtLocal{
		Nested: []Node{&ExprPath{Path: "b"}, &ExprCompound{Kind: "binary_expression"}},
		Init:   &ExprPath{Path: "x"},
	})
	assert.Equal(t, []string{"path:b", "binary_expression", "path:x"}, r.events)
}

func TestWalkItem_OtherVisitsChildren(t *testing.T) {
	r := &recorder{}
	r.VisitItem(&ItemOther{
		Kind: "enum_item",
		Children: []Node{
			&ExprPath{Path: "A"},
			&ExprCompound{Kind: "binary_expression", Children: []Node{
				&ExprLit{Value: "1"},
				&ExprLit{Value: "2"},
			}},
			&Block{Stmts: []Stmt{&StmtExpr{X: &ExprCompound{Kind: "call_expression"}}}},
		},
	})
	assert.Equal(t, []string{"path:A", "binary_expression", "lit:1", "lit:2", "call_expression"}, r.events)
}

func TestBlockLen(t *testing.T) {
	var b *Block
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 2, (&Block{Stmts: []Stmt{&StmtExpr{}, &StmtExpr{}}}).Len())
}
