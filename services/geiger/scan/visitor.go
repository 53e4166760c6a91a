// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scan

import (
	"io"
	"os"

	"github.com/AleutianAI/geiger/services/geiger/ledger"
	"github.com/AleutianAI/geiger/services/geiger/syntax"
)

// TestPolicy controls whether test functions and test modules are scanned.
type TestPolicy int

const (
	// IncludeTests counts constructs inside tests like any other code.
	IncludeTests TestPolicy = iota
	// ExcludeTests skips test functions and #[cfg(test)] modules entirely.
	ExcludeTests
)

// String returns "include" or "exclude".
func (p TestPolicy) String() string {
	if p == ExcludeTests {
		return "exclude"
	}
	return "include"
}

// TestPolicyFor maps an include-tests flag to a policy.
func TestPolicyFor(includeTests bool) TestPolicy {
	if includeTests {
		return IncludeTests
	}
	return ExcludeTests
}

// VisitorOption configures a RegionVisitor.
type VisitorOption func(*RegionVisitor)

// WithOutput sets where diagnostic lines are written. Default: os.Stdout.
func WithOutput(w io.Writer) VisitorOption {
	return func(v *RegionVisitor) {
		if w != nil {
			v.out = w
		}
	}
}

// WithStatsMode selects slot or stack region statistics. Default: StatsSlot.
func WithStatsMode(mode StatsMode) VisitorOption {
	return func(v *RegionVisitor) {
		v.stats = newRegionTracker(mode)
	}
}

// RegionVisitor counts safe and unsafe constructs of one file and reports
// each trust region as it closes.
//
// Description:
//
//	RegionVisitor walks a syntax tree once, pre-order. It keeps a depth
//	counter of open trust regions; every countable node is attributed to
//	the ledger's unsafe bucket when the depth is positive and to the safe
//	bucket otherwise. Functions and methods are counted with the depth
//	before their own region opens, so a declaration is never inside itself.
//	Impls and traits are classified by their own unsafe marker.
//
//	Bare paths and literals are not counted: f(x) is one expression, not
//	three.
//
//	When a region closes, one diagnostic line is written:
//
//	  <text> ~ <shape> ~ <expr delta> ~ <stmt count>[ ~ Dereference Operation]
//
// Limitations:
//
//   - A function marked only by #[no_mangle] or #[export_name] opens a
//     region that is never closed. Depth() stays positive afterwards and
//     all later code in the file counts as unsafe.
//   - In StatsSlot mode nested regions share one statistics record.
//   - Macro bodies are not inspected.
//
// Thread Safety:
//
//	Not safe for concurrent use. Use one RegionVisitor per file.
type RegionVisitor struct {
	policy  TestPolicy
	metrics ledger.FileMetrics
	depth   uint32
	stats   regionTracker
	out     io.Writer
	closed  int
}

// NewRegionVisitor creates a visitor with an empty ledger.
//
// Example:
//
//	v := NewRegionVisitor(ExcludeTests, WithOutput(&buf))
//	syntax.Walk(v, file)
//	m := v.Metrics()
func NewRegionVisitor(policy TestPolicy, opts ...VisitorOption) *RegionVisitor {
	v := &RegionVisitor{
		policy: policy,
		stats:  newRegionTracker(StatsSlot),
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Metrics returns the ledger collected so far.
func (v *RegionVisitor) Metrics() ledger.FileMetrics {
	return v.metrics
}

// Depth returns the number of currently open trust regions. After a full
// scan a non-zero value means a region was opened without being closed.
func (v *RegionVisitor) Depth() uint32 {
	return v.depth
}

// RegionsClosed returns how many diagnostic lines have been emitted.
func (v *RegionVisitor) RegionsClosed() int {
	return v.closed
}

func (v *RegionVisitor) inRegion() bool {
	return v.depth > 0
}

// enterRegion opens a trust region and returns the func that closes it.
func (v *RegionVisitor) enterRegion(shape Shape, text string, stmts int) (exit func()) {
	token := v.stats.open(shape, text, stmts, v.metrics.Counters.Exprs.Unsafe)
	v.depth++
	return func() { v.exitRegion(token) }
}

func (v *RegionVisitor) exitRegion(token int) {
	if v.depth == 0 {
		panic("scan: trust region depth underflow")
	}
	v.depth--
	stat := v.stats.close(token, v.metrics.Counters.Exprs.Unsafe)
	v.closed++
	_, _ = stat.WriteTo(v.out)
}

// VisitFile records whether the file forbids unsafe code, then walks it.
func (v *RegionVisitor) VisitFile(f *syntax.File) {
	v.metrics.ForbidsUnsafe = syntax.FileForbidsUnsafe(f)
	syntax.WalkFile(v, f)
}

func (v *RegionVisitor) VisitItem(it syntax.Item) { syntax.WalkItem(v, it) }

// VisitItemFn handles free-standing functions.
//
// An unsafe fn, or one carrying an unsafe attribute, opens a Function
// region around its body. Only the unsafe keyword closes it again.
func (v *RegionVisitor) VisitItemFn(fn *syntax.ItemFn) {
	if v.policy == ExcludeTests && syntax.IsTestFn(fn) {
		return
	}
	outer := v.inRegion()
	if fn.Unsafe || syntax.HasUnsafeAttributes(fn) {
		exit := v.enterRegion(ShapeFunction, fn.Text, fn.Body.Len())
		if fn.Unsafe {
			defer exit()
		}
	}
	v.metrics.Counters.Count(ledger.CategoryFunctions, outer)
	syntax.WalkItemFn(v, fn)
}

// VisitItemMod skips test modules when tests are excluded.
func (v *RegionVisitor) VisitItemMod(m *syntax.ItemMod) {
	if v.policy == ExcludeTests && syntax.IsTestMod(m) {
		return
	}
	syntax.WalkItemMod(v, m)
}

// VisitItemImpl counts the impl by its own unsafe marker.
func (v *RegionVisitor) VisitItemImpl(im *syntax.ItemImpl) {
	v.metrics.Counters.Count(ledger.CategoryItemImpls, im.Unsafe)
	syntax.WalkItemImpl(v, im)
}

// VisitItemTrait counts the trait by its own unsafe marker.
func (v *RegionVisitor) VisitItemTrait(tr *syntax.ItemTrait) {
	v.metrics.Counters.Count(ledger.CategoryItemTraits, tr.Unsafe)
	syntax.WalkItemTrait(v, tr)
}

func (v *RegionVisitor) VisitItemConst(c *syntax.ItemConst) { syntax.WalkItemConst(v, c) }

// VisitImplMethod opens and closes a Method region around unsafe methods.
func (v *RegionVisitor) VisitImplMethod(m *syntax.ImplMethod) {
	outer := v.inRegion()
	if m.Unsafe {
		defer v.enterRegion(ShapeMethod, m.Text, m.Body.Len())()
	}
	v.metrics.Counters.Count(ledger.CategoryMethods, outer)
	syntax.WalkImplMethod(v, m)
}

func (v *RegionVisitor) VisitTraitMethod(m *syntax.TraitMethod) { syntax.WalkTraitMethod(v, m) }
func (v *RegionVisitor) VisitBlock(b *syntax.Block)            { syntax.WalkBlock(v, b) }
func (v *RegionVisitor) VisitStmt(s syntax.Stmt)               { syntax.WalkStmt(v, s) }

// VisitExpr classifies an expression as a trust region, a trivial leaf or
// a counted expression.
func (v *RegionVisitor) VisitExpr(e syntax.Expr) {
	switch n := e.(type) {
	case *syntax.ExprUnsafe:
		v.VisitExprUnsafe(n)
	case *syntax.ExprPath, *syntax.ExprLit:
		// Not counted.
	default:
		v.metrics.Counters.Count(ledger.CategoryExprs, v.inRegion())
		syntax.WalkExpr(v, e)
	}
}

// VisitExprUnary flags raw pointer dereferences inside a region.
func (v *RegionVisitor) VisitExprUnary(u *syntax.ExprUnary) {
	if v.inRegion() && u.Op == syntax.UnOpDeref {
		v.stats.markDeref()
	}
	syntax.WalkExprUnary(v, u)
}

// VisitExprUnsafe opens an Inner region and visits the block's statements.
func (v *RegionVisitor) VisitExprUnsafe(u *syntax.ExprUnsafe) {
	defer v.enterRegion(ShapeInner, u.Text, u.Block.Len())()
	if u.Block != nil {
		for _, s := range u.Block.Stmts {
			v.VisitStmt(s)
		}
	}
}
