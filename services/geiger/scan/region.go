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
	"fmt"
	"io"
)

// Shape is the syntactic form of a trust region.
type Shape int

const (
	// ShapeInner is an unsafe { ... } block expression.
	ShapeInner Shape = iota
	// ShapeFunction is an unsafe free-standing function.
	ShapeFunction
	// ShapeMethod is an unsafe method inside an impl block.
	ShapeMethod
)

// String returns the name used in diagnostic lines.
func (s Shape) String() string {
	switch s {
	case ShapeInner:
		return "Inner"
	case ShapeFunction:
		return "Function"
	case ShapeMethod:
		return "Method"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// derefMarker terminates the diagnostic line of a region that dereferenced
// a raw pointer.
const derefMarker = " ~ Dereference Operation"

// RegionStat is the statistics snapshot of one trust region.
type RegionStat struct {
	Shape Shape
	Text  string

	// ExprPrev is the unsafe expression total when the region was entered,
	// ExprCurr the total when it was closed.
	ExprPrev uint64
	ExprCurr uint64

	// Stmts is the number of direct statements in the region body.
	Stmts int

	HasDeref bool
}

// ExprDelta returns ExprCurr - ExprPrev.
func (s RegionStat) ExprDelta() uint64 {
	if s.ExprCurr < s.ExprPrev {
		return 0
	}
	return s.ExprCurr - s.ExprPrev
}

// Line formats the diagnostic line without the trailing newline:
//
//	<text> ~ <shape> ~ <expr delta> ~ <stmt count>[ ~ Dereference Operation]
func (s RegionStat) Line() string {
	line := fmt.Sprintf("%s ~ %s ~ %d ~ %d", s.Text, s.Shape, s.ExprDelta(), s.Stmts)
	if s.HasDeref {
		line += derefMarker
	}
	return line
}

// WriteTo writes the diagnostic line followed by a newline.
func (s RegionStat) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, s.Line()+"\n")
	return int64(n), err
}

// StatsMode selects how region statistics are tracked across nesting.
type StatsMode string

const (
	// StatsSlot reuses one statistics record for every region. A nested
	// region overwrites the record on entry, so an enclosing region reports
	// only what happened after its last nested region closed.
	StatsSlot StatsMode = "slot"

	// StatsStack keeps one record per open region, so every region reports
	// its whole body.
	StatsStack StatsMode = "stack"
)

// ParseStatsMode parses "slot" or "stack"; anything else yields StatsSlot.
func ParseStatsMode(s string) StatsMode {
	if StatsMode(s) == StatsStack {
		return StatsStack
	}
	return StatsSlot
}

// regionTracker owns the active region statistics.
//
// open returns a token identifying the region; close takes that token and
// the unsafe expression total at exit and returns the finished snapshot.
type regionTracker interface {
	open(shape Shape, text string, stmts int, exprs uint64) int
	markDeref()
	close(token int, exprs uint64) RegionStat
}

func newRegionTracker(mode StatsMode) regionTracker {
	if mode == StatsStack {
		return &stackTracker{}
	}
	return &slotTracker{}
}

// slotTracker is the single reused record.
type slotTracker struct {
	stat RegionStat
}

func (t *slotTracker) open(shape Shape, text string, stmts int, exprs uint64) int {
	t.stat = RegionStat{
		Shape:    shape,
		Text:     text,
		ExprPrev: exprs,
		Stmts:    stmts,
	}
	return 0
}

func (t *slotTracker) markDeref() {
	t.stat.HasDeref = true
}

func (t *slotTracker) close(_ int, exprs uint64) RegionStat {
	t.stat.ExprCurr = exprs
	out := t.stat
	t.stat.HasDeref = false
	return out
}

// stackTracker keeps one record per open region. Closing a region
// truncates the stack to that region's entry, dropping records of regions
// opened inside it that never closed.
type stackTracker struct {
	stack []RegionStat
}

func (t *stackTracker) open(shape Shape, text string, stmts int, exprs uint64) int {
	t.stack = append(t.stack, RegionStat{
		Shape:    shape,
		Text:     text,
		ExprPrev: exprs,
		Stmts:    stmts,
	})
	return len(t.stack) - 1
}

func (t *stackTracker) markDeref() {
	for i := range t.stack {
		t.stack[i].HasDeref = true
	}
}

func (t *stackTracker) close(token int, exprs uint64) RegionStat {
	if token < 0 || token >= len(t.stack) {
		panic(fmt.Sprintf("scan: region token %d out of range (stack size %d)", token, len(t.stack)))
	}
	out := t.stack[token]
	out.ExprCurr = exprs
	t.stack = t.stack[:token]
	return out
}
