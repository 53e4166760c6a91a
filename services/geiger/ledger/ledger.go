// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ledger holds the per-file safe/unsafe counters produced by a scan.
//
// A ledger is created empty for each file, mutated monotonically while the
// syntax tree is walked and read once afterwards. It is not safe for
// concurrent use; each scan owns its own ledger.
package ledger

// Category identifies one of the counted syntactic classes.
type Category string

const (
	CategoryFunctions     Category = "functions"
	CategoryMethods       Category = "methods"
	CategoryItemTraits    Category = "item_traits"
	CategoryItemImpls     Category = "item_impls"
	CategoryExprs         Category = "exprs"
	CategoryForbidsUnsafe Category = "forbids_unsafe"
)

// Categories returns the six categories in report order.
func Categories() []Category {
	return []Category{
		CategoryFunctions,
		CategoryExprs,
		CategoryItemImpls,
		CategoryItemTraits,
		CategoryMethods,
		CategoryForbidsUnsafe,
	}
}

// Label returns a human readable column label.
func (c Category) Label() string {
	switch c {
	case CategoryFunctions:
		return "Functions"
	case CategoryMethods:
		return "Methods"
	case CategoryItemTraits:
		return "Traits"
	case CategoryItemImpls:
		return "Impls"
	case CategoryExprs:
		return "Expressions"
	case CategoryForbidsUnsafe:
		return "Forbids unsafe"
	default:
		return string(c)
	}
}

// CounterBlock counts occurrences outside (Safe) and inside (Unsafe) trust
// regions.
type CounterBlock struct {
	Safe   uint64 `json:"safe"`
	Unsafe uint64 `json:"unsafe"`
}

// Count increments exactly one bucket: Unsafe when unsafe is true, Safe
// otherwise.
func (c *CounterBlock) Count(unsafe bool) {
	if unsafe {
		c.Unsafe++
	} else {
		c.Safe++
	}
}

// Total returns Safe + Unsafe.
func (c CounterBlock) Total() uint64 {
	return c.Safe + c.Unsafe
}

// Counters holds one CounterBlock per counted category.
type Counters struct {
	Functions  CounterBlock `json:"functions"`
	Exprs      CounterBlock `json:"exprs"`
	ItemImpls  CounterBlock `json:"item_impls"`
	ItemTraits CounterBlock `json:"item_traits"`
	Methods    CounterBlock `json:"methods"`
}

// Block returns the counter for cat, or nil for CategoryForbidsUnsafe and
// unknown categories.
func (c *Counters) Block(cat Category) *CounterBlock {
	switch cat {
	case CategoryFunctions:
		return &c.Functions
	case CategoryExprs:
		return &c.Exprs
	case CategoryItemImpls:
		return &c.ItemImpls
	case CategoryItemTraits:
		return &c.ItemTraits
	case CategoryMethods:
		return &c.Methods
	default:
		return nil
	}
}

// Count attributes one node to cat. Categories without a counter are
// ignored; the operation never fails.
func (c *Counters) Count(cat Category, unsafe bool) {
	if b := c.Block(cat); b != nil {
		b.Count(unsafe)
	}
}

// HasUnsafe reports whether any counter has a non-zero Unsafe bucket.
func (c Counters) HasUnsafe() bool {
	return c.Functions.Unsafe > 0 ||
		c.Exprs.Unsafe > 0 ||
		c.ItemImpls.Unsafe > 0 ||
		c.ItemTraits.Unsafe > 0 ||
		c.Methods.Unsafe > 0
}

// FileMetrics is the result of scanning one file.
type FileMetrics struct {
	Counters Counters `json:"counters"`

	// ForbidsUnsafe is true when the file declares #![forbid(unsafe_code)].
	ForbidsUnsafe bool `json:"forbids_unsafe"`
}
