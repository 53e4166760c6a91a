// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package syntax defines the typed Rust syntax tree consumed by the unsafe
// scanner.
//
// The tree is deliberately small. It keeps the node kinds whose safety can
// be classified (functions, methods, traits, impls, modules, unsafe blocks,
// unary operators) and folds every other expression into ExprCompound,
// which preserves source order of nested expressions and blocks.
//
// # Traversal
//
// Traversal uses double dispatch. A Visitor has one method per category;
// the Walk* helpers recurse into a node's children by calling back into the
// visitor, so an implementation overrides only the categories it cares about
// and delegates the rest:
//
//	func (v *myVisitor) VisitBlock(b *syntax.Block) { syntax.WalkBlock(v, b) }
//
// # Producing Trees
//
// Trees are produced by the tree-sitter front end in services/geiger/ast,
// or built by hand in tests.
package syntax
