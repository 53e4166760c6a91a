// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scan measures trust regions in Rust source.
//
// A trust region is a scope marked unsafe: an unsafe { ... } block, an
// unsafe fn, or an unsafe method. RegionVisitor walks one syntax tree and
// sorts every function, method, impl, trait and expression into the safe or
// unsafe bucket of a ledger.FileMetrics. Each region that closes produces
// one diagnostic line:
//
//	unsafe { *p } ~ Inner ~ 1 ~ 1 ~ Dereference Operation
//
// Scanner combines a parser with the visitor and adds concurrency across
// files, logging and telemetry.
package scan
