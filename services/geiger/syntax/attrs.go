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

import "strings"

// unsafeAttributes are attributes that make a safe-looking function
// callable across the FFI boundary without the unsafe keyword.
var unsafeAttributes = map[string]bool{
	"no_mangle":   true,
	"export_name": true,
}

// HasArg reports whether ident appears anywhere in the attribute arguments.
func (a Attribute) HasArg(ident string) bool {
	for _, arg := range a.Args {
		if arg == ident {
			return true
		}
	}
	return false
}

// Name returns the last segment of the attribute path: "test" for both
// #[test] and #[tokio::test].
func (a Attribute) Name() string {
	if i := strings.LastIndex(a.Path, "::"); i >= 0 {
		return a.Path[i+2:]
	}
	return a.Path
}

// IsTestFn reports whether a function is a test.
//
// Description:
//
//	A function is a test when any attribute is named test (#[test],
//	#[tokio::test]) or mentions test among its arguments
//	(#[cfg_attr(test, ...)]).
func IsTestFn(fn *ItemFn) bool {
	for _, a := range fn.Attrs {
		if a.Name() == "test" || a.HasArg("test") {
			return true
		}
	}
	return false
}

// IsTestMod reports whether a module is compiled only for tests, i.e. it
// carries #[cfg(test)] or a cfg predicate mentioning test.
func IsTestMod(m *ItemMod) bool {
	for _, a := range m.Attrs {
		if a.Path == "cfg" && a.HasArg("test") {
			return true
		}
	}
	return false
}

// HasUnsafeAttributes reports whether a function carries #[no_mangle] or
// #[export_name = "..."].
func HasUnsafeAttributes(fn *ItemFn) bool {
	for _, a := range fn.Attrs {
		if unsafeAttributes[a.Path] {
			return true
		}
	}
	return false
}

// FileForbidsUnsafe reports whether the file declares
// #![forbid(unsafe_code)].
func FileForbidsUnsafe(f *File) bool {
	for _, a := range f.Attrs {
		if a.Inner && a.Path == "forbid" && a.HasArg("unsafe_code") {
			return true
		}
	}
	return false
}
