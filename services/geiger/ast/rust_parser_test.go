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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/geiger/services/geiger/syntax"
)

// Test source code samples (embedded, no file I/O).
const (
	testRustMixed = `#![forbid(unsafe_code)]

use std::ptr;

/// Exported to C.
#[no_mangle]
pub extern "C" fn exported(p: *const u8) -> u8 {
    let v = unsafe { *p };
    v
}

unsafe fn raw(p: *mut i32) {
    *p = 1;
}

unsafe trait Zeroable {}

unsafe impl Zeroable for u32 {}

struct Wrapper {
    p: *mut i32,
}

impl Wrapper {
    unsafe fn get(&self) -> i32 {
        *self.p
    }

    fn set(&mut self, v: i32) {
        unsafe {
            *self.p = v;
        }
    }
}

#[cfg(test)]
mod tests {
    #[test]
    fn it_works() {
        assert_eq!(2 + 2, 4);
    }
}
`

	testRustCall = `fn main() {
    f(x);
}
`

	testRustBroken = `fn broken( {
    let x = ;
`
)

func parseRust(t *testing.T, src string) *syntax.File {
	t.Helper()
	f, err := NewRustParser().Parse(context.Background(), []byte(src), "src/lib.rs")
	require.NoError(t, err)
	require.NotNil(t, f)
	return f
}

func TestRustParser_FileAttributes(t *testing.T) {
	f := parseRust(t, testRustMixed)

	assert.Equal(t, "src/lib.rs", f.Path)
	assert.Empty(t, f.Errors)
	require.Len(t, f.Attrs, 1)
	assert.True(t, f.Attrs[0].Inner)
	assert.Equal(t, "forbid", f.Attrs[0].Path)
	assert.Equal(t, []string{"unsafe_code"}, f.Attrs[0].Args)
	assert.True(t, syntax.FileForbidsUnsafe(f))
}

func TestRustParser_Items(t *testing.T) {
	f := parseRust(t, testRustMixed)
	require.Len(t, f.Items, 8)

	use, ok := f.Items[0].(*syntax.ItemOther)
	require.True(t, ok, "use declaration")
	assert.Equal(t, "use_declaration", use.Kind)

	exported, ok := f.Items[1].(*syntax.ItemFn)
	require.True(t, ok)
	assert.Equal(t, "exported", exported.Name)
	assert.False(t, exported.Unsafe, "extern fn is not unsafe fn")
	require.Len(t, exported.Attrs, 1)
	assert.Equal(t, "no_mangle", exported.Attrs[0].Path)
	assert.True(t, syntax.HasUnsafeAttributes(exported))
	assert.Contains(t, exported.Text, "#[no_mangle] pub extern \"C\" fn exported")

	raw, ok := f.Items[2].(*syntax.ItemFn)
	require.True(t, ok)
	assert.True(t, raw.Unsafe)
	assert.Equal(t, "unsafe fn raw(p: *mut i32) { *p = 1; }", raw.Text)
	assert.Equal(t, 1, raw.Body.Len())

	trait, ok := f.Items[3].(*syntax.ItemTrait)
	require.True(t, ok)
	assert.Equal(t, "Zeroable", trait.Name)
	assert.True(t, trait.Unsafe)

	unsafeImpl, ok := f.Items[4].(*syntax.ItemImpl)
	require.True(t, ok)
	assert.True(t, unsafeImpl.Unsafe)
	assert.Equal(t, "Zeroable", unsafeImpl.Trait)
	assert.Equal(t, "u32", unsafeImpl.SelfType)

	strct, ok := f.Items[5].(*syntax.ItemOther)
	require.True(t, ok)
	assert.Equal(t, "struct_item", strct.Kind)

	impl, ok := f.Items[6].(*syntax.ItemImpl)
	require.True(t, ok)
	assert.False(t, impl.Unsafe)
	assert.Empty(t, impl.Trait)
	assert.Equal(t, "Wrapper", impl.SelfType)
	require.Len(t, impl.Items, 2)
	get, ok := impl.Items[0].(*syntax.ImplMethod)
	require.True(t, ok)
	assert.Equal(t, "get", get.Name)
	assert.True(t, get.Unsafe)
	set, ok := impl.Items[1].(*syntax.ImplMethod)
	require.True(t, ok)
	assert.False(t, set.Unsafe)

	mod, ok := f.Items[7].(*syntax.ItemMod)
	require.True(t, ok)
	assert.Equal(t, "tests", mod.Name)
	assert.True(t, mod.Inline)
	assert.True(t, syntax.IsTestMod(mod))
	require.Len(t, mod.Items, 1)
	testFn, ok := mod.Items[0].(*syntax.ItemFn)
	require.True(t, ok)
	assert.True(t, syntax.IsTestFn(testFn))
}

func TestRustParser_UnsafeBlockLowering(t *testing.T) {
	f := parseRust(t, testRustMixed)
	exported := f.Items[1].(*syntax.ItemFn)

	require.Equal(t, 2, exported.Body.Len(), "let binding and trailing expression")
	local, ok := exported.Body.Stmts[0].(*syntax.StmtLocal)
	require.True(t, ok)
	block, ok := local.Init.(*syntax.ExprUnsafe)
	require.True(t, ok)
	assert.Equal(t, "unsafe { *p }", block.Text)
	require.Equal(t, 1, block.Block.Len())

	stmt, ok := block.Block.Stmts[0].(*syntax.StmtExpr)
	require.True(t, ok)
	deref, ok := stmt.X.(*syntax.ExprUnary)
	require.True(t, ok)
	assert.Equal(t, syntax.UnOpDeref, deref.Op)
	assert.Equal(t, &syntax.ExprPath{Path: "p"}, deref.X)

	tail, ok := exported.Body.Stmts[1].(*syntax.StmtExpr)
	require.True(t, ok)
	assert.Equal(t, &syntax.ExprPath{Path: "v"}, tail.X)
}

func TestRustParser_CallLowering(t *testing.T) {
	f := parseRust(t, testRustCall)
	require.Len(t, f.Items, 1)
	main := f.Items[0].(*syntax.ItemFn)
	require.Equal(t, 1, main.Body.Len())

	stmt := main.Body.Stmts[0].(*syntax.StmtExpr)
	call, ok := stmt.X.(*syntax.ExprCompound)
	require.True(t, ok)
	assert.Equal(t, "call_expression", call.Kind)
	assert.Equal(t, []syntax.Node{
		&syntax.ExprPath{Path: "f"},
		&syntax.ExprPath{Path: "x"},
	}, call.Children)
}

func TestRustParser_MethodCallLowering(t *testing.T) {
	f := parseRust(t, "fn main() {\n    v.iter().count(x);\n}\n")
	main := f.Items[0].(*syntax.ItemFn)
	require.Equal(t, 1, main.Body.Len())

	stmt := main.Body.Stmts[0].(*syntax.StmtExpr)
	outer, ok := stmt.X.(*syntax.ExprCompound)
	require.True(t, ok)
	assert.Equal(t, "method_call_expression", outer.Kind)
	require.Len(t, outer.Children, 2)
	assert.Equal(t, &syntax.ExprPath{Path: "x"}, outer.Children[1])

	inner, ok := outer.Children[0].(*syntax.ExprCompound)
	require.True(t, ok)
	assert.Equal(t, "method_call_expression", inner.Kind)
	assert.Equal(t, []syntax.Node{&syntax.ExprPath{Path: "v"}}, inner.Children)
}

func TestRustParser_ElseBranchIsBlockExpr(t *testing.T) {
	f := parseRust(t, "fn main() {\n    if c { } else { }\n}\n")
	main := f.Items[0].(*syntax.ItemFn)
	require.Equal(t, 1, main.Body.Len())

	stmt, ok := main.Body.Stmts[0].(*syntax.StmtExpr)
	require.True(t, ok)
	ifExpr, ok := stmt.X.(*syntax.ExprCompound)
	require.True(t, ok)
	assert.Equal(t, "if_expression", ifExpr.Kind)

	var blocks, blockExprs int
	for _, c := range ifExpr.Children {
		switch c := c.(type) {
		case *syntax.Block:
			blocks++
		case *syntax.ExprCompound:
			if c.Kind == "block" {
				blockExprs++
			}
		}
	}
	assert.Equal(t, 1, blocks, "then branch stays a body")
	assert.Equal(t, 1, blockExprs, "else branch is an expression")
}

func TestRustParser_DeclarationExprs(t *testing.T) {
	f := parseRust(t, "enum E {\n    A = 1 + 2,\n    B,\n}\n\nfn main() {\n    let b: [u8; 2 * 2] = x;\n}\n")
	require.Len(t, f.Items, 2)

	enum, ok := f.Items[0].(*syntax.ItemOther)
	require.True(t, ok)
	assert.Equal(t, "enum_item", enum.Kind)
	var binaries int
	for _, c := range enum.Children {
		if e, ok := c.(*syntax.ExprCompound); ok && e.Kind == "binary_expression" {
			binaries++
		}
	}
	assert.Equal(t, 1, binaries)

	main := f.Items[1].(*syntax.ItemFn)
	local, ok := main.Body.Stmts[0].(*syntax.StmtLocal)
	require.True(t, ok)
	assert.Equal(t, &syntax.ExprPath{Path: "x"}, local.Init)
	require.Len(t, local.Nested, 2)
	assert.Equal(t, &syntax.ExprPath{Path: "b"}, local.Nested[0])
	length, ok := local.Nested[1].(*syntax.ExprCompound)
	require.True(t, ok)
	assert.Equal(t, "binary_expression", length.Kind)
}

func TestRustParser_UseHasNoChildren(t *testing.T) {
	f := parseRust(t, testRustMixed)
	use := f.Items[0].(*syntax.ItemOther)
	assert.Empty(t, use.Children)
}

func TestRustParser_MacroIsOpaque(t *testing.T) {
	f := parseRust(t, testRustMixed)
	testFn := f.Items[7].(*syntax.ItemMod).Items[0].(*syntax.ItemFn)
	require.Equal(t, 1, testFn.Body.Len())

	stmt := testFn.Body.Stmts[0].(*syntax.StmtExpr)
	mac, ok := stmt.X.(*syntax.ExprCompound)
	require.True(t, ok)
	assert.Equal(t, "macro_invocation", mac.Kind)
	assert.Empty(t, mac.Children)
}

func TestRustParser_SyntaxErrorsArePartial(t *testing.T) {
	f, err := NewRustParser().Parse(context.Background(), []byte(testRustBroken), "broken.rs")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.NotEmpty(t, f.Errors)
	for _, e := range f.Errors {
		assert.Contains(t, e, "broken.rs:")
	}
}

func TestRustParser_InvalidInput(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid utf8", func(t *testing.T) {
		_, err := NewRustParser().Parse(ctx, []byte{0xff, 0xfe, 0xfd}, "bad.rs")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidContent))
	})

	t.Run("too large", func(t *testing.T) {
		_, err := NewRustParser(WithMaxFileSize(8)).Parse(ctx, []byte(testRustCall), "big.rs")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrFileTooLarge))
	})

	t.Run("canceled", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewRustParser().Parse(canceled, []byte(testRustCall), "main.rs")
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("blank is valid", func(t *testing.T) {
		f, err := NewRustParser().Parse(ctx, []byte("\n"), "empty.rs")
		require.NoError(t, err)
		assert.Empty(t, f.Items)
	})
}

func TestRustParser_LanguageAndExtensions(t *testing.T) {
	p := NewRustParser()
	assert.Equal(t, "rust", p.Language())
	assert.Equal(t, []string{".rs"}, p.Extensions())
	assert.True(t, p.Supports("src/main.rs"))
	assert.False(t, p.Supports("main.go"))
	assert.False(t, p.Supports("Cargo.toml"))
}

func TestRustParser_ConcurrentUse(t *testing.T) {
	p := NewRustParser()
	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := p.Parse(context.Background(), []byte(testRustMixed), "lib.rs")
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		assert.NoError(t, <-done)
	}
}
