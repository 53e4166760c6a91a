// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast parses Rust source with tree-sitter and lowers the concrete
// syntax tree into the typed tree of package syntax.
package ast

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/AleutianAI/geiger/services/geiger/syntax"
)

const languageRust = "rust"

// File size constants for input validation.
const (
	// DefaultMaxFileSize is the largest file the parser accepts (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize is the size above which a warning is logged (1MB).
	WarnFileSize = 1 * 1024 * 1024
)

// RustParserOption configures a RustParser.
type RustParserOption func(*RustParser)

// WithMaxFileSize sets the maximum accepted file size in bytes. Values
// below 1 are ignored.
func WithMaxFileSize(bytes int64) RustParserOption {
	return func(p *RustParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// RustParser turns Rust source into a *syntax.File.
//
// Description:
//
//	RustParser runs the tree-sitter Rust grammar over the content and lowers
//	the result into the typed syntax tree. Each Parse call creates its own
//	tree-sitter parser, so one RustParser can be shared across goroutines.
//
// Thread Safety:
//
//	Safe for concurrent use.
type RustParser struct {
	maxFileSize int64
}

// NewRustParser creates a RustParser with the given options.
func NewRustParser(opts ...RustParserOption) *RustParser {
	p := &RustParser{
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "rust".
func (p *RustParser) Language() string {
	return languageRust
}

// Extensions returns the file extensions this parser handles.
func (p *RustParser) Extensions() []string {
	return []string{".rs"}
}

// Supports reports whether filePath has a Rust extension.
func (p *RustParser) Supports(filePath string) bool {
	ext := filepath.Ext(filePath)
	for _, e := range p.Extensions() {
		if e == ext {
			return true
		}
	}
	return false
}

// Parse parses Rust source code into a syntax tree.
//
// Description:
//
//	Parse validates the input, runs tree-sitter and lowers the concrete
//	tree. The parser is error tolerant: source with syntax errors still
//	yields a tree, with one entry per ERROR or MISSING node in File.Errors.
//
// Inputs:
//   - ctx: Checked before and after tree-sitter runs.
//   - content: Rust source bytes, must be valid UTF-8.
//   - filePath: Recorded on the File and used in error messages.
//
// Outputs:
//   - *syntax.File: Never nil when err is nil.
//   - error: ErrFileTooLarge, ErrInvalidContent, ErrParseFailed or a
//     context error.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (p *RustParser) Parse(ctx context.Context, content []byte, filePath string) (*syntax.File, error) {
	ctx, span := startParseSpan(ctx, filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, time.Since(start), 0, false, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(ctx, time.Since(start), 0, false, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		recordParseMetrics(ctx, time.Since(start), 0, false, false)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(rust.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, time.Since(start), 0, false, false)
		return nil, fmt.Errorf("%w: tree-sitter: %v", ErrParseFailed, err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, time.Since(start), 0, false, false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	root := tree.RootNode()
	if root == nil {
		recordParseMetrics(ctx, time.Since(start), 0, false, false)
		return nil, fmt.Errorf("%w: tree-sitter returned nil root node", ErrParseFailed)
	}

	l := newLowerer(content, filePath)
	file := l.file(root)

	if root.HasError() {
		file.Errors = append(file.Errors, l.syntaxErrors(root)...)
		slog.Debug("rust source contains syntax errors",
			slog.String("file", filePath),
			slog.Int("errors", len(file.Errors)))
	}

	setParseSpanResult(span, len(file.Items), len(file.Errors))
	recordParseMetrics(ctx, time.Since(start), len(file.Items), len(file.Errors) > 0, true)

	return file, nil
}
