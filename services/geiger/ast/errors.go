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
	"errors"
	"fmt"
)

// Sentinel errors for parse failures. Check with errors.Is.
var (
	// ErrUnsupportedLanguage indicates a file the Rust parser does not
	// handle, judged by extension.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrParseFailed indicates tree-sitter produced no usable tree.
	//
	// Syntax errors inside an otherwise usable tree are not failures;
	// they are reported on syntax.File.Errors.
	ErrParseFailed = errors.New("parse failed")

	// ErrInvalidContent indicates content that is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")

	// ErrFileTooLarge is returned when content exceeds the maximum file size.
	ErrFileTooLarge = errors.New("file exceeds maximum size limit")
)

// ParseError locates a problem in a source file.
//
// Example:
//
//	var parseErr *ParseError
//	if errors.As(err, &parseErr) {
//	    fmt.Printf("%s:%d\n", parseErr.FilePath, parseErr.Line)
//	}
type ParseError struct {
	// FilePath is the file the error belongs to.
	FilePath string

	// Line is 1-indexed; 0 when unknown.
	Line int

	// Column is 1-indexed; 0 when unknown.
	Column int

	// Message describes the error.
	Message string

	// Cause is the underlying error, may be nil.
	Cause error
}

// Error formats the error as "file:line:col: message", dropping the
// location parts that are unknown.
func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.FilePath, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.FilePath, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.FilePath, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a ParseError without a cause.
func NewParseError(filePath string, line, column int, message string) *ParseError {
	return &ParseError{
		FilePath: filePath,
		Line:     line,
		Column:   column,
		Message:  message,
	}
}

// WrapParseError attaches a file path to err. ParseErrors are returned
// unchanged and nil stays nil.
func WrapParseError(err error, filePath string) error {
	if err == nil {
		return nil
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return err
	}

	return &ParseError{
		FilePath: filePath,
		Message:  err.Error(),
		Cause:    err,
	}
}

// IsParseError reports whether err is or wraps a ParseError.
func IsParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}

// IsUnsupportedLanguage reports whether err is or wraps
// ErrUnsupportedLanguage.
func IsUnsupportedLanguage(err error) bool {
	return errors.Is(err, ErrUnsupportedLanguage)
}
