// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report renders scan results as text tables or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/geiger/services/geiger/ledger"
	"github.com/AleutianAI/geiger/services/geiger/scan"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// =============================================================================
// Styles
// =============================================================================

var (
	pathStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	unsafeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	safeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

const labelWidth = 16

// Renderer writes results to one writer.
type Renderer struct {
	w      io.Writer
	format Format
	color  bool
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithFormat sets the output format. Default: FormatText.
func WithFormat(f Format) RendererOption {
	return func(r *Renderer) {
		r.format = f
	}
}

// WithColor enables ANSI styling of text output. The CLI enables it only
// when stdout is a terminal.
func WithColor(enabled bool) RendererOption {
	return func(r *Renderer) {
		r.color = enabled
	}
}

// NewRenderer creates a Renderer writing to w.
func NewRenderer(w io.Writer, opts ...RendererOption) *Renderer {
	r := &Renderer{w: w, format: FormatText}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render writes results in the configured format.
func (r *Renderer) Render(results []*scan.Result) error {
	if r.format == FormatJSON {
		return r.renderJSON(results)
	}
	return r.renderText(results)
}

// jsonReport is the top-level JSON document.
type jsonReport struct {
	Files []*scan.Result `json:"files"`
}

func (r *Renderer) renderJSON(results []*scan.Result) error {
	if results == nil {
		results = []*scan.Result{}
	}
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonReport{Files: results}); err != nil {
		return fmt.Errorf("encoding json report: %w", err)
	}
	return nil
}

func (r *Renderer) renderText(results []*scan.Result) error {
	var b strings.Builder
	failed := 0
	for i, res := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		if res.Failed() {
			failed++
		}
		r.writeFile(&b, res)
	}

	summary := fmt.Sprintf("%d file(s) scanned", len(results))
	if failed > 0 {
		summary += fmt.Sprintf(", %d failed", failed)
	}
	b.WriteString("\n")
	b.WriteString(r.style(headerStyle, summary))
	b.WriteString("\n")

	_, err := io.WriteString(r.w, b.String())
	return err
}

// writeFile renders one result:
//
//	src/lib.rs
//	  Category          Safe  Unsafe
//	  Functions            1       0
//	  ...
//	  Forbids unsafe    no
func (r *Renderer) writeFile(b *strings.Builder, res *scan.Result) {
	b.WriteString(r.style(pathStyle, res.Path))
	b.WriteString("\n")

	if res.Error != "" {
		b.WriteString("  ")
		b.WriteString(r.style(unsafeStyle, "error: "+res.Error))
		b.WriteString("\n")
		return
	}

	header := fmt.Sprintf("  %-*s %6s %7s", labelWidth, "Category", "Safe", "Unsafe")
	b.WriteString(r.style(headerStyle, header))
	b.WriteString("\n")

	counters := res.Metrics.Counters
	for _, cat := range ledger.Categories() {
		block := counters.Block(cat)
		if block == nil {
			continue
		}
		unsafeCell := fmt.Sprintf("%7d", block.Unsafe)
		if block.Unsafe > 0 {
			unsafeCell = r.style(unsafeStyle, unsafeCell)
		}
		fmt.Fprintf(b, "  %-*s %6d %s\n", labelWidth, cat.Label(), block.Safe, unsafeCell)
	}

	forbids := "no"
	if res.Metrics.ForbidsUnsafe {
		forbids = r.style(safeStyle, "yes")
	}
	fmt.Fprintf(b, "  %-*s %s\n", labelWidth, ledger.CategoryForbidsUnsafe.Label(), forbids)

	if res.Depth != 0 {
		b.WriteString("  ")
		b.WriteString(r.style(warnStyle, fmt.Sprintf("%d trust region(s) left open", res.Depth)))
		b.WriteString("\n")
	}
	if n := len(res.ParseErrors); n > 0 {
		b.WriteString("  ")
		b.WriteString(r.style(warnStyle, fmt.Sprintf("%d syntax error(s), first: %s", n, res.ParseErrors[0])))
		b.WriteString("\n")
	}
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}
