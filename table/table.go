// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package table renders rows of market data as aligned text or CSV.
//
// Text output measures cells by terminal display width, so that columns with
// Chinese names and trade types line up with the ASCII columns.
package table

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/stockparfait/errors"
	"golang.org/x/text/width"
)

// Row interface that a table row representation must implement.
type Row interface {
	CSV() []string // an encoding/csv compatible row representation
}

// Table container. trading.Record implements Row, so a typical use is:
//
//	t := NewTable(trading.TickSchema.Header()...)
//	for _, r := range records {
//		t.AddRow(r)
//	}
//	err := t.WriteText(os.Stdout, Params{})
type Table struct {
	Title  string   // optional, printed above the text table
	Header []string // optional, may be nil
	Rows   []Row
}

// NewTable creates a new Table instance with optional column headers. When
// present, the number of column headers must be the same as the number of
// elements in each Row.
func NewTable(header ...string) *Table {
	return &Table{Header: header}
}

// AddRow adds one or more rows to the table.
func (t *Table) AddRow(rows ...Row) {
	t.Rows = append(t.Rows, rows...)
}

// Params are parameters for pretty-printing or CSV export of Table data.
type Params struct {
	Rows        int  // max. number of rows to write; 0 = unlimited (default)
	NoHeader    bool // whether to print the header, default - yes
	MaxColWidth int  // for WriteText only; 0 = unlimited, otherwise must be >= 4
}

func (t *Table) rows(p Params) []Row {
	if p.Rows > 0 && p.Rows < len(t.Rows) {
		return t.Rows[:p.Rows]
	}
	return t.Rows
}

func (t *Table) hasHeader(p Params) bool {
	return !p.NoHeader && len(t.Header) > 0
}

// WriteCSV writes the table to w in CSV format. The title is not written.
func (t *Table) WriteCSV(w io.Writer, p Params) error {
	cw := csv.NewWriter(w)
	if t.hasHeader(p) {
		if err := cw.Write(t.Header); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
	}
	for _, r := range t.rows(p) {
		if err := cw.Write(r.CSV()); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Annotate(err, "failed to flush written rows")
	}
	return nil
}

// RuneWidth is the number of terminal columns occupied by the rune.
func RuneWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	}
	return 1
}

// StringWidth is the number of terminal columns occupied by s.
func StringWidth(s string) int {
	n := 0
	for _, r := range s {
		n += RuneWidth(r)
	}
	return n
}

// truncate s to at most w columns, marking the cut with "..".
func truncate(s string, w int) string {
	if StringWidth(s) <= w {
		return s
	}
	var b strings.Builder
	n := 0
	for _, r := range s {
		rw := RuneWidth(r)
		if n+rw > w-2 {
			break
		}
		b.WriteRune(r)
		n += rw
	}
	return b.String() + ".."
}

// padLeft right-aligns s in w columns.
func padLeft(s string, w int) string {
	if n := StringWidth(s); n < w {
		return strings.Repeat(" ", w-n) + s
	}
	return s
}

// WriteText writes the table as a text formatted for ease of reading.
func (t *Table) WriteText(w io.Writer, p Params) error {
	if p.MaxColWidth != 0 && p.MaxColWidth < 4 {
		return errors.Reason("MaxColWidth [%d] must be 0 or >= 4", p.MaxColWidth)
	}
	var lines [][]string
	if t.hasHeader(p) {
		lines = append(lines, t.Header)
	}
	for _, r := range t.rows(p) {
		lines = append(lines, r.CSV())
	}
	if len(lines) == 0 {
		return nil
	}

	widths := make([]int, len(lines[0]))
	if len(widths) == 0 {
		return errors.Reason("row size = 0")
	}
	for i, line := range lines {
		if len(line) != len(widths) {
			return errors.Reason("row %d: size [%d] != expected size [%d]",
				i, len(line), len(widths))
		}
		for j, s := range line {
			n := StringWidth(s)
			if p.MaxColWidth > 0 && n > p.MaxColWidth {
				n = p.MaxColWidth
			}
			if widths[j] < n {
				widths[j] = n
			}
		}
	}

	write := func(line []string) error {
		cells := make([]string, len(line))
		for i, s := range line {
			cells[i] = padLeft(truncate(s, widths[i]), widths[i])
		}
		_, err := io.WriteString(w, strings.Join(cells, " | ")+"\n")
		return err
	}

	if t.Title != "" {
		if _, err := io.WriteString(w, t.Title+"\n"); err != nil {
			return errors.Annotate(err, "failed to write title")
		}
	}
	for i, line := range lines {
		if err := write(line); err != nil {
			return errors.Annotate(err, "failed to write row %d", i)
		}
		if i == 0 && t.hasHeader(p) {
			dashes := make([]string, len(widths))
			for j, n := range widths {
				dashes[j] = strings.Repeat("-", n)
			}
			if err := write(dashes); err != nil {
				return errors.Annotate(err, "failed to write header separator")
			}
		}
	}
	return nil
}
