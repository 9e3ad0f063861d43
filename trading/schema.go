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

package trading

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
)

// Column is a canonical field name.
type Column string

// Bar columns.
const (
	Date        = Column("date")
	Open        = Column("open")
	High        = Column("high")
	Close       = Column("close")
	Low         = Column("low")
	Volume      = Column("volume")
	PriceChange = Column("price_change")
	PChange     = Column("p_change")
	MA5         = Column("ma5")
	MA10        = Column("ma10")
	MA20        = Column("ma20")
	VMA5        = Column("v_ma5")
	VMA10       = Column("v_ma10")
	VMA20       = Column("v_ma20")
	Turnover    = Column("turnover")
)

// Tick and block trade columns. Volume is shared with bars.
const (
	Time     = Column("time")
	Price    = Column("price")
	Change   = Column("change")
	Amount   = Column("amount")
	Type     = Column("type")
	Code     = Column("code")
	Name     = Column("name")
	PrePrice = Column("preprice")
)

// Schema is the ordered list of columns labeling a positional row.
type Schema []Column

// Canonical schemas. They must not be modified.
var (
	// BarSchema labels ordinary stock bars.
	BarSchema = Schema{
		Date, Open, High, Close, Low, Volume, PriceChange, PChange,
		MA5, MA10, MA20, VMA5, VMA10, VMA20, Turnover,
	}
	// IndexBarSchema labels index bars, which have no turnover.
	IndexBarSchema = Schema{
		Date, Open, High, Close, Low, Volume, PriceChange, PChange,
		MA5, MA10, MA20, VMA5, VMA10, VMA20,
	}
	// TickSchema: trade time, price, price change, volume in lots, amount in
	// yuan and the buy/sell/neutral type.
	TickSchema = Schema{Time, Price, Change, Volume, Amount, Type}
	// BlockTradeSchema: code, name, trade time, price, volume, previous price
	// and the trade side.
	BlockTradeSchema = Schema{Code, Name, Time, Price, Volume, PrePrice, Type}
)

// Index of the column in the schema, or -1.
func (s Schema) Index(c Column) int {
	for i, col := range s {
		if col == c {
			return i
		}
	}
	return -1
}

// Equal tests two schemas for exact equality, including the column order.
func (s Schema) Equal(s2 Schema) bool {
	if len(s) != len(s2) {
		return false
	}
	for i := range s {
		if s[i] != s2[i] {
			return false
		}
	}
	return true
}

// Header returns the column names as strings, e.g. for a table header.
func (s Schema) Header() []string {
	res := make([]string, len(s))
	for i, c := range s {
		res[i] = string(c)
	}
	return res
}

func (s Schema) String() string {
	return "[" + strings.Join(s.Header(), ", ") + "]"
}

// Value is a raw cell: a string, or a float64 for JSON numbers.
type Value any

// Record is a row labeled by its schema. Its columns are always exactly the
// schema's columns.
type Record struct {
	schema Schema
	values []Value
}

// NewRecord labels a positional row. The row width must equal the schema
// width.
func NewRecord(s Schema, values []Value) (Record, error) {
	if len(values) != len(s) {
		return Record{}, errors.Reason("row has %d fields, schema %s expects %d",
			len(values), s, len(s))
	}
	v := make([]Value, len(values))
	copy(v, values)
	return Record{schema: s, values: v}, nil
}

// NewStringRecord is NewRecord for rows of strings.
func NewStringRecord(s Schema, row []string) (Record, error) {
	values := make([]Value, len(row))
	for i, r := range row {
		values[i] = r
	}
	return NewRecord(s, values)
}

// Schema of the record.
func (r Record) Schema() Schema { return r.schema }

// Get the value of the column; false if the column is not in the schema.
func (r Record) Get(c Column) (Value, bool) {
	i := r.schema.Index(c)
	if i < 0 {
		return nil, false
	}
	return r.values[i], true
}

func formatValue(v Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}

// Text is the string form of the column value, "" if missing.
func (r Record) Text(c Column) string {
	v, _ := r.Get(c)
	return formatValue(v)
}

// Float parses the column as a number. Thousands separators are ignored.
func (r Record) Float(c Column) (float64, error) {
	v, ok := r.Get(c)
	if !ok {
		return 0, errors.Reason("no column %s in schema %s", c, r.schema)
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(x), ",", ""), 64)
		if err != nil {
			return 0, errors.Annotate(err, "column %s is not a number: '%s'", c, x)
		}
		return f, nil
	}
	return 0, errors.Reason("column %s has unsupported type %T", c, v)
}

// Map returns the record as a {column -> value} map.
func (r Record) Map() map[Column]Value {
	m := make(map[Column]Value, len(r.schema))
	for i, c := range r.schema {
		m[c] = r.values[i]
	}
	return m
}

// CSV implements table.Row.
func (r Record) CSV() []string {
	res := make([]string, len(r.values))
	for i, v := range r.values {
		res[i] = formatValue(v)
	}
	return res
}

// labelRows converts all rows into records of the schema.
func labelRows(s Schema, rows [][]Value) ([]Record, error) {
	records := make([]Record, len(rows))
	for i, row := range rows {
		r, err := NewRecord(s, row)
		if err != nil {
			return nil, errors.Annotate(err, "unexpected shape of row %d", i)
		}
		records[i] = r
	}
	return records, nil
}
