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
	"context"
	"encoding/json"
	"slices"

	"github.com/stockparfait/cnquotes/dates"
	"github.com/stockparfait/cnquotes/message"
	"github.com/stockparfait/cnquotes/symbol"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// HistOptions of HistData. The dates are YYYY-MM-DD; the range filter applies
// only when both are set.
type HistOptions struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	KType     string `json:"ktype" default:"D"`
	Ascending bool   `json:"ascending"` // default: newest first
}

var _ message.Message = &HistOptions{}

// InitMessage implements message.Message.
func (o *HistOptions) InitMessage(js any) error {
	return errors.Annotate(message.Init(o, js), "failed to init from JSON")
}

// NewHistOptions creates the default options.
func NewHistOptions() *HistOptions {
	var o HistOptions
	if err := o.InitMessage(map[string]any{}); err != nil {
		panic(errors.Annotate(err, "failed to init default HistOptions"))
	}
	return &o
}

// barsPage is the JSON format of the ifeng bars service.
type barsPage struct {
	Record [][]Value `json:"record"`
}

// filterRange keeps the rows whose first field, a timestamp, is within r.
func filterRange(rows [][]Value, r dates.Range) ([][]Value, error) {
	res := make([][]Value, 0, len(rows))
	for i, row := range rows {
		if len(row) == 0 {
			return nil, errors.Reason("row %d is empty", i)
		}
		s, ok := row[0].(string)
		if !ok {
			return nil, errors.Reason("row %d: timestamp is not a string: %v", i, row[0])
		}
		t, err := dates.ParseTime(s)
		if err != nil {
			return nil, errors.Annotate(err, "row %d: bad timestamp", i)
		}
		if r.Contains(t) {
			res = append(res, row)
		}
	}
	return res, nil
}

// HistData fetches the price bars of the code, which may be a 6-digit stock
// code or an index label such as "hs300". Rows are newest first unless
// opts.Ascending is set. A nil opts means NewHistOptions().
//
// Index bars have no turnover column. The index schema is used for index
// labels and for any response whose rows have 14 fields.
func (f *Fetcher) HistData(ctx context.Context, code string, opts *HistOptions) ([]Record, error) {
	if opts == nil {
		opts = NewHistOptions()
	}
	sym, err := symbol.Normalize(code)
	if err != nil {
		return nil, errors.Annotate(err, "invalid input")
	}
	ktype := opts.KType
	if ktype == "" {
		ktype = string(Daily)
	}
	g, err := ParseGranularity(ktype)
	if err != nil {
		return nil, errors.Annotate(err, "invalid input")
	}
	var dayRange *dates.Range
	if opts.StartDate != "" && opts.EndDate != "" {
		r, err := dates.NewDayRange(opts.StartDate, opts.EndDate)
		if err != nil {
			return nil, errors.Annotate(err, "invalid input")
		}
		dayRange = &r
	}
	uri, err := f.endpoints.BarsURL(sym, g)
	if err != nil {
		return nil, errors.Annotate(err, "invalid input")
	}
	schema := BarSchema
	if symbol.IsIndex(code) {
		schema = IndexBarSchema
	}

	body, ok, err := f.get(ctx, uri)
	if err != nil || !ok {
		return nil, err
	}
	var page barsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, errors.Annotate(err, "failed to parse bars of %s", sym)
	}
	rows := page.Record
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows[0]) == len(IndexBarSchema) {
		schema = IndexBarSchema
	}
	if !opts.Ascending {
		slices.Reverse(rows)
	}
	if dayRange != nil {
		if rows, err = filterRange(rows, *dayRange); err != nil {
			return nil, errors.Annotate(err, "failed to filter bars of %s", sym)
		}
	}
	records, err := labelRows(schema, rows)
	if err != nil {
		return nil, errors.Annotate(err, "failed to label bars of %s", sym)
	}
	logging.Debugf(ctx, "fetched %d %s bars of %s", len(records), g, sym)
	return records, nil
}
