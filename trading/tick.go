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

	"github.com/stockparfait/cnquotes/dates"
	"github.com/stockparfait/cnquotes/symbol"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// normalizeStock accepts only 6-character stock codes, not index labels.
func normalizeStock(code string) (symbol.Code, error) {
	if len(code) != 6 {
		return "", errors.Reason("invalid input: code must have 6 characters: '%s'", code)
	}
	sym, err := symbol.Normalize(code)
	if err != nil {
		return "", errors.Annotate(err, "invalid input")
	}
	return sym, nil
}

// decodeRows decodes the regional text and splits it into data rows.
func (f *Fetcher) decodeRows(raw []byte, sep rune) ([][]string, error) {
	text, err := f.decode(raw)
	if err != nil {
		return nil, errors.Annotate(err, "failed to decode response")
	}
	return readDelimited(text, sep)
}

// TickData fetches all the trades of the stock on the date (YYYY-MM-DD). An
// empty date returns no data without a request.
func (f *Fetcher) TickData(ctx context.Context, code, date string) ([]Record, error) {
	if date == "" {
		return nil, nil
	}
	sym, err := normalizeStock(code)
	if err != nil {
		return nil, err
	}
	if _, err := dates.NewDateFromString(date); err != nil {
		return nil, errors.Annotate(err, "invalid input")
	}
	uri, err := f.endpoints.TicksURL(sym, date)
	if err != nil {
		return nil, errors.Annotate(err, "invalid input")
	}
	body, ok, err := f.get(ctx, uri)
	if err != nil || !ok {
		return nil, err
	}
	rows, err := f.decodeRows(body, '\t')
	if err != nil {
		return nil, errors.Annotate(err, "failed to parse ticks of %s", sym)
	}
	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		r, err := NewStringRecord(TickSchema, row)
		if err != nil {
			return nil, errors.Annotate(err, "unexpected shape of tick row %d", i)
		}
		records = append(records, r)
	}
	logging.Debugf(ctx, "fetched %d ticks of %s on %s", len(records), sym, date)
	return records, nil
}
