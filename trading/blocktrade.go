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
	"github.com/stockparfait/cnquotes/message"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// DefaultBlockVolume is the default block trade threshold in lots.
const DefaultBlockVolume = 400

// sharesPerLot converts lots to shares.
const sharesPerLot = 100

// codePrefixLen is the length of the market marker prepended by Sina to the
// stock code field.
const codePrefixLen = 2

// BlockTradeOptions of BlockTrades.
type BlockTradeOptions struct {
	Date dates.Date `json:"date"`             // zero value: today in Shanghai
	Vol  int        `json:"vol" default:"400"` // minimum volume in lots; 0 means the default
}

var _ message.Message = &BlockTradeOptions{}

// InitMessage implements message.Message.
func (o *BlockTradeOptions) InitMessage(js any) error {
	return errors.Annotate(message.Init(o, js), "failed to init from JSON")
}

// NewBlockTradeOptions creates the default options.
func NewBlockTradeOptions() *BlockTradeOptions {
	var o BlockTradeOptions
	if err := o.InitMessage(map[string]any{}); err != nil {
		panic(errors.Annotate(err, "failed to init default BlockTradeOptions"))
	}
	return &o
}

// blockTradeRow strips the market marker from the code field and labels the
// row.
func blockTradeRow(row []string) (Record, error) {
	if len(row) == 0 || len(row[0]) < codePrefixLen {
		return Record{}, errors.Reason("malformed code field in %v", row)
	}
	fields := make([]string, len(row))
	copy(fields, row)
	fields[0] = fields[0][codePrefixLen:]
	return NewStringRecord(BlockTradeSchema, fields)
}

// BlockTrades fetches the trades of the stock with volume of at least opts.Vol
// lots on opts.Date. A nil opts means NewBlockTradeOptions().
func (f *Fetcher) BlockTrades(ctx context.Context, code string, opts *BlockTradeOptions) ([]Record, error) {
	if opts == nil {
		opts = NewBlockTradeOptions()
	}
	sym, err := normalizeStock(code)
	if err != nil {
		return nil, err
	}
	vol := opts.Vol
	switch {
	case vol < 0:
		return nil, errors.Reason("invalid input: negative volume %d", vol)
	case vol == 0:
		vol = DefaultBlockVolume
	}
	date := opts.Date
	if date.IsZero() {
		date = dates.DateInShanghai(f.now())
	}
	uri, err := f.endpoints.BlockTradesURL(sym, vol*sharesPerLot, date.String())
	if err != nil {
		return nil, errors.Annotate(err, "invalid input")
	}
	body, ok, err := f.get(ctx, uri)
	if err != nil || !ok {
		return nil, err
	}
	rows, err := f.decodeRows(body, ',')
	if err != nil {
		return nil, errors.Annotate(err, "failed to parse block trades of %s", sym)
	}
	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		r, err := blockTradeRow(row)
		if err != nil {
			return nil, errors.Annotate(err, "unexpected shape of block trade row %d", i)
		}
		records = append(records, r)
	}
	logging.Debugf(ctx, "fetched %d block trades of %s on %s", len(records), sym, date)
	return records, nil
}
