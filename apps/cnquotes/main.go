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

// Command cnquotes prints market data of Chinese A-shares.
//
// Examples:
//
//	cnquotes -kind hist -codes 600848,hs300 -start 2020-01-02 -end 2020-03-31
//	cnquotes -kind tick -codes 600848 -date 2020-01-03 -csv
//	cnquotes -kind dd -codes 600848 -vol 1000
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/stockparfait/cnquotes/dates"
	"github.com/stockparfait/cnquotes/message"
	"github.com/stockparfait/cnquotes/table"
	"github.com/stockparfait/cnquotes/trading"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/logging"
)

const (
	kindHist  = "hist"
	kindTick  = "tick"
	kindBlock = "dd"
)

type Flags struct {
	Kind      string   // required: hist, tick or dd
	Codes     []string // required
	Start     string   // hist
	End       string   // hist
	KType     string   // hist
	Ascending bool     // hist
	Date      string   // tick (required), dd
	Vol       int      // dd, in lots
	Conf      string   // JSON or TOML trading.Config
	CSV       bool
	Rows      int
	LogLevel  logging.Level
}

func splitCodes(s string) []string {
	var res []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			res = append(res, c)
		}
	}
	return res
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	var codes string
	fs := flag.NewFlagSet("cnquotes", flag.ExitOnError)
	fs.StringVar(&flags.Kind, "kind", "", "data kind: hist, tick or dd (required)")
	fs.StringVar(&codes, "codes", "", "comma separated stock codes or index labels (required)")
	fs.StringVar(&flags.Start, "start", "", "first date of bars, YYYY-MM-DD")
	fs.StringVar(&flags.End, "end", "", "last date of bars, YYYY-MM-DD")
	fs.StringVar(&flags.KType, "ktype", string(trading.Daily), "bar type: D, W, M, 5, 15, 30, 60")
	fs.BoolVar(&flags.Ascending, "ascending", false, "print bars oldest first")
	fs.StringVar(&flags.Date, "date", "", "trading day, YYYY-MM-DD; default for dd: today")
	fs.IntVar(&flags.Vol, "vol", trading.DefaultBlockVolume, "minimum block trade volume in lots")
	fs.StringVar(&flags.Conf, "conf", "", "fetcher config file, JSON or TOML")
	fs.BoolVar(&flags.CSV, "csv", false, "print tables in CSV format; default: text")
	fs.IntVar(&flags.Rows, "rows", 0, "max. rows to print per code; 0 = all")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if !message.StringIn(flags.Kind, kindHist, kindTick, kindBlock) {
		return nil, errors.Reason("-kind must be one of hist, tick, dd, got '%s'", flags.Kind)
	}
	if flags.Codes = splitCodes(codes); len(flags.Codes) == 0 {
		return nil, errors.Reason("missing required -codes argument")
	}
	if flags.Kind == kindTick && flags.Date == "" {
		return nil, errors.Reason("-kind tick requires -date")
	}
	if flags.Rows < 0 {
		return nil, errors.Reason("-rows must be non-negative")
	}
	return &flags, nil
}

func loadConfig(flags *Flags) (*trading.Config, error) {
	if flags.Conf == "" {
		return trading.NewConfig(), nil
	}
	var c trading.Config
	if err := message.FromFile(&c, flags.Conf); err != nil {
		return nil, errors.Annotate(err, "failed to load config from %s", flags.Conf)
	}
	return &c, nil
}

// fetcher binds the flags to the fetch operation of the selected kind.
func fetcher(f *trading.Fetcher, flags *Flags) (func(ctx context.Context, code string) ([]trading.Record, error), error) {
	switch flags.Kind {
	case kindHist:
		opts := &trading.HistOptions{
			StartDate: flags.Start,
			EndDate:   flags.End,
			KType:     flags.KType,
			Ascending: flags.Ascending,
		}
		return func(ctx context.Context, code string) ([]trading.Record, error) {
			return f.HistData(ctx, code, opts)
		}, nil
	case kindTick:
		return func(ctx context.Context, code string) ([]trading.Record, error) {
			return f.TickData(ctx, code, flags.Date)
		}, nil
	case kindBlock:
		opts := &trading.BlockTradeOptions{Vol: flags.Vol}
		if flags.Date != "" {
			d, err := dates.NewDateFromString(flags.Date)
			if err != nil {
				return nil, errors.Annotate(err, "invalid -date")
			}
			opts.Date = d
		}
		return func(ctx context.Context, code string) ([]trading.Record, error) {
			return f.BlockTrades(ctx, code, opts)
		}, nil
	}
	return nil, errors.Reason("unsupported kind: '%s'", flags.Kind)
}

type job struct {
	index int
	code  string
}

type result struct {
	job
	records []trading.Record
	err     error
}

// fetchAll fetches the data of all the codes in parallel. Results are in the
// order of the codes.
func fetchAll(ctx context.Context, flags *Flags) ([]result, error) {
	c, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	f, err := trading.New(c)
	if err != nil {
		return nil, errors.Annotate(err, "failed to create fetcher")
	}
	get, err := fetcher(f, flags)
	if err != nil {
		return nil, err
	}
	jobs := make([]job, len(flags.Codes))
	for i, code := range flags.Codes {
		jobs[i] = job{index: i, code: code}
	}
	pm := iterator.ParallelMap(ctx, 2*runtime.NumCPU(), iterator.FromSlice(jobs), func(j job) result {
		records, err := get(ctx, j.code)
		return result{job: j, records: records, err: err}
	})
	defer pm.Close()

	results := iterator.Reduce[result, []result](pm, []result{}, func(r result, rs []result) []result {
		return append(rs, r)
	})
	sort.Slice(results, func(i, j int) bool { return results[i].index < results[j].index })
	return results, nil
}

func printData(ctx context.Context, flags *Flags, w io.Writer) error {
	results, err := fetchAll(ctx, flags)
	if err != nil {
		return errors.Annotate(err, "failed to fetch data")
	}
	p := table.Params{Rows: flags.Rows}
	printed := 0
	for _, r := range results {
		if r.err != nil {
			return errors.Annotate(r.err, "failed to fetch %s data for %s", flags.Kind, r.code)
		}
		if len(r.records) == 0 {
			logging.Warningf(ctx, "no %s data for %s", flags.Kind, r.code)
			continue
		}
		tbl := table.NewTable(r.records[0].Schema().Header()...)
		for _, rec := range r.records {
			tbl.AddRow(rec)
		}
		if flags.CSV {
			if err := tbl.WriteCSV(w, p); err != nil {
				return errors.Annotate(err, "failed to print CSV")
			}
			printed++
			continue
		}
		if printed > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return errors.Annotate(err, "failed to print text")
			}
		}
		tbl.Title = r.code
		if err := tbl.WriteText(w, p); err != nil {
			return errors.Annotate(err, "failed to print text")
		}
		printed++
	}
	return nil
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	if err := printData(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
