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
	"strings"

	"github.com/stockparfait/cnquotes/message"
	"github.com/stockparfait/cnquotes/symbol"
	"github.com/stockparfait/errors"
)

// Granularity of price bars, also known as ktype.
type Granularity string

const (
	Daily   = Granularity("D")
	Weekly  = Granularity("W")
	Monthly = Granularity("M")
	Min5    = Granularity("5")
	Min15   = Granularity("15")
	Min30   = Granularity("30")
	Min60   = Granularity("60")
)

// ParseGranularity accepts the bar labels D, W, M in either case and the
// minute labels 5, 15, 30, 60.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToUpper(s)); g {
	case Daily, Weekly, Monthly, Min5, Min15, Min30, Min60:
		return g, nil
	}
	return "", errors.Reason("ktype input error: '%s'", s)
}

// IsMinute checks for an intraday granularity.
func (g Granularity) IsMinute() bool {
	switch g {
	case Min5, Min15, Min30, Min60:
		return true
	}
	return false
}

// Keys of Endpoints.Domains and Endpoints.Pages.
const (
	DomainIfeng      = "ifeng"
	DomainSina       = "sf"
	DomainSinaVIP    = "vsf"
	PageTickDownload = "dl"
	PageBlockTrades  = "sinadd"
)

func defaultDomains() map[string]string {
	return map[string]string{
		DomainIfeng:   "ifeng.com",
		DomainSina:    "finance.sina.com.cn",
		DomainSinaVIP: "vip.stock.finance.sina.com.cn",
	}
}

func defaultPages() map[string]string {
	return map[string]string{
		PageTickDownload: "downxls.php",
		PageBlockTrades:  "cn_bill_download.php",
	}
}

func defaultBarPaths() map[string]string {
	return map[string]string{
		string(Daily):   "akdaily",
		string(Weekly):  "akweekly",
		string(Monthly): "akmonthly",
	}
}

// Endpoints configures the upstream URL templates. Templates are fmt format
// strings with positional %s verbs:
//
//	DailyBarsURL:  protocol, ifeng domain, bar path, symbol
//	MinuteBarsURL: protocol, ifeng domain, symbol, minutes
//	TickURL:       protocol, sf domain, dl page, date, symbol
//	BlockTradeURL: protocol, vsf domain, sinadd page, symbol, volume in shares, date
//
// Missing map entries are filled from the defaults by InitMessage.
type Endpoints struct {
	Protocol      string            `json:"protocol" default:"http://"`
	Domains       map[string]string `json:"domains"`
	Pages         map[string]string `json:"pages"`
	BarPaths      map[string]string `json:"bar_paths"` // by granularity D, W, M
	DailyBarsURL  string            `json:"daily_bars_url" default:"%sapi.finance.%s/%s/?code=%s&type=last"`
	MinuteBarsURL string            `json:"minute_bars_url" default:"%sapi.finance.%s/akmin?scode=%s&type=%s"`
	TickURL       string            `json:"tick_url" default:"%smarket.%s/%s?date=%s&symbol=%s"`
	BlockTradeURL string            `json:"block_trade_url" default:"%s%s/quotes_service/view/%s?symbol=%s&num=60&page=1&sort=ticktime&asc=0&volume=%s&amount=0&type=0&day=%s"`
}

var _ message.Message = &Endpoints{}

func fillDefaults(m map[string]string, defaults map[string]string) map[string]string {
	res := make(map[string]string, len(defaults))
	for k, v := range defaults {
		res[k] = v
	}
	for k, v := range m {
		res[k] = v
	}
	return res
}

// InitMessage implements message.Message.
func (e *Endpoints) InitMessage(js any) error {
	if err := message.Init(e, js); err != nil {
		return errors.Annotate(err, "failed to init from JSON")
	}
	e.Domains = fillDefaults(e.Domains, defaultDomains())
	e.Pages = fillDefaults(e.Pages, defaultPages())
	e.BarPaths = fillDefaults(e.BarPaths, defaultBarPaths())
	return nil
}

// DefaultEndpoints of the production services.
func DefaultEndpoints() *Endpoints {
	var e Endpoints
	if err := e.InitMessage(map[string]any{}); err != nil {
		panic(errors.Annotate(err, "failed to init default Endpoints"))
	}
	return &e
}

// Copy creates a deep copy, so the original can't be modified through it.
func (e *Endpoints) Copy() *Endpoints {
	e2 := *e
	e2.Domains = fillDefaults(nil, e.Domains)
	e2.Pages = fillDefaults(nil, e.Pages)
	e2.BarPaths = fillDefaults(nil, e.BarPaths)
	return &e2
}

func lookup(m map[string]string, kind, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == "" {
		return "", errors.Reason("no %s configured for '%s'", kind, key)
	}
	return v, nil
}

// Validate checks that every template and table entry needed by the URL
// builders is present.
func (e *Endpoints) Validate() error {
	for _, d := range []string{DomainIfeng, DomainSina, DomainSinaVIP} {
		if _, err := lookup(e.Domains, "domain", d); err != nil {
			return err
		}
	}
	for _, p := range []string{PageTickDownload, PageBlockTrades} {
		if _, err := lookup(e.Pages, "page", p); err != nil {
			return err
		}
	}
	for _, g := range []Granularity{Daily, Weekly, Monthly} {
		if _, err := lookup(e.BarPaths, "bar path", string(g)); err != nil {
			return err
		}
	}
	templates := map[string]string{
		"daily_bars_url":  e.DailyBarsURL,
		"minute_bars_url": e.MinuteBarsURL,
		"tick_url":        e.TickURL,
		"block_trade_url": e.BlockTradeURL,
	}
	for name, t := range templates {
		if t == "" {
			return errors.Reason("empty URL template %s", name)
		}
	}
	return nil
}

// BarsURL is the URL of the price bars of the given granularity.
func (e *Endpoints) BarsURL(code symbol.Code, g Granularity) (string, error) {
	domain, err := lookup(e.Domains, "domain", DomainIfeng)
	if err != nil {
		return "", err
	}
	if g.IsMinute() {
		return fmt.Sprintf(e.MinuteBarsURL, e.Protocol, domain, code, string(g)), nil
	}
	path, err := lookup(e.BarPaths, "bar path", string(g))
	if err != nil {
		return "", errors.Annotate(err, "ktype input error")
	}
	return fmt.Sprintf(e.DailyBarsURL, e.Protocol, domain, path, code), nil
}

// TicksURL is the URL of the tick trades file of the date.
func (e *Endpoints) TicksURL(code symbol.Code, date string) (string, error) {
	domain, err := lookup(e.Domains, "domain", DomainSina)
	if err != nil {
		return "", err
	}
	page, err := lookup(e.Pages, "page", PageTickDownload)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(e.TickURL, e.Protocol, domain, page, date, code), nil
}

// BlockTradesURL is the URL of the block trades of the date with volume of at
// least minShares.
func (e *Endpoints) BlockTradesURL(code symbol.Code, minShares int, date string) (string, error) {
	domain, err := lookup(e.Domains, "domain", DomainSinaVIP)
	if err != nil {
		return "", err
	}
	page, err := lookup(e.Pages, "page", PageBlockTrades)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(e.BlockTradeURL, e.Protocol, domain, page, code,
		fmt.Sprintf("%d", minShares), date), nil
}
