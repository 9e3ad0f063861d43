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
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stockparfait/cnquotes/dates"
	"github.com/stockparfait/fetch"
	"golang.org/x/text/encoding/simplifiedchinese"

	. "github.com/smartystreets/goconvey/convey"
)

// redirect sends every request to the test server while recording the
// original URLs.
type redirect struct {
	target *url.URL
	mu     sync.Mutex
	urls   []string
}

func (r *redirect) RoundTrip(req *http.Request) (*http.Response, error) {
	r.mu.Lock()
	r.urls = append(r.urls, req.URL.String())
	r.mu.Unlock()
	req2 := req.Clone(req.Context())
	req2.URL.Scheme = r.target.Scheme
	req2.URL.Host = r.target.Host
	req2.Host = r.target.Host
	return http.DefaultTransport.RoundTrip(req2)
}

func (r *redirect) requested() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.urls...)
}

// useRedirect injects an HTTP client sending all requests to serverURL.
func useRedirect(ctx context.Context, serverURL string) (context.Context, *redirect) {
	target, err := url.Parse(serverURL)
	if err != nil {
		panic(err)
	}
	rd := &redirect{target: target}
	return fetch.UseClient(ctx, &http.Client{Transport: rd}), rd
}

// sameURL compares URLs ignoring the order of query parameters.
func sameURL(got, want string) bool {
	g, err := url.Parse(got)
	if err != nil {
		return false
	}
	w, err := url.Parse(want)
	if err != nil {
		return false
	}
	if g.Scheme != w.Scheme || g.Host != w.Host || g.Path != w.Path {
		return false
	}
	gq, wq := g.Query(), w.Query()
	if len(gq) != len(wq) {
		return false
	}
	for k, v := range wq {
		if fmt.Sprint(gq[k]) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

func gbk(s string) string {
	b, err := simplifiedchinese.GBK.NewEncoder().String(s)
	if err != nil {
		panic(err)
	}
	return b
}

// barsJSON creates an ifeng response with daily rows from 2020-01-01 for n
// days, oldest first. Each row has width fields.
func barsJSON(n, width int) string {
	rows := make([][]Value, n)
	for i := range rows {
		row := make([]Value, width)
		row[0] = fmt.Sprintf("2020-01-%02d", i+1)
		for j := 1; j < width; j++ {
			row[j] = fmt.Sprintf("%d.%02d", i+1, j)
		}
		rows[i] = row
	}
	b, err := json.Marshal(map[string]any{"record": rows})
	if err != nil {
		panic(err)
	}
	return string(b)
}

func datesOf(records []Record) []string {
	res := make([]string, len(records))
	for i, r := range records {
		res[i] = r.Text(Date)
	}
	return res
}

func TestTrading(t *testing.T) {
	t.Parallel()

	Convey("Fetcher with a working server", t, func() {
		server := fetch.NewTestServer()
		defer server.Close()
		server.ResponseBody = []string{"{}"}
		ctx, rd := useRedirect(context.Background(), server.URL())

		f, err := New(nil, WithClock(func() time.Time {
			return time.Date(2020, 1, 10, 17, 0, 0, 0, time.UTC)
		}))
		So(err, ShouldBeNil)

		Convey("HistData", func() {
			Convey("newest first by default", func() {
				server.ResponseBody = []string{barsJSON(10, 15)}
				records, err := f.HistData(ctx, "600848", nil)
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, 10)
				So(datesOf(records)[0], ShouldEqual, "2020-01-10")
				So(datesOf(records)[9], ShouldEqual, "2020-01-01")
				for i := 1; i < len(records); i++ {
					So(records[i-1].Text(Date) > records[i].Text(Date), ShouldBeTrue)
				}
				So(records[0].Schema().Equal(BarSchema), ShouldBeTrue)
				So(records[0].Text(Turnover), ShouldEqual, "10.14")
				urls := rd.requested()
				So(len(urls), ShouldEqual, 1)
				So(sameURL(urls[0],
					"http://api.finance.ifeng.com/akdaily/?code=sh600848&type=last"), ShouldBeTrue)
			})

			Convey("ascending keeps the source order", func() {
				server.ResponseBody = []string{barsJSON(3, 15)}
				opts := NewHistOptions()
				opts.Ascending = true
				records, err := f.HistData(ctx, "600848", opts)
				So(err, ShouldBeNil)
				So(datesOf(records), ShouldResemble, []string{"2020-01-01", "2020-01-02", "2020-01-03"})
			})

			Convey("filters by date range, bounds included", func() {
				server.ResponseBody = []string{barsJSON(10, 15)}
				opts := &HistOptions{StartDate: "2020-01-03", EndDate: "2020-01-05"}
				records, err := f.HistData(ctx, "600848", opts)
				So(err, ShouldBeNil)
				So(datesOf(records), ShouldResemble, []string{"2020-01-05", "2020-01-04", "2020-01-03"})
			})

			Convey("filters ascending bars", func() {
				server.ResponseBody = []string{barsJSON(10, 15)}
				opts := &HistOptions{StartDate: "2020-01-03", EndDate: "2020-01-05", Ascending: true}
				records, err := f.HistData(ctx, "600848", opts)
				So(err, ShouldBeNil)
				So(datesOf(records), ShouldResemble, []string{"2020-01-03", "2020-01-04", "2020-01-05"})
			})

			Convey("a single date bound does not filter", func() {
				server.ResponseBody = []string{barsJSON(10, 15)}
				records, err := f.HistData(ctx, "600848", &HistOptions{StartDate: "2020-01-03"})
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, 10)
			})

			Convey("empty range result", func() {
				server.ResponseBody = []string{barsJSON(10, 15)}
				opts := &HistOptions{StartDate: "2021-01-01", EndDate: "2021-02-01"}
				records, err := f.HistData(ctx, "600848", opts)
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, 0)
			})

			Convey("intraday timestamps", func() {
				server.ResponseBody = []string{`{"record": [
["2020-01-03 10:30:00", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14],
["2020-01-03 11:30:00", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14],
["2020-01-06 10:30:00", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14]]}`}
				opts := &HistOptions{KType: "30", StartDate: "2020-01-03", EndDate: "2020-01-03"}
				records, err := f.HistData(ctx, "000001", opts)
				So(err, ShouldBeNil)
				So(datesOf(records), ShouldResemble, []string{"2020-01-03 11:30:00", "2020-01-03 10:30:00"})
				v, ok := records[0].Get(Turnover)
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, 14.0)
				urls := rd.requested()
				So(len(urls), ShouldEqual, 1)
				So(sameURL(urls[0], "http://api.finance.ifeng.com/akmin?scode=sz000001&type=30"), ShouldBeTrue)
			})

			Convey("index schema for index labels", func() {
				server.ResponseBody = []string{barsJSON(2, 14)}
				records, err := f.HistData(ctx, "hs300", &HistOptions{KType: "w"})
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, 2)
				So(records[0].Schema().Equal(IndexBarSchema), ShouldBeTrue)
				So(sameURL(rd.requested()[0],
					"http://api.finance.ifeng.com/akweekly/?code=sz399300&type=last"), ShouldBeTrue)
			})

			Convey("row width 14 overrides the stock schema", func() {
				server.ResponseBody = []string{barsJSON(3, 14)}
				records, err := f.HistData(ctx, "600848", nil)
				So(err, ShouldBeNil)
				for _, r := range records {
					So(r.Schema().Equal(IndexBarSchema), ShouldBeTrue)
					So(len(r.Map()), ShouldEqual, 14)
					_, ok := r.Get(Turnover)
					So(ok, ShouldBeFalse)
				}
			})

			Convey("no records", func() {
				server.ResponseBody = []string{`{"record": []}`}
				records, err := f.HistData(ctx, "600848", nil)
				So(err, ShouldBeNil)
				So(records, ShouldBeNil)
			})

			Convey("no record field", func() {
				records, err := f.HistData(ctx, "600848", nil)
				So(err, ShouldBeNil)
				So(records, ShouldBeNil)
			})

			Convey("invalid input makes no request", func() {
				_, err := f.HistData(ctx, "60084", nil)
				So(err, ShouldNotBeNil)
				_, err = f.HistData(ctx, "600848", &HistOptions{KType: "Y"})
				So(err, ShouldNotBeNil)
				_, err = f.HistData(ctx, "600848", &HistOptions{StartDate: "yesterday", EndDate: "2020-01-01"})
				So(err, ShouldNotBeNil)
				So(len(rd.requested()), ShouldEqual, 0)
			})

			Convey("malformed bodies are errors", func() {
				inRange := &HistOptions{StartDate: "2020-01-01", EndDate: "2020-01-05"}

				Convey("bad JSON", func() {
					server.ResponseBody = []string{`not json`}
					_, err := f.HistData(ctx, "600848", nil)
					So(err, ShouldNotBeNil)
				})

				Convey("unexpected row width", func() {
					server.ResponseBody = []string{`{"record": [["2020-01-01", "1"]]}`}
					_, err := f.HistData(ctx, "600848", nil)
					So(err, ShouldNotBeNil)
				})

				Convey("bad timestamp", func() {
					server.ResponseBody = []string{`{"record": [["01/02/2020", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13]]}`}
					_, err := f.HistData(ctx, "600848", inRange)
					So(err, ShouldNotBeNil)
				})

				Convey("numeric timestamp", func() {
					server.ResponseBody = []string{`{"record": [[20200101, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13]]}`}
					_, err := f.HistData(ctx, "600848", inRange)
					So(err, ShouldNotBeNil)
				})
			})
		})

		Convey("TickData", func() {
			Convey("parses GBK tab-separated ticks", func() {
				server.ResponseBody = []string{gbk(
					"成交时间\t成交价\t价格变动\t成交量(手)\t成交额(元)\t性质\n" +
						"15:00:00\t9.96\t0.01\t1659\t1652364\t卖盘\n" +
						"14:56:57\t9.95\t--\t33\t32835\t中性盘\n")}
				records, err := f.TickData(ctx, "600848", "2020-01-03")
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, 2)
				So(records[0].Map(), ShouldResemble, map[Column]Value{
					Time: "15:00:00", Price: "9.96", Change: "0.01",
					Volume: "1659", Amount: "1652364", Type: "卖盘",
				})
				So(records[1].Text(Type), ShouldEqual, "中性盘")
				urls := rd.requested()
				So(len(urls), ShouldEqual, 1)
				So(sameURL(urls[0],
					"http://market.finance.sina.com.cn/downxls.php?date=2020-01-03&symbol=sh600848"),
					ShouldBeTrue)
			})

			Convey("empty date makes no request", func() {
				records, err := f.TickData(ctx, "600848", "")
				So(err, ShouldBeNil)
				So(records, ShouldBeNil)
				So(len(rd.requested()), ShouldEqual, 0)
			})

			Convey("no-data page", func() {
				server.ResponseBody = []string{gbk(`<script language="javascript">alert("当天没有数据");</script>`)}
				records, err := f.TickData(ctx, "600848", "2020-01-04")
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, 0)
			})

			Convey("invalid input", func() {
				_, err := f.TickData(ctx, "hs300", "2020-01-03")
				So(err, ShouldNotBeNil)
				_, err = f.TickData(ctx, "60084x", "2020-01-03")
				So(err, ShouldNotBeNil)
				_, err = f.TickData(ctx, "600848", "Jan 3")
				So(err, ShouldNotBeNil)
				So(len(rd.requested()), ShouldEqual, 0)
			})

			Convey("unexpected row shape", func() {
				server.ResponseBody = []string{gbk("a\tb\tc\n1\t2\t3\n")}
				_, err := f.TickData(ctx, "600848", "2020-01-03")
				So(err, ShouldNotBeNil)
			})
		})

		Convey("BlockTrades", func() {
			body := gbk("symbol,name,ticktime,price,volume,prev_price,kind\n" +
				"sh600848,上海临港,14:59:57,18.11,58800,18.10,买盘\n" +
				"sh600848,上海临港,14:31:09,18.05,41000,18.06,卖盘\n")

			Convey("strips the code prefix", func() {
				server.ResponseBody = []string{body}
				opts := &BlockTradeOptions{Date: dates.NewDate(2020, 1, 3)}
				records, err := f.BlockTrades(ctx, "600848", opts)
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, 2)
				So(records[0].Map(), ShouldResemble, map[Column]Value{
					Code: "600848", Name: "上海临港", Time: "14:59:57", Price: "18.11",
					Volume: "58800", PrePrice: "18.10", Type: "买盘",
				})
				So(records[1].Text(Type), ShouldEqual, "卖盘")
				urls := rd.requested()
				So(len(urls), ShouldEqual, 1)
				So(sameURL(urls[0], "http://vip.stock.finance.sina.com.cn/quotes_service/view/"+
					"cn_bill_download.php?symbol=sh600848&num=60&page=1&sort=ticktime&asc=0"+
					"&volume=40000&amount=0&type=0&day=2020-01-03"), ShouldBeTrue)
			})

			Convey("strips exactly two characters", func() {
				server.ResponseBody = []string{gbk("h1,h2,h3,h4,h5,h6,h7\nSHsh600848,n,t,1,2,3,x\n")}
				records, err := f.BlockTrades(ctx, "600848", nil)
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, 1)
				So(records[0].Text(Code), ShouldEqual, "sh600848")
			})

			Convey("defaults: today in Shanghai and 400 lots", func() {
				server.ResponseBody = []string{body}
				_, err := f.BlockTrades(ctx, "600848", nil)
				So(err, ShouldBeNil)
				u, err := url.Parse(rd.requested()[0])
				So(err, ShouldBeNil)
				So(u.Query().Get("day"), ShouldEqual, "2020-01-11")
				So(u.Query().Get("volume"), ShouldEqual, "40000")
			})

			Convey("custom volume in lots", func() {
				server.ResponseBody = []string{body}
				opts := NewBlockTradeOptions()
				So(opts.Vol, ShouldEqual, DefaultBlockVolume)
				opts.Vol = 1000
				_, err := f.BlockTrades(ctx, "000002", opts)
				So(err, ShouldBeNil)
				u, err := url.Parse(rd.requested()[0])
				So(err, ShouldBeNil)
				So(u.Query().Get("volume"), ShouldEqual, "100000")
				So(u.Query().Get("symbol"), ShouldEqual, "sz000002")
			})

			Convey("options from JSON", func() {
				var opts BlockTradeOptions
				So(opts.InitMessage(map[string]any{"date": "2020-01-03", "vol": 10.0}), ShouldBeNil)
				So(opts.Date, ShouldResemble, dates.NewDate(2020, 1, 3))
				So(opts.Vol, ShouldEqual, 10)
			})

			Convey("invalid input", func() {
				_, err := f.BlockTrades(ctx, "sh", nil)
				So(err, ShouldNotBeNil)
				_, err = f.BlockTrades(ctx, "600848", &BlockTradeOptions{Vol: -1})
				So(err, ShouldNotBeNil)
				So(len(rd.requested()), ShouldEqual, 0)
			})

			Convey("short code field", func() {
				server.ResponseBody = []string{gbk("h1,h2,h3,h4,h5,h6,h7\ns,n,t,1,2,3,x\n")}
				_, err := f.BlockTrades(ctx, "600848", nil)
				So(err, ShouldNotBeNil)
			})

			Convey("short row", func() {
				server.ResponseBody = []string{gbk("h1,h2,h3,h4,h5,h6,h7\nsh600848,n,t\n")}
				_, err := f.BlockTrades(ctx, "600848", nil)
				So(err, ShouldNotBeNil)
			})
		})
	})

	for _, status := range []int{http.StatusNotFound, http.StatusServiceUnavailable} {
		Convey(fmt.Sprintf("Fetcher with a server failing with %d", status), t, func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, http.StatusText(status), status)
			}))
			defer server.Close()
			ctx, rd := useRedirect(context.Background(), server.URL)

			Convey("returns no data by default, in one request each", func() {
				f, err := New(nil)
				So(err, ShouldBeNil)

				records, err := f.HistData(ctx, "600848", nil)
				So(err, ShouldBeNil)
				So(records, ShouldBeNil)
				So(len(rd.requested()), ShouldEqual, 1)

				records, err = f.TickData(ctx, "600848", "2020-01-03")
				So(err, ShouldBeNil)
				So(records, ShouldBeNil)
				So(len(rd.requested()), ShouldEqual, 2)

				records, err = f.BlockTrades(ctx, "600848", nil)
				So(err, ShouldBeNil)
				So(records, ShouldBeNil)
				So(len(rd.requested()), ShouldEqual, 3)
			})

			Convey("returns TransportError in strict mode", func() {
				c := NewConfig()
				c.StrictTransport = true
				f, err := New(c)
				So(err, ShouldBeNil)

				_, err = f.HistData(ctx, "600848", nil)
				So(err, ShouldNotBeNil)
				te, ok := err.(*TransportError)
				So(ok, ShouldBeTrue)
				So(te.URL, ShouldContainSubstring, "ifeng.com")
				So(te.Status, ShouldEqual, status)
				So(te.Err, ShouldBeNil)
				So(te.Error(), ShouldContainSubstring, fmt.Sprintf("status %d", status))
				So(len(rd.requested()), ShouldEqual, 1)

				_, err = f.TickData(ctx, "600848", "2020-01-03")
				te, ok = err.(*TransportError)
				So(ok, ShouldBeTrue)
				So(te.Status, ShouldEqual, status)

				_, err = f.BlockTrades(ctx, "600848", nil)
				te, ok = err.(*TransportError)
				So(ok, ShouldBeTrue)
				So(te.Status, ShouldEqual, status)
				So(len(rd.requested()), ShouldEqual, 3)
			})
		})
	}

	Convey("transportCause never keeps an empty retriable error", t, func() {
		cause := transportCause(&fetch.RetriableError{})
		So(cause, ShouldNotBeNil)
		So(cause.Error(), ShouldContainSubstring, "retriable")

		inner := fmt.Errorf("connection reset")
		So(transportCause(&fetch.RetriableError{Err: inner}), ShouldEqual, inner)
		So(transportCause(inner), ShouldEqual, inner)
	})

	Convey("New validates the config", t, func() {
		c := NewConfig()
		c.Encoding = "big5"
		_, err := New(c)
		So(err, ShouldNotBeNil)

		c = NewConfig()
		c.Endpoints.DailyBarsURL = ""
		_, err = New(c)
		So(err, ShouldNotBeNil)

		Convey("and copies the endpoints", func() {
			c := NewConfig()
			f, err := New(c)
			So(err, ShouldBeNil)
			c.Endpoints.Domains[DomainIfeng] = "changed"
			So(f.Endpoints().Domains[DomainIfeng], ShouldEqual, "ifeng.com")
		})

		Convey("from TOML-like JSON", func() {
			var c Config
			So(c.InitMessage(map[string]any{
				"encoding":         "utf-8",
				"strict_transport": true,
				"endpoints":        map[string]any{"protocol": "https://"},
			}), ShouldBeNil)
			So(c.StrictTransport, ShouldBeTrue)
			So(c.Endpoints.Protocol, ShouldEqual, "https://")
			So(c.Endpoints.Domains[DomainSinaVIP], ShouldEqual, "vip.stock.finance.sina.com.cn")
			_, err := New(&c)
			So(err, ShouldBeNil)
		})
	})

	Convey("WithDecoder substitutes the text decoding", t, func() {
		server := fetch.NewTestServer()
		defer server.Close()
		server.ResponseBody = []string{"time\tprice\tchange\tvolume\tamount\ttype\n09:30:00\t1\t2\t3\t4\tbuy\n"}
		ctx, _ := useRedirect(context.Background(), server.URL())
		f, err := New(nil, WithDecoder(UTF8))
		So(err, ShouldBeNil)
		records, err := f.TickData(ctx, "600848", "2020-01-03")
		So(err, ShouldBeNil)
		So(len(records), ShouldEqual, 1)
		So(records[0].Text(Type), ShouldEqual, "buy")
	})
}
