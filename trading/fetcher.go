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
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stockparfait/cnquotes/message"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
)

// Config of the Fetcher.
type Config struct {
	Endpoints *Endpoints `json:"endpoints"`
	// Encoding of the Sina text downloads.
	Encoding string `json:"encoding" default:"gbk" choices:"gbk,gb18030,utf-8"`
	// StrictTransport makes non-200 responses a *TransportError rather than an
	// empty result.
	StrictTransport bool `json:"strict_transport"`
}

var _ message.Message = &Config{}

// InitMessage implements message.Message.
func (c *Config) InitMessage(js any) error {
	if err := message.Init(c, js); err != nil {
		return errors.Annotate(err, "failed to init from JSON")
	}
	if c.Endpoints == nil {
		c.Endpoints = DefaultEndpoints()
	}
	return nil
}

// NewConfig creates the default Config.
func NewConfig() *Config {
	var c Config
	if err := c.InitMessage(map[string]any{}); err != nil {
		panic(errors.Annotate(err, "failed to init default Config"))
	}
	return &c
}

// TransportError is a failed request or a non-200 response. It is returned
// only with Config.StrictTransport.
type TransportError struct {
	URL    string
	Status int   // HTTP status; 0 if no response was received
	Err    error // the cause, if any
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request to %s failed: %s", e.URL, e.Err.Error())
	}
	return fmt.Sprintf("request to %s failed with status %d", e.URL, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Fetcher implements the market data operations. It holds no mutable state and
// is safe for concurrent use.
type Fetcher struct {
	endpoints *Endpoints
	decode    TextDecoder
	strict    bool
	now       func() time.Time
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithDecoder overrides the text decoder selected by Config.Encoding.
func WithDecoder(d TextDecoder) Option {
	return func(f *Fetcher) {
		f.decode = d
	}
}

// WithClock sets the source of the current time, used for the default date of
// block trades.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		f.now = now
	}
}

// New creates a Fetcher. A nil config means NewConfig().
func New(c *Config, opts ...Option) (*Fetcher, error) {
	if c == nil {
		c = NewConfig()
	}
	e := c.Endpoints
	if e == nil {
		e = DefaultEndpoints()
	}
	if err := e.Validate(); err != nil {
		return nil, errors.Annotate(err, "invalid endpoints")
	}
	d, err := DecoderByName(c.Encoding)
	if err != nil {
		return nil, errors.Annotate(err, "invalid config")
	}
	f := &Fetcher{
		endpoints: e.Copy(),
		decode:    d,
		strict:    c.StrictTransport,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Endpoints returns a copy of the Fetcher's endpoints.
func (f *Fetcher) Endpoints() *Endpoints {
	return f.endpoints.Copy()
}

// failed handles a transport failure: in strict mode it is an error, otherwise
// the caller returns an empty result.
func (f *Fetcher) failed(ctx context.Context, uri string, status int, cause error) error {
	err := &TransportError{URL: uri, Status: status, Err: cause}
	if f.strict {
		return err
	}
	logging.Warningf(ctx, "%s; returning no data", err.Error())
	return nil
}

// transportCause extracts the reportable cause of a failed request. The Error
// method of a retriable error without a cause, as fetch returns for 5xx
// statuses, must not be called, so it is replaced by a plain error.
func transportCause(err error) error {
	var re *fetch.RetriableError
	if stderrors.As(err, &re) {
		if re.Err == nil {
			return errors.Reason("retriable failure")
		}
		return re.Err
	}
	return err
}

// get executes a single GET request, without retries. ok is false when the
// request failed and the result must be empty.
func (f *Fetcher) get(ctx context.Context, uri string) (body []byte, ok bool, err error) {
	logging.Debugf(ctx, "GET %s", uri)
	resp, err := fetch.GetRetry(ctx, uri, nil, fetch.NewParams().Retries(0))
	if resp != nil {
		defer resp.Body.Close()
	}
	switch {
	case resp != nil && (err != nil || resp.StatusCode != http.StatusOK):
		// fetch reports non-2xx statuses as errors; only the status is kept.
		return nil, false, f.failed(ctx, uri, resp.StatusCode, nil)
	case err != nil:
		return nil, false, f.failed(ctx, uri, 0, transportCause(err))
	case resp == nil:
		return nil, false, f.failed(ctx, uri, 0, errors.Reason("no response"))
	}
	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, f.failed(ctx, uri, resp.StatusCode, err)
	}
	return body, true, nil
}
