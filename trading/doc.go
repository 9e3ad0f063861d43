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

// Package trading fetches A-share price bars, tick trades and block trades
// from the public ifeng and Sina quote services.
//
// Every operation follows the same pipeline: normalize the instrument code,
// build the source URL, execute a single GET request, decode the body (JSON,
// or GBK-encoded delimited text) and label each positional row with its
// canonical Schema. The results are Records in the source's own value
// representation; no type coercion is done.
//
// A non-200 response is reported as an empty result, so "no data" and
// "service unavailable" look the same to the caller unless
// Config.StrictTransport is set, in which case the operations return a
// *TransportError instead.
//
// The HTTP client is taken from the context (see fetch.UseClient), and the
// logger from logging.Use.
package trading
