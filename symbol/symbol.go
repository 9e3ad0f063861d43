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

// Package symbol converts raw A-share instrument codes into the
// exchange-prefixed symbols used by the upstream quote services.
package symbol

import (
	"maps"
	"slices"

	"github.com/stockparfait/errors"
)

// Code is an exchange-prefixed symbol, e.g. sh600848 or sz000001.
type Code string

// Exchange prefixes.
const (
	Shanghai = "sh"
	Shenzhen = "sz"
)

// indexCodes maps the short index labels to their exchange symbols.
var indexCodes = map[string]Code{
	"sh":    "sh000001",
	"sz":    "sz399001",
	"hs300": "sz399300",
	"sz50":  "sh000016",
	"zxb":   "sz399005",
	"cyb":   "sz399006",
	"zx300": "sz399008",
	"zh500": "sh000905",
}

// IndexLabels returns the recognized index labels, sorted.
func IndexLabels() []string {
	return slices.Sorted(maps.Keys(indexCodes))
}

// IsIndex checks whether the code is one of the index labels.
func IsIndex(code string) bool {
	_, ok := indexCodes[code]
	return ok
}

// IsSixDigit checks that the code is exactly 6 ASCII digits.
func IsSixDigit(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// Normalize converts a raw code into its exchange symbol. Codes starting with
// 5, 6 or 9 trade in Shanghai, all other 6-digit codes in Shenzhen. Index
// labels map to the fixed index symbols. Any other input is an error, and the
// returned Code is empty.
func Normalize(code string) (Code, error) {
	if c, ok := indexCodes[code]; ok {
		return c, nil
	}
	if !IsSixDigit(code) {
		return "", errors.Reason("invalid code: '%s'", code)
	}
	switch code[0] {
	case '5', '6', '9':
		return Code(Shanghai + code), nil
	}
	return Code(Shenzhen + code), nil
}

// Exchange returns the exchange prefix of the symbol.
func (c Code) Exchange() string {
	if len(c) < 2 {
		return ""
	}
	return string(c[:2])
}

// String implements fmt.Stringer.
func (c Code) String() string { return string(c) }
