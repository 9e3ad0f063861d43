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
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/stockparfait/errors"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// TextDecoder converts a raw response body in a regional encoding to UTF-8.
type TextDecoder func(raw []byte) ([]byte, error)

// GBK decodes the encoding of the Sina text downloads.
func GBK(raw []byte) ([]byte, error) {
	b, err := simplifiedchinese.GBK.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, errors.Annotate(err, "failed to decode GBK")
	}
	return b, nil
}

// GB18030 decodes the superset of GBK.
func GB18030(raw []byte) ([]byte, error) {
	b, err := simplifiedchinese.GB18030.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, errors.Annotate(err, "failed to decode GB18030")
	}
	return b, nil
}

// UTF8 passes the body through unchanged.
func UTF8(raw []byte) ([]byte, error) {
	return raw, nil
}

// DecoderByName returns the TextDecoder for "gbk", "gb18030" or "utf-8".
func DecoderByName(name string) (TextDecoder, error) {
	switch strings.ToLower(name) {
	case "gbk":
		return GBK, nil
	case "gb18030":
		return GB18030, nil
	case "utf-8", "utf8":
		return UTF8, nil
	}
	return nil, errors.Reason("unsupported text encoding: '%s'", name)
}

// readDelimited parses the text as sep-delimited rows and drops the header.
// A text whose first line has no separator is a "no data" page and yields no
// rows.
func readDelimited(text []byte, sep rune) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = sep
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Annotate(err, "failed to parse delimited text")
	}
	if len(rows) == 0 || len(rows[0]) < 2 {
		return nil, nil
	}
	return rows[1:], nil
}
