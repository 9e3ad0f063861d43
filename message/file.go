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

package message

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/stockparfait/errors"

	toml "github.com/pelletier/go-toml/v2"
)

// Format of a configuration document.
type Format string

const (
	JSON = Format("json")
	TOML = Format("toml")
)

// FormatOf guesses the format from the file extension; the default is JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".tml":
		return TOML
	}
	return JSON
}

// Parse decodes data in the given format and initializes m from it.
func Parse(m Message, data []byte, format Format) error {
	var js any
	switch format {
	case TOML:
		var obj map[string]any
		if err := toml.Unmarshal(data, &obj); err != nil {
			return errors.Annotate(err, "failed to decode TOML")
		}
		if obj == nil {
			obj = map[string]any{}
		}
		js = obj
	case JSON:
		if err := json.Unmarshal(data, &js); err != nil {
			return errors.Annotate(err, "failed to decode JSON")
		}
	default:
		return errors.Reason("unsupported format: %s", format)
	}
	if err := m.InitMessage(js); err != nil {
		return errors.Annotate(err, "failed to init message")
	}
	return nil
}

// FromFile reads a JSON or TOML file, depending on its extension, into m.
func FromFile(m Message, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Annotate(err, "failed to read '%s'", path)
	}
	if err := Parse(m, data, FormatOf(path)); err != nil {
		return errors.Annotate(err, "failed to parse '%s'", path)
	}
	return nil
}
