/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

// ManifestFileName is the optional per-series metadata file in a series
// root. Directories without one are indexed from filenames alone.
const ManifestFileName = "series.json"

// Manifest is the on-disk series metadata.
type Manifest struct {
	Title     string            `json:"title"`
	Author    string            `json:"author,omitempty"`
	Language  string            `json:"language,omitempty"`
	TrackerID int64             `json:"tracker_id,omitempty"`
	Chapters  []ManifestChapter `json:"chapters,omitempty"`
}

// ManifestChapter pins a title and number to one archive file.
type ManifestChapter struct {
	File   string  `json:"file"`
	Title  string  `json:"title,omitempty"`
	Number float64 `json:"number,omitempty"`
}

// manifestSchema validates series.json before it is trusted; a malformed
// manifest falls back to filename-based indexing rather than poisoning the
// library.
const manifestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["title"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "author": {"type": "string"},
    "language": {"type": "string"},
    "tracker_id": {"type": "integer", "minimum": 0},
    "chapters": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["file"],
        "properties": {
          "file": {"type": "string", "minLength": 1},
          "title": {"type": "string"},
          "number": {"type": "number", "minimum": 0}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

// LoadManifest reads and validates the series manifest in root. Returns
// os.ErrNotExist (wrapped) when the series has no manifest.
func LoadManifest(root string) (*Manifest, error) {
	path := filepath.Join(root, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(manifestSchema)
	docLoader := gojsonschema.NewBytesLoader(data)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, fmt.Errorf("validate manifest: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("manifest %s invalid: %s", path, strings.Join(msgs, "; "))
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if strings.TrimSpace(m.Title) == "" {
		return nil, errors.New("manifest title is empty")
	}
	return &m, nil
}

// SaveManifest writes the manifest in human-readable form.
func SaveManifest(root string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')
	return os.WriteFile(filepath.Join(root, ManifestFileName), data, 0o644)
}
