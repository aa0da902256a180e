/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package archive

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// cbzEntry describes one archive entry for the test fixture: a PNG whose
// width encodes its identity so ordering can be asserted after extraction.
type cbzEntry struct {
	name  string
	width int
}

// writeTestCBZ builds a small CBZ containing the given entries in the given
// (deliberate) order and returns its path. Entries with width 0 are written
// as plain text.
func writeTestCBZ(t *testing.T, entries ...cbzEntry) string {
	t.Helper()
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("zip create %s: %v", e.name, err)
		}
		if e.width == 0 {
			if _, err := w.Write([]byte("not an image")); err != nil {
				t.Fatalf("write entry: %v", err)
			}
			continue
		}
		img := image.NewRGBA(image.Rect(0, 0, e.width, 3))
		img.Set(0, 0, color.RGBA{R: 255, A: 255})
		if err := png.Encode(w, img); err != nil {
			t.Fatalf("encode png: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	path := filepath.Join(t.TempDir(), "test.cbz")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write cbz: %v", err)
	}
	return path
}

func pageWidth(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open page: %v", err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode page config: %v", err)
	}
	return cfg.Width
}

func TestOpenCBZNaturalOrder(t *testing.T) {
	// Entry order is deliberately shuffled; names force natural and lexical
	// ordering apart (p10 < p2 lexically).
	path := writeTestCBZ(t,
		cbzEntry{"p10.png", 10},
		cbzEntry{"p2.png", 2},
		cbzEntry{"p1.png", 1},
		cbzEntry{"notes.txt", 0},
	)
	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = src.Close() }()

	if src.PageCount() != 3 {
		t.Fatalf("PageCount = %d, want 3", src.PageCount())
	}
	wantWidths := []int{1, 2, 10}
	for i, want := range wantWidths {
		p, err := src.PagePath(i)
		if err != nil {
			t.Fatalf("PagePath(%d): %v", i, err)
		}
		if got := pageWidth(t, p); got != want {
			t.Errorf("page %d width = %d, want %d (natural order violated)", i, got, want)
		}
	}
}

func TestPagePathOutOfRange(t *testing.T) {
	path := writeTestCBZ(t, cbzEntry{"a.png", 1})
	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = src.Close() }()

	if _, err := src.PagePath(-1); err == nil {
		t.Fatalf("expected error for negative index")
	}
	if _, err := src.PagePath(1); err == nil {
		t.Fatalf("expected error for index past count")
	}
}

func TestOpenEmptyArchiveFails(t *testing.T) {
	path := writeTestCBZ(t) // no entries
	if _, err := Open(path); err == nil {
		t.Fatalf("expected error opening archive with no pages")
	}
}

func TestOpenDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.png", "readme.md"} {
		var data []byte
		if filepath.Ext(name) == ".png" {
			buf := &bytes.Buffer{}
			if err := png.Encode(buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
				t.Fatalf("encode: %v", err)
			}
			data = buf.Bytes()
		} else {
			data = []byte("not an image")
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	src, err := Open(dir)
	if err != nil {
		t.Fatalf("Open dir: %v", err)
	}
	defer func() { _ = src.Close() }()

	if src.PageCount() != 2 {
		t.Fatalf("PageCount = %d, want 2", src.PageCount())
	}
	first, _ := src.PagePath(0)
	if filepath.Base(first) != "a.png" {
		t.Fatalf("first page = %s, want a.png", first)
	}
}

func TestSupportedExtensions(t *testing.T) {
	tests := []struct {
		path    string
		image   bool
		archive bool
	}{
		{"x.png", true, false},
		{"x.JPG", true, false},
		{"x.webp", true, false},
		{"x.cbz", false, true},
		{"x.CBR", false, true},
		{"x.cb7", false, true},
		{"x.txt", false, false},
		{"x", false, false},
	}
	for _, tt := range tests {
		if got := IsSupportedImage(tt.path); got != tt.image {
			t.Errorf("IsSupportedImage(%s) = %v, want %v", tt.path, got, tt.image)
		}
		if got := IsSupportedArchive(tt.path); got != tt.archive {
			t.Errorf("IsSupportedArchive(%s) = %v, want %v", tt.path, got, tt.archive)
		}
	}
}
