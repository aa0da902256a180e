/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package archive opens comic archives (CBZ/ZIP, CBR/RAR, CB7/7Z) and plain
// image directories and exposes their pages as an ordered list of readable
// file paths. Archive entries are extracted to a scratch directory up front;
// an extraction failure is fatal to opening the document.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/maruel/natural"
	"github.com/nwaples/rardecode"

	applog "yomiko/internal/log"
)

// ErrNoPages is returned when an archive or directory contains no
// supported image entries.
var ErrNoPages = errors.New("archive: no image pages found")

// Source is an opened document: an ordered set of page image files on disk.
// Pages are ordered by natural sort of their entry names, so "2.png" sorts
// before "10.png".
type Source struct {
	origin  string   // archive file or directory the source was opened from
	scratch string   // extraction dir; empty when origin is a directory
	pages   []string // absolute paths in reading order
}

// Open opens the archive or image directory at path and extracts its pages.
func Open(path string) (*Source, error) {
	l := applog.WithComponent("archive")
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return openDir(path)
	}

	scratch, err := os.MkdirTemp("", "yomiko-pages-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	var entries []extractedEntry
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".zip", ".cbz":
		entries, err = extractZip(path, scratch)
	case ".rar", ".cbr":
		entries, err = extractRar(path, scratch)
	case ".7z", ".cb7":
		entries, err = extract7z(path, scratch)
	default:
		err = fmt.Errorf("unsupported archive format: %s", ext)
	}
	if err != nil {
		_ = os.RemoveAll(scratch)
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	if len(entries) == 0 {
		_ = os.RemoveAll(scratch)
		return nil, ErrNoPages
	}

	// Reading order is the natural sort of the original entry names.
	sort.Slice(entries, func(i, j int) bool {
		return natural.Less(entries[i].name, entries[j].name)
	})
	pages := make([]string, len(entries))
	for i, e := range entries {
		pages[i] = e.path
	}

	l.Info("archive opened", slog.String("path", path), slog.Int("pages", len(pages)))
	return &Source{origin: path, scratch: scratch, pages: pages}, nil
}

// openDir treats a directory of images as a document without copying files.
func openDir(dir string) (*Source, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var pages []string
	for _, e := range ents {
		if e.IsDir() || !IsSupportedImage(e.Name()) {
			continue
		}
		pages = append(pages, filepath.Join(dir, e.Name()))
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	sort.Slice(pages, func(i, j int) bool { return natural.Less(pages[i], pages[j]) })
	return &Source{origin: dir, pages: pages}, nil
}

// Origin returns the archive file or directory this source was opened from.
func (s *Source) Origin() string { return s.origin }

// PageCount returns the number of pages in the document.
func (s *Source) PageCount() int { return len(s.pages) }

// PagePath returns the on-disk path for page index (0-based).
func (s *Source) PagePath(index int) (string, error) {
	if index < 0 || index >= len(s.pages) {
		return "", fmt.Errorf("page index %d out of range [0,%d)", index, len(s.pages))
	}
	return s.pages[index], nil
}

// Close removes the scratch directory, if any. The source is unusable
// afterwards.
func (s *Source) Close() error {
	s.pages = nil
	if s.scratch == "" {
		return nil
	}
	dir := s.scratch
	s.scratch = ""
	return os.RemoveAll(dir)
}

// IsSupportedImage reports whether the file name has a decodable image
// extension.
func IsSupportedImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".webp", ".bmp", ".gif", ".tif", ".tiff":
		return true
	default:
		return false
	}
}

// IsSupportedArchive reports whether the file name has a supported archive
// extension.
func IsSupportedArchive(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zip", ".cbz", ".rar", ".cbr", ".7z", ".cb7":
		return true
	default:
		return false
	}
}

// extractedEntry pairs the original archive entry name (used for ordering)
// with the extracted file path.
type extractedEntry struct {
	name string
	path string
}

func extractZip(archivePath, scratch string) ([]extractedEntry, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []extractedEntry
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !IsSupportedImage(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
		}
		p, err := writeEntry(scratch, len(out), f.Name, rc)
		_ = rc.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, extractedEntry{name: f.Name, path: p})
	}
	return out, nil
}

func extractRar(archivePath, scratch string) ([]extractedEntry, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := rardecode.NewReader(f, "")
	if err != nil {
		return nil, err
	}

	var out []extractedEntry
	for {
		header, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header.IsDir || !IsSupportedImage(header.Name) {
			continue
		}
		p, err := writeEntry(scratch, len(out), header.Name, r)
		if err != nil {
			return nil, err
		}
		out = append(out, extractedEntry{name: header.Name, path: p})
	}
	return out, nil
}

func extract7z(archivePath, scratch string) ([]extractedEntry, error) {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []extractedEntry
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !IsSupportedImage(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
		}
		p, err := writeEntry(scratch, len(out), f.Name, rc)
		_ = rc.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, extractedEntry{name: f.Name, path: p})
	}
	return out, nil
}

// writeEntry copies one archive entry into the scratch directory under a
// flat, collision-free name that keeps the original extension.
func writeEntry(scratch string, seq int, entryName string, r io.Reader) (string, error) {
	name := fmt.Sprintf("%06d%s", seq, strings.ToLower(filepath.Ext(entryName)))
	path := filepath.Join(scratch, name)
	w, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
