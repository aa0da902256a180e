/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package library

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/maruel/natural"

	"yomiko/internal/archive"
)

// Scan walks the configured library roots and indexes every directory that
// contains comic archives as a series, with each archive as one chapter.
// A series.json manifest, when present and valid, supplies titles and
// chapter numbering; otherwise both fall back to filenames in natural
// order. Unreadable directories are logged and skipped, never fatal.
func (s *Store) Scan(ctx context.Context, roots []string) error {
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			s.log.Warn("library root unreadable", slog.String("root", root), slog.Any("err", err))
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			dir := filepath.Join(root, e.Name())
			if err := s.scanSeries(ctx, dir); err != nil {
				s.log.Warn("series scan failed", slog.String("dir", dir), slog.Any("err", err))
			}
		}
	}
	return ctx.Err()
}

func (s *Store) scanSeries(ctx context.Context, dir string) error {
	archives, err := listArchives(dir)
	if err != nil {
		return err
	}
	if len(archives) == 0 {
		return nil
	}

	sr := Series{Title: filepath.Base(dir), Root: dir}
	var manifest *Manifest
	if m, err := LoadManifest(dir); err == nil {
		manifest = m
		sr.Title = m.Title
		sr.Author = m.Author
		sr.Language = m.Language
		sr.TrackerID = m.TrackerID
	} else if !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("series manifest rejected", slog.String("dir", dir), slog.Any("err", err))
	}

	id, err := s.UpsertSeries(ctx, sr)
	if err != nil {
		return err
	}

	for i, path := range archives {
		ch := Chapter{
			SeriesID: id,
			Path:     path,
			Title:    trimExt(filepath.Base(path)),
			Number:   float64(i + 1),
		}
		if manifest != nil {
			if mc, ok := manifestChapterFor(manifest, filepath.Base(path)); ok {
				if mc.Title != "" {
					ch.Title = mc.Title
				}
				if mc.Number > 0 {
					ch.Number = mc.Number
				}
			}
		}
		if err := s.UpsertChapter(ctx, ch); err != nil {
			return err
		}
	}
	s.log.Info("series indexed",
		slog.String("title", sr.Title),
		slog.Int("chapters", len(archives)))
	return nil
}

// listArchives returns the supported archives directly inside dir in
// natural filename order.
func listArchives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !archive.IsSupportedArchive(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Slice(out, func(i, j int) bool {
		return natural.Less(filepath.Base(out[i]), filepath.Base(out[j]))
	})
	return out, nil
}

func manifestChapterFor(m *Manifest, file string) (ManifestChapter, bool) {
	for _, mc := range m.Chapters {
		if mc.File == file {
			return mc, true
		}
	}
	return ManifestChapter{}, false
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
