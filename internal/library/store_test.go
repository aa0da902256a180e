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
	"os"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenCreatesIndex(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if _, err := os.Stat(IndexPath(dir)); err != nil {
		t.Fatalf("index file missing: %v", err)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		s, err := Open(dir)
		if err != nil {
			t.Fatalf("Open round %d: %v", i, err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close round %d: %v", i, err)
		}
	}
}

func TestSeriesAndChapterUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertSeries(ctx, Series{Title: "Azumanga", Root: "/lib/azumanga"})
	if err != nil {
		t.Fatalf("UpsertSeries: %v", err)
	}
	// Re-upsert with a new title must keep the same id.
	id2, err := s.UpsertSeries(ctx, Series{Title: "Azumanga Daioh", Root: "/lib/azumanga"})
	if err != nil {
		t.Fatalf("UpsertSeries again: %v", err)
	}
	if id != id2 {
		t.Fatalf("series id changed on upsert: %d -> %d", id, id2)
	}

	for i, f := range []string{"v2.cbz", "v1.cbz"} {
		err := s.UpsertChapter(ctx, Chapter{
			SeriesID: id,
			Path:     "/lib/azumanga/" + f,
			Number:   float64(2 - i),
		})
		if err != nil {
			t.Fatalf("UpsertChapter: %v", err)
		}
	}

	series, err := s.ListSeries(ctx)
	if err != nil {
		t.Fatalf("ListSeries: %v", err)
	}
	if len(series) != 1 || series[0].Title != "Azumanga Daioh" {
		t.Fatalf("series = %+v", series)
	}
	chapters, err := s.ListChapters(ctx, id)
	if err != nil {
		t.Fatalf("ListChapters: %v", err)
	}
	if len(chapters) != 2 || chapters[0].Number != 1 || chapters[1].Number != 2 {
		t.Fatalf("chapters out of order: %+v", chapters)
	}
}

func TestProgressRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.LoadProgress(ctx, "/lib/a/v1.cbz"); err != nil || ok {
		t.Fatalf("unexpected progress before save: ok=%v err=%v", ok, err)
	}

	if err := s.SaveProgress(ctx, "/lib/a/v1.cbz", 4, 20); err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}
	p, ok, err := s.LoadProgress(ctx, "/lib/a/v1.cbz")
	if err != nil || !ok {
		t.Fatalf("LoadProgress: ok=%v err=%v", ok, err)
	}
	if p.Page != 4 || p.PageCount != 20 || p.Finished {
		t.Fatalf("progress = %+v", p)
	}

	// Landing on the last page marks the chapter finished.
	if err := s.SaveProgress(ctx, "/lib/a/v1.cbz", 19, 20); err != nil {
		t.Fatalf("SaveProgress final: %v", err)
	}
	p, _, _ = s.LoadProgress(ctx, "/lib/a/v1.cbz")
	if !p.Finished {
		t.Fatalf("final page did not finish chapter: %+v", p)
	}

	if err := s.SaveProgress(ctx, "/lib/a/v1.cbz", -1, 20); err == nil {
		t.Fatal("negative page accepted")
	}
}

func TestRecentlyRead(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, f := range []string{"a.cbz", "b.cbz", "c.cbz"} {
		if err := s.SaveProgress(ctx, "/lib/x/"+f, 1, 10); err != nil {
			t.Fatalf("SaveProgress %s: %v", f, err)
		}
	}
	recent, err := s.RecentlyRead(ctx, 2)
	if err != nil {
		t.Fatalf("RecentlyRead: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent = %d rows, want 2", len(recent))
	}
}

func TestScanIndexesSeries(t *testing.T) {
	root := t.TempDir()
	seriesDir := filepath.Join(root, "one-piece")
	if err := os.MkdirAll(seriesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// Natural order: vol2 before vol10.
	for _, f := range []string{"vol10.cbz", "vol2.cbz", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(seriesDir, f), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := SaveManifest(seriesDir, &Manifest{
		Title:  "One Piece",
		Author: "Eiichiro Oda",
		Chapters: []ManifestChapter{
			{File: "vol2.cbz", Title: "Volume 2", Number: 2},
			{File: "vol10.cbz", Title: "Volume 10", Number: 10},
		},
	}); err != nil {
		t.Fatalf("SaveManifest: %v", err)
	}

	s := openTestStore(t)
	ctx := context.Background()
	if err := s.Scan(ctx, []string{root}); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	series, err := s.ListSeries(ctx)
	if err != nil || len(series) != 1 {
		t.Fatalf("series = %+v, err %v", series, err)
	}
	if series[0].Title != "One Piece" || series[0].Author != "Eiichiro Oda" {
		t.Fatalf("manifest metadata not applied: %+v", series[0])
	}
	chapters, err := s.ListChapters(ctx, series[0].ID)
	if err != nil {
		t.Fatalf("ListChapters: %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("chapters = %+v", chapters)
	}
	if chapters[0].Title != "Volume 2" || chapters[1].Title != "Volume 10" {
		t.Fatalf("chapter titles/order wrong: %+v", chapters)
	}
}

func TestScanWithoutManifest(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "yotsuba")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ch1.cbz"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := openTestStore(t)
	ctx := context.Background()
	if err := s.Scan(ctx, []string{root}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	series, _ := s.ListSeries(ctx)
	if len(series) != 1 || series[0].Title != "yotsuba" {
		t.Fatalf("fallback title wrong: %+v", series)
	}
	chapters, _ := s.ListChapters(ctx, series[0].ID)
	if len(chapters) != 1 || chapters[0].Title != "ch1" {
		t.Fatalf("fallback chapter title wrong: %+v", chapters)
	}
}
