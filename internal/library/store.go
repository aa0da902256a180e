/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package library maintains the local index of series, chapters and reading
// progress in an embedded SQLite database.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "yomiko/internal/log"
	"yomiko/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	IndexFileName = "library.sqlite"

	// schemaVersion tracks the local SQLite schema. Bump on breaking
	// schema changes and add a migration step.
	schemaVersion = 2
)

// Store is the library index handle.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// IndexPath returns the index database path under the data directory.
func IndexPath(dataDir string) string {
	return filepath.Join(dataDir, IndexFileName)
}

// Open ensures the library index exists under dataDir, opens it, enables
// WAL mode, and brings the schema up to date.
func Open(dataDir string) (*Store, error) {
	l := applog.WithOperation(applog.WithComponent("library"), "index_init").With(
		slog.String("dir", dataDir),
	)
	if strings.TrimSpace(dataDir) == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		l.Error("create data dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	path := IndexPath(dataDir)
	uriPath := filepath.ToSlash(path)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", uriPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Embedded usage: one connection is enough and avoids writer races.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}

	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Info("library index ready", slog.String("path", path))
	return &Store{db: db, log: applog.WithComponent("library")}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS series (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			title       TEXT NOT NULL,
			root        TEXT NOT NULL UNIQUE,
			author      TEXT,
			language    TEXT,
			tracker_id  INTEGER,
			added_at    TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chapters (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			series_id  INTEGER NOT NULL REFERENCES series(id) ON DELETE CASCADE,
			path       TEXT NOT NULL UNIQUE,
			title      TEXT,
			number     REAL,
			added_at   TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS progress (
			chapter_path TEXT PRIMARY KEY,
			page         INTEGER NOT NULL,
			page_count   INTEGER NOT NULL,
			finished     INTEGER NOT NULL DEFAULT 0,
			updated_at   TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Do not downgrade; just continue with the newer on-disk schema.
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		switch next {
		case 2:
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin migration %d: %w", next, err)
			}
			stmts := []string{
				`CREATE INDEX IF NOT EXISTS idx_chapters_series ON chapters(series_id);`,
				`CREATE INDEX IF NOT EXISTS idx_progress_updated ON progress(updated_at);`,
			}
			for _, q := range stmts {
				if _, err := tx.ExecContext(ctx, q); err != nil {
					_ = tx.Rollback()
					return fmt.Errorf("migration %d stmt failed: %w", next, err)
				}
			}
			if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d update version: %w", next, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("migration %d commit: %w", next, err)
			}
		default:
			// Unknown future step; stop here.
		}
		cur = next
	}
	return nil
}

// Series is a collection of chapters under one root directory.
type Series struct {
	ID        int64
	Title     string
	Root      string
	Author    string
	Language  string
	TrackerID int64
	AddedAt   time.Time
}

// Chapter is one readable archive inside a series.
type Chapter struct {
	ID       int64
	SeriesID int64
	Path     string
	Title    string
	Number   float64
	AddedAt  time.Time
}

// Progress is the reading position inside one chapter, keyed by the
// chapter's archive path so it survives re-scans.
type Progress struct {
	ChapterPath string
	Page        int
	PageCount   int
	Finished    bool
	UpdatedAt   time.Time
}

// UpsertSeries inserts or refreshes a series keyed by its root directory
// and returns its id.
func (s *Store) UpsertSeries(ctx context.Context, sr Series) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO series (title, root, author, language, tracker_id, added_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(root) DO UPDATE SET
			title=excluded.title,
			author=excluded.author,
			language=excluded.language,
			tracker_id=excluded.tracker_id`,
		sr.Title, sr.Root, sr.Author, sr.Language, sr.TrackerID, now)
	if err != nil {
		return 0, fmt.Errorf("upsert series: %w", err)
	}
	// LastInsertId is unreliable on conflict; read the row back by key.
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM series WHERE root=?`, sr.Root).Scan(&id); err != nil {
		return 0, fmt.Errorf("read series id: %w", err)
	}
	return id, nil
}

// UpsertChapter inserts or refreshes a chapter keyed by its archive path.
func (s *Store) UpsertChapter(ctx context.Context, ch Chapter) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chapters (series_id, path, title, number, added_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			series_id=excluded.series_id,
			title=excluded.title,
			number=excluded.number`,
		ch.SeriesID, ch.Path, ch.Title, ch.Number, now)
	if err != nil {
		return fmt.Errorf("upsert chapter: %w", err)
	}
	return nil
}

// ListSeries returns all series ordered by title.
func (s *Store) ListSeries(ctx context.Context) ([]Series, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, root, COALESCE(author,''), COALESCE(language,''), COALESCE(tracker_id,0), added_at
		FROM series ORDER BY title COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()
	var out []Series
	for rows.Next() {
		var sr Series
		var added string
		if err := rows.Scan(&sr.ID, &sr.Title, &sr.Root, &sr.Author, &sr.Language, &sr.TrackerID, &added); err != nil {
			return nil, err
		}
		sr.AddedAt, _ = time.Parse(time.RFC3339, added)
		out = append(out, sr)
	}
	return out, rows.Err()
}

// ListChapters returns a series' chapters ordered by number, then path.
func (s *Store) ListChapters(ctx context.Context, seriesID int64) ([]Chapter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, series_id, path, COALESCE(title,''), COALESCE(number,0), added_at
		FROM chapters WHERE series_id=? ORDER BY number, path`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()
	var out []Chapter
	for rows.Next() {
		var ch Chapter
		var added string
		if err := rows.Scan(&ch.ID, &ch.SeriesID, &ch.Path, &ch.Title, &ch.Number, &added); err != nil {
			return nil, err
		}
		ch.AddedAt, _ = time.Parse(time.RFC3339, added)
		out = append(out, ch)
	}
	return out, rows.Err()
}

// SaveProgress records the current page in a chapter. The final page marks
// the chapter finished.
func (s *Store) SaveProgress(ctx context.Context, chapterPath string, page, pageCount int) error {
	if page < 0 || pageCount <= 0 {
		return errors.New("invalid progress")
	}
	finished := 0
	if page >= pageCount-1 {
		finished = 1
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO progress (chapter_path, page, page_count, finished, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chapter_path) DO UPDATE SET
			page=excluded.page,
			page_count=excluded.page_count,
			finished=excluded.finished,
			updated_at=excluded.updated_at`,
		chapterPath, page, pageCount, finished, now)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// LoadProgress returns the stored position for a chapter; ok is false when
// the chapter has never been opened.
func (s *Store) LoadProgress(ctx context.Context, chapterPath string) (Progress, bool, error) {
	var p Progress
	var finished int
	var updated string
	err := s.db.QueryRowContext(ctx, `
		SELECT chapter_path, page, page_count, finished, updated_at
		FROM progress WHERE chapter_path=?`, chapterPath).
		Scan(&p.ChapterPath, &p.Page, &p.PageCount, &finished, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Progress{}, false, nil
	}
	if err != nil {
		return Progress{}, false, fmt.Errorf("load progress: %w", err)
	}
	p.Finished = finished != 0
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return p, true, nil
}

// RecentlyRead returns the most recently updated progress rows.
func (s *Store) RecentlyRead(ctx context.Context, limit int) ([]Progress, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT chapter_path, page, page_count, finished, updated_at
		FROM progress ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recently read: %w", err)
	}
	defer rows.Close()
	var out []Progress
	for rows.Next() {
		var p Progress
		var finished int
		var updated string
		if err := rows.Scan(&p.ChapterPath, &p.Page, &p.PageCount, &finished, &updated); err != nil {
			return nil, err
		}
		p.Finished = finished != 0
		p.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		out = append(out, p)
	}
	return out, rows.Err()
}
