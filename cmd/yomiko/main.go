/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"yomiko/internal/archive"
	"yomiko/internal/config"
	"yomiko/internal/crash"
	"yomiko/internal/export"
	"yomiko/internal/library"
	applog "yomiko/internal/log"
	"yomiko/internal/tracker"
	"yomiko/internal/ui"
	"yomiko/internal/version"
)

func usage() {
	fmt.Println("Yomiko — comic and manga reader")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  yomiko version|-v|--version               Show version")
	fmt.Println("  yomiko info <archive>                      Print page count and origin of an archive")
	fmt.Println("  yomiko scan                                Index configured library paths")
	fmt.Println("  yomiko list                                List indexed series and chapter counts")
	fmt.Println("  yomiko recent                              Show recently read chapters")
	fmt.Println("  yomiko export <archive> <out.pdf>          Convert a chapter archive to PDF")
	fmt.Println("  yomiko track <title>                       Search the tracking service for a series")
	fmt.Println("  yomiko ui [<archive>]                      Launch desktop reader (build with -tags fyne)")
}

func main() {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	reportDir, _ := config.DataDir()
	defer crash.Recover(reportDir, nil)

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}

	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("Yomiko — comic and manga reader")
		fmt.Println(version.String())
	case "info":
		if len(args) < 3 {
			fmt.Println("info requires <archive>")
			usage()
			os.Exit(2)
		}
		runInfo(l, args[2])
	case "scan":
		runScan(l)
	case "list":
		runList(l)
	case "recent":
		runRecent(l)
	case "export":
		if len(args) < 4 {
			fmt.Println("export requires <archive> and <out.pdf>")
			usage()
			os.Exit(2)
		}
		runExport(l, args[2], args[3])
	case "track":
		if len(args) < 3 {
			fmt.Println("track requires <title>")
			usage()
			os.Exit(2)
		}
		runTrack(l, args[2])
	case "ui":
		var path string
		if len(args) >= 3 {
			path = args[2]
		}
		if err := ui.Run(path); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func fatal(l *slog.Logger, msg string, err error) {
	l.Error(msg, slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}

func runInfo(l *slog.Logger, path string) {
	abs, _ := filepath.Abs(path)
	src, err := archive.Open(abs)
	if err != nil {
		fatal(l, "open failed", err)
	}
	defer src.Close()
	fmt.Println("Origin:", src.Origin())
	fmt.Println("Pages:", src.PageCount())
}

func runScan(l *slog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		fatal(l, "config load failed", err)
	}
	if len(cfg.Library.Paths) == 0 {
		fmt.Println("No library paths configured. Add them under library.paths in the config file.")
		if p, err := config.ConfigPath(); err == nil {
			fmt.Println("Config:", p)
		}
		os.Exit(1)
	}
	store := openStore(l)
	defer store.Close()

	if err := store.Scan(context.Background(), cfg.Library.Paths); err != nil {
		fatal(l, "scan failed", err)
	}
	series, err := store.ListSeries(context.Background())
	if err != nil {
		fatal(l, "listing after scan failed", err)
	}
	fmt.Printf("Indexed %d series.\n", len(series))
}

func runList(l *slog.Logger) {
	store := openStore(l)
	defer store.Close()
	series, err := store.ListSeries(context.Background())
	if err != nil {
		fatal(l, "list failed", err)
	}
	if len(series) == 0 {
		fmt.Println("Library is empty. Run 'yomiko scan' first.")
		return
	}
	for _, s := range series {
		chapters, err := store.ListChapters(context.Background(), s.ID)
		if err != nil {
			fatal(l, "chapter list failed", err)
		}
		fmt.Printf("%s  (%d chapters)  %s\n", s.Title, len(chapters), s.Root)
	}
}

func runRecent(l *slog.Logger) {
	store := openStore(l)
	defer store.Close()
	recent, err := store.RecentlyRead(context.Background(), 10)
	if err != nil {
		fatal(l, "recent failed", err)
	}
	if len(recent) == 0 {
		fmt.Println("Nothing read yet.")
		return
	}
	for _, p := range recent {
		state := fmt.Sprintf("page %d/%d", p.Page+1, p.PageCount)
		if p.Finished {
			state = "finished"
		}
		fmt.Printf("%s  %s  %s\n", p.UpdatedAt.Format("2006-01-02 15:04"), state, p.ChapterPath)
	}
}

func runExport(l *slog.Logger, path, outPath string) {
	src, err := archive.Open(path)
	if err != nil {
		fatal(l, "open failed", err)
	}
	defer src.Close()
	title := filepath.Base(path)
	l.Info("exporting", slog.String("archive", path), slog.String("out", outPath))
	if err := export.ExportChapterPDF(src, outPath, export.PDFOptions{Title: title}); err != nil {
		fatal(l, "export failed", err)
	}
	fmt.Println("Wrote", outPath)
}

func runTrack(l *slog.Logger, title string) {
	cfg, err := config.Load()
	if err != nil {
		fatal(l, "config load failed", err)
	}
	token := config.LoadToken()
	c := tracker.NewClient(cfg.Tracker.BaseURL, token, cfg.Tracker.EffectiveTimeout(), cfg.Tracker.TLSInsecure)
	results, err := c.SearchManga(context.Background(), title)
	if err != nil {
		fatal(l, "tracker search failed", err)
	}
	if len(results) == 0 {
		fmt.Println("No results for", title)
		return
	}
	for _, m := range results {
		name := m.Romaji
		if m.English != "" {
			name = m.English
		}
		fmt.Printf("%-10d %s (%d chapters)\n", m.ID, name, m.Chapters)
	}
}

func openStore(l *slog.Logger) *library.Store {
	store, err := library.Open(mustDataDir(l))
	if err != nil {
		fatal(l, "library open failed", err)
	}
	return store
}

func mustDataDir(l *slog.Logger) string {
	dir, err := config.DataDir()
	if err != nil {
		fatal(l, "data dir unavailable", err)
	}
	return dir
}
