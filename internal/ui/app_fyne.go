//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"yomiko/internal/archive"
	"yomiko/internal/config"
	"yomiko/internal/crash"
	"yomiko/internal/geom"
	"yomiko/internal/library"
	applog "yomiko/internal/log"
	"yomiko/internal/reader"
)

// Run starts the Fyne-based reader. path is the archive or directory to
// open; reading position is restored from and saved to the library index.
func Run(path string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("path", path))

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dataDir, err := config.DataDir()
	if err != nil {
		return err
	}

	var store *library.Store
	var doc *reader.Document
	saveProgress := func() error {
		if store == nil || doc == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return store.SaveProgress(ctx, path, doc.CurrentIndex(), doc.PageCount())
	}
	defer crash.Recover(dataDir, saveProgress)

	store, err = library.Open(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	src, err := archive.Open(path)
	if err != nil {
		return err
	}

	fyneApp := app.NewWithID("yomiko")
	w := fyneApp.NewWindow("Yomiko")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1000)
	winH := prefs.IntWithFallback("window.height", 1200)
	if winW < 600 {
		winW = 600
	}
	if winH < 600 {
		winH = 600
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	doc, err = reader.Open(l, src, reader.Options{
		ViewMode:      parseViewMode(cfg.Reader.ViewMode),
		FitMode:       parseFitMode(cfg.Reader.FitMode),
		Spacing:       cfg.Reader.PageSpacing,
		PreloadMargin: cfg.Reader.PreloadMargin,
		CacheSize:     cfg.Reader.CacheSize,
		SlideDuration: cfg.Reader.SlideDuration(),
		Animate:       cfg.Reader.AnimatePageTurn,
		Viewport:      geom.Size{W: float64(winW), H: float64(winH)},
	})
	if err != nil {
		_ = src.Close()
		return err
	}
	defer doc.Close()

	view := newReaderView(doc)
	status := widget.NewLabel("")
	updateStatus := func(idx int) {
		fyne.Do(func() {
			status.SetText(fmt.Sprintf("Page %d / %d", idx+1, doc.PageCount()))
		})
	}
	updateStatus(doc.CurrentIndex())

	doc.Subscribe(reader.EventPageChanged, func(e reader.Event) {
		updateStatus(e.Index)
		go func() {
			if err := saveProgress(); err != nil {
				l.Warn("progress save failed", slog.Any("err", err))
			}
		}()
		fyne.Do(view.Refresh)
	})
	doc.Subscribe(reader.EventPageLoaded, func(reader.Event) {
		fyne.Do(view.Refresh)
	})

	// Resume where the last session left off.
	if p, ok, err := store.LoadProgress(context.Background(), path); err == nil && ok && !p.Finished {
		doc.GoToPage(p.Page)
	}

	w.Canvas().SetOnTypedKey(func(e *fyne.KeyEvent) {
		switch e.Name {
		case fyne.KeyLeft:
			doc.GoLeftPage()
		case fyne.KeyRight:
			doc.GoRightPage()
		case fyne.KeySpace, fyne.KeyPageDown:
			doc.ScrollBy(0, float64(winH)*0.9)
		case fyne.KeyPageUp:
			doc.ScrollBy(0, -float64(winH)*0.9)
		case fyne.KeyHome:
			doc.GoToPage(0)
		case fyne.KeyEnd:
			doc.GoToPage(doc.PageCount() - 1)
		case fyne.Key1:
			doc.SetViewMode(reader.ContinuousVertical)
		case fyne.Key2:
			doc.SetViewMode(reader.ContinuousVerticalGaps)
		case fyne.Key3:
			doc.SetViewMode(reader.PagedLeftToRight)
		case fyne.Key4:
			doc.SetViewMode(reader.PagedRightToLeft)
		case fyne.KeyW:
			doc.SetFitMode(reader.FitWidth)
		case fyne.KeyO:
			doc.SetFitMode(reader.FitOriginal)
		case fyne.KeyP:
			doc.SetFitMode(reader.FitPage)
		case fyne.KeyD:
			doc.SetFitMode(reader.FitDefault)
		case fyne.KeyEscape:
			w.Close()
		default:
			return
		}
		view.Refresh()
	})

	// Page-turn animation pump: keep refreshing while a slide is in
	// flight.
	stopAnim := make(chan struct{})
	defer close(stopAnim)
	go func() {
		tick := time.NewTicker(16 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stopAnim:
				return
			case now := <-tick.C:
				if doc.Step(now) {
					fyne.Do(view.Refresh)
				}
			}
		}
	}()

	w.SetOnClosed(func() {
		prefs.SetInt("window.width", int(w.Canvas().Size().Width))
		prefs.SetInt("window.height", int(w.Canvas().Size().Height))
		if err := saveProgress(); err != nil {
			l.Warn("progress save on close failed", slog.Any("err", err))
		}
	})

	w.SetContent(container.NewBorder(nil, status, nil, nil, view))
	doc.SetViewportSize(geom.Size{W: float64(winW), H: float64(winH)})
	w.ShowAndRun()
	return nil
}

func parseViewMode(s string) reader.ViewMode {
	switch s {
	case "continuous":
		return reader.ContinuousVertical
	case "continuous-gaps":
		return reader.ContinuousVerticalGaps
	case "paged-ltr":
		return reader.PagedLeftToRight
	default:
		return reader.PagedRightToLeft
	}
}

func parseFitMode(s string) reader.FitMode {
	switch s {
	case "width":
		return reader.FitWidth
	case "original":
		return reader.FitOriginal
	case "page":
		return reader.FitPage
	default:
		return reader.FitDefault
	}
}

// readerView paints the document's visible pages at the positions the
// layout computed, offset by the scroll origin.
type readerView struct {
	widget.BaseWidget
	doc *reader.Document
}

func newReaderView(doc *reader.Document) *readerView {
	v := &readerView{doc: doc}
	v.ExtendBaseWidget(v)
	return v
}

func (v *readerView) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 24, G: 24, B: 28, A: 255})
	return &readerViewRenderer{view: v, bg: bg, objects: []fyne.CanvasObject{bg}}
}

func (v *readerView) Scrolled(e *fyne.ScrollEvent) {
	v.doc.ScrollBy(float64(-e.Scrolled.DX), float64(-e.Scrolled.DY))
	v.Refresh()
}

func (v *readerView) Resize(sz fyne.Size) {
	v.BaseWidget.Resize(sz)
	v.doc.SetViewportSize(geom.Size{W: float64(sz.Width), H: float64(sz.Height)})
}

type readerViewRenderer struct {
	view    *readerView
	bg      *canvas.Rectangle
	images  map[int]*canvas.Image
	objects []fyne.CanvasObject
}

func (r *readerViewRenderer) MinSize() fyne.Size { return fyne.NewSize(400, 400) }

func (r *readerViewRenderer) Layout(sz fyne.Size) {
	r.bg.Resize(sz)
	r.place()
}

// place rebuilds the image objects for the currently visible pages.
func (r *readerViewRenderer) place() {
	doc := r.view.doc
	if r.images == nil {
		r.images = make(map[int]*canvas.Image)
	}
	vp := doc.ViewportRect()
	r.objects = r.objects[:0]
	r.objects = append(r.objects, r.bg)

	for i := 0; i < doc.PageCount(); i++ {
		p := doc.Page(i)
		if p == nil || !p.Visible() || p.Image() == nil {
			delete(r.images, i)
			continue
		}
		b := p.Bounds()
		if !b.Intersects(vp) {
			delete(r.images, i)
			continue
		}
		img, ok := r.images[i]
		if !ok || img.Image != p.Image() {
			img = canvas.NewImageFromImage(p.Image())
			img.FillMode = canvas.ImageFillStretch
			img.ScaleMode = canvas.ImageScaleSmooth
			r.images[i] = img
		}
		img.Move(fyne.NewPos(float32(b.X-vp.X), float32(b.Y-vp.Y)))
		img.Resize(fyne.NewSize(float32(b.W), float32(b.H)))
		r.objects = append(r.objects, img)
	}
}

func (r *readerViewRenderer) Refresh() {
	r.place()
	canvas.Refresh(r.view)
}

func (r *readerViewRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *readerViewRenderer) Destroy()                     {}
