/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package reader

import (
	"log/slog"
	"sync"
	"time"

	"yomiko/internal/archive"
	"yomiko/internal/geom"
	"yomiko/internal/imaging"
)

// DefaultCacheSize is the per-document decoded-image LRU capacity.
const DefaultCacheSize = 32

// Options configures a document's reading state. The zero value is usable;
// unset fields fall back to the package defaults.
type Options struct {
	ViewMode      ViewMode
	FitMode       FitMode
	Spacing       float64
	PreloadMargin int
	CacheSize     int
	Debounce      time.Duration
	SlideDuration time.Duration
	Animate       bool
	Viewport      geom.Size
}

func (o *Options) fillDefaults() {
	if o.CacheSize <= 0 {
		o.CacheSize = DefaultCacheSize
	}
	if o.PreloadMargin <= 0 {
		o.PreloadMargin = DefaultPreloadMargin
	}
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.SlideDuration <= 0 {
		o.SlideDuration = DefaultSlideDuration
	}
	if o.Viewport.IsZero() {
		o.Viewport = geom.Size{W: 800, H: 600}
	}
}

// Document ties an opened archive to a layout, locator and loader, and
// serializes every mutation behind one mutex. The engine is logically
// single-threaded: host events and the loader's debounce timer both funnel
// through this lock, so no component below ever runs concurrently.
type Document struct {
	mu  sync.Mutex
	log *slog.Logger

	src    *archive.Source
	bus    *Bus
	cache  *imaging.Cache
	layout *Layout
	loc    *Locator
	loader *Loader

	slideDuration time.Duration
}

// Open builds a document over an already-opened archive source. The first
// preload window is loaded eagerly so the reader never opens onto a
// placeholder. The document takes ownership of src and closes it in Close.
func Open(log *slog.Logger, src *archive.Source, opts Options) (*Document, error) {
	opts.fillDefaults()
	cache, err := imaging.NewCache(opts.CacheSize)
	if err != nil {
		return nil, err
	}

	d := &Document{
		log:           log,
		src:           src,
		bus:           NewBus(),
		cache:         cache,
		slideDuration: opts.SlideDuration,
	}
	d.layout = NewLayout(log, d.bus, opts.ViewMode, opts.FitMode, opts.Viewport)
	d.layout.SetSpacing(opts.Spacing)
	d.layout.SetAnimate(opts.Animate)
	d.loc = NewLocator(d.layout)
	d.loader = NewLoader(log, d.layout, d.loc, cache, d.bus, opts.PreloadMargin, opts.Debounce, d.dispatch)

	pages := make([]*Page, 0, src.PageCount())
	for i := 0; i < src.PageCount(); i++ {
		path, err := src.PagePath(i)
		if err != nil {
			return nil, err
		}
		pages = append(pages, NewPage(i, path))
	}
	d.layout.AddPages(pages)
	d.loader.EnsureWindow(0)

	log.Info("document opened",
		slog.String("path", src.Origin()),
		slog.Int("pages", src.PageCount()))
	return d, nil
}

// dispatch runs fn under the document lock. The loader's debounce timer
// fires on a timer goroutine and re-enters the engine through here.
func (d *Document) dispatch(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}

// Subscribe registers a handler for an event type and returns an
// unsubscribe func. Handlers run synchronously under the document lock and
// must not call back into the document.
func (d *Document) Subscribe(t EventType, h Handler) func() {
	return d.bus.Subscribe(t, h)
}

func (d *Document) PageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.layout.PageCount()
}

func (d *Document) CurrentIndex() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.layout.CurrentIndex()
}

// Page returns the page at index, or nil when out of range. The returned
// page must only be read between engine calls.
func (d *Document) Page(i int) *Page {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.layout.Page(i)
}

func (d *Document) SceneBounds() geom.Rect {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.layout.SceneBounds()
}

func (d *Document) ViewportRect() geom.Rect {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.layout.ViewportRect()
}

// GoToPage navigates to pageNum, loading the surrounding preload window
// first so paged-mode navigation can animate onto decoded pixels.
func (d *Document) GoToPage(pageNum int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.navigate(pageNum)
}

// GoLeftPage turns one page to the visual left; in right-to-left reading
// that is the next page in reading order.
func (d *Document) GoLeftPage() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.layout.ViewMode() == PagedRightToLeft {
		d.navigate(d.layout.CurrentIndex() + 1)
	} else {
		d.navigate(d.layout.CurrentIndex() - 1)
	}
}

// GoRightPage turns one page to the visual right.
func (d *Document) GoRightPage() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.layout.ViewMode() == PagedRightToLeft {
		d.navigate(d.layout.CurrentIndex() - 1)
	} else {
		d.navigate(d.layout.CurrentIndex() + 1)
	}
}

func (d *Document) navigate(pageNum int) {
	d.loader.StopPending()
	d.loader.EnsureWindow(pageNum)
	d.layout.GoToPage(pageNum, d.slideDuration)
}

// SetViewMode switches the layout, keeping the current page in view, and
// recomputes the load window immediately since no scroll event will follow.
func (d *Document) SetViewMode(mode ViewMode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if mode == d.layout.ViewMode() {
		return
	}
	d.layout.SetViewMode(mode, d.layout.CurrentIndex())
	d.loader.Invalidate()
	d.loader.CheckNow()
}

func (d *Document) SetFitMode(mode FitMode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if mode == d.layout.FitMode() {
		return
	}
	d.layout.SetFitMode(mode)
	d.loader.Invalidate()
	d.loader.CheckNow()
}

func (d *Document) SetPageSpacing(px float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.layout.SetSpacing(px)
	d.loader.OnScroll()
}

func (d *Document) SetZoom(f float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.layout.SetZoom(f)
	d.loader.Invalidate()
	d.loader.OnScroll()
}

func (d *Document) SetAnimate(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.layout.SetAnimate(on)
}

// SetViewportSize reports a host resize; items are re-fit and the load
// window rechecked.
func (d *Document) SetViewportSize(sz geom.Size) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.layout.SetViewportSize(sz)
	d.loader.Invalidate()
	d.loader.OnScroll()
}

// ScrollBy moves the viewport and schedules a debounced visibility check,
// so a fast scroll gesture triggers a single load pass when it settles.
func (d *Document) ScrollBy(dx, dy float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.layout.ScrollBy(dx, dy)
	d.loader.OnScroll()
}

func (d *Document) ScrollTo(x, y float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.layout.ScrollTo(x, y)
	d.loader.OnScroll()
}

// Step advances the page-turn animation; the host render loop calls it once
// per frame and reports whether another frame is needed.
func (d *Document) Step(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.layout.Step(now)
}

// Close stops pending work, releases decoded images and removes the
// archive's scratch extraction. The slide is cancelled before the loader
// stops: cancelling publishes the deferred page-changed, and the loader's
// subscription to it would re-arm the debouncer after a stop.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.layout.cancelSlide()
	d.loader.StopPending()
	d.cache.Purge()
	return d.src.Close()
}
