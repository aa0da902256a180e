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
	"time"

	"yomiko/internal/geom"
)

// continuousMarginFactor shrinks the sizing viewport in continuous layouts
// when the fit mode is FitDefault, leaving reading margins at the sides.
const continuousMarginFactor = 0.7

// pagedScenePadding is the slack added around the current page's bounds in
// paged modes so the image never touches the viewport edge.
const pagedScenePadding = 8

// Layout arranges the ordered page set into scene coordinates according to
// the view mode and fit mode, owns the current-page cursor and the
// page-turn transition. It never loads or unloads pixels; that is the
// loader's job.
type Layout struct {
	log *slog.Logger
	bus *Bus

	viewMode ViewMode
	fitMode  FitMode
	current  int
	spacing  float64
	viewport geom.Size
	zoom     float64
	animate  bool

	pages       []*Page // owned; insertion order = reading order
	sceneBounds geom.Rect
	scroll      geom.Pt // viewport origin in scene coordinates

	slide       *transition
	slideTimer  *time.Timer // publishes the deferred page-changed
	slideTarget int         // index the pending notification announces
}

// NewLayout creates an empty layout.
func NewLayout(log *slog.Logger, bus *Bus, view ViewMode, fit FitMode, viewport geom.Size) *Layout {
	return &Layout{
		log:      log,
		bus:      bus,
		viewMode: view,
		fitMode:  fit,
		viewport: viewport,
		zoom:     1.0,
		animate:  true,
	}
}

// AddPage appends a page and re-arranges.
func (ly *Layout) AddPage(p *Page) { ly.AddPages([]*Page{p}) }

// AddPages appends pages in reading order and re-arranges.
func (ly *Layout) AddPages(ps []*Page) {
	ly.pages = append(ly.pages, ps...)
	ly.Arrange()
}

func (ly *Layout) PageCount() int     { return len(ly.pages) }
func (ly *Layout) CurrentIndex() int  { return ly.current }
func (ly *Layout) ViewMode() ViewMode { return ly.viewMode }
func (ly *Layout) FitMode() FitMode   { return ly.fitMode }

// Page returns the page at index, or nil when out of range.
func (ly *Layout) Page(i int) *Page {
	if i < 0 || i >= len(ly.pages) {
		return nil
	}
	return ly.pages[i]
}

// Pages returns the owned page list. Callers must treat it as read-only;
// ordering is never mutated after insertion.
func (ly *Layout) Pages() []*Page { return ly.pages }

// SceneBounds returns the union of all visible item bounds after the last
// arrangement.
func (ly *Layout) SceneBounds() geom.Rect { return ly.sceneBounds }

// ViewportRect returns the viewport rectangle mapped into scene
// coordinates, accounting for scroll offset and zoom.
func (ly *Layout) ViewportRect() geom.Rect {
	z := ly.zoom
	if z <= 0 {
		z = 1.0
	}
	return geom.Rect{X: ly.scroll.X, Y: ly.scroll.Y, W: ly.viewport.W / z, H: ly.viewport.H / z}
}

// SetViewportSize updates the viewport and re-arranges.
func (ly *Layout) SetViewportSize(sz geom.Size) {
	if sz == ly.viewport {
		return
	}
	ly.viewport = sz
	ly.Arrange()
}

// SetViewMode switches the reading layout. No-op when unchanged; otherwise
// re-arranges starting at startIndex (clamped).
func (ly *Layout) SetViewMode(mode ViewMode, startIndex int) {
	if mode == ly.viewMode {
		return
	}
	ly.cancelSlide()
	ly.viewMode = mode
	ly.current = ly.clamp(startIndex)
	ly.Arrange()
}

// SetFitMode changes the scaling policy and re-arranges all items.
func (ly *Layout) SetFitMode(mode FitMode) {
	if mode == ly.fitMode {
		return
	}
	ly.fitMode = mode
	ly.Arrange()
}

// SetSpacing sets the gap between pages in the gapped continuous mode.
func (ly *Layout) SetSpacing(px float64) {
	if px < 0 {
		px = 0
	}
	ly.spacing = px
	ly.Arrange()
}

// SetZoom applies a viewport-level zoom factor, orthogonal to per-item fit.
func (ly *Layout) SetZoom(f float64) {
	if f <= 0 {
		return
	}
	ly.zoom = f
}

// Zoom returns the viewport zoom factor.
func (ly *Layout) Zoom() float64 { return ly.zoom }

// SetAnimate toggles the page-turn transition.
func (ly *Layout) SetAnimate(on bool) { ly.animate = on }

// ScrollTo moves the viewport origin, clamped to the scene bounds.
func (ly *Layout) ScrollTo(x, y float64) {
	vp := ly.ViewportRect()
	maxX := ly.sceneBounds.X + ly.sceneBounds.W - vp.W
	maxY := ly.sceneBounds.Y + ly.sceneBounds.H - vp.H
	ly.scroll.X = clampF(x, ly.sceneBounds.X, maxX)
	ly.scroll.Y = clampF(y, ly.sceneBounds.Y, maxY)
}

// ScrollBy moves the viewport origin by a delta.
func (ly *Layout) ScrollBy(dx, dy float64) {
	ly.ScrollTo(ly.scroll.X+dx, ly.scroll.Y+dy)
}

// Scroll returns the viewport origin in scene coordinates.
func (ly *Layout) Scroll() geom.Pt { return ly.scroll }

// Arrange recomputes all item positions from current state. It is
// idempotent: positions are always derived from scratch, never
// incrementally, so repeated calls with unchanged inputs produce identical
// results.
func (ly *Layout) Arrange() {
	ly.bus.publish(Event{Type: EventArrangeStarted, Index: ly.current})
	if len(ly.pages) > 0 {
		ly.current = ly.clamp(ly.current)
		if ly.viewMode.Paged() {
			ly.arrangePaged()
		} else {
			ly.arrangeContinuous()
		}
	} else {
		ly.sceneBounds = geom.Rect{}
	}
	ly.bus.publish(Event{Type: EventArrangeFinished, Index: ly.current})
}

// arrangeContinuous stacks pages top to bottom in index order. Each page is
// sized to fill the viewport width; with FitDefault the sizing viewport is
// reduced to leave reading margins. The gapless variant uses zero spacing.
func (ly *Layout) arrangeContinuous() {
	sizing := ly.viewport
	fit := FitWidth
	if ly.fitMode == FitDefault {
		sizing = ly.viewport.Scaled(continuousMarginFactor)
	}
	spacing := 0.0
	if ly.viewMode == ContinuousVerticalGaps {
		spacing = ly.spacing
	}

	// First pass: sizes. Second pass: positions, centered on the widest.
	maxW := 0.0
	for _, p := range ly.pages {
		p.setVisible(true)
		p.ApplyFit(fit, sizing)
		if w := p.FootprintSize().W; w > maxW {
			maxW = w
		}
	}

	y := 0.0
	bounds := geom.Rect{}
	for i, p := range ly.pages {
		s := p.FootprintSize()
		p.setPos(geom.Pt{X: (maxW - s.W) / 2, Y: y})
		y += s.H + spacing
		if i == 0 {
			bounds = p.Bounds()
		} else {
			bounds = bounds.Union(p.Bounds())
		}
	}
	ly.sceneBounds = bounds
}

// arrangePaged shows only the current page, centered in the viewport. All
// other pages stay in the collection but are hidden and do not contribute
// to the scene bounds, which are tightened to the current page so the view
// has no scrollable slack when the image fits.
func (ly *Layout) arrangePaged() {
	vp := ly.ViewportRect()
	cur := ly.pages[ly.current]
	for _, p := range ly.pages {
		p.setVisible(p == cur)
	}
	cur.ApplyFit(ly.fitMode, geom.Size{W: vp.W, H: vp.H})
	s := cur.FootprintSize()
	x := (vp.W - s.W) / 2
	y := (vp.H - s.H) / 2
	// When the image exceeds the viewport, anchor at the origin and let
	// the host enable scrollbars over the overflow.
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	cur.setPos(geom.Pt{X: x, Y: y})
	ly.sceneBounds = cur.Bounds().Inset(-pagedScenePadding, -pagedScenePadding)
	ly.scroll = geom.Pt{X: ly.sceneBounds.X, Y: ly.sceneBounds.Y}
}

// GoToPage navigates to pageNum. Out-of-range requests are ignored with a
// warning, never surfaced as an error. In paged modes a slide transition is
// run when animation is enabled and the target page is already loaded; the
// page-changed notification fires after the transition completes, or on
// the next scheduling tick when not animated.
func (ly *Layout) GoToPage(pageNum int, duration time.Duration) {
	if pageNum < 0 || pageNum >= len(ly.pages) {
		ly.log.Warn("page out of range",
			slog.Int("page", pageNum),
			slog.Int("count", len(ly.pages)))
		return
	}
	prev := ly.current
	ly.cancelSlide()
	ly.current = pageNum

	if !ly.viewMode.Paged() {
		ly.Arrange()
		ly.ScrollTo(ly.scroll.X, ly.pages[pageNum].Bounds().Y)
		ly.bus.publish(Event{Type: EventPageChanged, Index: pageNum})
		return
	}

	ly.Arrange()
	target := ly.pages[pageNum]
	if ly.animate && target.Loaded() && duration > 0 {
		rest := target.Pos()
		dir := 1.0 // travelling forward: slide in from the right
		if pageNum < prev {
			dir = -1.0
		}
		if ly.viewMode == PagedRightToLeft {
			dir = -dir
		}
		from := geom.Pt{X: rest.X + dir*slideDistance, Y: rest.Y}
		target.setPos(from)
		ly.slide = newTransition(target, from, rest, time.Now(), duration)
		ly.deferPageChanged(pageNum, duration)
		return
	}
	// Positions are final; the notification still waits for the next
	// scheduling tick so listeners never run inside the navigation call.
	ly.deferPageChanged(pageNum, 0)
}

// deferPageChanged arms the single deferred page-changed notification:
// after the slide duration for an animated turn, on the next tick for an
// instant one. cancelSlide flushes it if it has not fired yet.
func (ly *Layout) deferPageChanged(pageNum int, delay time.Duration) {
	ly.slideTarget = pageNum
	ly.slideTimer = time.AfterFunc(delay, func() {
		ly.bus.publish(Event{Type: EventPageChanged, Index: pageNum})
	})
}

// Step advances the in-flight slide transition, if any, and reports whether
// a transition is still animating. The host render loop calls this once per
// frame.
func (ly *Layout) Step(now time.Time) bool {
	if ly.slide == nil {
		return false
	}
	ly.slide.page.setPos(ly.slide.PosAt(now))
	if !ly.slide.Animating() {
		ly.slide = nil
		return false
	}
	return true
}

// Transitioning reports whether a page slide is in flight.
func (ly *Layout) Transitioning() bool {
	return ly.slide != nil && ly.slide.Animating()
}

// cancelSlide stops an in-flight transition, snapping its page to the
// resting position, and fires the deferred page-changed notification if it
// is still pending.
func (ly *Layout) cancelSlide() {
	if ly.slideTimer != nil {
		if ly.slideTimer.Stop() {
			ly.bus.publish(Event{Type: EventPageChanged, Index: ly.slideTarget})
		}
		ly.slideTimer = nil
	}
	if ly.slide != nil {
		ly.slide.Cancel()
		ly.slide = nil
	}
}

// GoLeftPage navigates one page to the visual left. In right-to-left
// reading the page after the current one sits to the left, so the mapping
// inverts between the paged directions: the semantically next page is
// always reached in reading order.
func (ly *Layout) GoLeftPage(duration time.Duration) {
	if ly.viewMode == PagedRightToLeft {
		ly.GoToPage(ly.current+1, duration)
	} else {
		ly.GoToPage(ly.current-1, duration)
	}
}

// GoRightPage navigates one page to the visual right.
func (ly *Layout) GoRightPage(duration time.Duration) {
	if ly.viewMode == PagedRightToLeft {
		ly.GoToPage(ly.current-1, duration)
	} else {
		ly.GoToPage(ly.current+1, duration)
	}
}

// setCurrent updates the cursor without navigation side effects; used by
// the loader when scrolling settles on a new page.
func (ly *Layout) setCurrent(i int) { ly.current = ly.clamp(i) }

func (ly *Layout) clamp(i int) int {
	if len(ly.pages) == 0 {
		return 0
	}
	if i < 0 {
		return 0
	}
	if i >= len(ly.pages) {
		return len(ly.pages) - 1
	}
	return i
}

func clampF(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
