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

	"yomiko/internal/imaging"
)

// DefaultDebounce coalesces rapid-fire scroll events; only the last scroll
// position inside the window is processed.
const DefaultDebounce = 50 * time.Millisecond

// DefaultPreloadMargin is how many pages beyond the visible range stay
// decoded. It trades memory for scroll smoothness.
const DefaultPreloadMargin = 1

// Loader drives page load/unload from viewport visibility. It is the only
// component that calls Load/Unload; the layout only arranges geometry.
type Loader struct {
	log     *slog.Logger
	layout  *Layout
	locator *Locator
	cache   *imaging.Cache
	bus     *Bus
	margin  int

	debounce *Debouncer
	// lastIndex is the last visible index processed; repeated settles on
	// the same page are skipped.
	lastIndex int
}

// NewLoader wires a loader to the layout and locator. dispatch is invoked
// on the debounce goroutine and must route the passed function through the
// owner's serialization (the document runs it under its lock).
func NewLoader(log *slog.Logger, layout *Layout, locator *Locator, cache *imaging.Cache, bus *Bus, margin int, debounce time.Duration, dispatch func(func())) *Loader {
	if margin < 0 {
		margin = 0
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ld := &Loader{
		log:       log,
		layout:    layout,
		locator:   locator,
		cache:     cache,
		bus:       bus,
		margin:    margin,
		lastIndex: -1,
	}
	ld.debounce = NewDebouncer(debounce, func() {
		dispatch(ld.updateView)
	})
	// Deferred page-changed notifications (paged-mode slides) re-enter
	// through the same debounced path as scrolling.
	bus.Subscribe(EventPageChanged, func(Event) { ld.debounce.Trigger() })
	return ld
}

// OnScroll schedules a debounced visibility recompute. Each call restarts
// the window; pending checks are replaced, never queued.
func (ld *Loader) OnScroll() { ld.debounce.Trigger() }

// CheckNow cancels any pending debounce and recomputes immediately. Used
// when entering a paged mode, where scroll-driven updates don't apply.
func (ld *Loader) CheckNow() {
	ld.debounce.Stop()
	ld.updateView()
}

// StopPending cancels a pending debounced check. Used while a slide
// transition is in flight, when recomputing against the mid-animation
// layout would be wasted.
func (ld *Loader) StopPending() { ld.debounce.Stop() }

// Invalidate forgets the last processed index so the next check does a
// full pass even if the visible page is unchanged. Called after view or
// fit mode changes.
func (ld *Loader) Invalidate() { ld.lastIndex = -1 }

// updateView locates the visible range, loads every page inside the
// preload window, unloads everything outside it, and re-arranges to
// account for changed footprints. When scrolling has settled on a new
// page it moves the cursor and emits page-changed — once per settle
// point, not once per scroll tick.
func (ld *Loader) updateView() {
	idx := ld.locator.VisibleIndex()
	if idx < 0 {
		return
	}
	if idx == ld.lastIndex {
		return
	}
	minVis, maxVis := ld.locator.VisibleRange()
	if minVis < 0 {
		minVis, maxVis = idx, idx
	}
	ld.loadWindow(minVis, maxVis)
	if idx != ld.layout.CurrentIndex() {
		ld.layout.setCurrent(idx)
		ld.bus.publish(Event{Type: EventPageChanged, Index: idx})
	}
	ld.lastIndex = idx
}

// loadWindow expands [minVis, maxVis] by the preload margin, clamped to
// the document, loads every page inside the window, unloads all other
// pages and re-arranges.
func (ld *Loader) loadWindow(minVis, maxVis int) {
	count := ld.layout.PageCount()
	lo := minVis - ld.margin
	if lo < 0 {
		lo = 0
	}
	hi := maxVis + ld.margin
	if hi > count-1 {
		hi = count - 1
	}

	for _, p := range ld.layout.Pages() {
		if p.Index() >= lo && p.Index() <= hi {
			wasLoaded := p.Loaded()
			p.Load(ld.cache, ld.log)
			if !wasLoaded && p.Loaded() {
				ld.bus.publish(Event{Type: EventPageLoaded, Index: p.Index()})
			}
		} else {
			p.Unload()
		}
	}
	// Unloaded pages may have changed footprint; rebuild positions.
	ld.layout.Arrange()
}

// EnsureWindow synchronously loads the preload window around idx without
// emitting page-changed; used right before explicit navigation, which
// announces itself, so the animation finds the target already decoded.
func (ld *Loader) EnsureWindow(idx int) {
	if idx < 0 || idx >= ld.layout.PageCount() {
		return
	}
	ld.loadWindow(idx, idx)
	ld.lastIndex = idx
}
