/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package reader

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"yomiko/internal/geom"
)

// loaderFixture is a 12-page loader setup with deterministic geometry:
// 500x500 page files, 500x1500 viewport, placeholder footprints forced to
// the real size so pages sit at y = i*500 whether loaded or not.
type loaderFixture struct {
	layout *Layout
	loader *Loader
	bus    *Bus
}

func newLoaderFixture(t *testing.T, margin int) *loaderFixture {
	t.Helper()
	dir := t.TempDir()
	bus := NewBus()
	ly := NewLayout(testLogger(), bus, ContinuousVertical, FitWidth, geom.Size{W: 500, H: 1500})
	for i := 0; i < 12; i++ {
		p := NewPage(i, writePNG(t, dir, fmt.Sprintf("p%02d.png", i), 500, 500))
		p.expected = geom.Size{W: 500, H: 500}
		ly.AddPage(p)
	}
	loc := NewLocator(ly)
	// A debounce the test never waits out, so only explicit CheckNow and
	// EnsureWindow calls run the loader.
	ld := NewLoader(testLogger(), ly, loc, testCache(t), bus, margin, time.Hour, func(fn func()) { fn() })
	return &loaderFixture{layout: ly, loader: ld, bus: bus}
}

func (f *loaderFixture) loadedSet() []int {
	var got []int
	for _, p := range f.layout.Pages() {
		if p.Loaded() {
			got = append(got, p.Index())
		}
	}
	return got
}

func eqInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLoaderWindowWithMargin(t *testing.T) {
	f := newLoaderFixture(t, 2)

	// Viewport [2500,4000) covers pages 5..7; margin 2 widens to [3,9].
	f.layout.ScrollTo(0, 2500)
	f.loader.CheckNow()
	if got := f.loadedSet(); !eqInts(got, []int{3, 4, 5, 6, 7, 8, 9}) {
		t.Errorf("loaded = %v, want [3..9]", got)
	}
}

func TestLoaderWindowClampsAtEdges(t *testing.T) {
	f := newLoaderFixture(t, 3)

	// At the top, pages 0..2 are visible; the window clamps at 0.
	f.loader.CheckNow()
	if got := f.loadedSet(); !eqInts(got, []int{0, 1, 2, 3, 4, 5}) {
		t.Errorf("top window = %v, want [0..5]", got)
	}

	// At the bottom it clamps at the last page.
	f.layout.ScrollTo(0, 99999)
	f.loader.Invalidate()
	f.loader.CheckNow()
	if got := f.loadedSet(); !eqInts(got, []int{6, 7, 8, 9, 10, 11}) {
		t.Errorf("bottom window = %v, want [6..11]", got)
	}
}

func TestLoaderUnloadsOutsideWindow(t *testing.T) {
	f := newLoaderFixture(t, 1)

	f.loader.CheckNow() // window at the top
	f.layout.ScrollTo(0, 4000)
	f.loader.CheckNow()

	for _, p := range f.layout.Pages() {
		inWindow := p.Index() >= 7 && p.Index() <= 11
		if p.Loaded() != inWindow {
			t.Errorf("page %d loaded = %v, want %v", p.Index(), p.Loaded(), inWindow)
		}
	}
	// Unloaded pages keep their last footprint, so the layout is stable.
	for i, p := range f.layout.Pages() {
		if got := p.Bounds().Y; !almostEq(got, float64(i)*500) {
			t.Errorf("page %d at y=%v, want %v", i, got, float64(i)*500)
		}
	}
}

func TestLoaderPageChangedOncePerSettle(t *testing.T) {
	f := newLoaderFixture(t, 1)
	var events []int
	f.bus.Subscribe(EventPageChanged, func(e Event) { events = append(events, e.Index) })

	f.layout.ScrollTo(0, 2500)
	f.loader.CheckNow()
	// Jitter around the same settle point: no further notifications.
	f.layout.ScrollBy(0, 5)
	f.loader.CheckNow()
	f.layout.ScrollBy(0, -5)
	f.loader.CheckNow()

	if len(events) != 1 || events[0] != 6 {
		t.Errorf("events = %v, want exactly [6]", events)
	}
	if got := f.layout.CurrentIndex(); got != 6 {
		t.Errorf("current = %d, want 6", got)
	}
}

func TestLoaderInvalidateReloadsWithoutEvent(t *testing.T) {
	f := newLoaderFixture(t, 1)
	var events []int
	f.bus.Subscribe(EventPageChanged, func(e Event) { events = append(events, e.Index) })

	f.layout.ScrollTo(0, 2500)
	f.loader.CheckNow()
	f.loader.Invalidate()
	f.loader.CheckNow()

	// The window is reprocessed but the settle point is unchanged, so the
	// notification must not repeat.
	if len(events) != 1 {
		t.Errorf("events = %v, want a single notification", events)
	}
}

func TestLoaderEnsureWindowTargetsIndex(t *testing.T) {
	f := newLoaderFixture(t, 2)
	var events []int
	f.bus.Subscribe(EventPageChanged, func(e Event) { events = append(events, e.Index) })

	// The viewport still sits at the top; the window must follow the
	// requested index, not the scroll position.
	f.loader.EnsureWindow(8)
	if got := f.loadedSet(); !eqInts(got, []int{6, 7, 8, 9, 10}) {
		t.Errorf("loaded = %v, want [6..10]", got)
	}
	if len(events) != 0 {
		t.Errorf("EnsureWindow published %v, want no events", events)
	}

	f.loader.EnsureWindow(-1)
	f.loader.EnsureWindow(99)
	if got := f.loadedSet(); !eqInts(got, []int{6, 7, 8, 9, 10}) {
		t.Errorf("out-of-range EnsureWindow changed the window: %v", got)
	}
}

func TestLoaderPageLoadedEvents(t *testing.T) {
	f := newLoaderFixture(t, 0)
	var loads int
	f.bus.Subscribe(EventPageLoaded, func(Event) { loads++ })

	f.loader.CheckNow()
	if loads != 3 { // pages 0..2 visible, margin 0
		t.Errorf("page-loaded events = %d, want 3", loads)
	}
	f.loader.Invalidate()
	f.loader.CheckNow()
	if loads != 3 {
		t.Errorf("already-loaded pages re-announced: %d events", loads)
	}
}

func TestDebouncerCoalesces(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(40*time.Millisecond, func() { fired.Add(1) })

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(200 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("fired %d times, want 1", got)
	}
}

func TestDebouncerStop(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(30*time.Millisecond, func() { fired.Add(1) })
	d.Trigger()
	d.Stop()
	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("fired %d times after Stop, want 0", got)
	}
}
