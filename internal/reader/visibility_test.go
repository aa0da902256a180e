/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package reader

import (
	"testing"

	"yomiko/internal/geom"
)

// placeholderLayout builds n unloaded 500x500 placeholder pages in a
// 1000x1000 viewport: pages stack at y = 0, 500, 1000, ...
func placeholderLayout(n int, view ViewMode) *Layout {
	ly := NewLayout(testLogger(), NewBus(), view, FitWidth, geom.Size{W: 1000, H: 1000})
	pages := make([]*Page, 0, n)
	for i := 0; i < n; i++ {
		p := NewPage(i, "")
		p.expected = geom.Size{W: 500, H: 500}
		pages = append(pages, p)
	}
	ly.AddPages(pages)
	return ly
}

func TestVisibleIndexContinuous(t *testing.T) {
	ly := placeholderLayout(10, ContinuousVertical)
	loc := NewLocator(ly)

	tests := []struct {
		scrollY   float64
		wantIndex int
		wantMin   int
		wantMax   int
	}{
		{0, 1, 0, 1},      // center at 500, page 2 just touches the bottom edge
		{250, 1, 0, 2},    // three pages partially in view
		{1000, 2, 2, 3},   // center on the 2/3 boundary resolves low
		{999999, 9, 8, 9}, // clamped to the bottom of the scene
	}
	for _, tc := range tests {
		ly.ScrollTo(0, tc.scrollY)
		if got := loc.VisibleIndex(); got != tc.wantIndex {
			t.Errorf("scroll %v: index = %d, want %d", tc.scrollY, got, tc.wantIndex)
		}
		lo, hi := loc.VisibleRange()
		if lo != tc.wantMin || hi != tc.wantMax {
			t.Errorf("scroll %v: range = (%d,%d), want (%d,%d)", tc.scrollY, lo, hi, tc.wantMin, tc.wantMax)
		}
	}
}

func TestVisibleIndexInGap(t *testing.T) {
	// Spacing larger than the pages puts the viewport center between two
	// pages; the locator must still find an intersecting page.
	ly := placeholderLayout(10, ContinuousVerticalGaps)
	ly.SetSpacing(800)
	loc := NewLocator(ly)

	// Pages at y = 0, 1300, 2600, ... Center the gap: vp [300,1300),
	// center 800 hits no page, pages 0 and 1 both touch the view.
	ly.ScrollTo(0, 300)
	if got := loc.VisibleIndex(); got != 0 {
		t.Errorf("index = %d, want 0 (scan fallback)", got)
	}
}

func TestVisibleIndexPaged(t *testing.T) {
	ly := placeholderLayout(8, PagedLeftToRight)
	loc := NewLocator(ly)

	ly.GoToPage(5, 0)
	if got := loc.VisibleIndex(); got != 5 {
		t.Errorf("index = %d, want 5", got)
	}
	lo, hi := loc.VisibleRange()
	if lo != 5 || hi != 5 {
		t.Errorf("range = (%d,%d), want (5,5)", lo, hi)
	}
}

func TestVisibleIndexEmpty(t *testing.T) {
	ly := NewLayout(testLogger(), NewBus(), ContinuousVertical, FitWidth, geom.Size{W: 100, H: 100})
	loc := NewLocator(ly)
	if got := loc.VisibleIndex(); got != -1 {
		t.Errorf("index on empty layout = %d, want -1", got)
	}
	lo, hi := loc.VisibleRange()
	if lo != -1 || hi != -1 {
		t.Errorf("range on empty layout = (%d,%d), want (-1,-1)", lo, hi)
	}
}

func TestVisibleIndexIrregularHeights(t *testing.T) {
	// Mixed page heights still resolve; the fallback scan protects against
	// any monotonicity edge the search trips over.
	ly := NewLayout(testLogger(), NewBus(), ContinuousVertical, FitWidth, geom.Size{W: 1000, H: 1000})
	heights := []float64{300, 1200, 150, 700, 2000, 90}
	pages := make([]*Page, 0, len(heights))
	for i, h := range heights {
		p := NewPage(i, "")
		p.expected = geom.Size{W: 500, H: h}
		pages = append(pages, p)
	}
	ly.AddPages(pages)
	loc := NewLocator(ly)

	y := 0.0
	for i, h := range heights {
		ly.ScrollTo(0, y+h/2-500) // center the page vertically
		got := loc.VisibleIndex()
		if got < 0 {
			t.Fatalf("page %d: no visible index", i)
		}
		if !ly.Page(got).Bounds().Intersects(ly.ViewportRect()) {
			t.Errorf("page %d: returned index %d does not intersect viewport", i, got)
		}
		y += h
	}
}
