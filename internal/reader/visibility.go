/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package reader

// Locator finds which pages intersect the viewport. It reads the layout's
// page list by index only and never mutates it.
type Locator struct {
	layout *Layout
}

func NewLocator(layout *Layout) *Locator {
	return &Locator{layout: layout}
}

// VisibleIndex returns the index of a page currently intersecting the
// viewport, preferring the one under the viewport's vertical center, or -1
// when nothing is visible.
//
// Continuous layouts stack pages top to bottom in index order, so page
// y-positions are monotonic in index and a binary search against the
// viewport center finds a hit in O(log n). Irregular heights or
// mid-transition states can break strict monotonicity, so a failed search
// falls back to a linear scan rather than trusting the invariant.
func (lc *Locator) VisibleIndex() int {
	pages := lc.layout.Pages()
	if len(pages) == 0 {
		return -1
	}
	vp := lc.layout.ViewportRect()

	if lc.layout.ViewMode().Paged() {
		for i, p := range pages {
			if p.Visible() && p.Bounds().Intersects(vp) {
				return i
			}
		}
		return -1
	}

	center := vp.Center()
	lo, hi := 0, len(pages)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		b := pages[mid].Bounds()
		if center.Y < b.Y {
			hi = mid - 1
			continue
		}
		if center.Y > b.Y+b.H {
			lo = mid + 1
			continue
		}
		if b.Intersects(vp) {
			return mid
		}
		// The center row hit a page that is horizontally outside the
		// viewport; fall through to the scan.
		break
	}

	// Fallback: the center may sit in a gap between pages, or the layout
	// may be mid-transition. Scan from the top.
	for i, p := range pages {
		if p.Bounds().Intersects(vp) {
			return i
		}
	}
	return -1
}

// VisibleRange returns the contiguous [min,max] page index range
// intersecting the viewport, or (-1,-1) when nothing is visible. In paged
// modes exactly one page is shown, so the range collapses to it.
func (lc *Locator) VisibleRange() (int, int) {
	idx := lc.VisibleIndex()
	if idx < 0 {
		return -1, -1
	}
	if lc.layout.ViewMode().Paged() {
		return idx, idx
	}

	pages := lc.layout.Pages()
	vp := lc.layout.ViewportRect()
	lo := idx
	for lo > 0 && pages[lo-1].Bounds().Intersects(vp) {
		lo--
	}
	hi := idx
	for hi < len(pages)-1 && pages[hi+1].Bounds().Intersects(vp) {
		hi++
	}
	return lo, hi
}
