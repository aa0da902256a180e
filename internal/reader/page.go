/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package reader

import (
	"image"
	"log/slog"

	"yomiko/internal/geom"
	"yomiko/internal/imaging"
)

// ViewMode is the overall reading layout paradigm.
type ViewMode int

const (
	// ContinuousVertical stacks all pages in one vertical scroll, no gaps.
	ContinuousVertical ViewMode = iota
	// ContinuousVerticalGaps stacks pages with spacing between them.
	ContinuousVerticalGaps
	// PagedLeftToRight shows one page at a time, Western reading order.
	PagedLeftToRight
	// PagedRightToLeft shows one page at a time, manga reading order.
	PagedRightToLeft
)

// Paged reports whether the mode shows a single page at a time.
func (m ViewMode) Paged() bool {
	return m == PagedLeftToRight || m == PagedRightToLeft
}

func (m ViewMode) String() string {
	switch m {
	case ContinuousVertical:
		return "continuous"
	case ContinuousVerticalGaps:
		return "continuous-gaps"
	case PagedLeftToRight:
		return "paged-ltr"
	case PagedRightToLeft:
		return "paged-rtl"
	default:
		return "unknown"
	}
}

// FitMode is the policy for scaling a page's intrinsic pixel size to the
// viewport.
type FitMode int

const (
	// FitDefault fits the page width but never upscales.
	FitDefault FitMode = iota
	// FitWidth fills the viewport width; height may overflow.
	FitWidth
	// FitOriginal shows pixels 1:1.
	FitOriginal
	// FitPage fits the entire page inside the viewport.
	FitPage
)

func (m FitMode) String() string {
	switch m {
	case FitDefault:
		return "default"
	case FitWidth:
		return "width"
	case FitOriginal:
		return "original"
	case FitPage:
		return "page"
	default:
		return "unknown"
	}
}

// scaleFor computes the fit scale for an image of intrinsic size img inside
// viewport vp. Pure function of (mode, viewport, intrinsic size).
func (m FitMode) scaleFor(img, vp geom.Size) float64 {
	if img.W <= 0 || img.H <= 0 {
		return 1.0
	}
	switch m {
	case FitOriginal:
		return 1.0
	case FitWidth:
		return vp.W / img.W
	case FitPage:
		return min(vp.W/img.W, vp.H/img.H)
	default: // FitDefault
		return min(vp.W/img.W, 1.0)
	}
}

// PageState is a page's load state.
type PageState int

const (
	// PageUnloaded means no pixels are resident; layout uses the
	// placeholder footprint.
	PageUnloaded PageState = iota
	// PageLoaded means decoded pixels are resident.
	PageLoaded
	// PageFailed means decoding failed; a fixed broken-page placeholder is
	// shown instead.
	PageFailed
	// PagePending means the source file is not available yet (for example a
	// remote page still queued for download); a loading placeholder is
	// shown and Load is retried once the source appears.
	PagePending
)

// Page is one comic page: a lazily loadable image with a stable index, a
// placeholder footprint used while its pixels are not resident, and a
// position in scene coordinates. Exactly one Page exists per archive page
// for the lifetime of a reading session; the index defines total order.
type Page struct {
	index      int
	sourcePath string
	state      PageState

	img       image.Image // decoded pixels or a placeholder; nil when Unloaded
	intrinsic geom.Size   // decoded pixel size, valid when img != nil
	expected  geom.Size   // footprint while no pixels are resident
	scale     float64

	pos     geom.Pt
	visible bool
}

// defaultPlaceholder is the footprint assumed for a page that has never
// been decoded. A typical comic page is taller than wide.
var defaultPlaceholder = geom.Size{W: 800, H: 1200}

// NewPage creates an unloaded page. sourcePath may be empty when the page
// has not been fetched yet.
func NewPage(index int, sourcePath string) *Page {
	st := PageUnloaded
	if sourcePath == "" {
		st = PagePending
	}
	return &Page{
		index:      index,
		sourcePath: sourcePath,
		state:      st,
		expected:   defaultPlaceholder,
		scale:      1.0,
		visible:    true,
	}
}

func (p *Page) Index() int       { return p.index }
func (p *Page) State() PageState { return p.state }
func (p *Page) Loaded() bool     { return p.state == PageLoaded }
func (p *Page) Visible() bool    { return p.visible }
func (p *Page) Scale() float64   { return p.scale }
func (p *Page) Pos() geom.Pt     { return p.pos }

// Image returns the resident pixels (decoded page or placeholder), or nil.
func (p *Page) Image() image.Image { return p.img }

// IntrinsicSize returns the decoded pixel size; zero until first load.
func (p *Page) IntrinsicSize() geom.Size { return p.intrinsic }

// SetSourcePath resolves a pending page once its file becomes available.
// Any loading placeholder is discarded so the next Load decodes the real
// pixels.
func (p *Page) SetSourcePath(path string) {
	p.sourcePath = path
	if p.state == PagePending && path != "" {
		p.img = nil
		p.intrinsic = geom.Size{}
		p.state = PageUnloaded
	}
}

// Load populates pixel data from the source path. It is idempotent: a
// no-op when already loaded. A page without a source stays pending and
// shows a loading placeholder. Decode failures are absorbed into the
// failed state with a broken-page placeholder; they are logged, never
// returned.
func (p *Page) Load(cache *imaging.Cache, log *slog.Logger) {
	if p.state == PageLoaded || p.state == PageFailed {
		return
	}
	if p.sourcePath == "" {
		if p.img == nil {
			p.img = imaging.LoadingPlaceholder(int(p.expected.W), int(p.expected.H))
			b := p.img.Bounds()
			p.intrinsic = geom.Size{W: float64(b.Dx()), H: float64(b.Dy())}
		}
		p.state = PagePending
		return
	}
	img, size, err := cache.Decode(p.sourcePath)
	if err != nil {
		log.Warn("page decode failed",
			slog.Int("page", p.index),
			slog.String("path", p.sourcePath),
			slog.Any("err", err))
		p.img = imaging.ErrorPlaceholder(int(p.expected.W), int(p.expected.H))
		b := p.img.Bounds()
		p.intrinsic = geom.Size{W: float64(b.Dx()), H: float64(b.Dy())}
		p.state = PageFailed
		return
	}
	p.img = img
	p.intrinsic = size
	p.expected = size
	p.state = PageLoaded
}

// Unload frees pixel data. The current scaled size is snapshotted as the
// placeholder footprint so the page keeps its extent in a continuous layout
// and the switch back to a placeholder causes no visible jump.
func (p *Page) Unload() {
	if p.img == nil {
		return
	}
	p.expected = p.intrinsic.Scaled(p.scale)
	p.img = nil
	p.scale = 1.0
	if p.state != PagePending {
		p.state = PageUnloaded
	}
}

// ApplyFit computes and stores the scale for the given fit mode and
// viewport. Pages without resident pixels keep scale 1.0; a footprint is
// not evidence of the real image size, so no scale is guessed for it.
func (p *Page) ApplyFit(mode FitMode, viewport geom.Size) {
	if p.img == nil {
		p.scale = 1.0
		return
	}
	p.scale = mode.scaleFor(p.intrinsic, viewport)
}

// FootprintSize is the bounding size used for layout: the scaled pixel size
// when pixels are resident, the placeholder footprint otherwise.
func (p *Page) FootprintSize() geom.Size {
	if p.img != nil {
		return p.intrinsic.Scaled(p.scale)
	}
	return p.expected
}

// Bounds returns the page's scene-space bounding rect.
func (p *Page) Bounds() geom.Rect {
	s := p.FootprintSize()
	return geom.Rect{X: p.pos.X, Y: p.pos.Y, W: s.W, H: s.H}
}

func (p *Page) setPos(pt geom.Pt) { p.pos = pt }
func (p *Page) setVisible(v bool) { p.visible = v }
