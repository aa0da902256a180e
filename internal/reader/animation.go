/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package reader

import (
	"math"
	"time"

	"yomiko/internal/geom"
)

// slideDistance is how far off-screen a page starts when sliding in,
// in scene units.
const slideDistance = 500

// DefaultSlideDuration is the page-turn transition length.
const DefaultSlideDuration = 400 * time.Millisecond

// TransitionState tracks a page slide. At most one transition may be
// animating per page; starting a new one cancels (snaps) the previous.
type TransitionState int

const (
	TransitionIdle TransitionState = iota
	TransitionAnimating
	TransitionSettled
)

// transition animates a page from an off-screen start position to its
// resting position. It is purely computational: the render loop samples
// PosAt and the layout decides when it is finished.
type transition struct {
	page     *Page
	state    TransitionState
	from, to geom.Pt
	started  time.Time
	duration time.Duration
}

func newTransition(page *Page, from, to geom.Pt, now time.Time, d time.Duration) *transition {
	return &transition{
		page:     page,
		state:    TransitionAnimating,
		from:     from,
		to:       to,
		started:  now,
		duration: d,
	}
}

// easeInOut is a sinusoidal ease: slow start, slow stop.
func easeInOut(t float64) float64 {
	return 0.5 - 0.5*math.Cos(math.Pi*t)
}

// PosAt returns the page position at time now, settling the transition
// when the duration has elapsed.
func (tr *transition) PosAt(now time.Time) geom.Pt {
	if tr.state != TransitionAnimating {
		return tr.to
	}
	f := float64(now.Sub(tr.started)) / float64(tr.duration)
	if f >= 1 {
		tr.state = TransitionSettled
		return tr.to
	}
	if f < 0 {
		f = 0
	}
	e := easeInOut(f)
	return geom.Pt{
		X: tr.from.X + (tr.to.X-tr.from.X)*e,
		Y: tr.from.Y + (tr.to.Y-tr.from.Y)*e,
	}
}

// Cancel snaps the page to its final position and idles the transition.
// Safe to call in any state.
func (tr *transition) Cancel() {
	tr.state = TransitionIdle
	tr.page.setPos(tr.to)
}

func (tr *transition) Animating() bool { return tr.state == TransitionAnimating }
