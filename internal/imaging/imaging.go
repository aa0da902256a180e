/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package imaging is the decode primitive for the reader. It turns a page
// file into pixels plus intrinsic size, keeps a per-document LRU of decoded
// pages, and builds the placeholder images used for broken and not-yet
// fetched pages.
package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"yomiko/internal/geom"
)

// Decode reads and decodes the image at path, returning pixels and the
// intrinsic pixel size.
func Decode(path string) (image.Image, geom.Size, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, geom.Size{}, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, geom.Size{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	b := img.Bounds()
	return img, geom.Size{W: float64(b.Dx()), H: float64(b.Dy())}, nil
}

// Cache is a bounded LRU of decoded pages keyed by file path. One Cache is
// constructed per document session; it is never shared process-wide, so
// tests and parallel documents stay isolated.
type Cache struct {
	lru *lru.Cache[string, image.Image]
}

// NewCache creates a cache holding at most size decoded images.
func NewCache(size int) (*Cache, error) {
	if size < 1 {
		size = 1
	}
	c, err := lru.New[string, image.Image](size)
	if err != nil {
		return nil, fmt.Errorf("create decode cache: %w", err)
	}
	return &Cache{lru: c}, nil
}

// Decode returns the decoded image for path, from cache when resident.
func (c *Cache) Decode(path string) (image.Image, geom.Size, error) {
	if img, ok := c.lru.Get(path); ok {
		b := img.Bounds()
		return img, geom.Size{W: float64(b.Dx()), H: float64(b.Dy())}, nil
	}
	img, size, err := Decode(path)
	if err != nil {
		return nil, geom.Size{}, err
	}
	c.lru.Add(path, img)
	return img, size, nil
}

// Len returns the number of resident decoded images.
func (c *Cache) Len() int { return c.lru.Len() }

// Purge drops all cached images.
func (c *Cache) Purge() { c.lru.Purge() }

// Placeholder colors. The broken-page placeholder is dark red with a white
// border; the loading placeholder is neutral gray.
var (
	errorFill   = color.RGBA{R: 120, G: 30, B: 30, A: 255}
	loadingFill = color.RGBA{R: 60, G: 60, B: 64, A: 255}
	borderCol   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

const borderPx = 3

// ErrorPlaceholder builds the fixed "broken page" image shown when a page
// file exists but cannot be decoded.
func ErrorPlaceholder(width, height int) image.Image {
	return bordered(width, height, errorFill)
}

// LoadingPlaceholder builds the image shown for a page whose source has not
// been fetched yet.
func LoadingPlaceholder(width, height int) image.Image {
	return bordered(width, height, loadingFill)
}

func bordered(width, height int, fill color.RGBA) image.Image {
	if width <= 0 || height <= 0 {
		width, height = 400, 300
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)
	fillRect(img, 0, 0, width, borderPx)
	fillRect(img, 0, height-borderPx, width, borderPx)
	fillRect(img, 0, 0, borderPx, height)
	fillRect(img, width-borderPx, 0, borderPx, height)
	return img
}

func fillRect(img *image.RGBA, x, y, w, h int) {
	draw.Draw(img, image.Rect(x, y, x+w, y+h), &image.Uniform{C: borderCol}, image.Point{}, draw.Src)
}
