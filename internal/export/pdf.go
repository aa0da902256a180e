/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export writes chapters out to portable formats.
package export

import (
	"bytes"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"yomiko/internal/imaging"
)

// PDFOptions controls chapter-to-PDF conversion.
type PDFOptions struct {
	Title string
	Pages []int // if empty, export all pages
}

// pageSource is the subset of an opened archive the exporter needs.
type pageSource interface {
	Origin() string
	PageCount() int
	PagePath(index int) (string, error)
}

// ExportChapterPDF writes the chapter's pages into a single PDF at outPath,
// one PDF page per image, each page sized to its image so nothing is
// rescaled or cropped.
func ExportChapterPDF(src pageSource, outPath string, opt PDFOptions) error {
	if src == nil {
		return fmt.Errorf("page source is nil")
	}
	if src.PageCount() == 0 {
		return fmt.Errorf("chapter has no pages")
	}

	title := opt.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(src.Origin()), filepath.Ext(src.Origin()))
	}

	// Points give a 1:1 mapping from pixels; viewers scale to fit anyway.
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: 595, Ht: 842},
		OrientationStr: "",
	})
	pdf.SetTitle(title, true)
	pdf.SetCreator("Yomiko", false)

	for _, idx := range pageIndexes(src.PageCount(), opt.Pages) {
		path, err := src.PagePath(idx)
		if err != nil {
			return err
		}
		if err := addImagePage(pdf, idx, path); err != nil {
			return fmt.Errorf("page %d: %w", idx, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// addImagePage registers one image and emits a PDF page of its exact size.
// Formats gofpdf cannot embed directly (webp, bmp, tiff) are transcoded to
// PNG in memory.
func addImagePage(pdf *gofpdf.Fpdf, idx int, path string) error {
	img, size, err := imaging.Decode(path)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("page-%06d", idx)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "png", "jpg", "jpeg", "gif":
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: normalizeImageType(ext)}, f)
	default:
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return fmt.Errorf("transcode %s: %w", ext, err)
		}
		pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "png"}, &buf)
	}
	if pdf.Err() {
		return pdf.Error()
	}

	pdf.AddPageFormat("", gofpdf.SizeType{Wd: size.W, Ht: size.H})
	pdf.ImageOptions(name, 0, 0, size.W, size.H, false, gofpdf.ImageOptions{}, 0, "")
	if pdf.Err() {
		return pdf.Error()
	}
	return nil
}

func normalizeImageType(ext string) string {
	if ext == "jpeg" {
		return "jpg"
	}
	return ext
}

func pageIndexes(total int, specific []int) []int {
	if len(specific) == 0 {
		out := make([]int, total)
		for i := range out {
			out[i] = i
		}
		return out
	}
	var out []int
	for _, i := range specific {
		if i >= 0 && i < total {
			out = append(out, i)
		}
	}
	return out
}
