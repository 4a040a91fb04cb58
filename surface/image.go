// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"errors"
	"fmt"
	"image"

	"github.com/pierrec/lz4/v4"
	"golang.org/x/image/draw"

	"github.com/gogpu/viewmux/render"
)

// ErrCorruptImage is returned by Load when the frozen data does not
// decompress to a full bitmap.
var ErrCorruptImage = errors.New("surface: corrupt frozen image")

var errEmptyCanvas = errors.New("surface: freeze empty canvas")

// Image is a frozen bitmap. It holds no backend resources; showing
// anything newer requires a transition back to a canvas or the live
// surface.
//
// Pixels are kept lz4 compressed. Bitmaps that do not compress are stored
// raw.
type Image struct {
	node
	res       render.Resolution
	data      []byte
	raw       bool
	destroyed bool
}

// Freeze rasterizes c at display resolution. An empty display resolution
// keeps the canvas resolution.
func Freeze(c *Canvas, display render.Resolution) (*Image, error) {
	if c.Destroyed() || c.Bitmap() == nil {
		return nil, ErrDestroyed
	}
	if c.Resolution().Empty() {
		return nil, errEmptyCanvas
	}
	src := c.Bitmap()

	res := display
	if res.Empty() {
		res = c.Resolution()
	}
	dst := src
	if res != c.Resolution() {
		dst = image.NewRGBA(image.Rect(0, 0, res.Width, res.Height))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	}

	pix := dst.Pix
	if dst.Stride != res.Width*4 {
		pix = make([]byte, 0, res.Width*res.Height*4)
		for y := 0; y < res.Height; y++ {
			pix = append(pix, dst.Pix[y*dst.Stride:y*dst.Stride+res.Width*4]...)
		}
	}

	img := &Image{res: res}
	var z lz4.Compressor
	buf := make([]byte, lz4.CompressBlockBound(len(pix)))
	n, err := z.CompressBlock(pix, buf)
	if err != nil {
		return nil, fmt.Errorf("surface: compress frozen image: %w", err)
	}
	if n == 0 || n >= len(pix) {
		img.data = append([]byte(nil), pix...)
		img.raw = true
	} else {
		img.data = buf[:n:n]
	}
	return img, nil
}

// Kind returns KindImage.
func (i *Image) Kind() Kind { return KindImage }

// Resolution returns the bitmap resolution.
func (i *Image) Resolution() render.Resolution { return i.res }

// Size returns the number of bytes held.
func (i *Image) Size() int { return len(i.data) }

// Compressed reports whether the pixels are stored lz4 compressed.
func (i *Image) Compressed() bool { return !i.raw }

// Load decodes the frozen bitmap.
func (i *Image) Load() (*image.RGBA, error) {
	if i.destroyed {
		return nil, ErrDestroyed
	}
	out := image.NewRGBA(image.Rect(0, 0, i.res.Width, i.res.Height))
	if i.raw {
		if len(i.data) != len(out.Pix) {
			return nil, ErrCorruptImage
		}
		copy(out.Pix, i.data)
		return out, nil
	}
	n, err := lz4.UncompressBlock(i.data, out.Pix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptImage, err)
	}
	if n != len(out.Pix) {
		return nil, ErrCorruptImage
	}
	return out, nil
}

// Destroy detaches the image and drops its data.
func (i *Image) Destroy() {
	Detach(i)
	i.data = nil
	i.destroyed = true
}

// Destroyed reports whether Destroy was called.
func (i *Image) Destroyed() bool { return i.destroyed }
