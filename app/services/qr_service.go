// Package services provides external service integrations and technical concerns like notifications, tokens and media
package services

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	qrQuietModules  = 1 // margin around the symbol, in modules
	qrModuleScale   = 8
	stickerLabelPx  = 48
	labelGlyphScale = 3
)

// QRService renders tag links as QR images
type QRService interface {
	// PNG returns the QR symbol for content with a one module margin
	PNG(content string) ([]byte, error)
	// StickerPNG returns the QR with label printed underneath
	StickerPNG(content, label string) ([]byte, error)
}

type qrServiceImpl struct {
	sizePx int
}

// NewQRService renders symbols close to sizePx wide; zero keeps qrModuleScale pixels per module
func NewQRService(sizePx int) QRService {
	return &qrServiceImpl{sizePx: sizePx}
}

func (s *qrServiceImpl) PNG(content string) ([]byte, error) {
	img, err := s.symbol(content)
	if err != nil {
		return nil, err
	}
	return encodePNG(img)
}

func (s *qrServiceImpl) StickerPNG(content, label string) ([]byte, error) {
	symbol, err := s.symbol(content)
	if err != nil {
		return nil, err
	}

	b := symbol.Bounds()
	sticker := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()+stickerLabelPx))
	imagedraw.Draw(sticker, sticker.Bounds(), &image.Uniform{C: color.White}, image.Point{}, imagedraw.Src)
	imagedraw.Draw(sticker, b, symbol, b.Min, imagedraw.Src)

	if label != "" {
		text := renderLabel(label)
		tb := text.Bounds()
		w, h := tb.Dx()*labelGlyphScale, tb.Dy()*labelGlyphScale
		if w > b.Dx() {
			h = h * b.Dx() / w
			w = b.Dx()
		}
		x := (b.Dx() - w) / 2
		y := b.Dy() + (stickerLabelPx-h)/2
		xdraw.NearestNeighbor.Scale(sticker, image.Rect(x, y, x+w, y+h), text, tb, xdraw.Over, nil)
	}

	return encodePNG(sticker)
}

func (s *qrServiceImpl) symbol(content string) (image.Image, error) {
	if content == "" {
		return nil, errors.New("qr content is empty")
	}
	code, err := qr.Encode(content, qr.H, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr: %w", err)
	}
	modules := code.Bounds().Dx()
	scale := qrModuleScale
	if s.sizePx > 0 {
		scale = max(1, s.sizePx/modules)
	}
	px := modules * scale
	scaled, err := barcode.Scale(code, px, px)
	if err != nil {
		return nil, fmt.Errorf("failed to scale qr: %w", err)
	}

	margin := qrQuietModules * scale
	out := image.NewRGBA(image.Rect(0, 0, px+2*margin, px+2*margin))
	imagedraw.Draw(out, out.Bounds(), &image.Uniform{C: color.White}, image.Point{}, imagedraw.Src)
	imagedraw.Draw(out, image.Rect(margin, margin, margin+px, margin+px), scaled, scaled.Bounds().Min, imagedraw.Src)
	return out, nil
}

// renderLabel draws text at the basic 7x13 face size
func renderLabel(label string) *image.RGBA {
	face := basicfont.Face7x13
	width := font.MeasureString(face, label).Ceil()
	img := image.NewRGBA(image.Rect(0, 0, width, face.Height))
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(label)
	return img
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
