package render

import (
	"fmt"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// faces holds every type size of the layout, scaled to the panel.
type faces struct {
	tiny     font.Face
	small    font.Face
	label    font.Face
	medium   font.Face
	large    font.Face
	headline font.Face
	busy     font.Face
}

// Sizes in points at 480 px of panel height.
const (
	sizeSmall    = 18
	sizeLabel    = 16
	sizeMedium   = 24
	sizeLarge    = 30
	sizeHeadline = 44
	sizeBusy     = 28
)

// minTrueType is the smallest size worth rasterising; below it the 7x13
// bitmap face reads better.
const minTrueType = 9

func loadFaces(scale float64) (faces, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return faces{}, fmt.Errorf("render: parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return faces{}, fmt.Errorf("render: parse bold font: %w", err)
	}

	face := func(f *opentype.Font, size float64) (font.Face, error) {
		size *= scale
		if size < minTrueType {
			return basicfont.Face7x13, nil
		}
		return opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	}

	var fs faces
	for _, s := range []struct {
		dst  *font.Face
		f    *opentype.Font
		size float64
	}{
		{&fs.small, regular, sizeSmall},
		{&fs.label, bold, sizeLabel},
		{&fs.medium, regular, sizeMedium},
		{&fs.large, bold, sizeLarge},
		{&fs.headline, bold, sizeHeadline},
		{&fs.busy, regular, sizeBusy},
	} {
		if *s.dst, err = face(s.f, s.size); err != nil {
			return faces{}, fmt.Errorf("render: face %.0fpt: %w", s.size, err)
		}
	}
	fs.tiny = basicfont.Face7x13
	return fs, nil
}
