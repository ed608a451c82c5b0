package services

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQRService_PNG(t *testing.T) {
	s := NewQRService(0)

	data, err := s.PNG("https://taptag.app/r/abcd1234")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	b := img.Bounds()
	assert.Equal(t, b.Dx(), b.Dy())
	assert.Zero(t, b.Dx()%qrModuleScale)

	// quiet zone is white
	r, g, bl, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0xffff), bl)

	_, err = s.PNG("")
	assert.Error(t, err)
}

func TestQRService_SizeFollowsConfig(t *testing.T) {
	small, err := NewQRService(0).PNG("https://taptag.app/r/abcd1234")
	require.NoError(t, err)
	large, err := NewQRService(1024).PNG("https://taptag.app/r/abcd1234")
	require.NoError(t, err)

	s, err := png.Decode(bytes.NewReader(small))
	require.NoError(t, err)
	l, err := png.Decode(bytes.NewReader(large))
	require.NoError(t, err)
	assert.Greater(t, l.Bounds().Dx(), s.Bounds().Dx())
	assert.LessOrEqual(t, l.Bounds().Dx(), 1024+2*1024/20)
}

func TestQRService_StickerPNG(t *testing.T) {
	s := NewQRService(0)

	plain, err := s.PNG("https://taptag.app/r/abcd1234")
	require.NoError(t, err)
	sticker, err := s.StickerPNG("https://taptag.app/r/abcd1234", "abcd1234")
	require.NoError(t, err)

	p, err := png.Decode(bytes.NewReader(plain))
	require.NoError(t, err)
	st, err := png.Decode(bytes.NewReader(sticker))
	require.NoError(t, err)

	assert.Equal(t, p.Bounds().Dx(), st.Bounds().Dx())
	assert.Equal(t, p.Bounds().Dy()+stickerLabelPx, st.Bounds().Dy())

	// label area has some dark pixels
	dark := 0
	for y := p.Bounds().Dy(); y < st.Bounds().Dy(); y++ {
		for x := 0; x < st.Bounds().Dx(); x++ {
			r, _, _, _ := st.At(x, y).RGBA()
			if r < 0x8000 {
				dark++
			}
		}
	}
	assert.Positive(t, dark)
}
