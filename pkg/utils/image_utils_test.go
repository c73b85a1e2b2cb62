package utils

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"court.jpg", "court.jpg"},
		{"My cool photo.png", "My_cool_photo.png"},
		{"../../etc/passwd", "etc_passwd"},
		{`C:\Users\me\shot.jpeg`, "C_Users_me_shot.jpeg"},
		{"naïve café.jpg", "naive_cafe.jpg"},
		{"...hidden", "hidden"},
		{"日本語.png", "png"},
		{"", ""},
		{"???", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, SanitizeFilename(tt.input), "input %q", tt.input)
	}
}

func TestDetectContentTypeRewinds(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))

	r := bytes.NewReader(buf.Bytes())
	ctype, err := DetectContentType(r)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ctype)

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, buf.Len(), len(rest))
}

func TestIsImageType(t *testing.T) {
	assert.True(t, IsImageType("image/jpeg"))
	assert.True(t, IsImageType(" Image/PNG"))
	assert.False(t, IsImageType("text/plain"))
	assert.False(t, IsImageType(""))
}
