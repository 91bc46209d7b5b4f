package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"Crème Brûlée", 40, "creme-brulee"},
		{"  Grandma's  Apple_Pie!! ", 40, "grandma-s-apple-pie"},
		{"IMG_2041", 40, "img-2041"},
		{"日本語", 40, ""},
		{"very-long-recipe-name-that-goes-on", 10, "very-long"},
		{"", 40, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in, tt.maxLen))
		})
	}
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "photo", BaseName("/tmp/uploads/photo.JPG"))
	assert.Equal(t, "archive.tar", BaseName("archive.tar.gz"))
}
