package paging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		number, size int
		want         Page
	}{
		{name: "defaults", number: 0, size: 0, want: Page{Number: 1, Size: 10}},
		{name: "negative page", number: -3, size: 5, want: Page{Number: 1, Size: 5}},
		{name: "clamped size", number: 2, size: 500, want: Page{Number: 2, Size: 20}},
		{name: "as given", number: 3, size: 7, want: Page{Number: 3, Size: 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.number, tt.size, 10, 20))
		})
	}
}

func TestPage_OffsetAndPages(t *testing.T) {
	p := Page{Number: 3, Size: 10}
	assert.Equal(t, 20, p.Offset())
	assert.Equal(t, 0, p.Pages(0))
	assert.Equal(t, 1, p.Pages(10))
	assert.Equal(t, 3, p.Pages(21))
}
