package faq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "tags", in: "<p>Hello <b>world</b></p>", want: "Hello world"},
		{name: "whitespace", in: "  a\n\n\tb  ", want: "a b"},
		{name: "accents folded", in: "Café à louer", want: "Cafe a louer"},
		{name: "non ascii dropped", in: "price 💰 list", want: "price list"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}
