package provision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"Lenina, 10", "Lenina, 10"},
		{"  Lenina ,   10 ", "Lenina, 10"},
		{"Lenina 10", "Lenina, 10"},
		{"ул. Ленина 10А", "ул. Ленина, 10А"},
		{"prospekt Mira, 5/2, apt 7", "prospekt Mira, 5/2"},
		{"Lenina,", "Lenina"},
		{", 10", "10"},
		{"Central Park", "Central Park"},
		{"10", "10"},
		{"   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTitle(tt.address))
		})
	}
}
