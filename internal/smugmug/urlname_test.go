package smugmug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeURLName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "vacation", "Vacation"},
		{"spaces become dashes", "summer vacation", "Summer-vacation"},
		{"commas dropped", "Paris, France", "Paris-France"},
		{"already capitalized", "Trip to Rome", "Trip-to-Rome"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodeURLName(tt.in))
		})
	}
}
