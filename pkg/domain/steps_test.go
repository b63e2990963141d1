package domain_test

import (
	"testing"

	"github.com/aretw0/agrobot/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestSplitSteps(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []string
	}{
		{"single", "Water deeply.", []string{"Water deeply."}},
		{"steps", "Test pH |||STEP||| Add lime\n|||STEP|||\nWater", []string{"Test pH", "Add lime", "Water"}},
		{"empty segments dropped", "|||STEP|||Mulch|||STEP||||||STEP|||", []string{"Mulch"}},
		{"blank", "  ", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.SplitSteps(tt.reply))
		})
	}
}
