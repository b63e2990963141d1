package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "0.3.0\n")

	out := buf.String()
	assert.Contains(t, out, "v0.3.0")
	assert.Contains(t, out, "agricultural assistant")
	assert.NotContains(t, out, "\x1b[", "no color codes outside a terminal")
}

func TestStepsMarkdown(t *testing.T) {
	assert.Equal(t, "Water deeply.", StepsMarkdown("  Water deeply.  "))
	assert.Equal(t, "1. Test pH\n2. Add lime\n   then wait\n",
		StepsMarkdown("Test pH|||STEP|||Add lime\nthen wait"))
	assert.Empty(t, StepsMarkdown(""))
}

func TestPlainSteps(t *testing.T) {
	assert.Equal(t, "1) Test pH\n\n2) Add lime", PlainSteps("Test pH |||STEP||| Add lime"))
	assert.Equal(t, "Mulch", PlainSteps("Mulch|||STEP|||"))
}

func TestNewRenderer(t *testing.T) {
	render, err := NewRenderer(40)
	require.NoError(t, err)

	out, err := render("1. Test **pH**\n2. Add lime\n")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "pH"))
	assert.True(t, strings.Contains(out, "Add lime"))
}
