//go:build !integration

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/caprock-geo/gms-cli/internal/survey"
)

func TestFormatSurveySummary(t *testing.T) {
	sum := &survey.Summary{
		RecordsSeen: 250,
		Imported:    244,
		Skipped:     6,
	}

	var buf bytes.Buffer
	formatSurveySummary(&buf, sum)

	output := buf.String()
	assert.Contains(t, output, "Records seen:")
	assert.Contains(t, output, "250")
	assert.Contains(t, output, "Imported:")
	assert.Contains(t, output, "244")
	assert.Contains(t, output, "Skipped:")
	assert.Contains(t, output, "6")
}
