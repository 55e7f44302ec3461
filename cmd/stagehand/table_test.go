package main

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"Name", "Count"}, [][]string{{"logos", "3"}, {"sounds"}}, []columnAlignment{alignLeft, alignRight})
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "logos")
	assert.Contains(t, out, "sounds")
	assert.Equal(t, 6, strings.Count(out, "\n")+1)
}

func TestRenderTableWithoutHeaders(t *testing.T) {
	assert.Empty(t, renderTable(nil, [][]string{{"x"}}, nil))
}

func TestRenderStatusLine(t *testing.T) {
	plain := renderStatusLine("Daemon", statusError, "Not running", false)
	assert.Equal(t, "  Daemon:              [ERROR] Not running", plain)

	colored := renderStatusLine("Daemon", statusOK, "Running", true)
	assert.True(t, strings.HasPrefix(colored, ansiGreen))
	assert.True(t, strings.HasSuffix(colored, ansiReset))

	assert.Equal(t, "  Socket:              [INFO]", renderStatusLine("Socket", statusInfo, "", false))
}

func TestShouldColorizeNonFile(t *testing.T) {
	assert.False(t, shouldColorize(io.Discard))
}
