package watchcli

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunVersionFlagExitsZeroWithoutPositionalArgs(t *testing.T) {
	var buf bytes.Buffer
	code := Run([]string{"--version"}, &buf)
	assert.Equal(t, 0, code)
}

func TestRunMissingPositionalArgsExitsOne(t *testing.T) {
	var buf bytes.Buffer
	code := Run(nil, &buf)
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "usage:")
}

func TestRunSinglePositionalArgExitsOne(t *testing.T) {
	var buf bytes.Buffer
	code := Run([]string{"/tmp"}, &buf)
	assert.Equal(t, 1, code)
}

func TestRunTooManyExcludesExitsOne(t *testing.T) {
	args := []string{"/tmp", "/tmp"}
	for i := 0; i < maxExcludes+1; i++ {
		args = append(args, "-e", "pattern"+strconv.Itoa(i))
	}
	var buf bytes.Buffer
	code := Run(args, &buf)
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "too many")
}

func TestRunHelpFlagExitsZero(t *testing.T) {
	var buf bytes.Buffer
	code := Run([]string{"--help"}, &buf)
	assert.Equal(t, 0, code)
}

func TestRunUnknownFlagExitsOne(t *testing.T) {
	var buf bytes.Buffer
	code := Run([]string{"--not-a-real-flag"}, &buf)
	assert.Equal(t, 1, code)
}
