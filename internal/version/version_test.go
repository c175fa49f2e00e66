package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })
	Version = "1.4.0"

	info := Get()
	assert.Equal(t, "1.4.0", info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}
