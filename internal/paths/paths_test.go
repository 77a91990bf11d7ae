package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestData(t *testing.T) {
	t.Parallel()
	abs := filepath.Join(t.TempDir(), "data")
	assert.Equal(t, abs, Data("/work", abs))
	assert.Equal(t, filepath.Join("/work", ".medibot"), Data("/work", ".medibot"))
	assert.Equal(t, filepath.Join("/work", ".medibot", "transcripts"), Transcripts(Data("/work", ".medibot")))
	assert.Equal(t, filepath.Join("/work", ".medibot", "log"), Log(Data("/work", ".medibot")))
}
