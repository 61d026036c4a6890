package debug

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/valerio/go-jeebie/jeebie/memory"
)

func TestDumpMemoryGraph(t *testing.T) {
	mmu := memory.NewWithCartridge(memory.NewCartridge(), memory.NopEffects{})

	var buf bytes.Buffer
	require.NoError(t, DumpMemoryGraph(mmu, &buf))
	require.Contains(t, buf.String(), "digraph")
}
