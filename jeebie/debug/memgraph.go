package debug

import (
	"io"

	"github.com/bradleyjkemp/memviz"
	"github.com/valerio/go-jeebie/jeebie/memory"
)

// DumpMemoryGraph renders the live MMU/cartridge/mapper object graph as a
// Graphviz .dot file, useful while chasing a banking bug where the plain
// register/byte dumps in MemorySnapshot don't show which mapper is
// actually wired in.
func DumpMemoryGraph(mmu *memory.MMU, w io.Writer) error {
	memviz.Map(w, mmu)
	return nil
}
