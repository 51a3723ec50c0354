package app

import (
	"fmt"
	"text/tabwriter"
)

// Batches lists how the registry splits into scan batches.
func (a *App) Batches() error {
	reg, err := a.loadRegistry()
	if err != nil {
		return err
	}

	size := a.Config.Registry.BatchSize
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Batch\tInstruments\tFirst\tLast")
	for n := 1; n <= reg.BatchCount(size); n++ {
		batch, err := reg.Batch(n, size)
		if err != nil {
			return err
		}
		fmt.Fprintf(writer, "%d\t%d\t%s\t%s\n", n, len(batch), batch[0].Symbol, batch[len(batch)-1].Symbol)
	}
	writer.Flush()

	fmt.Fprintf(a.Out, "%d instruments, batch size %d\n", reg.Len(), size)
	return nil
}
