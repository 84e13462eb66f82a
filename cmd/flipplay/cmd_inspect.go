package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/gogpu/flipbook/internal/seq"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect dir",
	Short: "List the image sequences in a footage directory",
	Long: `inspect scans a directory for numbered image sequences and prints
each pattern with its frame range and any gaps. With --watch it keeps
running and rescans whenever the directory contents change.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if err := listSequences(dir); err != nil {
		return err
	}
	if !flagWatch {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	w, err := seq.Watch(dir, 250*time.Millisecond, func() {
		fmt.Printf("\n%s changed at %s\n", dir, time.Now().Format(time.TimeOnly))
		if err := listSequences(dir); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()

	fmt.Println("\nwatching for changes, interrupt to stop")
	<-ctx.Done()
	return nil
}

func listSequences(dir string) error {
	seqs, err := seq.Scan(dir)
	if err != nil {
		return err
	}
	if len(seqs) == 0 {
		fmt.Printf("%s: no image sequences\n", dir)
		return nil
	}
	for _, s := range seqs {
		line := fmt.Sprintf("%-40s %5d frames  [%d..%d]",
			s.Pattern.String(), s.Len(), s.First(), s.Last())
		if missing := s.Last() - s.First() + 1 - int64(s.Len()); missing > 0 {
			line += fmt.Sprintf("  %d missing", missing)
		}
		fmt.Println(line)
	}
	if fp, err := seq.Fingerprint(dir); err == nil {
		fmt.Printf("fingerprint %016x\n", fp)
	}
	return nil
}
