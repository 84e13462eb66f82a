// Command flipplay exercises a flipbook project from the terminal. It plays
// a comp headless while reporting cache behavior, renders a comp to PNG
// frames, and inspects footage directories for image sequences.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
