// Command bootd hosts a bootstrap runtime: it boots, reports the runtime
// state over HTTP and terminates on SIGINT or SIGTERM.
package main

import (
	"fmt"
	"os"
)

func main() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
