// ./main.go
package main

import (
	"github.com/pilotweb/pilot-cli/cmd"
)

// main is the entry point for the pilot CLI.
func main() {
	cmd.Execute()
}
