// hookwarden: session policy cache and tool-call gates for coding agents.
// Each subcommand is meant to be installed as an agent-runtime hook.
package main

import "github.com/ppiankov/hookwarden/internal/cli"

func main() {
	cli.Execute()
}
