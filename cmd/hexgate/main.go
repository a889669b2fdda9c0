// Command hexgate serves relational tables and functions over HTTP.
package main

import (
	"os"

	"github.com/hexgate/hexgate/cmd/hexgate/commands"
	"github.com/hexgate/hexgate/internal/ui"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		ui.Stdout.Error("%v", err)
		os.Exit(1)
	}
}
