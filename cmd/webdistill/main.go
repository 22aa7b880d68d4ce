// webdistill CLI entry point
//
// webdistill runs LLM instructions over web pages and local HTML files,
// adapting each page to the model context window by skipping, truncating
// or splitting it.
package main

import (
	"os"

	"github.com/jbctechsolutions/webdistill/internal/presentation/cli/commands"
)

func main() {
	os.Exit(commands.Execute())
}
