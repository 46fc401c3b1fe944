// cargomon watches a Rust project for changes, rebuilding and rerunning it.
package main

import (
	"os"

	"github.com/mahmudsudo/cargomon/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
