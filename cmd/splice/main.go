// Command splice routes form submissions into destination sheets.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/splice/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands report their own failures. Anything else is a usage
		// error from cobra.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(cli.ExitCommandError)
		}
		os.Exit(exitErr.Code)
	}
}
