// Command omnitool bundles small DICOM utilities behind urfave/cli
// subcommands, the Go analogue of original_source/src/dicomnode/tools
// (show.py, store.py), following the multi-command app structure of
// standardbeagle-lci's cmd/lci/main.go.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "omnitool",
		Usage: "DICOM file and network utilities",
		Commands: []*cli.Command{
			showCommand(),
			storeCommand(),
			echoCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "omnitool:", err)
		os.Exit(1)
	}
}
