package main

import (
	"fmt"
	"os"

	"github.com/suyashkumar/dicom"
	"github.com/urfave/cli/v2"
)

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Display a DICOM file's elements",
		ArgsUsage: "<dicomfile>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "privatetags",
				Usage: "also write the file's private-group (odd group number) elements to this path",
			},
			&cli.BoolFlag{
				Name:  "strictParsing",
				Value: true,
				Usage: "fail with a non-zero exit on a parse error; false reports the error and exits 0",
			},
		},
		Action: runShow,
	}
}

func runShow(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.Exit("show: missing <dicomfile> argument", 1)
	}

	parsed, err := dicom.ParseFile(path)
	if err != nil {
		if c.Bool("strictParsing") {
			return fmt.Errorf("show: parse %s: %w", path, err)
		}
		fmt.Fprintf(c.App.ErrWriter, "show: parse %s: %v (continuing: --strictParsing=false)\n", path, err)
		return nil
	}

	var privateOut *os.File
	if dest := c.String("privatetags"); dest != "" {
		privateOut, err = os.Create(dest)
		if err != nil {
			return fmt.Errorf("show: create %s: %w", dest, err)
		}
		defer privateOut.Close()
	}

	for _, elem := range parsed.Elements {
		fmt.Printf("%v: %v\n", elem.Tag, elem.Value)
		if privateOut != nil && elem.Tag.Group%2 != 0 {
			fmt.Fprintf(privateOut, "%v: %v\n", elem.Tag, elem.Value)
		}
	}
	return nil
}
