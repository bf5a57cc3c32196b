package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"yashubustudio/papersift/papersift"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "csv2bibtex",
		Usage: "Convert a Zotero CSV export (or papersift output) to BibTeX",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "CSV file to convert",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Usage:    "BibTeX file to write; its directory is created when missing",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			n, err := papersift.ConvertCSVFileToBibTeX(c.String("input"), c.String("output"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Converted %d entries to %s\n", n, c.String("output"))
			return nil
		},
	}
}
