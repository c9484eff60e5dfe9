package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/cometwk/standards/pkg/extract"
)

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "<path> [--mime] print the parsed structure of a local document as JSON",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "mime",
				Aliases: []string{"m"},
				Usage:   "mime type, detected from content when empty",
			},
			&cli.BoolFlag{
				Name:  "full-text",
				Usage: "include full text in output",
			},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("缺少文件路径")
			}
			out := extract.Parse(path, c.String("mime"))
			if !c.Bool("full-text") {
				out.FullText = ""
			}
			return printJSON(out)
		},
	}
}
