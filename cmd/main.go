package cmd

import (
	"fmt"
	stdlog "log"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli/v2"

	"github.com/cometwk/standards/pkg/config"
	"github.com/cometwk/standards/pkg/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func Main() {
	if err := NewCli().Run(os.Args); err != nil {
		stdlog.Fatal(err)
	}
}

func NewCli() *cli.App {
	return &cli.App{
		Name:  "standards",
		Usage: "regulatory standards resolver and sync",
		Before: func(c *cli.Context) error {
			// serve 自己配置日志文件, 其余命令只输出到终端
			if c.Args().First() != "serve" {
				log.InitDebug()
				log.SetLevel(config.Load().LogLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start http server",
				Action: func(c *cli.Context) error {
					return Serve(config.Load())
				},
			},
			syncCommand(),
			parseCommand(),
			cacheCommand(),
			migrateCommand(),
		},
		Action: func(c *cli.Context) error {
			fmt.Printf("\nerror args = %v\n\n", c.Args().Slice())
			return cli.ShowAppHelp(c)
		},
	}
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
