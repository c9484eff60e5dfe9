package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/cometwk/standards/biz/syncer"
	"github.com/cometwk/standards/pkg/config"
)

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "sync remote standards into the database",
		Subcommands: []*cli.Command{
			{
				Name:  "all",
				Usage: "[--incremental] sync every file in the allowed folders",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "incremental",
						Aliases: []string{"i"},
						Usage:   "skip files not modified since last sync",
					},
				},
				Action: func(c *cli.Context) error {
					mode := syncer.ModeFull
					if c.Bool("incremental") {
						mode = syncer.ModeIncremental
					}
					return withApp(func(ctx context.Context, app *App) error {
						report, err := app.Runner.RunAll(ctx, mode)
						if report != nil {
							if perr := printJSON(report); perr != nil {
								return perr
							}
						}
						return err
					})
				},
			},
			{
				Name:      "file",
				Usage:     "<id> sync a single remote file",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "cache",
						Usage: "use local cache",
						Value: true,
					},
				},
				Action: func(c *cli.Context) error {
					id := c.Args().First()
					if id == "" {
						return fmt.Errorf("缺少文件 id")
					}
					return withApp(func(ctx context.Context, app *App) error {
						stats, err := app.Sync.SyncFile(ctx, id, c.Bool("cache"))
						if stats != nil {
							if perr := printJSON(stats); perr != nil {
								return perr
							}
						}
						return err
					})
				},
			},
		},
	}
}

// withApp 装配组件, Ctrl-C 取消 context, 在文件之间停止同步
func withApp(f func(ctx context.Context, app *App) error) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return f(ctx, app)
}
