package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/cometwk/standards/pkg/cache"
	"github.com/cometwk/standards/pkg/config"
)

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "inspect or clean the local file cache",
		Subcommands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "show cache stats",
				Action: func(c *cli.Context) error {
					return withCache(func(lc *cache.LocalCache) (any, error) {
						return lc.Stats()
					})
				},
			},
			{
				Name:  "clear",
				Usage: "remove every cached file",
				Action: func(c *cli.Context) error {
					return withCache(func(lc *cache.LocalCache) (any, error) {
						return lc.Clear()
					})
				},
			},
			{
				Name:  "cleanup",
				Usage: "remove expired files, then evict oldest until under the size cap",
				Action: func(c *cli.Context) error {
					return withCache(func(lc *cache.LocalCache) (any, error) {
						return lc.Cleanup()
					})
				},
			},
		},
	}
}

// 本地缓存操作不需要远程后端
func withCache(f func(lc *cache.LocalCache) (any, error)) error {
	lc, err := newCache(nil, config.Load())
	if err != nil {
		return err
	}
	v, err := f(lc)
	if err != nil {
		return err
	}
	return printJSON(v)
}
