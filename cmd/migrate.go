package cmd

import (
	"errors"
	"fmt"
	stdlog "log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/urfave/cli/v2"

	"github.com/cometwk/standards/migrations"
	"github.com/cometwk/standards/pkg/config"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "migrate database",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "[-s] migrate database up",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "step",
						Aliases: []string{"s"},
						Usage:   "migrate database up step by step",
					},
				},
				Action: func(c *cli.Context) error {
					migrateUp(c.Bool("step"))
					return nil
				},
			},
			{
				Name:  "down",
				Usage: "[-s] migrate database down",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "step",
						Aliases: []string{"s"},
						Usage:   "migrate database down step by step",
					},
				},
				Action: func(c *cli.Context) error {
					migrateDown(c.Bool("step"))
					return nil
				},
			},
			{
				Name:    "status",
				Aliases: []string{"version"},
				Usage:   "show database version",
				Action: func(c *cli.Context) error {
					migrateStatus()
					return nil
				},
			},
			{
				Name:  "force",
				Usage: "-v <version> force migrate database to a specific version",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "version",
						Aliases: []string{"v"},
						Usage:   "the version to migrate to",
						Value:   -1,
					},
				},
				Action: func(c *cli.Context) error {
					migrateForce(c.Int("version"))
					return nil
				},
			},
		},
	}
}

// REST 存储的表结构由服务端管理, 这里只处理 DB_URL
func getMigrate() *migrate.Migrate {
	cfg := config.Load()
	if cfg.DBURL == "" {
		stdlog.Fatal("DB_URL 未设置")
	}
	stdlog.Printf("数据库驱动: %s", cfg.DBDriver)

	m, err := migrations.New(cfg.DBDriver, cfg.DBURL)
	if err != nil {
		stdlog.Printf("创建 migrate 实例失败: %v", err)
		stdlog.Fatal(err)
	}
	return m
}

func migrateUp(step bool) {
	m := getMigrate()
	var err error
	if step {
		err = m.Steps(1)
	} else {
		err = m.Up()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("数据库已经是最新版本")
		} else {
			stdlog.Fatal(err)
		}
	} else {
		fmt.Println("迁移成功")
		printVersion(m)
	}
}

func migrateDown(step bool) {
	m := getMigrate()
	var err error
	if step {
		err = m.Steps(-1)
	} else {
		err = m.Down()
	}
	if err != nil {
		stdlog.Fatal(err)
	}
	fmt.Println("迁移成功")
	printVersion(m)
}

func migrateStatus() {
	printVersion(getMigrate())
}

func migrateForce(version int) {
	m := getMigrate()
	if err := m.Force(version); err != nil {
		stdlog.Fatal(err)
	}
	fmt.Println("迁移成功")
	printVersion(m)
}

func printVersion(m *migrate.Migrate) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Println("当前数据库未执行任何迁移")
		return
	}
	if err != nil {
		stdlog.Fatal(err)
	}
	emoji := "✅"
	if dirty {
		emoji = "🚫"
	}
	fmt.Printf("当前数据库版本: %d, 检查未完成的迁移: %s\n", version, emoji)
}
