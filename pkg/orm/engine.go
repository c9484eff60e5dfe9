package orm

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"xorm.io/xorm"
	"xorm.io/xorm/names"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // 必须使用 stdlib 包适配 database/sql
	_ "github.com/mattn/go-sqlite3"    // file:test.db?_busy_timeout=5000&_journal_mode=WAL
)

var xlog = logrus.WithField("module", "orm")

// DriverName 将配置里的驱动名映射到 database/sql 注册名
func DriverName(driver string) string {
	switch driver {
	case "postgres", "postgresql", "pg":
		return "pgx"
	case "sqlite":
		return "sqlite3"
	}
	return driver
}

func NewXormEngine(dbDriver, dbUrl string) (*xorm.Engine, error) {
	engine, err := xorm.NewEngine(DriverName(dbDriver), dbUrl)
	if err != nil {
		return nil, fmt.Errorf("数据库 xorm engine 初始化失败: %w", err)
	}

	// 全部采用 UTC 时区
	engine.TZLocation = time.UTC
	engine.DatabaseTZ = time.UTC

	engine.SetMapper(new(names.GonicMapper))
	engine.SetMaxOpenConns(10)
	if DriverName(dbDriver) == "sqlite3" {
		// 内存库每个连接都是独立的数据库
		engine.SetMaxOpenConns(1)
	}

	if _, err := engine.Query("select 1"); err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	engine.SetLogger(NewXormLogrus(xlog))
	engine.ShowSQL(true)
	xlog.Infof("数据库初始化成功: DB_DRIVER = %s", dbDriver)
	return engine, nil
}
