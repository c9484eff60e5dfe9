// Package migrations embeds the schema for each supported database and
// runs it through golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"

	"github.com/cometwk/standards/pkg/orm"
)

//go:embed sqlite3/*.sql postgres/*.sql mysql/*.sql
var files embed.FS

// New 创建 migrate 实例, driver 取值同 DB_DRIVER.
// mysql 的 DSN 需带 multiStatements=true.
func New(driver, dbURL string) (*migrate.Migrate, error) {
	name := orm.DriverName(driver)
	db, err := sql.Open(name, dbURL)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}

	var (
		dir string
		drv database.Driver
	)
	switch name {
	case "sqlite3":
		dir = "sqlite3"
		drv, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case "pgx":
		dir = "postgres"
		drv, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	case "mysql":
		dir = "mysql"
		drv, err = mysql.WithInstance(db, &mysql.Config{})
	default:
		db.Close()
		return nil, fmt.Errorf("不支持的数据库驱动: %s", driver)
	}
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "%s migrate driver", name)
	}

	src, err := iofs.New(files, dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	m, err := migrate.NewWithInstance("iofs", src, name, drv)
	if err != nil {
		return nil, errors.Wrap(err, "创建 migrate 实例失败")
	}
	return m, nil
}
