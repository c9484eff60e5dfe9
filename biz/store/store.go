// Package store is the persistence port of the sync engine. Two adapters
// implement it: SQLStore talks to the database through xorm, RESTStore talks
// to a PostgREST endpoint (Supabase). Open picks one at startup.
package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cometwk/standards/biz"
	"github.com/cometwk/standards/pkg/config"
	"github.com/cometwk/standards/pkg/orm"
)

var xlog = logrus.WithField("module", "store")

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict 插入时自然键已存在
	ErrConflict = errors.New("natural key conflict")
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// HistoryFilter 为空字段表示不过滤
type HistoryFilter struct {
	Status   string
	SyncType string
	Limit    int
}

// Normalize 补齐默认 limit 并限制上限
func (f HistoryFilter) Normalize() HistoryFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultHistoryLimit
	}
	if f.Limit > MaxHistoryLimit {
		f.Limit = MaxHistoryLimit
	}
	return f
}

// Store Find* 未找到时返回 ErrNotFound, Insert* 自然键冲突时返回 ErrConflict
type Store interface {
	FindStandardByCode(ctx context.Context, code string) (*biz.Standard, error)
	FindStandardByFileID(ctx context.Context, fileID string) (*biz.Standard, error)
	InsertStandard(ctx context.Context, s *biz.Standard) error
	UpdateStandard(ctx context.Context, s *biz.Standard) error

	FindSection(ctx context.Context, standardID, number string) (*biz.StandardSection, error)
	InsertSection(ctx context.Context, s *biz.StandardSection) error
	UpdateSection(ctx context.Context, s *biz.StandardSection) error

	FindClause(ctx context.Context, standardID, number string) (*biz.StandardClause, error)
	InsertClause(ctx context.Context, c *biz.StandardClause) error
	UpdateClause(ctx context.Context, c *biz.StandardClause) error

	InsertHistory(ctx context.Context, h *biz.SyncHistory) error
	GetHistory(ctx context.Context, id string) (*biz.SyncHistory, error)
	ListHistory(ctx context.Context, f HistoryFilter) ([]biz.SyncHistory, error)

	Close() error
}

// Open 按凭据选择存储适配器: 配置了 SUPABASE_URL 时走 REST, 否则直连数据库
func Open(cfg *config.Config) (Store, error) {
	if cfg.StoreRESTURL != "" {
		if cfg.StoreRESTKey == "" {
			return nil, &config.ConfigError{Key: "SUPABASE_SERVICE_ROLE_KEY", Reason: "required with SUPABASE_URL"}
		}
		xlog.Infof("使用 REST 存储: %s", cfg.StoreRESTURL)
		return NewRESTStore(cfg.StoreRESTURL, cfg.StoreRESTKey, nil), nil
	}
	if cfg.DBURL == "" {
		return nil, &config.ConfigError{Key: "DB_URL", Reason: "either DB_URL or SUPABASE_URL must be set"}
	}
	engine, err := orm.NewXormEngine(cfg.DBDriver, cfg.DBURL)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	return NewSQLStore(engine), nil
}
