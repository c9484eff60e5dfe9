package store

import (
	"context"

	"github.com/pkg/errors"
	"xorm.io/builder"
	"xorm.io/xorm"

	"github.com/cometwk/standards/biz"
	"github.com/cometwk/standards/pkg/orm"
)

type SQLStore struct {
	engine *xorm.Engine
}

func NewSQLStore(engine *xorm.Engine) *SQLStore {
	return &SQLStore{engine: engine}
}

func (s *SQLStore) Engine() *xorm.Engine { return s.engine }

// Sync 按结构体建表, 测试与 sqlite 开发库使用; 生产库走 migrations
func (s *SQLStore) Sync() error {
	return s.engine.Sync(biz.Tables()...)
}

func (s *SQLStore) Close() error {
	return s.engine.Close()
}

// get 以 bean 的非零字段为条件查询一条
func (s *SQLStore) get(ctx context.Context, bean any) error {
	has, err := s.engine.Context(ctx).Get(bean)
	if err != nil {
		return errors.WithStack(err)
	}
	if !has {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) insert(ctx context.Context, bean any) error {
	if _, err := s.engine.Context(ctx).Insert(bean); err != nil {
		if orm.IsUniqueViolation(err) {
			return errors.Wrap(ErrConflict, err.Error())
		}
		return errors.WithStack(err)
	}
	return nil
}

func (s *SQLStore) update(ctx context.Context, id string, bean any) error {
	n, err := s.engine.Context(ctx).ID(id).AllCols().Update(bean)
	if err != nil {
		return errors.WithStack(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) FindStandardByCode(ctx context.Context, code string) (*biz.Standard, error) {
	std := &biz.Standard{Code: code}
	if err := s.get(ctx, std); err != nil {
		return nil, err
	}
	return std, nil
}

func (s *SQLStore) FindStandardByFileID(ctx context.Context, fileID string) (*biz.Standard, error) {
	std := &biz.Standard{DriveFileID: fileID}
	if err := s.get(ctx, std); err != nil {
		return nil, err
	}
	return std, nil
}

func (s *SQLStore) InsertStandard(ctx context.Context, std *biz.Standard) error {
	return s.insert(ctx, std)
}

func (s *SQLStore) UpdateStandard(ctx context.Context, std *biz.Standard) error {
	return s.update(ctx, std.ID, std)
}

func (s *SQLStore) FindSection(ctx context.Context, standardID, number string) (*biz.StandardSection, error) {
	sec := &biz.StandardSection{StandardID: standardID, SectionNumber: number}
	if err := s.get(ctx, sec); err != nil {
		return nil, err
	}
	return sec, nil
}

func (s *SQLStore) InsertSection(ctx context.Context, sec *biz.StandardSection) error {
	return s.insert(ctx, sec)
}

func (s *SQLStore) UpdateSection(ctx context.Context, sec *biz.StandardSection) error {
	return s.update(ctx, sec.ID, sec)
}

func (s *SQLStore) FindClause(ctx context.Context, standardID, number string) (*biz.StandardClause, error) {
	c := &biz.StandardClause{StandardID: standardID, ClauseNumber: number}
	if err := s.get(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *SQLStore) InsertClause(ctx context.Context, c *biz.StandardClause) error {
	return s.insert(ctx, c)
}

func (s *SQLStore) UpdateClause(ctx context.Context, c *biz.StandardClause) error {
	return s.update(ctx, c.ID, c)
}

func (s *SQLStore) InsertHistory(ctx context.Context, h *biz.SyncHistory) error {
	return s.insert(ctx, h)
}

func (s *SQLStore) GetHistory(ctx context.Context, id string) (*biz.SyncHistory, error) {
	h := &biz.SyncHistory{ID: id}
	if err := s.get(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *SQLStore) ListHistory(ctx context.Context, f HistoryFilter) ([]biz.SyncHistory, error) {
	f = f.Normalize()

	cond := builder.NewCond()
	if f.Status != "" {
		cond = cond.And(builder.Eq{s.engine.Quote("status"): f.Status})
	}
	if f.SyncType != "" {
		cond = cond.And(builder.Eq{s.engine.Quote("syncType"): f.SyncType})
	}

	list := make([]biz.SyncHistory, 0, f.Limit)
	err := s.engine.Context(ctx).Where(cond).Desc("startedAt").Limit(f.Limit).Find(&list)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return list, nil
}
