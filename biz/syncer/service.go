package syncer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cometwk/standards/biz"
	"github.com/cometwk/standards/biz/store"
	"github.com/cometwk/standards/pkg/cache"
	"github.com/cometwk/standards/pkg/extract"
	"github.com/cometwk/standards/pkg/gateway"
	"github.com/cometwk/standards/pkg/log"
	"github.com/cometwk/standards/pkg/parser"
)

// Fetcher 由 *cache.LocalCache 实现
type Fetcher interface {
	Fetch(ctx context.Context, fileID string, useCache bool) (*cache.Result, *cache.Handle, error)
}

// Lister 由 *gateway.Gateway 实现
type Lister interface {
	ListAll(ctx context.Context) ([]gateway.RemoteFile, error)
}

type Mode string

const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
)

func (m Mode) syncType() string {
	if m == ModeIncremental {
		return biz.SyncIncremental
	}
	return biz.SyncFull
}

// ParseMode 未知取值按 full 处理
func ParseMode(s string) Mode {
	if strings.EqualFold(s, string(ModeIncremental)) {
		return ModeIncremental
	}
	return ModeFull
}

const (
	FileSuccess = "success"
	FileFailed  = "failed"
	FileSkipped = "skipped"
)

type FileResult struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
	Status   string `json:"status"`
	Stats    *Stats `json:"stats,omitempty"`
	Error    string `json:"error,omitempty"`
}

type Summary struct {
	TotalFiles   int `json:"totalFiles"`
	SuccessCount int `json:"successCount"`
	FailedCount  int `json:"failedCount"`
	SkippedCount int `json:"skippedCount"`
}

type Report struct {
	SyncID  string       `json:"syncId"`
	Mode    Mode         `json:"mode"`
	Status  string       `json:"status"`
	Summary Summary      `json:"summary"`
	Results []FileResult `json:"results"`
}

// Service 串起 缓存下载 -> 解析 -> 入库
type Service struct {
	engine *Engine
	files  Fetcher
	lister Lister
	parse  func(path, mimeType string) parser.Structure
}

func NewService(engine *Engine, files Fetcher, lister Lister) *Service {
	return &Service{engine: engine, files: files, lister: lister, parse: extract.Parse}
}

func (s *Service) Engine() *Engine { return s.engine }

// SyncFile 同步单个远程文件. 下载阶段的错误 (权限, 不存在, 网络) 原样返回,
// 此时不写历史; 进入 SyncStandard 后每次都会写一条历史.
func (s *Service) SyncFile(ctx context.Context, fileID string, useCache bool) (*Stats, error) {
	res, h, err := s.files.Fetch(ctx, fileID, useCache)
	if err != nil {
		return nil, err
	}
	// 解析期间持有句柄, 防止文件被清理
	parsed := s.parse(h.Path(), res.MimeType)
	h.Close()

	log.LoggerWith(ctx, xlog).Infof("解析 %s: %d 个章节, %d 个条款", res.FileName, len(parsed.Sections), len(parsed.Clauses))
	return s.engine.SyncStandard(ctx, &parsed, fileID, res.FileName)
}

// SyncAll 同步所有可见文件, 单个文件失败不影响其余文件.
// ctx 取消后不再处理剩余文件, 已完成的结果照常返回.
func (s *Service) SyncAll(ctx context.Context, mode Mode) (*Report, error) {
	started := s.engine.now().UTC()
	logger := log.LoggerWith(ctx, xlog).WithField("mode", mode)
	report := &Report{SyncID: uuid.NewString(), Mode: mode, Results: []FileResult{}}
	agg := &biz.SyncHistory{ID: report.SyncID, SyncType: mode.syncType(), StartedAt: started}
	var errLog []string

	files, err := s.lister.ListAll(ctx)
	if err != nil {
		errLog = append(errLog, err.Error())
		s.finish(ctx, report, agg, errLog)
		return report, errors.Wrap(err, "list remote files")
	}
	report.Summary.TotalFiles = len(files)
	logger.Infof("开始同步 %d 个文件", len(files))

	var runErr error
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			runErr = err
			errLog = append(errLog, fmt.Sprintf("cancelled after %d of %d files", len(report.Results), len(files)))
			logger.Warn("同步已取消")
			break
		}

		if mode == ModeIncremental && s.upToDate(ctx, f) {
			report.Summary.SkippedCount++
			report.Results = append(report.Results, FileResult{FileID: f.ID, FileName: f.Name, Status: FileSkipped})
			continue
		}

		stats, err := s.SyncFile(ctx, f.ID, true)
		if stats != nil {
			agg.StandardsCreated += stats.StandardsCreated
			agg.StandardsUpdated += stats.StandardsUpdated
			agg.SectionsCreated += stats.SectionsCreated
			agg.SectionsUpdated += stats.SectionsUpdated
			agg.ClausesCreated += stats.ClausesCreated
			agg.ClausesUpdated += stats.ClausesUpdated
			agg.Errors += stats.Errors
		}

		r := FileResult{FileID: f.ID, FileName: f.Name, Stats: stats}
		if err != nil {
			r.Status = FileFailed
			r.Error = err.Error()
			report.Summary.FailedCount++
			agg.Errors++
			errLog = append(errLog, fmt.Sprintf("%s: %v", f.Name, err))
			logger.WithError(err).Warnf("文件同步失败: %s", f.Name)
		} else {
			r.Status = FileSuccess
			report.Summary.SuccessCount++
		}
		report.Results = append(report.Results, r)
	}

	s.finish(ctx, report, agg, errLog)
	logger.Infof("同步结束: 成功 %d, 失败 %d, 跳过 %d",
		report.Summary.SuccessCount, report.Summary.FailedCount, report.Summary.SkippedCount)
	return report, runErr
}

// upToDate 远程修改时间不晚于上次同步时间
func (s *Service) upToDate(ctx context.Context, f gateway.RemoteFile) bool {
	std, err := s.engine.store.FindStandardByFileID(ctx, f.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.LoggerWith(ctx, xlog).WithError(err).Warnf("查询上次同步时间失败: %s", f.ID)
		}
		return false
	}
	return !f.ModifiedTime.IsZero() && !f.ModifiedTime.After(std.LastSyncedAt)
}

func (s *Service) finish(ctx context.Context, report *Report, agg *biz.SyncHistory, errLog []string) {
	sum := report.Summary
	switch {
	case len(errLog) > 0 && sum.SuccessCount == 0 && sum.SkippedCount == 0:
		agg.Status = biz.StatusFailed
	case len(errLog) > 0 || agg.Errors > 0:
		agg.Status = biz.StatusPartial
	default:
		agg.Status = biz.StatusCompleted
	}
	report.Status = agg.Status

	agg.CompletedAt = s.engine.now().UTC()
	elapsed := agg.CompletedAt.Sub(agg.StartedAt)
	agg.Duration = int(elapsed.Seconds())
	agg.ErrorLog = strings.Join(errLog, "\n")
	s.engine.record(ctx, agg, elapsed)
}
