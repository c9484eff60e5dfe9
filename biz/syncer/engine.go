// Package syncer reconciles parsed standards into the store and records one
// SyncHistory row per run.
package syncer

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cometwk/standards/biz"
	"github.com/cometwk/standards/biz/store"
	"github.com/cometwk/standards/pkg/log"
	"github.com/cometwk/standards/pkg/metrics"
	"github.com/cometwk/standards/pkg/parser"
)

var xlog = logrus.WithField("module", "syncer")

var (
	ErrNoStandardCode = errors.New("no standard code in file name")
	ErrSyncInProgress = errors.New("a full sync is already running")
)

const (
	defaultPublisher = "IICRC"
	defaultVersion   = "1.0"
)

// S 加 3~4 位数字, 后面不能紧跟数字. 前缀不限, "AS4360" -> "S4360"
var codePattern = regexp.MustCompile(`(?i)(s\d{3,4})(?:\D|$)`)

// StandardCode 从文件名提取标准编号, 如 "IICRC_S500_2021.pdf" -> "S500"
func StandardCode(fileName string) string {
	m := codePattern.FindStringSubmatch(fileName)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// Title 取第一个章节标题, 否则由文件名推出
func Title(parsed *parser.Structure, fileName string) string {
	if len(parsed.Sections) > 0 && parsed.Sections[0].Title != "" {
		return parsed.Sections[0].Title
	}
	t := strings.ReplaceAll(fileName, ".pdf", "")
	t = strings.ReplaceAll(t, ".docx", "")
	return strings.ReplaceAll(t, "_", " ")
}

// Stats 单文件同步结果
type Stats struct {
	SyncID           string   `json:"syncId"`
	StandardID       string   `json:"standardId,omitempty"`
	Code             string   `json:"code,omitempty"`
	Status           string   `json:"status"`
	StandardsCreated int      `json:"standardsCreated"`
	StandardsUpdated int      `json:"standardsUpdated"`
	SectionsCreated  int      `json:"sectionsCreated"`
	SectionsUpdated  int      `json:"sectionsUpdated"`
	ClausesCreated   int      `json:"clausesCreated"`
	ClausesUpdated   int      `json:"clausesUpdated"`
	Errors           int      `json:"errors"`
	ErrorMessages    []string `json:"errorMessages"`
	ErrorLog         string   `json:"errorLog"`
	Duration         float64  `json:"duration"`
}

func (s *Stats) fail(msg string) {
	s.Errors++
	s.ErrorMessages = append(s.ErrorMessages, msg)
}

type Engine struct {
	store store.Store
	now   func() time.Time
}

func NewEngine(st store.Store) *Engine {
	return &Engine{store: st, now: time.Now}
}

func (e *Engine) Store() store.Store { return e.store }

// SyncStandard 写入一份解析结果. 返回的 error 非空表示本次运行 FAILED;
// 章节/条款级别的失败只计数, 结果为 PARTIAL.
func (e *Engine) SyncStandard(ctx context.Context, parsed *parser.Structure, fileID, fileName string) (*Stats, error) {
	started := e.now().UTC()
	stats := &Stats{SyncID: uuid.NewString(), ErrorMessages: []string{}}
	logger := log.LoggerWith(ctx, xlog).WithFields(logrus.Fields{"syncId": stats.SyncID, "fileId": fileID})

	err := e.syncStandard(ctx, parsed, fileID, fileName, stats)
	switch {
	case err != nil:
		stats.Status = biz.StatusFailed
		stats.ErrorMessages = append(stats.ErrorMessages, err.Error())
		logger.WithError(err).Errorf("同步失败: %s", fileName)
	case stats.Errors > 0:
		stats.Status = biz.StatusPartial
		logger.Warnf("同步部分完成: %s, %d 个错误", fileName, stats.Errors)
	default:
		stats.Status = biz.StatusCompleted
		logger.Infof("同步完成: %s", fileName)
	}

	completed := e.now().UTC()
	elapsed := completed.Sub(started)
	stats.Duration = elapsed.Seconds()
	stats.ErrorLog = strings.Join(stats.ErrorMessages, "\n")

	e.record(ctx, &biz.SyncHistory{
		ID:               stats.SyncID,
		SyncType:         biz.SyncSingleFile,
		Status:           stats.Status,
		DriveFileID:      fileID,
		DriveFileName:    fileName,
		StandardID:       stats.StandardID,
		StandardsCreated: stats.StandardsCreated,
		StandardsUpdated: stats.StandardsUpdated,
		SectionsCreated:  stats.SectionsCreated,
		SectionsUpdated:  stats.SectionsUpdated,
		ClausesCreated:   stats.ClausesCreated,
		ClausesUpdated:   stats.ClausesUpdated,
		Errors:           stats.Errors,
		ErrorLog:         stats.ErrorLog,
		Duration:         int(elapsed.Seconds()),
		StartedAt:        started,
		CompletedAt:      completed,
	}, elapsed)

	return stats, err
}

// record 写入历史; 失败只记日志, 不改变运行结果
func (e *Engine) record(ctx context.Context, h *biz.SyncHistory, elapsed time.Duration) {
	metrics.SyncRuns.WithLabelValues(h.SyncType, h.Status).Inc()
	metrics.SyncDuration.WithLabelValues(h.SyncType).Observe(elapsed.Seconds())

	if err := e.store.InsertHistory(context.WithoutCancel(ctx), h); err != nil {
		log.LoggerWith(ctx, xlog).WithError(err).Errorf("写入同步历史失败: %s", h.ID)
	}
}

func (e *Engine) syncStandard(ctx context.Context, parsed *parser.Structure, fileID, fileName string, stats *Stats) error {
	code := StandardCode(fileName)
	if code == "" {
		return errors.Wrapf(ErrNoStandardCode, "%q", fileName)
	}
	stats.Code = code

	std, created, err := e.upsertStandard(ctx, code, parsed, fileID, fileName)
	if err != nil {
		return errors.Wrapf(err, "upsert standard %s", code)
	}
	stats.StandardID = std.ID
	if created {
		stats.StandardsCreated++
	} else {
		stats.StandardsUpdated++
	}

	sections := e.syncSections(ctx, std.ID, parsed.Sections, stats)
	e.syncClauses(ctx, std.ID, parsed.Clauses, sections, stats)
	return nil
}

func (e *Engine) upsertStandard(ctx context.Context, code string, parsed *parser.Structure, fileID, fileName string) (*biz.Standard, bool, error) {
	now := e.now().UTC()
	md := parsed.Metadata

	apply := func(s *biz.Standard) {
		s.Title = Title(parsed, fileName)
		s.Edition = md.Edition
		s.Publisher = orDefault(md.Publisher, defaultPublisher)
		s.Version = orDefault(md.Version, defaultVersion)
		s.PublicationYear = md.PublicationYear
		s.DriveFileID = fileID
		s.DriveFileName = fileName
		s.FullText = parsed.FullText
		s.Status = biz.StandardActive
		s.LastSyncedAt = now
		s.UpdatedAt = now
	}

	var out *biz.Standard
	created, err := upsert(
		func() (*biz.Standard, error) { return e.store.FindStandardByCode(ctx, code) },
		func() error {
			s := &biz.Standard{ID: standardID(code), Code: code, CreatedAt: now}
			apply(s)
			out = s
			return e.store.InsertStandard(ctx, s)
		},
		func(s *biz.Standard) error {
			apply(s)
			out = s
			return e.store.UpdateStandard(ctx, s)
		},
	)
	return out, created, err
}

// syncSections 返回 section key -> id
func (e *Engine) syncSections(ctx context.Context, standardID string, sections []parser.Section, stats *Stats) map[string]string {
	ids := make(map[string]string, len(sections))
	parents := make(map[string]string, len(sections)) // id -> parent id, 本次运行写入的

	for _, sec := range sections {
		if sec.Key == "" {
			stats.fail("section with empty number skipped")
			continue
		}
		now := e.now().UTC()

		var parentID *string
		if pid, ok := ids[sec.ParentKey]; ok && sec.ParentKey != sec.Key {
			parentID = &pid
		}

		apply := func(s *biz.StandardSection) {
			s.Title = sec.Title
			s.Content = sec.Content
			s.Level = sec.Level
			s.Page = sec.Page
			s.ParentSectionID = parentID
			if parentID != nil && createsCycle(parents, s.ID, *parentID) {
				xlog.Warnf("章节 %s 的父章节会形成环, 已忽略", sec.Key)
				s.ParentSectionID = nil
			}
			s.UpdatedAt = now
		}

		var saved *biz.StandardSection
		created, err := upsert(
			func() (*biz.StandardSection, error) { return e.store.FindSection(ctx, standardID, sec.Key) },
			func() error {
				s := &biz.StandardSection{ID: uuid.NewString(), StandardID: standardID, SectionNumber: sec.Key, CreatedAt: now}
				apply(s)
				saved = s
				return e.store.InsertSection(ctx, s)
			},
			func(s *biz.StandardSection) error {
				apply(s)
				saved = s
				return e.store.UpdateSection(ctx, s)
			},
		)
		if err != nil {
			stats.fail(fmt.Sprintf("section %s: %v", sec.Key, err))
			log.LoggerWith(ctx, xlog).WithError(err).Errorf("同步章节失败: %s", sec.Key)
			continue
		}

		ids[sec.Key] = saved.ID
		if saved.ParentSectionID != nil {
			parents[saved.ID] = *saved.ParentSectionID
		} else {
			delete(parents, saved.ID)
		}
		if created {
			stats.SectionsCreated++
		} else {
			stats.SectionsUpdated++
		}
	}
	return ids
}

// createsCycle 判断把 id 的父节点设为 parent 是否成环 (含自引用)
func createsCycle(parents map[string]string, id, parent string) bool {
	seen := map[string]bool{}
	for cur := parent; cur != ""; cur = parents[cur] {
		if cur == id || seen[cur] {
			return true
		}
		seen[cur] = true
	}
	return false
}

func (e *Engine) syncClauses(ctx context.Context, standardID string, clauses []parser.Clause, sections map[string]string, stats *Stats) {
	for _, cl := range clauses {
		now := e.now().UTC()

		var sectionID *string
		if id, ok := sections[cl.SectionKey]; ok {
			sectionID = &id
		}
		importance := orDefault(cl.Importance, parser.ImportanceStandard)

		apply := func(c *biz.StandardClause) {
			c.SectionID = sectionID
			c.Title = cl.Title
			c.Content = cl.Content
			c.Category = cl.Category
			c.Importance = importance
			c.Page = cl.Page
			c.UpdatedAt = now
		}

		created, err := upsert(
			func() (*biz.StandardClause, error) { return e.store.FindClause(ctx, standardID, cl.Number) },
			func() error {
				c := &biz.StandardClause{ID: uuid.NewString(), StandardID: standardID, ClauseNumber: cl.Number, CreatedAt: now}
				apply(c)
				return e.store.InsertClause(ctx, c)
			},
			func(c *biz.StandardClause) error {
				apply(c)
				return e.store.UpdateClause(ctx, c)
			},
		)
		if err != nil {
			stats.fail(fmt.Sprintf("clause %s: %v", cl.Number, err))
			log.LoggerWith(ctx, xlog).WithError(err).Errorf("同步条款失败: %s", cl.Number)
			continue
		}
		if created {
			stats.ClausesCreated++
		} else {
			stats.ClausesUpdated++
		}
	}
}

// upsert 按自然键查找, 命中则更新, 否则插入.
// 插入遇到唯一键冲突说明有其他写入者抢先, 重新查找后走更新.
func upsert[T any](find func() (*T, error), insert func() error, update func(*T) error) (bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		cur, err := find()
		if err == nil {
			return false, update(cur)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return false, err
		}
		err = insert()
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return false, err
		}
	}
	return false, store.ErrConflict
}

func standardID(code string) string {
	return fmt.Sprintf("std_%s_%s", strings.ToLower(code), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
