package syncer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cometwk/standards/biz"
	"github.com/cometwk/standards/biz/store"
	"github.com/cometwk/standards/pkg/cache"
	"github.com/cometwk/standards/pkg/gateway"
	"github.com/cometwk/standards/pkg/orm"
	"github.com/cometwk/standards/pkg/parser"
)

const sampleText = `IICRC S500 Standard 2021
Section 1 General
1.1 Scope: This standard applies to water damage restoration.
1.2 Workers must avoid hazard zones.
Section 2 Equipment
2.1 Air movers should be positioned to maximize airflow.`

func newStore(t *testing.T) *store.SQLStore {
	t.Helper()
	logrus.SetLevel(logrus.WarnLevel)
	engine, err := orm.NewXormEngine("sqlite3", ":memory:")
	require.NoError(t, err)
	engine.ShowSQL(false)
	st := store.NewSQLStore(engine)
	require.NoError(t, st.Sync())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func sampleParsed() parser.Structure {
	var lines []parser.Line
	for _, l := range strings.Split(sampleText, "\n") {
		lines = append(lines, parser.Line{Text: l, Page: 1})
	}
	return parser.ParseLines(lines)
}

func count(t *testing.T, st *store.SQLStore, bean any) int64 {
	t.Helper()
	n, err := st.Engine().Count(bean)
	require.NoError(t, err)
	return n
}

func TestStandardCode(t *testing.T) {
	cases := map[string]string{
		"S500.pdf":                   "S500",
		"IICRC_S500_2021.pdf":        "S500",
		"s520 mould remediation":     "S520",
		"ANSI-IICRC-S1000.docx":      "S1000",
		"notes.txt":                  "",
		"Standard2024.pdf":           "",
		"S12345 too many digits.pdf": "",
		"IICRC_v2021_S500.pdf":       "S500",
		"Draft-R1234 S520.docx":      "S520",
		"AS4360.pdf":                 "S4360",
		"R1234 draft.pdf":            "",
	}
	for name, want := range cases {
		assert.Equal(t, want, StandardCode(name), name)
	}
}

func TestTitle(t *testing.T) {
	parsed := sampleParsed()
	assert.Equal(t, "Section 1 General", Title(&parsed, "S500.pdf"))

	empty := parser.Empty()
	assert.Equal(t, "IICRC S500 Water", Title(&empty, "IICRC_S500_Water.pdf"))
	assert.Equal(t, "S520", Title(&empty, "S520.docx"))
}

func TestSyncStandardIdempotent(t *testing.T) {
	st := newStore(t)
	e := NewEngine(st)
	ctx := context.Background()
	parsed := sampleParsed()

	stats, err := e.SyncStandard(ctx, &parsed, "f1", "IICRC_S500.pdf")
	require.NoError(t, err)
	assert.Equal(t, biz.StatusCompleted, stats.Status)
	assert.Equal(t, "S500", stats.Code)
	assert.True(t, strings.HasPrefix(stats.StandardID, "std_s500_"))
	assert.Len(t, stats.StandardID, len("std_s500_")+8)
	assert.Equal(t, 1, stats.StandardsCreated)
	assert.Equal(t, 2, stats.SectionsCreated)
	assert.Equal(t, 3, stats.ClausesCreated)

	again, err := e.SyncStandard(ctx, &parsed, "f1", "IICRC_S500.pdf")
	require.NoError(t, err)
	assert.Equal(t, stats.StandardID, again.StandardID)
	assert.Equal(t, 0, again.StandardsCreated)
	assert.Equal(t, 1, again.StandardsUpdated)
	assert.Equal(t, 0, again.SectionsCreated)
	assert.Equal(t, 2, again.SectionsUpdated)
	assert.Equal(t, 0, again.ClausesCreated)
	assert.Equal(t, 3, again.ClausesUpdated)

	assert.EqualValues(t, 1, count(t, st, new(biz.Standard)))
	assert.EqualValues(t, 2, count(t, st, new(biz.StandardSection)))
	assert.EqualValues(t, 3, count(t, st, new(biz.StandardClause)))
	assert.EqualValues(t, 2, count(t, st, new(biz.SyncHistory)))

	std, err := st.FindStandardByCode(ctx, "S500")
	require.NoError(t, err)
	assert.Equal(t, "Section 1 General", std.Title)
	assert.Equal(t, "IICRC", std.Publisher)
	assert.Equal(t, "1.0", std.Version)
	assert.Equal(t, "2021", std.PublicationYear)
	assert.Equal(t, biz.StandardActive, std.Status)
	assert.Contains(t, std.FullText, "Air movers")

	sec, err := st.FindSection(ctx, std.ID, "2")
	require.NoError(t, err)
	c, err := st.FindClause(ctx, std.ID, "2.1")
	require.NoError(t, err)
	require.NotNil(t, c.SectionID)
	assert.Equal(t, sec.ID, *c.SectionID)
	assert.Equal(t, parser.ImportanceRecommended, c.Importance)

	c, err = st.FindClause(ctx, std.ID, "1.2")
	require.NoError(t, err)
	assert.Equal(t, parser.ImportanceRequired, c.Importance)

	h, err := st.GetHistory(ctx, again.SyncID)
	require.NoError(t, err)
	assert.Equal(t, biz.SyncSingleFile, h.SyncType)
	assert.Equal(t, biz.StatusCompleted, h.Status)
	assert.Equal(t, 3, h.ClausesUpdated)
}

// failingStore 对指定编号的条款插入失败
type failingStore struct {
	store.Store
	clause string
}

func (f *failingStore) InsertClause(ctx context.Context, c *biz.StandardClause) error {
	if c.ClauseNumber == f.clause {
		return errors.New("disk on fire")
	}
	return f.Store.InsertClause(ctx, c)
}

func TestSyncStandardPartialFailure(t *testing.T) {
	st := newStore(t)
	e := NewEngine(&failingStore{Store: st, clause: "1.1"})
	ctx := context.Background()
	parsed := sampleParsed()

	stats, err := e.SyncStandard(ctx, &parsed, "f1", "S500.pdf")
	require.NoError(t, err)
	assert.Equal(t, biz.StatusPartial, stats.Status)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 2, stats.ClausesCreated)
	assert.Contains(t, stats.ErrorLog, "clause 1.1")

	// 失败之后的条款照常写入
	_, err = st.FindClause(ctx, stats.StandardID, "1.2")
	assert.NoError(t, err)
	_, err = st.FindClause(ctx, stats.StandardID, "2.1")
	assert.NoError(t, err)
	_, err = st.FindClause(ctx, stats.StandardID, "1.1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	h, err := st.GetHistory(ctx, stats.SyncID)
	require.NoError(t, err)
	assert.Equal(t, biz.StatusPartial, h.Status)
	assert.Equal(t, 1, h.Errors)
}

func TestSyncStandardNoCode(t *testing.T) {
	st := newStore(t)
	e := NewEngine(st)
	parsed := sampleParsed()

	stats, err := e.SyncStandard(context.Background(), &parsed, "f9", "meeting notes.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoStandardCode)
	assert.Equal(t, biz.StatusFailed, stats.Status)
	assert.Contains(t, stats.ErrorLog, "meeting notes.pdf")

	assert.EqualValues(t, 0, count(t, st, new(biz.Standard)))
	assert.EqualValues(t, 0, count(t, st, new(biz.StandardClause)))

	h, err := st.GetHistory(context.Background(), stats.SyncID)
	require.NoError(t, err)
	assert.Equal(t, biz.StatusFailed, h.Status)
	assert.Equal(t, "f9", h.DriveFileID)
}

func TestSyncSectionParents(t *testing.T) {
	st := newStore(t)
	e := NewEngine(st)
	ctx := context.Background()

	parsed := parser.ParseParagraphs([]parser.Paragraph{
		{Text: "3 Safety", HeadingLevel: 1},
		{Text: "3.1 Protective Equipment", HeadingLevel: 2},
		{Text: "3.1.1 Gloves: Wear gloves when handling contaminated material.", HeadingLevel: 0},
		{Text: "4 Drying", HeadingLevel: 1},
	})
	stats, err := e.SyncStandard(ctx, &parsed, "f1", "S500.docx")
	require.NoError(t, err)
	require.Equal(t, biz.StatusCompleted, stats.Status)

	parent, err := st.FindSection(ctx, stats.StandardID, "3")
	require.NoError(t, err)
	child, err := st.FindSection(ctx, stats.StandardID, "3.1")
	require.NoError(t, err)
	require.NotNil(t, child.ParentSectionID)
	assert.Equal(t, parent.ID, *child.ParentSectionID)
	assert.Nil(t, parent.ParentSectionID)

	top, err := st.FindSection(ctx, stats.StandardID, "4")
	require.NoError(t, err)
	assert.Nil(t, top.ParentSectionID)
}

func TestCreatesCycle(t *testing.T) {
	parents := map[string]string{"b": "a", "c": "b"}
	assert.True(t, createsCycle(parents, "a", "a"))
	assert.True(t, createsCycle(parents, "a", "c"))
	assert.False(t, createsCycle(parents, "d", "c"))
	assert.False(t, createsCycle(parents, "x", "y"))
}

func TestUpsertRetriesOnConflict(t *testing.T) {
	finds := 0
	var updated string
	created, err := upsert(
		func() (*string, error) {
			finds++
			if finds == 1 {
				return nil, store.ErrNotFound
			}
			v := "row"
			return &v, nil
		},
		func() error { return errors.Wrap(store.ErrConflict, "dup") },
		func(v *string) error { updated = *v; return nil },
	)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 2, finds)
	assert.Equal(t, "row", updated)
}

type fixture struct {
	st      *store.SQLStore
	backend *gateway.MemoryBackend
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newStore(t)
	m := gateway.NewMemoryBackend()
	gw := gateway.New(m, nil)
	c, err := cache.New(gw, cache.Options{Dir: t.TempDir(), TTL: time.Hour, MaxBytes: 1 << 20})
	require.NoError(t, err)

	modified := time.Now().Add(-time.Hour)
	m.Put(gateway.RemoteFile{ID: "f1", Name: "S500.txt", MimeType: "text/plain", ModifiedTime: modified}, []byte(sampleText))
	m.Put(gateway.RemoteFile{ID: "f2", Name: "S520.txt", MimeType: "text/plain", ModifiedTime: modified}, []byte(strings.ReplaceAll(sampleText, "S500", "S520")))
	m.Put(gateway.RemoteFile{ID: "f3", Name: "notes.txt", MimeType: "text/plain", ModifiedTime: modified}, []byte("nothing here"))
	m.Put(gateway.RemoteFile{ID: "f4", Name: "S100.txt", MimeType: "text/plain", ModifiedTime: modified}, []byte(sampleText))
	m.FailDownload("f4", errors.New("connection reset"))

	return &fixture{st: st, backend: m, svc: NewService(NewEngine(st), c, gw)}
}

func TestSyncFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stats, err := f.svc.SyncFile(ctx, "f1", true)
	require.NoError(t, err)
	assert.Equal(t, biz.StatusCompleted, stats.Status)
	assert.Equal(t, 3, stats.ClausesCreated)

	_, err = f.svc.SyncFile(ctx, "nope", true)
	assert.ErrorIs(t, err, gateway.ErrNotFound)

	_, err = f.svc.SyncFile(ctx, "f4", true)
	var transient *gateway.TransientError
	assert.True(t, errors.As(err, &transient))
}

func TestSyncAllAggregation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report, err := f.svc.SyncAll(ctx, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Summary.TotalFiles)
	assert.Equal(t, 2, report.Summary.SuccessCount)
	assert.Equal(t, 2, report.Summary.FailedCount)
	assert.Equal(t, 0, report.Summary.SkippedCount)
	assert.Len(t, report.Results, 4)
	assert.Equal(t, biz.StatusPartial, report.Status)

	byID := map[string]FileResult{}
	for _, r := range report.Results {
		byID[r.FileID] = r
	}
	assert.Equal(t, FileSuccess, byID["f1"].Status)
	assert.Equal(t, FileFailed, byID["f3"].Status)
	assert.NotNil(t, byID["f3"].Stats)
	assert.Equal(t, FileFailed, byID["f4"].Status)
	assert.Nil(t, byID["f4"].Stats)
	assert.Contains(t, byID["f4"].Error, "connection reset")

	assert.EqualValues(t, 2, count(t, f.st, new(biz.Standard)))

	h, err := f.st.GetHistory(ctx, report.SyncID)
	require.NoError(t, err)
	assert.Equal(t, biz.SyncFull, h.SyncType)
	assert.Equal(t, biz.StatusPartial, h.Status)
	assert.Equal(t, 2, h.StandardsCreated)
	assert.Contains(t, h.ErrorLog, "S100.txt")

	// 3 次单文件历史 (f4 下载失败不产生) + 1 次汇总
	assert.EqualValues(t, 4, count(t, f.st, new(biz.SyncHistory)))
}

func TestSyncAllIncremental(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SyncAll(ctx, ModeFull)
	require.NoError(t, err)

	report, err := f.svc.SyncAll(ctx, ModeIncremental)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Summary.TotalFiles)
	assert.Equal(t, 2, report.Summary.SkippedCount)
	assert.Equal(t, 0, report.Summary.SuccessCount)
	assert.Equal(t, 2, report.Summary.FailedCount)

	// 远程文件更新后重新同步
	f.backend.Put(gateway.RemoteFile{ID: "f1", Name: "S500.txt", MimeType: "text/plain", ModifiedTime: time.Now().Add(time.Minute)}, []byte(sampleText))
	report, err = f.svc.SyncAll(ctx, ModeIncremental)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.SkippedCount)
	assert.Equal(t, 1, report.Summary.SuccessCount)

	list, err := f.st.ListHistory(ctx, store.HistoryFilter{SyncType: biz.SyncIncremental})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSyncAllCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.svc.SyncAll(ctx, ModeFull)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Results)
	assert.Equal(t, biz.StatusFailed, report.Status)

	h, err := f.st.GetHistory(context.Background(), report.SyncID)
	require.NoError(t, err)
	assert.Contains(t, h.ErrorLog, "cancelled")
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeIncremental, ParseMode("INCREMENTAL"))
	assert.Equal(t, ModeFull, ParseMode(""))
	assert.Equal(t, ModeFull, ParseMode("bogus"))
}

type busyLock struct{}

func (busyLock) Acquire(context.Context) (func(), error) { return nil, ErrSyncInProgress }

func TestRunnerSingleRun(t *testing.T) {
	f := newFixture(t)
	r := NewRunner(f.svc, nil)
	defer r.Stop()

	r.running.Set()
	_, err := r.RunAll(context.Background(), ModeFull)
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.ErrorIs(t, r.Trigger(ModeFull), ErrSyncInProgress)
	r.running.UnSet()

	report, err := r.RunAll(context.Background(), ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Summary.TotalFiles)
	assert.False(t, r.Running())

	locked := NewRunner(f.svc, busyLock{})
	defer locked.Stop()
	_, err = locked.RunAll(context.Background(), ModeFull)
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.False(t, locked.Running())
}

// waitLock 阻塞到 ctx 取消
type waitLock struct{ acquired chan struct{} }

func (l waitLock) Acquire(ctx context.Context) (func(), error) {
	close(l.acquired)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunnerStopCancelsRunAll(t *testing.T) {
	f := newFixture(t)
	lock := waitLock{acquired: make(chan struct{})}
	r := NewRunner(f.svc, lock)

	done := make(chan error, 1)
	go func() {
		// 调用方的 ctx 永远不会取消, 只能靠 Stop
		_, err := r.RunAll(context.Background(), ModeFull)
		done <- err
	}()
	<-lock.acquired
	assert.True(t, r.Running())

	r.Stop()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("RunAll did not return after Stop")
	}
	assert.False(t, r.Running())

	_, err := r.RunAll(context.Background(), ModeFull)
	assert.ErrorIs(t, err, ErrRunnerStopped)
}

func TestRunnerTrigger(t *testing.T) {
	f := newFixture(t)
	r := NewRunner(f.svc, nil)

	require.NoError(t, r.Trigger(ModeFull))
	assert.Eventually(t, func() bool { return !r.Running() }, 5*time.Second, 10*time.Millisecond)
	r.Stop()

	list, err := f.st.ListHistory(context.Background(), store.HistoryFilter{SyncType: biz.SyncFull})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.Error(t, r.Trigger(ModeFull))
}

func TestRedisLock(t *testing.T) {
	_, err := NewRedisLock("not a url", "k", 0)
	assert.Error(t, err)

	lock, err := NewRedisLock("redis://localhost:6379/0", "standards:test:sync", time.Minute)
	require.NoError(t, err)
	defer lock.Close()
	if err := lock.Ping(context.Background()); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}

	release, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	_, err = lock.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrSyncInProgress)
	release()

	release, err = lock.Acquire(context.Background())
	require.NoError(t, err)
	release()
}
