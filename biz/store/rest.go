package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/cometwk/standards/biz"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RESTStore 基于 PostgREST 协议 (Supabase /rest/v1)
type RESTStore struct {
	base   string
	key    string
	client *http.Client
}

func NewRESTStore(baseURL, key string, client *http.Client) *RESTStore {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RESTStore{
		base:   strings.TrimRight(baseURL, "/") + "/rest/v1/",
		key:    key,
		client: client,
	}
}

func (s *RESTStore) Close() error { return nil }

// APIError PostgREST 返回的错误体
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rest store: %d %s %s", e.Status, e.Code, e.Message)
}

func (s *RESTStore) do(ctx context.Context, method, table string, query url.Values, body any) ([]map[string]any, error) {
	u := s.base + table
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, table)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		if resp.StatusCode == http.StatusConflict || apiErr.Code == "23505" {
			return nil, errors.Wrap(ErrConflict, apiErr.Error())
		}
		return nil, apiErr
	}

	var rows []map[string]any
	if len(bytes.TrimSpace(data)) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, errors.Wrapf(err, "decode %s response", table)
	}
	return rows, nil
}

func eq(v string) string { return "eq." + v }

// first 取第一行解码到 out
func (s *RESTStore) first(ctx context.Context, table string, query url.Values, out any) error {
	query.Set("select", "*")
	query.Set("limit", "1")
	rows, err := s.do(ctx, http.MethodGet, table, query, nil)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return decodeRow(rows[0], out)
}

func (s *RESTStore) insert(ctx context.Context, table string, bean any) error {
	_, err := s.do(ctx, http.MethodPost, table, nil, bean)
	return err
}

func (s *RESTStore) update(ctx context.Context, table, id string, bean any) error {
	rows, err := s.do(ctx, http.MethodPatch, table, url.Values{"id": {eq(id)}}, bean)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RESTStore) FindStandardByCode(ctx context.Context, code string) (*biz.Standard, error) {
	var std biz.Standard
	if err := s.first(ctx, "Standard", url.Values{"code": {eq(code)}}, &std); err != nil {
		return nil, err
	}
	return &std, nil
}

func (s *RESTStore) FindStandardByFileID(ctx context.Context, fileID string) (*biz.Standard, error) {
	var std biz.Standard
	if err := s.first(ctx, "Standard", url.Values{"driveFileId": {eq(fileID)}}, &std); err != nil {
		return nil, err
	}
	return &std, nil
}

func (s *RESTStore) InsertStandard(ctx context.Context, std *biz.Standard) error {
	return s.insert(ctx, "Standard", std)
}

func (s *RESTStore) UpdateStandard(ctx context.Context, std *biz.Standard) error {
	return s.update(ctx, "Standard", std.ID, std)
}

func (s *RESTStore) FindSection(ctx context.Context, standardID, number string) (*biz.StandardSection, error) {
	var sec biz.StandardSection
	q := url.Values{"standardId": {eq(standardID)}, "sectionNumber": {eq(number)}}
	if err := s.first(ctx, "StandardSection", q, &sec); err != nil {
		return nil, err
	}
	return &sec, nil
}

func (s *RESTStore) InsertSection(ctx context.Context, sec *biz.StandardSection) error {
	return s.insert(ctx, "StandardSection", sec)
}

func (s *RESTStore) UpdateSection(ctx context.Context, sec *biz.StandardSection) error {
	return s.update(ctx, "StandardSection", sec.ID, sec)
}

func (s *RESTStore) FindClause(ctx context.Context, standardID, number string) (*biz.StandardClause, error) {
	var c biz.StandardClause
	q := url.Values{"standardId": {eq(standardID)}, "clauseNumber": {eq(number)}}
	if err := s.first(ctx, "StandardClause", q, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *RESTStore) InsertClause(ctx context.Context, c *biz.StandardClause) error {
	return s.insert(ctx, "StandardClause", c)
}

func (s *RESTStore) UpdateClause(ctx context.Context, c *biz.StandardClause) error {
	return s.update(ctx, "StandardClause", c.ID, c)
}

func (s *RESTStore) InsertHistory(ctx context.Context, h *biz.SyncHistory) error {
	return s.insert(ctx, "SyncHistory", h)
}

func (s *RESTStore) GetHistory(ctx context.Context, id string) (*biz.SyncHistory, error) {
	var h biz.SyncHistory
	if err := s.first(ctx, "SyncHistory", url.Values{"id": {eq(id)}}, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *RESTStore) ListHistory(ctx context.Context, f HistoryFilter) ([]biz.SyncHistory, error) {
	f = f.Normalize()
	q := url.Values{
		"select": {"*"},
		"order":  {"startedAt.desc"},
		"limit":  {strconv.Itoa(f.Limit)},
	}
	if f.Status != "" {
		q.Set("status", eq(f.Status))
	}
	if f.SyncType != "" {
		q.Set("syncType", eq(f.SyncType))
	}

	rows, err := s.do(ctx, http.MethodGet, "SyncHistory", q, nil)
	if err != nil {
		return nil, err
	}
	list := make([]biz.SyncHistory, 0, len(rows))
	for _, row := range rows {
		var h biz.SyncHistory
		if err := decodeRow(row, &h); err != nil {
			return nil, err
		}
		list = append(list, h)
	}
	return list, nil
}

// PostgREST 对 timestamp / timestamptz 的输出格式不同
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized time %q", s)
}

func timeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Time{}) || from.Kind() != reflect.String {
		return data, nil
	}
	s := data.(string)
	if s == "" {
		return time.Time{}, nil
	}
	return parseTime(s)
}

func decodeRow(row map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       timeHook,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.Wrap(dec.Decode(row), "decode row")
}
