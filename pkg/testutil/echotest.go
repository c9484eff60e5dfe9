package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
)

// ResponseRecorder 包装了 httptest.ResponseRecorder 以提供额外的辅助方法
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// BodyJson 将 JSON 响应体解析为 map[string]any
func (r *ResponseRecorder) BodyJson() (map[string]any, error) {
	var response map[string]any
	if err := jsoniter.Unmarshal(r.Body.Bytes(), &response); err != nil {
		return nil, err
	}
	return response, nil
}

// Decode 将 JSON 响应体解析到 v
func (r *ResponseRecorder) Decode(v any) error {
	return jsoniter.Unmarshal(r.Body.Bytes(), v)
}

// NewRequest 针对给定的 echo 实例执行一个模拟的 HTTP 请求, 会执行完整的中间件链
func NewRequest(e *echo.Echo, method, path string, body io.Reader) *ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	e.ServeHTTP(rec, req)
	return &ResponseRecorder{rec}
}

// Get 执行一个带查询参数的 GET 请求
func Get(e *echo.Echo, path string, queryParams url.Values) *ResponseRecorder {
	if queryParams != nil {
		path = path + "?" + queryParams.Encode()
	}
	return NewRequest(e, http.MethodGet, path, nil)
}

// Post 执行一个带 JSON 字符串主体的 POST 请求, jsonBody 为空时不带主体
func Post(e *echo.Echo, path string, jsonBody string) *ResponseRecorder {
	if jsonBody == "" {
		return NewRequest(e, http.MethodPost, path, nil)
	}
	return NewRequest(e, http.MethodPost, path, strings.NewReader(jsonBody))
}
