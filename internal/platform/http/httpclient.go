package http

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient は外部API（LLMなど）呼び出し用のHTTPクライアントを作成します。
//
// http.DefaultClient はタイムアウトが無いため使用しません。timeout はリクエスト全体の上限で、
// 0 の場合はコンテキストの期限のみが適用されます。
func NewHTTPClient(timeout time.Duration) *http.Client {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: t}
}
