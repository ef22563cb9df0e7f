package handler

import (
	"net/http"
	"time"
)

type healthResponse struct {
	OK        bool  `json:"ok"`
	Timestamp int64 `json:"timestamp"`
}

// Health は死活監視用のエンドポイント。timestampはUnixミリ秒。
// GET /api/health
func Health(now func() time.Time) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{OK: true, Timestamp: now().UnixMilli()})
	}
}
