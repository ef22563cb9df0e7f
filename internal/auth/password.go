package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/sharediary/internal/metrics"
)

// PasswordHasher はbcryptによるハッシュ化と照合を、同時実行数を制限したワーカー枠で行う。
// 枠はセマフォで管理し、重いハッシュ計算が無関係なリクエストの処理を占有しないようにする。
type PasswordHasher struct {
	cost    int
	sem     chan struct{}
	metrics metrics.MetricsCollector
}

// NewPasswordHasher はPasswordHasherを生成する。
// workersが1未満の場合は1として扱う。
func NewPasswordHasher(cost, workers int, m metrics.MetricsCollector) *PasswordHasher {
	if workers < 1 {
		workers = 1
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &PasswordHasher{
		cost:    cost,
		sem:     make(chan struct{}, workers),
		metrics: m,
	}
}

// acquire はワーカー枠を1つ確保する。ctxがキャンセルされた場合はエラーを返す。
func (h *PasswordHasher) acquire(ctx context.Context) error {
	select {
	case h.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *PasswordHasher) release() {
	<-h.sem
}

// Hash はパスワードのbcryptハッシュを返す。
func (h *PasswordHasher) Hash(ctx context.Context, password string) (string, error) {
	start := time.Now()
	defer func() { h.metrics.RecordHashLatency("hash", time.Since(start)) }()

	if err := h.acquire(ctx); err != nil {
		return "", fmt.Errorf("waiting for hash worker: %w", err)
	}
	defer h.release()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify はパスワードがハッシュと一致するかを返す。
// ワーカー枠の確保中にctxがキャンセルされた場合はfalseを返す。
func (h *PasswordHasher) Verify(ctx context.Context, password, hash string) bool {
	start := time.Now()
	defer func() { h.metrics.RecordHashLatency("verify", time.Since(start)) }()

	if err := h.acquire(ctx); err != nil {
		return false
	}
	defer h.release()

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
