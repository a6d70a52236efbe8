package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/picklefed/court-reservation/internal/pkg/logger"
)

// NoShowMarker は猶予を過ぎてもチェックインのない予約を無断キャンセルにする
type NoShowMarker interface {
	MarkNoShows(ctx context.Context, grace time.Duration) (int, error)
}

// NoShowSweeper は定期的に無断キャンセルを記録するワーカー
type NoShowSweeper struct {
	service  NoShowMarker
	interval time.Duration
	grace    time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewNoShowSweeper は新しいスイーパーを作成
func NewNoShowSweeper(s NoShowMarker, interval, grace time.Duration) *NoShowSweeper {
	return &NoShowSweeper{
		service:  s,
		interval: interval,
		grace:    grace,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start はスイーパーを開始する。ctx のキャンセルか Stop で終了する
func (w *NoShowSweeper) Start(ctx context.Context) {
	logger.Info("無断キャンセルスイーパー開始",
		zap.Duration("interval", w.interval),
		zap.Duration("grace", w.grace),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("無断キャンセルスイーパー停止（コンテキストキャンセル）")
			return
		case <-w.stopCh:
			logger.Info("無断キャンセルスイーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop はスイーパーを停止し、実行中の処理の終了を待つ
func (w *NoShowSweeper) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

func (w *NoShowSweeper) sweep(ctx context.Context) {
	log := logger.Get()

	count, err := w.service.MarkNoShows(ctx, w.grace)
	if count > 0 {
		log.Info("無断キャンセルを記録", zap.Int("count", count))
	}
	if err != nil {
		log.Error("無断キャンセルの記録に一部失敗", zap.Int("marked", count), zap.Error(err))
		return
	}
	if count == 0 {
		log.Debug("無断キャンセル対象なし")
	}
}
