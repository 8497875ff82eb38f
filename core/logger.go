package core

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"xpostr-proxy/models"
)

// AsyncRequestLogger 异步请求日志记录器
// 只做观测记录，分发逻辑从不读取这些数据
type AsyncRequestLogger struct {
	db        *gorm.DB
	logChan   chan *models.RequestLog
	logger    *logrus.Logger
	batchSize int
	flushTime time.Duration
	retain    int
	wg        sync.WaitGroup
	quit      chan struct{}
	closeOnce sync.Once
}

// NewAsyncRequestLogger 创建新的异步日志记录器；retain <= 0 表示不裁剪
func NewAsyncRequestLogger(db *gorm.DB, logger *logrus.Logger, retain int) *AsyncRequestLogger {
	l := &AsyncRequestLogger{
		db:        db,
		logChan:   make(chan *models.RequestLog, 1000),
		logger:    logger,
		batchSize: 100,
		flushTime: 5 * time.Second,
		retain:    retain,
		quit:      make(chan struct{}),
	}
	l.startWorker()
	return l
}

// Log 提交日志到队列，队列满时丢弃，不阻塞请求
func (l *AsyncRequestLogger) Log(entry *models.RequestLog) {
	select {
	case l.logChan <- entry:
	default:
		l.logger.Warn("Log channel full, dropping request log")
	}
}

func (l *AsyncRequestLogger) startWorker() {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.workerLoop()
	}()
}

func (l *AsyncRequestLogger) workerLoop() {
	var batch []*models.RequestLog
	timer := time.NewTicker(l.flushTime)
	defer timer.Stop()

	for {
		select {
		case entry := <-l.logChan:
			batch = append(batch, entry)
			if len(batch) >= l.batchSize {
				l.flush(batch)
				batch = nil
			}
		case <-timer.C:
			if len(batch) > 0 {
				l.flush(batch)
				batch = nil
			}
		case <-l.quit:
			// 退出前把队列里剩下的也写掉
			for {
				select {
				case entry := <-l.logChan:
					batch = append(batch, entry)
				default:
					if len(batch) > 0 {
						l.flush(batch)
					}
					return
				}
			}
		}
	}
}

// flush 批量写入并裁剪旧记录
func (l *AsyncRequestLogger) flush(logs []*models.RequestLog) {
	if len(logs) == 0 {
		return
	}

	l.logger.Debugf("[Logger] Flushing %d request logs", len(logs))
	if err := l.db.CreateInBatches(logs, len(logs)).Error; err != nil {
		l.logger.Errorf("[Logger] Failed to flush logs: %v", err)
		return
	}

	l.prune()
}

// prune 只保留最新的 retain 条
func (l *AsyncRequestLogger) prune() {
	if l.retain <= 0 {
		return
	}

	var count int64
	if err := l.db.Model(&models.RequestLog{}).Count(&count).Error; err != nil || count <= int64(l.retain) {
		return
	}

	var pivotID uint
	l.db.Model(&models.RequestLog{}).Select("id").Order("id desc").Offset(l.retain).Limit(1).Scan(&pivotID)
	if pivotID > 0 {
		if err := l.db.Where("id <= ?", pivotID).Delete(&models.RequestLog{}).Error; err != nil {
			l.logger.Errorf("[Logger] Failed to prune logs: %v", err)
		}
	}
}

// Close 刷新剩余日志并停止 worker，可重复调用
func (l *AsyncRequestLogger) Close() {
	l.closeOnce.Do(func() {
		close(l.quit)
		l.wg.Wait()
	})
}
