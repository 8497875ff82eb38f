package core

import (
	"fmt"
	"os"
	"sync"
)

// LogRotator 带大小轮转的日志文件写入器，实现 io.Writer
// 只保留一个备份: <file>.old
type LogRotator struct {
	filename    string
	maxSize     int64 // bytes
	file        *os.File
	mu          sync.Mutex
	currentSize int64
}

// NewLogRotator 创建新的日志轮转器 (maxSize in MB)
func NewLogRotator(filename string, maxSizeMB int) (*LogRotator, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return newLogRotator(filename, int64(maxSizeMB)*1024*1024)
}

func newLogRotator(filename string, maxBytes int64) (*LogRotator, error) {
	r := &LogRotator{
		filename: filename,
		maxSize:  maxBytes,
	}
	if err := r.openFile(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *LogRotator) openFile() error {
	file, err := os.OpenFile(r.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	r.file = file
	r.currentSize = stat.Size()
	return nil
}

func (r *LogRotator) Write(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentSize > 0 && r.currentSize+int64(len(p)) > r.maxSize {
		if err := r.rotate(); err != nil {
			// 轮转失败时继续写当前文件
			fmt.Fprintf(os.Stderr, "Log rotation failed: %v\n", err)
		}
	}

	n, err = r.file.Write(p)
	r.currentSize += int64(n)
	return n, err
}

func (r *LogRotator) rotate() error {
	if r.file != nil {
		r.file.Close()
	}

	backupName := r.filename + ".old"
	os.Remove(backupName) // 可能不存在

	if err := os.Rename(r.filename, backupName); err != nil {
		// 重命名失败也要重新打开，保证后续写入有文件可用
		if openErr := r.openFile(); openErr != nil {
			return openErr
		}
		return err
	}
	return r.openFile()
}

func (r *LogRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
