package models

import (
	"time"

	"gorm.io/gorm"
)

// RequestLog 单次入站请求的记录（仅用于观测，不参与路由决策）
type RequestLog struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	RequestID        string    `gorm:"index" json:"request_id"`
	Method           string    `json:"method"`
	Path             string    `json:"path"`
	StatusCode       int       `json:"status_code"`
	Duration         int64     `json:"duration"` // 毫秒
	Model            string    `json:"model"`
	Attempts         int       `json:"attempts"`
	CredentialSuffix string    `json:"credential_suffix"`
	ErrorMsg         string    `json:"error_msg"`
	IP               string    `json:"ip"`
}

// AutoMigrate 自动迁移数据库结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&RequestLog{})
}
