package db

import "gorm.io/gorm"

// WebsiteSetting 存储站点级别的键值配置。
type WebsiteSetting struct {
	gorm.Model
	WebsiteID uint   `gorm:"not null;uniqueIndex:idx_website_settings_key,priority:1"`
	Key       string `gorm:"size:100;not null;uniqueIndex:idx_website_settings_key,priority:2"`
	Value     string `gorm:"type:text"`
}

// TableName 自定义表名以保持命名一致。
func (WebsiteSetting) TableName() string {
	return "website_settings"
}

const (
	// SettingKeyDefaultLocale 表示站点默认语言。
	SettingKeyDefaultLocale = "default_locale"
	// SettingKeySupportedLocales 表示站点支持的语言列表（逗号分隔）。
	SettingKeySupportedLocales = "supported_locales"
)
