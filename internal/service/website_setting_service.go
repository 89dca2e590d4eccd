package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pagewright/internal/db"
	"github.com/pagewright/internal/locale"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LocaleSettings 描述站点的语言配置。
type LocaleSettings struct {
	DefaultLocale    string
	SupportedLocales []string
}

// WebsiteSettingService 提供站点设置的读取与更新能力。
type WebsiteSettingService struct {
	db            *gorm.DB
	defaultLocale string
}

// NewWebsiteSettingService 构造 WebsiteSettingService。
func NewWebsiteSettingService(gdb *gorm.DB, defaultLocale string) *WebsiteSettingService {
	if strings.TrimSpace(defaultLocale) == "" {
		defaultLocale = locale.Fallback
	}
	return &WebsiteSettingService{db: gdb, defaultLocale: defaultLocale}
}

var localeSettingKeys = []string{
	db.SettingKeyDefaultLocale,
	db.SettingKeySupportedLocales,
}

// Locales 读取站点语言设置；未设置时依次回退到站点默认语言与全局默认语言。
func (s *WebsiteSettingService) Locales(ctx context.Context, website *db.Website) (LocaleSettings, error) {
	result := LocaleSettings{DefaultLocale: locale.Normalize(website.DefaultLocale)}
	if result.DefaultLocale == "" {
		result.DefaultLocale = s.defaultLocale
	}

	var records []db.WebsiteSetting
	if err := s.db.WithContext(ctx).
		Where("website_id = ? AND key IN ?", website.ID, localeSettingKeys).
		Find(&records).Error; err != nil {
		return result, internalError("load website settings", err)
	}

	for _, record := range records {
		switch record.Key {
		case db.SettingKeyDefaultLocale:
			if value := locale.Normalize(record.Value); value != "" {
				result.DefaultLocale = value
			}
		case db.SettingKeySupportedLocales:
			result.SupportedLocales = splitLocales(record.Value)
		}
	}

	if len(result.SupportedLocales) == 0 {
		result.SupportedLocales = []string{result.DefaultLocale}
	}
	return result, nil
}

// UpdateLocales 保存站点语言设置；默认语言总是包含在支持列表中。
func (s *WebsiteSettingService) UpdateLocales(ctx context.Context, websiteID uint, input LocaleSettings) (LocaleSettings, error) {
	sanitized := LocaleSettings{DefaultLocale: locale.Normalize(input.DefaultLocale)}
	if sanitized.DefaultLocale == "" {
		sanitized.DefaultLocale = s.defaultLocale
	}

	seen := map[string]bool{strings.ToLower(sanitized.DefaultLocale): true}
	sanitized.SupportedLocales = []string{sanitized.DefaultLocale}
	for _, code := range input.SupportedLocales {
		normalized := locale.Normalize(code)
		if normalized == "" || seen[strings.ToLower(normalized)] {
			continue
		}
		seen[strings.ToLower(normalized)] = true
		sanitized.SupportedLocales = append(sanitized.SupportedLocales, normalized)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertSetting(tx, websiteID, db.SettingKeyDefaultLocale, sanitized.DefaultLocale); err != nil {
			return err
		}
		return upsertSetting(tx, websiteID, db.SettingKeySupportedLocales, strings.Join(sanitized.SupportedLocales, ","))
	})
	if err != nil {
		return LocaleSettings{}, internalError("update website settings", err)
	}

	return sanitized, nil
}

func upsertSetting(tx *gorm.DB, websiteID uint, key, value string) error {
	setting := db.WebsiteSetting{WebsiteID: websiteID, Key: key, Value: value}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "website_id"}, {Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&setting).Error; err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}

func splitLocales(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if code := locale.Normalize(part); code != "" {
			out = append(out, code)
		}
	}
	return out
}
