package service

import (
	"context"
	"reflect"
	"testing"

	"github.com/pagewright/internal/db"
)

func TestWebsiteSettingDefaults(t *testing.T) {
	e := newTestEnv(t)

	settings, err := e.services.Settings.Locales(context.Background(), e.website)
	if err != nil {
		t.Fatalf("Locales returned error: %v", err)
	}
	if settings.DefaultLocale != "en" {
		t.Fatalf("expected default locale en, got %s", settings.DefaultLocale)
	}
	if !reflect.DeepEqual(settings.SupportedLocales, []string{"en"}) {
		t.Fatalf("expected only the default locale supported, got %v", settings.SupportedLocales)
	}
}

func TestWebsiteSettingUpdateLocales(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	saved, err := e.services.Settings.UpdateLocales(ctx, e.website.ID, LocaleSettings{
		DefaultLocale:    "es",
		SupportedLocales: []string{"en", "ES", "pt_BR", ""},
	})
	if err != nil {
		t.Fatalf("UpdateLocales returned error: %v", err)
	}
	want := []string{"es", "en", "pt-BR"}
	if !reflect.DeepEqual(saved.SupportedLocales, want) {
		t.Fatalf("expected %v, got %v", want, saved.SupportedLocales)
	}

	// a second update goes through the upsert path
	if _, err := e.services.Settings.UpdateLocales(ctx, e.website.ID, LocaleSettings{DefaultLocale: "de"}); err != nil {
		t.Fatalf("second UpdateLocales returned error: %v", err)
	}

	var count int64
	e.db.Model(&db.WebsiteSetting{}).Where("website_id = ?", e.website.ID).Count(&count)
	if count != 2 {
		t.Fatalf("expected two setting rows, got %d", count)
	}

	loaded, err := e.services.Settings.Locales(ctx, e.website)
	if err != nil {
		t.Fatalf("Locales returned error: %v", err)
	}
	if loaded.DefaultLocale != "de" || !reflect.DeepEqual(loaded.SupportedLocales, []string{"de"}) {
		t.Fatalf("unexpected settings %#v", loaded)
	}
}
