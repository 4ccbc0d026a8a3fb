package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AppTitle")
	if got != "Pathway" {
		t.Errorf("T(AppTitle) = %q, want 'Pathway'", got)
	}

	got = T(ctx, "SaveFailed")
	if got != "Could not save, check your connection." {
		t.Errorf("T(SaveFailed) = %q", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := T(ctx, "AppTitle")
	if got != "Путь" {
		t.Errorf("T(AppTitle) = %q, want 'Путь'", got)
	}

	got = Td(ctx, "SessionN", map[string]any{"N": 3})
	if got != "Сессия 3" {
		t.Errorf("Td(SessionN) = %q, want 'Сессия 3'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "StepsCompleted", 1)
	if got1 != "1 step completed" {
		t.Errorf("Tp(StepsCompleted, 1) = %q, want '1 step completed'", got1)
	}

	got5 := Tp(ctx, "StepsCompleted", 5)
	if got5 != "5 steps completed" {
		t.Errorf("Tp(StepsCompleted, 5) = %q, want '5 steps completed'", got5)
	}

	ru := ForLang(context.Background(), "ru")
	if got := Tp(ru, "StepsCompleted", 5); got != "Завершено 5 шагов" {
		t.Errorf("Tp(ru, 5) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "ReminderTitle", map[string]any{"N": 4})
	if got != "Time for session 4" {
		t.Errorf("Td(ReminderTitle, N=4) = %q, want 'Time for session 4'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestMiddlewareAcceptLanguage(t *testing.T) {
	initLang(t, "en")

	var got string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "AppTitle")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Путь" {
		t.Errorf("with Accept-Language ru: %q", got)
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got != "Pathway" {
		t.Errorf("default: %q", got)
	}
}
