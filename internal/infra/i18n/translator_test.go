package i18n

import (
	"strings"
	"testing"
	"testing/fstest"

	"gopkg.in/yaml.v3"
)

func TestTranslator(t *testing.T) {
	translator, err := FromBytes([]byte("greeting: Привет\nwelcome_user: Привет %s"))
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}

	t.Run("should translate a simple key", func(t *testing.T) {
		if got := translator.T("greeting"); got != "Привет" {
			t.Errorf("wanted 'Привет', got '%s'", got)
		}
	})

	t.Run("should return key if not found", func(t *testing.T) {
		if got := translator.T("nonexistent_key"); got != "nonexistent_key" {
			t.Errorf("wanted 'nonexistent_key', got '%s'", got)
		}
	})

	t.Run("should format arguments correctly", func(t *testing.T) {
		if got := translator.T("welcome_user", "Ivan"); got != "Привет Ivan" {
			t.Errorf("wanted 'Привет Ivan', got '%s'", got)
		}
	})
}

func TestNewTranslatorFallback(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en.yaml": {Data: []byte("only_en: hello\nshared: en\n")},
		"locales/ru.yaml": {Data: []byte("shared: ru\n")},
	}
	tr, err := NewTranslator(fsys, "ru")
	if err != nil {
		t.Fatal(err)
	}
	if tr.T("shared") != "ru" || tr.T("only_en") != "hello" {
		t.Errorf("got %q / %q", tr.T("shared"), tr.T("only_en"))
	}
	if _, err := NewTranslator(fsys, "de"); err == nil {
		t.Error("expected error for missing locale")
	}
}

func TestEmbeddedLocalesShareKeys(t *testing.T) {
	load := func(lang string) map[string]string {
		data, err := LocalesFS.ReadFile("locales/" + lang + ".yaml")
		if err != nil {
			t.Fatalf("read %s: %v", lang, err)
		}
		var m map[string]string
		if err := yaml.Unmarshal(data, &m); err != nil {
			t.Fatalf("parse %s: %v", lang, err)
		}
		return m
	}
	ru, en := load("ru"), load("en")
	for k := range ru {
		if _, ok := en[k]; !ok {
			t.Errorf("key %q missing from en", k)
		}
	}
	for k := range en {
		if _, ok := ru[k]; !ok {
			t.Errorf("key %q missing from ru", k)
		}
	}

	tr, err := NewTranslator(LocalesFS, "ru")
	if err != nil {
		t.Fatal(err)
	}
	msg := tr.T("error_file_too_large", 20, 35)
	if !strings.Contains(msg, "20 МБ") || !strings.Contains(msg, "35 МБ") {
		t.Errorf("unexpected size message %q", msg)
	}
}
