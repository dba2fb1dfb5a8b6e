package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

type Translator struct {
	lang         string
	translations map[string]string
	fallback     map[string]string
}

// NewTranslator loads locales/<langCode>.yaml from fsys. Keys missing there
// fall back to the English locale when it exists.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	data, err := fs.ReadFile(fsys, path.Join("locales", langCode+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file for %q: %w", langCode, err)
	}
	t, err := FromBytes(data)
	if err != nil {
		return nil, err
	}
	t.lang = langCode

	if langCode != "en" {
		if enData, err := fs.ReadFile(fsys, path.Join("locales", "en.yaml")); err == nil {
			if en, err := parse(enData); err == nil {
				t.fallback = en
			}
		}
	}
	return t, nil
}

// FromBytes builds a translator from a single YAML document.
func FromBytes(data []byte) (*Translator, error) {
	m, err := parse(data)
	if err != nil {
		return nil, err
	}
	return &Translator{translations: m}, nil
}

func parse(data []byte) (map[string]string, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return translations, nil
}

func (t *Translator) Lang() string { return t.lang }

// T returns the translation of key formatted with args, or the key itself.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		if format, ok = t.fallback[key]; !ok {
			return key
		}
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}
