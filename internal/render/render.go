// Package render turns domain values into localized user-facing text.
package render

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"

	"github.com/ivandudin29/tg-notes-bot/internal/domain"
)

const (
	// BaseLocale is used when a requested locale has no catalog.
	BaseLocale = "en"
	// DeadlineLayout is the DD.MM.YY HH:MM format users type and read deadlines in.
	DeadlineLayout = "02.01.06 15:04"
)

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

//go:embed locales/*.yaml
var localeFS embed.FS

var (
	messages = catalog.NewBuilder(catalog.Fallback(language.English))
	locales  = mustLoad(localeFS)
)

func mustLoad(fsys fs.FS) []string {
	loaded, err := load(fsys, messages)
	if err != nil {
		panic(fmt.Sprintf("render: load catalogs: %v", err))
	}
	return loaded
}

func load(fsys fs.FS, b *catalog.Builder) ([]string, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	sort.Strings(paths)

	var loaded []string
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if want := strings.TrimSuffix(path.Base(p), ".yaml"); file.Locale != want {
			return nil, fmt.Errorf("catalog %s: locale %q must match file name", p, file.Locale)
		}
		tag, err := language.Parse(file.Locale)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", p, err)
		}
		for key, value := range file.Messages {
			if err := b.SetString(tag, key, value); err != nil {
				return nil, fmt.Errorf("catalog %s: key %q: %w", p, key, err)
			}
		}
		loaded = append(loaded, file.Locale)
	}
	if len(loaded) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	return loaded, nil
}

// Locales returns the locales that have a catalog.
func Locales() []string {
	out := make([]string, len(locales))
	copy(out, locales)
	return out
}

// Localizer renders messages for one locale and time zone.
type Localizer struct {
	locale  string
	printer *message.Printer
	loc     *time.Location
}

// NewLocalizer creates a localizer. A locale without a catalog falls back to
// English. Deadlines are formatted and parsed in loc.
func NewLocalizer(locale string, loc *time.Location) (*Localizer, error) {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		locale = BaseLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	tag = supported(tag)
	if loc == nil {
		loc = time.Local
	}
	return &Localizer{
		locale:  tag.String(),
		printer: message.NewPrinter(tag, message.Catalog(messages)),
		loc:     loc,
	}, nil
}

// supported maps tag to the closest locale that has a catalog, or to English.
func supported(tag language.Tag) language.Tag {
	langs := messages.Languages()
	_, i, confidence := language.NewMatcher(langs).Match(tag)
	if confidence == language.No || i < 0 || i >= len(langs) {
		return language.English
	}
	return langs[i]
}

// Default returns the English localizer in the local time zone.
func Default() *Localizer {
	l, _ := NewLocalizer(BaseLocale, time.Local)
	return l
}

// Locale returns the locale the localizer was created for.
func (l *Localizer) Locale() string { return l.locale }

// Location returns the time zone deadlines are rendered in.
func (l *Localizer) Location() *time.Location { return l.loc }

// Text renders a catalog message.
func (l *Localizer) Text(key string, args ...any) string {
	return l.printer.Sprintf(key, args...)
}

// Deadline formats t as DD.MM.YY HH:MM in the localizer's zone.
func (l *Localizer) Deadline(t time.Time) string {
	return t.In(l.loc).Format(DeadlineLayout)
}

// Optional renders an optional text value, substituting a placeholder for none.
func (l *Localizer) Optional(p *string) string {
	if p == nil {
		return l.Text("value.none")
	}
	return *p
}

// Field returns the display label of a task field.
func (l *Localizer) Field(f domain.TaskField) string {
	return l.Text("field." + string(f))
}

// Status returns the display label of a task status.
func (l *Localizer) Status(s domain.TaskStatus) string {
	return l.Text("status." + string(s))
}

// Reminder renders the notification sent for a task nearing its deadline.
func (l *Localizer) Reminder(r domain.Reminder) string {
	return l.Text("reminder.notify", r.Title, l.Deadline(r.Deadline))
}
