package questions

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultBank []byte

// Category of interview questions
type Category struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Questions   []string `yaml:"questions"`
}

// Bank keeps interview questions per category
type Bank struct {
	Closing    string      `yaml:"closing"`
	Categories []*Category `yaml:"categories"`

	byID map[string]*Category
}

// Load reads the bank from the yaml file, the embedded default bank is used if file is empty
func Load(file string) (*Bank, error) {
	if file == "" {
		goapp.Log.Info().Msg("using default question bank")
		return Parse(defaultBank)
	}
	goapp.Log.Info().Str("file", file).Msg("loading question bank")
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("can't read %s: %w", file, err)
	}
	return Parse(b)
}

// Parse parses and validates the yaml bank
func Parse(data []byte) (*Bank, error) {
	var res Bank
	if err := yaml.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("can't parse question bank: %w", err)
	}
	if err := res.init(); err != nil {
		return nil, err
	}
	return &res, nil
}

func (b *Bank) init() error {
	if strings.TrimSpace(b.Closing) == "" {
		return errors.New("no closing line")
	}
	if len(b.Categories) == 0 {
		return errors.New("no categories")
	}
	b.byID = make(map[string]*Category, len(b.Categories))
	for i, c := range b.Categories {
		if c == nil || c.ID == "" {
			return errors.Errorf("no id for category %d", i)
		}
		if _, ok := b.byID[c.ID]; ok {
			return errors.Errorf("duplicate category '%s'", c.ID)
		}
		if len(c.Questions) == 0 {
			return errors.Errorf("no questions for category '%s'", c.ID)
		}
		for j, q := range c.Questions {
			if strings.TrimSpace(q) == "" {
				return errors.Errorf("empty question %d for category '%s'", j, c.ID)
			}
		}
		b.byID[c.ID] = c
	}
	return nil
}

// Has reports whether the category exists
func (b *Bank) Has(category string) bool {
	_, ok := b.byID[category]
	return ok
}

// Question returns n-th question of the category, n starts at 0
func (b *Bank) Question(category string, n int) (*api.Question, bool) {
	c, ok := b.byID[category]
	if !ok || n < 0 || n >= len(c.Questions) {
		return nil, false
	}
	return &api.Question{QuestionID: fmt.Sprintf("q_%s_%d", category, n+1), Text: c.Questions[n], Source: "system"}, true
}

// ClosingLine is said when the category questions are exhausted
func (b *Bank) ClosingLine() string {
	return b.Closing
}

// Catalog lists categories and allowed durations
func (b *Bank) Catalog() *api.Catalog {
	res := &api.Catalog{Durations: map[string][]int{}}
	for _, c := range b.Categories {
		res.CaseTypes = append(res.CaseTypes, api.CaseType{ID: c.ID, Title: c.Title,
			Description: c.Description, Type: api.InterviewType(c.ID)})
	}
	for k, v := range api.DurationOptions {
		res.Durations[k] = append([]int(nil), v...)
	}
	return res
}
