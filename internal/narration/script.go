package narration

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/pathway/internal/model"
)

//go:embed scripts/*.tmpl
var scriptFS embed.FS

// maxScriptRunes is the longest input the speech endpoint accepts.
const maxScriptRunes = 4096

var (
	markupRegex = regexp.MustCompile(`<[^>]*>`)
	spaceRegex  = regexp.MustCompile(`[ \t]+`)
	blankRegex  = regexp.MustCompile(`\n{3,}`)
)

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[string]*template.Template
)

var scriptForType = map[model.StepType]string{
	model.StepIntro:         "intro",
	model.StepQuestionnaire: "questionnaire",
	model.StepReflection:    "questionnaire",
	model.StepClosing:       "closing",
	model.StepOutro:         "closing",
}

type scriptData struct {
	Title     string
	Content   string
	Questions []string
}

func loadTemplates() error {
	loadOnce.Do(func() {
		templates = make(map[string]*template.Template)
		for _, name := range []string{"default", "intro", "questionnaire", "closing"} {
			file := "scripts/" + name + ".tmpl"
			content, err := fs.ReadFile(scriptFS, file)
			if err != nil {
				loadErr = fmt.Errorf("read script template %s: %w", file, err)
				return
			}
			tmpl, err := template.New(name).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse script template %s: %w", file, err)
				return
			}
			templates[name] = tmpl
		}
	})
	return loadErr
}

// Script derives the narration text for a step. An explicit step script
// wins over the templated rendering of title, content and questions.
func Script(step model.Step) (string, error) {
	if s := sanitizeScript(step.Script); s != "" {
		return s, nil
	}
	if strings.TrimSpace(step.Content) == "" && len(step.Questions) == 0 {
		return "", nil
	}
	if err := loadTemplates(); err != nil {
		return "", err
	}
	name, ok := scriptForType[step.Type]
	if !ok {
		name = "default"
	}

	data := scriptData{Title: step.Title, Content: step.Content}
	for _, q := range step.Questions {
		data.Questions = append(data.Questions, q.Text)
	}
	var buf bytes.Buffer
	if err := templates[name].Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render script for %s: %w", step.Type, err)
	}
	return sanitizeScript(buf.String()), nil
}

// NewRequest builds the narration request for a step. Script rendering
// errors degrade to an empty script, which narrates silently.
func NewRequest(sessionNumber int, stepID string, step model.Step) Request {
	script, err := Script(step)
	if err != nil {
		script = ""
	}
	return Request{SessionNumber: sessionNumber, StepID: stepID, Script: script}
}

func sanitizeScript(s string) string {
	s = markupRegex.ReplaceAllString(s, "")
	s = spaceRegex.ReplaceAllString(s, " ")
	s = blankRegex.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxScriptRunes {
		s = string([]rune(s)[:maxScriptRunes])
	}
	return s
}
