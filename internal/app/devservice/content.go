package devservice

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/stolasapp/notebook/internal/backend"
)

// Content generation constants.
const (
	minItems          = 2
	maxExtraItems     = 4 // 2-5 list items
	minWords          = 6
	maxExtraWords     = 10 // 6-15 words per sentence
	checklistFraction = 0.4
)

// fakeNote creates a note whose content is either a Markdown checklist or a
// short Markdown paragraph with emphasis.
func fakeNote(faker *gofakeit.Faker) backend.NewNote {
	if faker.Float64() < checklistFraction {
		return backend.NewNote{
			Title:   fmt.Sprintf("%s checklist", capitalize(faker.Adjective())),
			Content: checklist(faker),
		}
	}
	return backend.NewNote{
		Title: fmt.Sprintf("About the %s %s", faker.Adjective(), faker.Noun()),
		Content: fmt.Sprintf("**%s** %s",
			faker.Sentence(minWords+faker.IntN(maxExtraWords)),
			faker.Sentence(minWords+faker.IntN(maxExtraWords)),
		),
	}
}

func checklist(faker *gofakeit.Faker) string {
	var builder strings.Builder
	for i := range minItems + faker.IntN(maxExtraItems) {
		mark := " "
		if faker.Bool() {
			mark = "x"
		}
		if i > 0 {
			builder.WriteByte('\n')
		}
		fmt.Fprintf(&builder, "- [%s] %s %s", mark, faker.Verb(), faker.Noun())
	}
	return builder.String()
}

func capitalize(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + word[1:]
}
