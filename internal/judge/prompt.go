package judge

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/0x0BSoD/newsSieve/internal/model"
)

const systemPrompt = "You are an article recommendation assistant."

const promptTemplate = `Given the following context about me and my interests, analyze this article and determine if I should read it.

MY CONTEXT:
%s

CONTENT TO AVOID:
%s

ARTICLE:
Title: %s
URL: %s
Content:
%s

Respond in this format:
RELEVANT ASPECTS: [List the specific aspects of my personas/interests this relates to]
DECISION: [Yes/No]
REASON: [Brief explanation focusing on the value to my specific personas/interests and why the decision was made]`

// Prompt holds the reader profile every article is judged against.
type Prompt struct {
	Personas []model.Persona
	Avoid    []string
}

func (p Prompt) Build(article model.Article) string {
	personas := lo.Map(p.Personas, func(persona model.Persona, _ int) string {
		return fmt.Sprintf("As a %s (%s priority):\n%s", persona.Role, persona.Priority, persona.Context)
	})
	avoid := lo.Map(p.Avoid, func(item string, _ int) string {
		return "- " + item
	})

	return fmt.Sprintf(promptTemplate,
		strings.Join(personas, "\n\n"),
		strings.Join(avoid, "\n"),
		article.Title,
		article.Link,
		article.Content,
	)
}
