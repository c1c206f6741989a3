package judge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/0x0BSoD/newsSieve/internal/model"
)

func TestPromptBuild(t *testing.T) {
	p := Prompt{
		Personas: []model.Persona{
			{Role: "backend engineer", Priority: "high", Context: "Works on Go services."},
			{Role: "parent", Priority: "low", Context: "Two kids."},
		},
		Avoid: []string{"celebrity gossip", "crypto hype"},
	}

	got := p.Build(model.Article{
		Title:   "Profiling Go",
		Link:    "https://blog.example.com/pprof",
		Content: "pprof all the things",
	})

	assert.Contains(t, got, "MY CONTEXT:\nAs a backend engineer (high priority):\nWorks on Go services.\n\nAs a parent (low priority):\nTwo kids.\n")
	assert.Contains(t, got, "CONTENT TO AVOID:\n- celebrity gossip\n- crypto hype\n")
	assert.Contains(t, got, "Title: Profiling Go\nURL: https://blog.example.com/pprof\nContent:\npprof all the things\n")
	assert.Contains(t, got, "RELEVANT ASPECTS:")
	assert.Contains(t, got, "DECISION: [Yes/No]")
	assert.Contains(t, got, "REASON:")
}
