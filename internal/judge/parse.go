package judge

import (
	"strings"

	"github.com/0x0BSoD/newsSieve/internal/model"
)

const (
	labelAspects  = "RELEVANT ASPECTS:"
	labelDecision = "DECISION:"
	labelReason   = "REASON:"
)

type section int

const (
	sectionNone section = iota
	sectionAspects
	sectionDecision
	sectionReason
)

// ParseLabeled reads a reply in the RELEVANT ASPECTS / DECISION / REASON
// layout. Text before the first label is ignored, and continuation lines are
// joined to their section with single spaces.
func ParseLabeled(reply string) model.Judgment {
	j := model.DefaultJudgment()

	var (
		current section
		aspects []string
		reason  []string
	)

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, labelAspects):
			current = sectionAspects
			if rest := strings.TrimSpace(strings.TrimPrefix(line, labelAspects)); rest != "" {
				aspects = append(aspects, rest)
			}
		case strings.HasPrefix(line, labelDecision):
			current = sectionDecision
			decision := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, labelDecision)))
			j.Decision = decision == "yes"
		case strings.HasPrefix(line, labelReason):
			current = sectionReason
			if rest := strings.TrimSpace(strings.TrimPrefix(line, labelReason)); rest != "" {
				reason = append(reason, rest)
			}
		case current == sectionAspects:
			aspects = append(aspects, line)
		case current == sectionReason:
			reason = append(reason, line)
		}
	}

	if len(aspects) > 0 {
		j.Aspects = strings.Join(aspects, " ")
	}
	if len(reason) > 0 {
		j.Reason = strings.Join(reason, " ")
	}
	return j
}

// ParseLax is the looser rule used for local generation: the verdict is
// whether the reply opens with "yes" and the reason is its second line.
func ParseLax(reply string) model.Judgment {
	j := model.DefaultJudgment()
	j.Decision = strings.HasPrefix(strings.ToLower(reply), "yes")

	if lines := strings.Split(reply, "\n"); len(lines) > 1 {
		j.Reason = strings.TrimRight(lines[1], "\r")
	}
	return j
}
