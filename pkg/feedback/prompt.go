package feedback

import (
	"strings"

	"github.com/harunnryd/interviewer/pkg/llm"
)

const systemPrompt = "You are an experienced hiring manager interviewing candidates for a software engineering role."

const instructions = `Review the interview below. Summarize how the candidate did in a few short paragraphs of markdown.
Name one key strength. Then name one specific area to improve, and show with a concrete example how a stronger answer could have sounded.`

// BuildPrompt renders the evaluation prompt for a transcript. Each pair is
// rendered as "Question: ...\nAnswer: ..." and pairs are separated by a
// blank line.
func BuildPrompt(answers []Answer) llm.Prompt {
	blocks := make([]string, 0, len(answers))
	for _, a := range answers {
		blocks = append(blocks, "Question: "+a.Question+"\nAnswer: "+a.Answer)
	}
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\nInterview transcript:\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	return llm.Prompt{System: systemPrompt, User: b.String()}
}
