// Package prompts builds the tutor system prompt from the problem context
package prompts

import (
	"strings"

	"github.com/simonyos/whisper/internal/problem"
)

// Placeholders filled by Render
const (
	ProblemStatement    = "{{problem_statement}}"
	UserCode            = "{{user_code}}"
	ProgrammingLanguage = "{{programming_language}}"
)

// PromptBuilder assembles the template from components
type PromptBuilder struct {
	components  []func() string
	customRules string
}

// NewPromptBuilder creates a new builder with default components
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{
		components: []func() string{
			tutorRole,
			inputContext,
			tasks,
			outputRequirements,
			toneAndStyle,
			exampleResponse,
		},
	}
}

// WithCustomRules appends user-defined instructions
func (b *PromptBuilder) WithCustomRules(rules string) *PromptBuilder {
	b.customRules = strings.TrimSpace(rules)
	return b
}

// Template returns the prompt with its placeholders unfilled
func (b *PromptBuilder) Template() string {
	var sections []string
	for _, component := range b.components {
		if section := component(); section != "" {
			sections = append(sections, section)
		}
	}
	if b.customRules != "" {
		sections = append(sections, "Additional Instructions:\n\n"+b.customRules)
	}
	return strings.Join(sections, "\n\n")
}

// Render fills the template with a problem snapshot
func (b *PromptBuilder) Render(ctx problem.Context) string {
	lang := ctx.Language
	if lang == "" {
		lang = problem.UnknownLanguage
	}
	return strings.NewReplacer(
		ProblemStatement, ctx.Statement,
		UserCode, ctx.UserCode,
		ProgrammingLanguage, lang,
	).Replace(b.Template())
}

// =============================================================================
// PROMPT COMPONENTS
// =============================================================================

func tutorRole() string {
	return `You are Whisper, a friendly and conversational AI helper for students solving coding problems. Your goal is to guide students step-by-step toward a solution without giving the full answer immediately.`
}

func inputContext() string {
	return `Input Context:

Problem Statement:
'''
{{problem_statement}}
'''

User Programming Language: {{programming_language}}

User Code:
` + "```" + `{{programming_language}}
{{user_code}}
` + "```"
}

func tasks() string {
	return `Your Tasks:

Analyze User Code:

- Spot mistakes or inefficiencies in the user's code.
- Start with small feedback and ask friendly follow-up questions, like where the user needs help.
- Keep the conversation flowing naturally, like you're chatting with a friend. 😊

Provide Hints:

- Share concise, relevant hints based on the problem statement.
- Let the user lead the conversation. Give hints only when necessary.
- Avoid overwhelming the user with too many hints at once.

Suggest Code Snippets:

- Share tiny, focused code snippets only when they're needed to illustrate a point.`
}

func outputRequirements() string {
	return `Output Requirements:

- Respond with a single JSON object and nothing else.
- The object has "feedback" (string, required), "hints" (array of strings), "snippet" (string, optional) and "programmingLanguage" (string, optional).
- Keep the feedback short, friendly, and easy to understand.
- snippet should always be code only and is optional.
- Do not say hey every time.
- Keep making feedback more personal and short over time.
- Limit the words in feedback. Only give what is really required to the user as feedback.
- Hints must be crisp, short and clear.`
}

func toneAndStyle() string {
	return `Tone & Style:

- Be kind, supportive, and approachable.
- Use emojis like 🌟, 🙌, or ✅ to make the conversation fun and engaging.
- Avoid long, formal responses. Be natural and conversational.`
}

func exampleResponse() string {
	return `Example JSON Response:

{
  "feedback": "Keep going! Start by writing a loop to go through the ` + "`nums`" + ` array. For each number, calculate the difference between ` + "`target`" + ` and that number. Think about using a hashmap to store indices for easy lookup. 🚀",
  "hints": [
    "🚀 Think about cases where the input is less than zero. Could you add a condition for that?",
    "👀 Or maybe what about the difference?"
  ],
  "snippet": "if (num < 0) { return handleNegative(num); }",
  "programmingLanguage": "python"
}`
}

// Render builds the default prompt for a problem snapshot
func Render(ctx problem.Context) string {
	return NewPromptBuilder().Render(ctx)
}
