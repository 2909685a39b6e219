package prompt

import (
	"strings"
	"text/template"
)

// AlwaysSourceInstruction is the line that makes the model cite sources.
const AlwaysSourceInstruction = `ALWAYS return a "SOURCE" part in your answer.`

const documentTemplate = `{{.Content}}
Source: {{.Source}}
{{delimiter}}
`

const questionTemplate = `Given the following extracted parts of a long document and a question, create a final answer with references ("SOURCE").
Answer only from the given context.
If you don't know the answer, just say that you don't know. Don't try to make up an answer.
` + AlwaysSourceInstruction + `

{{range .Examples}}QUESTION: {{.Question}}
=========
{{range .Context}}{{.Content}}
Source: {{.Source}}
{{delimiter}}
{{end}}=========
FINAL ANSWER: {{.Answer}}
SOURCE: {{join .Sources ", "}}

{{end}}QUESTION: {{.Question}}
=========
{{.Summaries}}=========
FINAL ANSWER:`

func parseTemplates(delimiter string) (doc, question *template.Template) {
	funcs := template.FuncMap{
		"delimiter": func() string { return delimiter },
		"join":      strings.Join,
	}
	doc = template.Must(template.New("document").Funcs(funcs).Parse(documentTemplate))
	question = template.Must(template.New("question").Funcs(funcs).Parse(questionTemplate))
	return doc, question
}
