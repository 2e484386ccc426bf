package ui

import "sync"

// Prompter shows the tool's modal dialogs.
type Prompter interface {
	// PromptText asks for a line of text. ok is false when the user cancels.
	PromptText(title, label string) (text string, ok bool)
	// Confirm asks a yes/no question.
	Confirm(title, question string) bool
	// ShowError reports a validation failure.
	ShowError(message string)
}

// ScriptedPrompter answers prompts from preset values and records what it was shown.
// The host protocol uses it to turn command arguments into dialog answers.
type ScriptedPrompter struct {
	Text     string
	Accept   bool
	ConfirmY bool

	mu        sync.Mutex
	errors    []string
	questions []string
}

// PromptText returns the preset text.
func (p *ScriptedPrompter) PromptText(title, label string) (string, bool) {
	return p.Text, p.Accept
}

// Confirm records the question and returns the preset answer.
func (p *ScriptedPrompter) Confirm(title, question string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.questions = append(p.questions, question)
	return p.ConfirmY
}

// ShowError records message.
func (p *ScriptedPrompter) ShowError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = append(p.errors, message)
}

// Errors returns every error message shown so far.
func (p *ScriptedPrompter) Errors() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.errors...)
}

// Questions returns every confirmation question asked so far.
func (p *ScriptedPrompter) Questions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.questions...)
}
