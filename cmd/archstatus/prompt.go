package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"archstatus/internal/scanner"
)

var errPromptCancelled = errors.New("prompt cancelled")

type promptStage int

const (
	stageAsk promptStage = iota
	stageReview
	stageDone
)

// promptModel asks the scanner questions one at a time and then shows every
// answer for review. Shift+Tab steps back to the previous question, from the
// review too. An empty required answer keeps its question open.
type promptModel struct {
	questions []scanner.Question
	inputs    []textinput.Model
	idx       int
	stage     promptStage
	missing   bool
}

func newPromptModel(questions []scanner.Question) promptModel {
	m := promptModel{questions: questions, inputs: make([]textinput.Model, len(questions))}
	for i, q := range questions {
		ti := textinput.New()
		ti.Placeholder = q.Key
		ti.CharLimit = 512
		m.inputs[i] = ti
	}
	if len(m.inputs) > 0 {
		m.inputs[0].Focus()
	}
	return m
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if ok && (key.Type == tea.KeyCtrlC || key.Type == tea.KeyEsc) {
		return m, tea.Quit
	}
	if m.stage == stageReview {
		if !ok {
			return m, nil
		}
		switch key.Type {
		case tea.KeyEnter:
			m.stage = stageDone
			return m, tea.Quit
		case tea.KeyShiftTab, tea.KeyUp:
			m.stage = stageAsk
			cmd := m.focus(len(m.inputs) - 1)
			return m, cmd
		}
		return m, nil
	}
	if ok {
		switch key.Type {
		case tea.KeyEnter, tea.KeyTab, tea.KeyDown:
			return m.advance()
		case tea.KeyShiftTab, tea.KeyUp:
			if m.idx == 0 {
				return m, nil
			}
			m.missing = false
			cmd := m.focus(m.idx - 1)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.inputs[m.idx], cmd = m.inputs[m.idx].Update(msg)
	return m, cmd
}

// advance accepts the current answer and moves to the next question, or to
// the review after the last one.
func (m promptModel) advance() (tea.Model, tea.Cmd) {
	if m.questions[m.idx].Required && m.value(m.idx) == "" {
		m.missing = true
		return m, nil
	}
	m.missing = false
	if m.idx < len(m.inputs)-1 {
		cmd := m.focus(m.idx + 1)
		return m, cmd
	}
	m.inputs[m.idx].Blur()
	m.stage = stageReview
	return m, nil
}

// focus moves the cursor to question i.
func (m *promptModel) focus(i int) tea.Cmd {
	m.inputs[m.idx].Blur()
	m.idx = i
	m.inputs[i].Focus()
	return textinput.Blink
}

func (m promptModel) value(i int) string {
	return strings.TrimSpace(m.inputs[i].Value())
}

func (m promptModel) View() string {
	if m.stage == stageDone || len(m.questions) == 0 {
		return ""
	}
	var b strings.Builder
	if m.stage == stageReview {
		b.WriteString("Review the answers:\n")
		for i, q := range m.questions {
			v := m.value(i)
			if v == "" {
				v = "(empty)"
			}
			fmt.Fprintf(&b, "  %s: %s\n", q.Prompt, v)
		}
		b.WriteString("enter to save, shift+tab to edit, esc to cancel\n")
		return b.String()
	}
	q := m.questions[m.idx]
	fmt.Fprintf(&b, "(%d/%d) %s", m.idx+1, len(m.questions), q.Prompt)
	if q.Required {
		b.WriteString(" *")
	}
	fmt.Fprintf(&b, ": %s\n", m.inputs[m.idx].View())
	if m.missing {
		b.WriteString("  an answer is required\n")
	}
	return b.String()
}

// answers returns the collected values keyed by Question.Key.
func (m promptModel) answers() map[string]string {
	out := make(map[string]string, len(m.questions))
	for i, q := range m.questions {
		out[q.Key] = m.value(i)
	}
	return out
}

// promptQuestions runs the TUI and returns answers keyed by Question.Key.
func promptQuestions(questions []scanner.Question) (map[string]string, error) {
	if len(questions) == 0 {
		return map[string]string{}, nil
	}
	result, err := tea.NewProgram(newPromptModel(questions)).Run()
	if err != nil {
		return nil, err
	}
	final, ok := result.(promptModel)
	if !ok || final.stage != stageDone {
		return nil, errPromptCancelled
	}
	return final.answers(), nil
}
