// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// editPrompt is the shell prompt for the interactive editor.
const editPrompt = "patchbay> "

// maxEditHistory bounds the up-arrow history buffer.
const maxEditHistory = 100

// lineReader yields one command line per call. io.EOF ends the shell.
type lineReader interface {
	ReadLine() (string, error)
}

// newLineReader picks the interactive reader on a TTY and a plain stdin
// scanner otherwise, so the shell stays scriptable through pipes.
func newLineReader() lineReader {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return &stdinReader{scanner: bufio.NewScanner(os.Stdin)}
	}
	return &interactiveReader{historyIndex: -1}
}

// stdinReader reads lines from piped input without any terminal handling.
type stdinReader struct {
	scanner *bufio.Scanner
}

func (r *stdinReader) ReadLine() (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(r.scanner.Text()), nil
}

// interactiveReader reads lines through a bubbletea text input with
// up-arrow history. Each ReadLine runs a short-lived program, leaving the
// terminal in its normal state between commands.
type interactiveReader struct {
	history      []string
	historyIndex int
}

func (r *interactiveReader) ReadLine() (string, error) {
	ti := textinput.New()
	ti.Prompt = editPrompt
	ti.Focus()
	ti.CharLimit = 1024
	ti.Width = 80

	m := editInputModel{
		textInput:    ti,
		history:      r.history,
		historyIndex: -1,
	}

	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}
	result, ok := finalModel.(editInputModel)
	if !ok {
		return "", fmt.Errorf("unexpected model type from bubbletea: %T", finalModel)
	}

	if result.cancelled && result.textInput.Value() == "" {
		return "", io.EOF
	}

	line := strings.TrimSpace(result.textInput.Value())
	if line != "" {
		r.remember(line)
	}
	return line, nil
}

func (r *interactiveReader) remember(line string) {
	if len(r.history) > 0 && r.history[len(r.history)-1] == line {
		return
	}
	r.history = append(r.history, line)
	if len(r.history) > maxEditHistory {
		r.history = r.history[1:]
	}
}

// editInputModel is the bubbletea model for one line of input.
type editInputModel struct {
	textInput    textinput.Model
	history      []string
	historyIndex int
	currentInput string // stashed while navigating history
	done         bool
	cancelled    bool
}

func (m editInputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m editInputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit

		case tea.KeyCtrlC:
			// Clear the line rather than killing the shell.
			m.textInput.SetValue("")
			m.done = true
			return m, tea.Quit

		case tea.KeyCtrlD:
			m.cancelled = true
			m.textInput.SetValue("")
			m.done = true
			return m, tea.Quit

		case tea.KeyUp:
			if len(m.history) == 0 {
				return m, nil
			}
			if m.historyIndex == -1 {
				m.currentInput = m.textInput.Value()
				m.historyIndex = len(m.history) - 1
			} else if m.historyIndex > 0 {
				m.historyIndex--
			}
			m.textInput.SetValue(m.history[m.historyIndex])
			m.textInput.CursorEnd()
			return m, nil

		case tea.KeyDown:
			if m.historyIndex == -1 {
				return m, nil
			}
			if m.historyIndex < len(m.history)-1 {
				m.historyIndex++
				m.textInput.SetValue(m.history[m.historyIndex])
			} else {
				m.historyIndex = -1
				m.textInput.SetValue(m.currentInput)
			}
			m.textInput.CursorEnd()
			return m, nil
		}
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m editInputModel) View() string {
	if m.done {
		return ""
	}
	return m.textInput.View()
}
