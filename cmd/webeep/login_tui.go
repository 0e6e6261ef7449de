package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/frartenzo/webeep-sync/internal/moodle"
)

// Strings
const (
	txtURLPlaceholder = "webeep://token=..."
	txtURLPrompt      = "Open this link in your browser, log in, then paste the address it redirects to:"
	txtInvalidURL     = "That doesn't look like the redirect address, try again"
	txtHelp           = "Press 'Enter' to submit. 'Esc' or 'Ctrl+C' to quit."
)

// Styles
var (
	focusedStyle     = green
	helpStyle        = gray
	errorTextStyle   = red
	errorHeaderStyle = red.Bold(true)
	placeholderStyle = gray
	titleStyle       = cyan.Bold(true)
)

// loginProvider implements the interactive token acquisition: it builds a
// mobile-launch URL, asks the user to complete the login in a browser, and
// parses the token out of the pasted callback address.
type loginProvider struct {
	serverURL func() string
}

func newLoginProvider(serverURL func() string) *loginProvider {
	return &loginProvider{serverURL: serverURL}
}

func (p *loginProvider) RequestToken(ctx context.Context) (string, error) {
	serverURL := p.serverURL()
	passport := moodle.NewPassport()
	launchURL := moodle.BuildLaunchURL(serverURL, passport)

	model := newLoginModel(serverURL, launchURL, passport)
	prog := tea.NewProgram(model, tea.WithContext(ctx))

	final, err := prog.Run()
	if err != nil {
		return "", err
	}

	m, ok := final.(loginModel)
	if !ok || m.token == "" {
		return "", moodle.ErrLoginCanceled
	}
	return m.token, nil
}

// headlessProvider rejects interactive login, for daemon mode.
type headlessProvider struct{}

func (headlessProvider) RequestToken(ctx context.Context) (string, error) {
	return "", fmt.Errorf("interactive login unavailable, run 'webeep login' first: %w", moodle.ErrLoginCanceled)
}

type loginModel struct {
	serverURL string
	launchURL string
	passport  string

	urlInput     textinput.Model
	errorMessage string
	token        string
}

func newLoginModel(serverURL, launchURL, passport string) loginModel {
	input := textinput.New()
	input.Placeholder = txtURLPlaceholder
	input.Focus()
	input.CharLimit = 2048
	input.Width = 72
	input.PromptStyle = focusedStyle
	input.TextStyle = focusedStyle
	input.PlaceholderStyle = placeholderStyle

	return loginModel{
		serverURL: serverURL,
		launchURL: launchURL,
		passport:  passport,
		urlInput:  input,
	}
}

func (m loginModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m loginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.token = ""
			return m, tea.Quit

		case tea.KeyEnter:
			callback := strings.TrimSpace(m.urlInput.Value())
			token, err := moodle.ParseLaunchToken(callback, m.serverURL, m.passport)
			if err != nil {
				m.errorMessage = txtInvalidURL
				m.urlInput.SetValue("")
				return m, nil
			}
			m.token = token
			return m, tea.Quit
		}

		m.errorMessage = ""
		m.urlInput, cmd = m.urlInput.Update(msg)
		return m, cmd
	}

	m.urlInput, cmd = m.urlInput.Update(msg)
	return m, cmd
}

func (m loginModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("WeBeep Sync Login") + "\n\n")
	b.WriteString(txtURLPrompt + "\n\n")
	b.WriteString("  " + cyan.Render(m.launchURL) + "\n\n")
	b.WriteString(m.urlInput.View() + "\n")
	if m.errorMessage != "" {
		b.WriteString(errorHeaderStyle.Render("ERROR") + " " + errorTextStyle.Render(m.errorMessage) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render(txtHelp) + "\n")
	return b.String()
}
