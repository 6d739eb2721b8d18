package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cellarsync/cellarsync/internal/config"
)

type setupView int

const (
	repoView setupView = iota
	tokenView
)

const (
	txtRepoPlaceholder  = "owner/repo or file:///path/to/repo.git"
	txtTokenPlaceholder = "ghp_..."
	txtRepoPrompt       = "Which repository should the cellar sync with?"
	txtTokenPrompt      = "Personal access token for %s"
	txtTokenInfo        = "The token needs read and write access to repository contents and pull requests."
	txtConnecting       = "Testing connection..."
	txtSetupHelp        = "Press 'Enter' to submit. 'Esc' to go back/quit. 'Ctrl+C' to quit."
)

var errSetupCancelled = errors.New("setup cancelled")

var (
	focusedStyle     = green
	placeholderStyle = gray
	titleStyle       = cyan.Bold(true)
	errorHeaderStyle = red.Bold(true)
)

type SetupTUIOpts struct {
	ConfigPath string
	DataDir    string
	// SubmitHandler tests the repository and token. An error keeps the form open.
	SubmitHandler func(repo, token string) error
}

type setupModel struct {
	opts *SetupTUIOpts

	repoInput  textinput.Model
	tokenInput textinput.Model
	spinner    spinner.Model

	currentView  setupView
	isLoading    bool
	errorMessage string
	done         bool
}

type submitProcessedMsg struct{ err error }

func newSetupModel(opts *SetupTUIOpts) setupModel {
	repo := textinput.New()
	repo.Placeholder = txtRepoPlaceholder
	repo.Focus()
	repo.CharLimit = 256
	repo.Width = 64
	repo.PromptStyle = focusedStyle
	repo.TextStyle = focusedStyle
	repo.PlaceholderStyle = placeholderStyle

	token := textinput.New()
	token.Placeholder = txtTokenPlaceholder
	token.EchoMode = textinput.EchoPassword
	token.CharLimit = 256
	token.Width = 64
	token.PromptStyle = focusedStyle
	token.TextStyle = focusedStyle
	token.PlaceholderStyle = placeholderStyle

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = cyan

	return setupModel{
		opts:        opts,
		repoInput:   repo,
		tokenInput:  token,
		spinner:     s,
		currentView: repoView,
	}
}

func (m setupModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m setupModel) repo() string {
	return strings.TrimSpace(m.repoInput.Value())
}

func (m setupModel) token() string {
	return strings.TrimSpace(m.tokenInput.Value())
}

func (m setupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			return m.back()
		case tea.KeyEnter:
			if m.isLoading {
				return m, nil
			}
			return m.submit()
		}

		if m.isLoading {
			return m, nil
		}
		m.errorMessage = ""
		switch m.currentView {
		case repoView:
			m.repoInput, cmd = m.repoInput.Update(msg)
		case tokenView:
			m.tokenInput, cmd = m.tokenInput.Update(msg)
		}
		cmds = append(cmds, cmd)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case submitProcessedMsg:
		m.isLoading = false
		if msg.err != nil {
			m.errorMessage = fmt.Sprintf("%s %s", errorHeaderStyle.Render("ERROR:"), msg.err.Error())
			return m.focus(m.currentView)
		}
		m.done = true
		return m, tea.Quit
	}

	return m, tea.Batch(cmds...)
}

func (m setupModel) focus(view setupView) (tea.Model, tea.Cmd) {
	m.currentView = view
	if view == repoView {
		m.tokenInput.Blur()
		m.repoInput.Focus()
	} else {
		m.repoInput.Blur()
		m.tokenInput.Focus()
	}
	return m, textinput.Blink
}

func (m setupModel) back() (tea.Model, tea.Cmd) {
	if m.currentView == tokenView && !m.isLoading {
		m.errorMessage = ""
		return m.focus(repoView)
	}
	return m, tea.Quit
}

func (m setupModel) submit() (tea.Model, tea.Cmd) {
	m.errorMessage = ""
	repo := m.repo()

	if m.currentView == repoView {
		if repo == "" {
			m.errorMessage = "Repository is required"
			return m, nil
		}
		// local repositories need no token
		if !strings.HasPrefix(repo, config.LocalRepoScheme) {
			return m.focus(tokenView)
		}
	} else if m.token() == "" {
		m.errorMessage = "Token is required"
		return m, nil
	}

	m.isLoading = true
	m.repoInput.Blur()
	m.tokenInput.Blur()

	token := m.token()
	handler := m.opts.SubmitHandler
	return m, func() tea.Msg {
		return submitProcessedMsg{err: handler(repo, token)}
	}
}

func (m setupModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("CellarSync setup"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s%s\n", gray.Render("Data    "), green.Render(m.opts.DataDir)))
	b.WriteString(fmt.Sprintf("%s%s\n\n", gray.Render("Config  "), green.Render(m.opts.ConfigPath)))

	switch m.currentView {
	case repoView:
		b.WriteString(txtRepoPrompt)
		b.WriteString("\n\n")
		b.WriteString(m.repoInput.View())
	case tokenView:
		b.WriteString(fmt.Sprintf(txtTokenPrompt, green.Render(m.repo())))
		b.WriteString("\n")
		b.WriteString(gray.Render(txtTokenInfo))
		b.WriteString("\n\n")
		b.WriteString(m.tokenInput.View())
	}

	if m.isLoading {
		b.WriteString(fmt.Sprintf("\n\n%s %s", m.spinner.View(), txtConnecting))
	}
	if m.errorMessage != "" {
		b.WriteString("\n\n")
		b.WriteString(red.Render(m.errorMessage))
	}
	b.WriteString("\n\n")
	b.WriteString(gray.Render(txtSetupHelp))
	b.WriteString("\n")
	return b.String()
}

// RunSetupTUI asks for the repository and token and returns them once SubmitHandler accepts them.
func RunSetupTUI(opts SetupTUIOpts) (string, string, error) {
	final, err := tea.NewProgram(newSetupModel(&opts)).Run()
	if err != nil {
		return "", "", fmt.Errorf("setup: %w", err)
	}

	m, ok := final.(setupModel)
	if !ok || !m.done {
		return "", "", errSetupCancelled
	}
	return m.repo(), m.token(), nil
}
