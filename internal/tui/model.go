package tui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/llamigo/internal/chat"
	"github.com/diogo/llamigo/internal/models"
	"github.com/diogo/llamigo/internal/render"
	"github.com/diogo/llamigo/internal/transcript"
)

// Message types for the TUI
type (
	snapshotMsg struct {
		snap transcript.Snapshot
	}
	// transcriptClosedMsg is sent when the subscription channel closes
	transcriptClosedMsg struct{}
)

// Submitter queues a user message for generation
type Submitter interface {
	Submit(text string) (*chat.Turn, error)
}

// Model represents the TUI state
type Model struct {
	submitter  Submitter
	updates    <-chan transcript.Snapshot
	modelName  string
	renderOpts render.Options
	copyFn     func(string) error

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	// State
	snap     transcript.Snapshot
	rendered map[uint64]string // sealed assistant replies, keyed by message ID
	spinning bool
	ready    bool
	status   string
	err      error

	// Dimensions
	width  int
	height int
}

// NewModel creates a chat model that renders snapshots from updates and
// sends input to submitter.
func NewModel(submitter Submitter, updates <-chan transcript.Snapshot, modelName string, opts render.Options) Model {
	ta := textarea.New()
	ta.Placeholder = "Type your message here..."
	ta.CharLimit = 8000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorTextDim)
	ta.BlurredStyle = ta.FocusedStyle

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	return Model{
		submitter:  submitter,
		updates:    updates,
		modelName:  modelName,
		renderOpts: opts,
		copyFn:     clipboard.WriteAll,
		textarea:   ta,
		spinner:    s,
		rendered:   make(map[uint64]string),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		waitForSnapshot(m.updates),
	)
}

// waitForSnapshot blocks until the transcript publishes a new version
func waitForSnapshot(updates <-chan transcript.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return transcriptClosedMsg{}
		}
		return snapshotMsg{snap: snap}
	}
}

// busy reports whether a reply is streaming
func (m Model) busy() bool {
	_, ok := m.snap.InFlight()
	return ok
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 4
		inputHeight := 6
		statusHeight := 1
		padding := 2

		vpHeight := max(m.height-headerHeight-inputHeight-statusHeight-padding, 5)
		contentWidth := m.width - 4

		if !m.ready {
			m.viewport = viewport.New(contentWidth, vpHeight)
			m.ready = true
		} else {
			if m.viewport.Width != contentWidth {
				clear(m.rendered)
			}
			m.viewport.Width = contentWidth
			m.viewport.Height = vpHeight
		}
		m.textarea.SetWidth(contentWidth - 4)
		m.updateViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			input := strings.TrimSpace(m.textarea.Value())
			switch input {
			case "":
				return m, nil
			case "exit", "quit", "/exit", "/quit":
				return m, tea.Quit
			case "/copy":
				m.textarea.Reset()
				m.copyLatest()
				return m, nil
			}

			// Submissions made while a reply streams are queued
			if _, err := m.submitter.Submit(input); err != nil {
				m.err = err
				return m, nil
			}
			m.err = nil
			m.status = ""
			m.textarea.Reset()
			return m, nil
		}

	case snapshotMsg:
		m.snap = msg.snap
		m.updateViewport()
		m.viewport.GotoBottom()
		cmds = append(cmds, waitForSnapshot(m.updates))
		if m.busy() && !m.spinning {
			m.spinning = true
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case transcriptClosedMsg:
		return m, tea.Quit

	case spinner.TickMsg:
		if !m.busy() {
			m.spinning = false
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		m.updateViewport()
		return m, cmd
	}

	// Only pass KeyMsg to textarea to prevent escape sequence leaks
	if _, ok := msg.(tea.KeyMsg); ok {
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// copyLatest puts the newest finished reply on the clipboard
func (m *Model) copyLatest() {
	for msg := range m.snap.Newest() {
		if msg.Role != models.RoleAssistant || msg.InFlight() || msg.Content == "" {
			continue
		}
		if err := m.copyFn(msg.Content); err != nil {
			m.err = fmt.Errorf("failed to copy to clipboard: %w", err)
			return
		}
		m.err = nil
		m.status = "Copied reply to clipboard"
		return
	}
	m.status = "Nothing to copy yet"
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	var sections []string
	contentWidth := m.width - 4

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render("✦ llamigo"),
		hintStyle.Render("  •  "),
		subtitleStyle.Render(m.modelName),
	)
	sections = append(sections, headerStyle.Width(contentWidth).Render(header))

	var messagesContent string
	if m.snap.Len() == 0 {
		messagesContent = m.renderWelcome()
	} else {
		messagesContent = m.viewport.View()
	}
	sections = append(sections, messagesAreaStyle.
		Width(contentWidth).
		Height(m.viewport.Height).
		Render(messagesContent))

	label := inputLabelStyle.Render("You")
	if m.busy() {
		label = lipgloss.JoinHorizontal(lipgloss.Center, label,
			hintStyle.Render("(replies are queued while the assistant is typing)"))
	}
	input := lipgloss.JoinVertical(lipgloss.Left, label, m.textarea.View())
	sections = append(sections, inputPanelStyle.Width(contentWidth).Render(input))

	sections = append(sections, m.renderStatusBar(contentWidth))

	if m.err != nil {
		sections = append(sections, FormatError(m.err))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderWelcome renders the welcome screen when no messages exist
func (m Model) renderWelcome() string {
	width := m.viewport.Width - 4

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		"",
		welcomeTitleStyle.Width(width).Render("✦ llamigo"),
		"",
		welcomeStyle.Width(width).Render("Start a conversation by typing a message below"),
		"",
	)

	topPadding := max((m.viewport.Height-lipgloss.Height(content))/2, 0)
	return strings.Repeat("\n", topPadding) + content
}

// renderStatusBar renders the bottom status bar with shortcuts
func (m Model) renderStatusBar(width int) string {
	if m.status != "" {
		return statusBarStyle.Width(width).Align(lipgloss.Center).Render(m.status)
	}

	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Enter", "Send"},
		{"/copy", "Copy reply"},
		{"Esc", "Quit"},
		{"↑↓", "Scroll"},
	}

	var items []string
	for _, s := range shortcuts {
		items = append(items, statusKeyStyle.Render(s.key)+statusDescStyle.Render(" "+s.desc))
	}

	return statusBarStyle.Width(width).Align(lipgloss.Center).Render(strings.Join(items, "  │  "))
}

// updateViewport refreshes the viewport content with styled messages
func (m *Model) updateViewport() {
	if !m.ready {
		return
	}

	var content strings.Builder
	bubbleWidth := m.viewport.Width - 6

	for i := range m.snap.Len() {
		msg := m.snap.At(i)
		if i > 0 {
			content.WriteString("\n")
		}

		if msg.Role == models.RoleUser {
			content.WriteString(userLabelStyle.Render("⬤ "+msg.Role.Label()) + "\n")
			content.WriteString(userBubbleStyle.Width(bubbleWidth).Render(msg.Content))
			content.WriteString("\n")
			continue
		}

		content.WriteString(assistantLabelStyle.Render("✦ "+msg.Role.Label()) + "\n")
		switch msg.Status {
		case models.StatusStreaming:
			body := msg.Content
			if body != "" {
				body += " "
			}
			body += m.spinner.View()
			content.WriteString(assistantBubbleStyle.Width(bubbleWidth).Render(body))
		case models.StatusFailed:
			content.WriteString(failedBubbleStyle.Width(bubbleWidth).Render(msg.Content))
		default:
			content.WriteString(assistantBubbleStyle.Width(bubbleWidth).Render(m.renderReply(msg, bubbleWidth-4)))
			if msg.Status == models.StatusInterrupted {
				content.WriteString("\n" + interruptedStyle.Render("  (interrupted)"))
			}
		}
		content.WriteString("\n")
	}

	m.viewport.SetContent(content.String())
}

// renderReply renders a sealed reply as markdown. Sealed messages never
// change, so the result is cached by ID until the width changes.
func (m *Model) renderReply(msg models.Message, width int) string {
	if out, ok := m.rendered[msg.ID]; ok {
		return out
	}
	out := render.MarkdownOrPlain(msg.Content, m.renderOpts.WithWidth(width))
	m.rendered[msg.ID] = out
	return out
}

// Run starts the chat TUI on the coordinator's transcript. The caller owns
// the coordinator and unloads it after Run returns.
func Run(c *chat.Coordinator, modelName string, opts render.Options) error {
	updates, unsubscribe := c.Transcript().Subscribe()
	defer unsubscribe()

	p := tea.NewProgram(
		NewModel(c, updates, modelName, opts),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
