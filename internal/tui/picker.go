package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/llamigo/internal/history"
)

// ConversationLister is the part of history.Store the picker needs
type ConversationLister interface {
	ListConversations() ([]*history.Conversation, error)
}

// conversationsLoadedMsg is sent when conversations are loaded
type conversationsLoadedMsg struct {
	conversations []*history.Conversation
	err           error
}

// PickerModel lets the user choose a saved conversation or a new one.
// Typing filters the list by title.
type PickerModel struct {
	store     ConversationLister
	modelName string

	conversations []*history.Conversation
	filter        string

	// cursor 0 is "New conversation"; i > 0 is filtered()[i-1]
	cursor int

	loading   bool
	err       error
	confirmed bool
	selected  *history.Conversation

	width  int
	height int
	ready  bool
}

// NewPickerModel creates a new conversation picker
func NewPickerModel(store ConversationLister, modelName string) PickerModel {
	return PickerModel{
		store:     store,
		modelName: modelName,
		loading:   true,
	}
}

// Init starts loading conversations
func (m PickerModel) Init() tea.Cmd {
	return func() tea.Msg {
		conversations, err := m.store.ListConversations()
		return conversationsLoadedMsg{conversations: conversations, err: err}
	}
}

// filtered returns the conversations whose title matches the filter
func (m PickerModel) filtered() []*history.Conversation {
	if m.filter == "" {
		return m.conversations
	}
	needle := strings.ToLower(m.filter)
	var out []*history.Conversation
	for _, c := range m.conversations {
		if strings.Contains(strings.ToLower(c.Title), needle) {
			out = append(out, c)
		}
	}
	return out
}

// Update handles messages and updates the model
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case conversationsLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.conversations = msg.conversations

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.loading {
			return m, nil
		}

		items := len(m.filtered()) + 1
		switch msg.String() {
		case "esc":
			if m.filter != "" {
				m.filter = ""
				m.cursor = 0
				return m, nil
			}
			return m, tea.Quit

		case "up", "ctrl+p":
			m.cursor = (m.cursor - 1 + items) % items

		case "down", "ctrl+n":
			m.cursor = (m.cursor + 1) % items

		case "home":
			m.cursor = 0

		case "end":
			m.cursor = items - 1

		case "enter":
			m.confirmed = true
			if m.cursor > 0 {
				m.selected = m.filtered()[m.cursor-1]
			}
			return m, tea.Quit

		case "backspace":
			if m.filter != "" {
				runes := []rune(m.filter)
				m.filter = string(runes[:len(runes)-1])
				m.cursor = 0
			}

		default:
			switch msg.Type {
			case tea.KeyRunes:
				m.filter += string(msg.Runes)
				m.cursor = 0
			case tea.KeySpace:
				m.filter += " "
				m.cursor = 0
			}
		}
	}

	return m, nil
}

// View renders the picker
func (m PickerModel) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}
	if m.loading {
		return loadingStyle.Render("  Loading conversations...")
	}
	if m.err != nil {
		return FormatError(m.err)
	}

	width := max(m.width-4, 40)

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		pickerHeaderStyle.Render("Select Conversation"),
		hintStyle.Render(fmt.Sprintf("  Model: %s", m.modelName)),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.renderList(width),
		m.renderStatusBar(width),
	)
}

// renderList renders the visible window of the conversation list
func (m PickerModel) renderList(width int) string {
	section := pickerSectionStyle.Render("Conversations")
	if m.filter != "" {
		section += hintStyle.Render("  filter: ") + m.filter + "_"
	}

	items := []string{m.renderItem(0, "+ New conversation", nil)}

	convs := m.filtered()
	if len(convs) == 0 {
		if m.filter != "" {
			items = append(items, hintStyle.Render("  No matches"))
		} else {
			items = append(items, hintStyle.Render("  No saved conversations"))
		}
	} else {
		maxItems := max(5, (m.height-12)/2)

		offset := 0
		if m.cursor > maxItems {
			offset = m.cursor - maxItems
		}
		end := min(offset+maxItems, len(convs))

		if offset > 0 {
			items = append(items, hintStyle.Render("  ..."))
		}
		for i := offset; i < end; i++ {
			items = append(items, m.renderItem(i+1, convs[i].Title, convs[i]))
		}
		if end < len(convs) {
			items = append(items, hintStyle.Render("  ..."))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left, append([]string{section, ""}, items...)...)
	return pickerPanelStyle.Width(width).Render(content)
}

// renderItem renders a single row; conv is nil for the new-conversation row
func (m PickerModel) renderItem(index int, title string, conv *history.Conversation) string {
	cursor := "  "
	style := pickerItemStyle
	if index == m.cursor {
		cursor = pickerCursorStyle.Render("> ")
		style = pickerSelectedStyle
	}

	line := cursor + style.Render(title)
	if conv == nil {
		return line
	}
	if conv.Model != "" {
		line += hintStyle.Render(fmt.Sprintf(" [%s]", conv.Model))
	}
	return line + pickerTimeStyle.Render(" - "+history.FormatRelativeTime(conv.UpdatedAt))
}

// renderStatusBar renders the bottom status bar
func (m PickerModel) renderStatusBar(width int) string {
	shortcuts := []struct {
		key  string
		desc string
	}{
		{"↑↓", "Navigate"},
		{"Type", "Filter"},
		{"Enter", "Select"},
		{"Esc", "Quit"},
	}

	var items []string
	for _, s := range shortcuts {
		items = append(items, statusKeyStyle.Render(s.key)+statusDescStyle.Render(" "+s.desc))
	}
	return statusBarStyle.Width(width).Align(lipgloss.Center).Render(strings.Join(items, "  │  "))
}

// PickerResult is the outcome of RunPicker
type PickerResult struct {
	Conversation *history.Conversation // nil for a new conversation
	Confirmed    bool                  // false when the user quit
}

// Result returns the picked conversation (nil for new) and whether the
// user confirmed.
func (m PickerModel) Result() PickerResult {
	return PickerResult{Conversation: m.selected, Confirmed: m.confirmed}
}

// RunPicker starts the conversation picker and returns the choice
func RunPicker(store ConversationLister, modelName string) (PickerResult, error) {
	p := tea.NewProgram(
		NewPickerModel(store, modelName),
		tea.WithAltScreen(),
	)

	final, err := p.Run()
	if err != nil {
		return PickerResult{}, err
	}
	if pm, ok := final.(PickerModel); ok {
		return pm.Result(), nil
	}
	return PickerResult{}, nil
}
