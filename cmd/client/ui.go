package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cloudzz-dev/cldzchat/internal/client/chatsync"
	"github.com/cloudzz-dev/cldzchat/internal/client/config"
	"github.com/cloudzz-dev/cldzchat/internal/client/models"
	"github.com/cloudzz-dev/cldzchat/internal/client/session"
)

// --- Styles ---

var (
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#10B981")
	mutedColor     = lipgloss.Color("#9CA3AF")
	errorColor     = lipgloss.Color("#EF4444")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	onlineStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	unreadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F9FAFB")).
			Background(primaryColor).
			Padding(0, 1)

	ownMessageStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	otherMessageStyle = lipgloss.NewStyle().
				Foreground(primaryColor)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)
)

// --- View State ---

type viewState int

const (
	viewAuth viewState = iota
	viewConversations
	viewChat
	viewNewConversation
)

type changedMsg struct{}

// --- Main Model ---

type model struct {
	ctx  context.Context
	ctrl *chatsync.Controller
	sess *session.Manager
	cfg  config.Config

	// Auth
	idInput     textinput.Model
	nameInput   textinput.Model
	authFocused int
	authError   string

	// Conversations
	selectedConv int

	// Chat
	messageInput textinput.Model
	chatViewport viewport.Model

	// New conversation
	peerIDInput   textinput.Model
	peerNameInput textinput.Model
	newFocused    int
	newConvError  string

	view   viewState
	width  int
	height int
}

func newInput(placeholder string, limit, width int) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = limit
	in.Width = width
	return in
}

func initialModel(ctx context.Context, ctrl *chatsync.Controller, sess *session.Manager, cfg config.Config) model {
	idInput := newInput("User ID", 64, 30)
	idInput.Focus()

	return model{
		ctx:           ctx,
		ctrl:          ctrl,
		sess:          sess,
		cfg:           cfg,
		idInput:       idInput,
		nameInput:     newInput("Display name", 64, 30),
		messageInput:  newInput("Type a message...", 1000, 50),
		peerIDInput:   newInput("Peer user ID (optional)", 64, 30),
		peerNameInput: newInput("Chat name", 64, 30),
		chatViewport:  viewport.New(80, 20),
		view:          viewAuth,
	}
}

func (m model) loggedIn() model {
	m.view = viewConversations
	m.authError = ""
	m.selectedConv = 0
	m.idInput.SetValue("")
	m.nameInput.SetValue("")
	m.idInput.Blur()
	m.nameInput.Blur()
	return m
}

// --- Commands ---

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

// --- Init ---

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		waitForChange(m.ctrl.Changes()),
	)
}

// --- Update ---

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if next, cmd, handled := m.handleKey(msg); handled {
			return next, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chatViewport.Width = msg.Width - 4
		m.chatViewport.Height = msg.Height - 8
		m.updateChatViewport()

	case changedMsg:
		if _, ok := m.sess.Current(); !ok && m.view != viewAuth {
			m.view = viewAuth
			m.idInput.Focus()
		}
		if m.view == viewChat {
			if _, ok := m.ctrl.Active(); !ok {
				m.view = viewConversations
			}
		}
		m.clampSelection()
		m.updateChatViewport()
		cmds = append(cmds, waitForChange(m.ctrl.Changes()))
	}

	var cmd tea.Cmd
	switch m.view {
	case viewAuth:
		if m.authFocused == 0 {
			m.idInput, cmd = m.idInput.Update(msg)
		} else {
			m.nameInput, cmd = m.nameInput.Update(msg)
		}
	case viewChat:
		before := m.messageInput.Value()
		m.messageInput, cmd = m.messageInput.Update(msg)
		if after := m.messageInput.Value(); after != before {
			if strings.TrimSpace(after) == "" {
				m.ctrl.StopTyping()
			} else {
				m.ctrl.StartTyping()
			}
		}
		var vpCmd tea.Cmd
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		cmds = append(cmds, vpCmd)
	case viewNewConversation:
		if m.newFocused == 0 {
			m.peerNameInput, cmd = m.peerNameInput.Update(msg)
		} else {
			m.peerIDInput, cmd = m.peerIDInput.Update(msg)
		}
	}
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit, true

	case "q":
		if m.view == viewConversations {
			return m, tea.Quit, true
		}

	case "esc":
		switch m.view {
		case viewAuth:
			return m, tea.Quit, true
		case viewChat:
			m.ctrl.StopTyping()
			m.messageInput.Blur()
			m.view = viewConversations
			return m, nil, true
		case viewNewConversation:
			m.view = viewConversations
			m.newConvError = ""
			return m, nil, true
		}

	case "tab":
		switch m.view {
		case viewAuth:
			m.authFocused = 1 - m.authFocused
			if m.authFocused == 0 {
				m.nameInput.Blur()
				m.idInput.Focus()
			} else {
				m.idInput.Blur()
				m.nameInput.Focus()
			}
			return m, nil, true
		case viewNewConversation:
			m.newFocused = 1 - m.newFocused
			if m.newFocused == 0 {
				m.peerIDInput.Blur()
				m.peerNameInput.Focus()
			} else {
				m.peerNameInput.Blur()
				m.peerIDInput.Focus()
			}
			return m, nil, true
		}

	case "ctrl+l":
		if m.view == viewConversations || m.view == viewChat {
			m.sess.Logout()
			m.view = viewAuth
			m.authFocused = 0
			m.idInput.Focus()
			return m, nil, true
		}

	case "enter":
		return m.submit()

	case "up", "k":
		if m.view == viewConversations && m.selectedConv > 0 {
			m.selectedConv--
			return m, nil, true
		}

	case "down", "j":
		if m.view == viewConversations && m.selectedConv < len(m.ctrl.ListAll())-1 {
			m.selectedConv++
			return m, nil, true
		}

	case "n":
		if m.view == viewConversations {
			m.view = viewNewConversation
			m.newFocused = 0
			m.newConvError = ""
			m.peerNameInput.SetValue("")
			m.peerIDInput.SetValue("")
			m.peerIDInput.Blur()
			m.peerNameInput.Focus()
			return m, nil, true
		}
	}
	return m, nil, false
}

func (m model) submit() (model, tea.Cmd, bool) {
	switch m.view {
	case viewAuth:
		name := strings.TrimSpace(m.nameInput.Value())
		id := models.Identity{
			ID:     strings.TrimSpace(m.idInput.Value()),
			Name:   name,
			Avatar: models.Initials(name),
		}
		if err := m.sess.Login(m.ctx, id); err != nil {
			m.authError = err.Error()
			return m, nil, true
		}
		return m.loggedIn(), nil, true

	case viewConversations:
		convs := m.ctrl.ListAll()
		if len(convs) == 0 {
			return m, nil, true
		}
		m.ctrl.SelectChat(convs[m.selectedConv].ID)
		m.view = viewChat
		m.messageInput.Focus()
		m.updateChatViewport()
		return m, nil, true

	case viewChat:
		if _, ok := m.ctrl.SendMessage(m.messageInput.Value(), models.MessageText); ok {
			m.messageInput.SetValue("")
			m.updateChatViewport()
		}
		return m, nil, true

	case viewNewConversation:
		_, ok := m.ctrl.CreateChat(models.Peer{
			ID:   strings.TrimSpace(m.peerIDInput.Value()),
			Name: m.peerNameInput.Value(),
		})
		if !ok {
			m.newConvError = "A chat name is required"
			return m, nil, true
		}
		m.selectedConv = 0
		m.view = viewChat
		m.messageInput.Focus()
		m.updateChatViewport()
		return m, nil, true
	}
	return m, nil, false
}

func (m *model) clampSelection() {
	n := len(m.ctrl.ListAll())
	if m.selectedConv >= n {
		m.selectedConv = n - 1
	}
	if m.selectedConv < 0 {
		m.selectedConv = 0
	}
}

func statusTicks(s models.Status) string {
	switch s {
	case models.StatusRead:
		return onlineStyle.Render("✓✓")
	case models.StatusDelivered:
		return mutedStyle.Render("✓✓")
	default:
		return mutedStyle.Render("✓")
	}
}

func (m *model) updateChatViewport() {
	conv, ok := m.ctrl.Active()
	if !ok {
		m.chatViewport.SetContent("")
		return
	}
	self, _ := m.ctrl.Identity()

	var content strings.Builder
	for _, msg := range conv.Messages {
		timestamp := msg.Timestamp.Format("15:04")
		style := otherMessageStyle
		ticks := ""
		if msg.SenderID == self.ID {
			style = ownMessageStyle
			ticks = " " + statusTicks(msg.Status)
		}
		sender := msg.SenderName
		if sender == "" {
			sender = msg.SenderID
		}
		fmt.Fprintf(&content, "%s %s: %s%s\n",
			mutedStyle.Render(timestamp),
			style.Render(sender),
			msg.Content,
			ticks,
		)
	}
	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

// --- View ---

func (m model) View() string {
	switch m.view {
	case viewAuth:
		return m.authView()
	case viewConversations:
		return m.conversationsView()
	case viewChat:
		return m.chatView()
	case viewNewConversation:
		return m.newConversationView()
	}
	return ""
}

func (m model) connectionLine() string {
	if m.ctrl.Connectivity() {
		return onlineStyle.Render("● connected")
	}
	return mutedStyle.Render("○ connecting to " + m.cfg.ServerURL + "...")
}

func (m model) authView() string {
	var s strings.Builder

	title := titleStyle.Render("╔═══════════════════════════════╗\n║         CLDZCHAT              ║\n╚═══════════════════════════════╝")

	s.WriteString("\n\n")
	s.WriteString(title)
	s.WriteString("\n\n")

	s.WriteString("  User ID:\n")
	s.WriteString("  " + m.idInput.View() + "\n\n")
	s.WriteString("  Display name:\n")
	s.WriteString("  " + m.nameInput.View() + "\n\n")

	if m.authError != "" {
		s.WriteString(errorStyle.Render("  " + m.authError + "\n\n"))
	}

	s.WriteString(helpStyle.Render("  Tab to switch fields • Enter to log in • Esc to quit\n"))
	s.WriteString("\n  " + m.connectionLine())

	return s.String()
}

func (m model) conversationsView() string {
	var s strings.Builder

	self, _ := m.ctrl.Identity()
	s.WriteString(titleStyle.Render(fmt.Sprintf("CLDZCHAT - %s", self.Name)))
	s.WriteString("  " + m.connectionLine())
	s.WriteString("\n\n")

	convs := m.ctrl.ListAll()
	if len(convs) == 0 {
		s.WriteString(mutedStyle.Render("  No conversations yet.\n"))
		s.WriteString(mutedStyle.Render("  Press 'n' to start a new one.\n"))
	}
	for i, conv := range convs {
		prefix := "  "
		style := lipgloss.NewStyle()
		if i == m.selectedConv {
			prefix = "→ "
			style = selectedStyle
		}

		icon := "💬"
		if conv.IsGroup {
			icon = "👥"
		}
		presence := ""
		if !conv.IsGroup && conv.IsOnline {
			presence = " " + onlineStyle.Render("●")
		}

		line := fmt.Sprintf("%s%s [%s] %s", prefix, icon, conv.Avatar, conv.Name)
		s.WriteString(style.Render(line) + presence)
		if conv.UnreadCount > 0 {
			s.WriteString(" " + unreadStyle.Render(fmt.Sprintf("%d", conv.UnreadCount)))
		}
		s.WriteString("\n")
		if conv.LastMessage != nil {
			preview := conv.LastMessage.Content
			if r := []rune(preview); len(r) > 40 {
				preview = string(r[:40]) + "…"
			}
			s.WriteString(mutedStyle.Render("      " + preview))
			s.WriteString("\n")
		}
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("  ↑/↓ navigate • Enter to open • n for new • Ctrl+L log out • q to quit"))

	return s.String()
}

func (m model) chatView() string {
	var s strings.Builder

	conv, _ := m.ctrl.Active()
	header := fmt.Sprintf("💬 %s", conv.Name)
	if !conv.IsGroup {
		if conv.IsOnline {
			header += onlineStyle.Render(" online")
		} else if !conv.LastSeen.IsZero() {
			header += mutedStyle.Render(" last seen " + conv.LastSeen.Format("15:04"))
		}
	}
	width := m.width - 2
	if width < 1 {
		width = 1
	}

	s.WriteString(titleStyle.Render(header))
	s.WriteString("\n")
	s.WriteString(strings.Repeat("─", width))
	s.WriteString("\n")

	s.WriteString(m.chatViewport.View())
	s.WriteString("\n")
	if names := m.ctrl.Typing(conv.ID); len(names) > 0 {
		s.WriteString(mutedStyle.Render(strings.Join(names, ", ") + " typing..."))
	}
	s.WriteString("\n")
	s.WriteString(strings.Repeat("─", width))
	s.WriteString("\n")
	s.WriteString(m.messageInput.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("Enter to send • Esc to go back"))

	return s.String()
}

func (m model) newConversationView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("New Conversation"))
	s.WriteString("\n\n")

	s.WriteString("  Name:\n")
	s.WriteString("  " + m.peerNameInput.View() + "\n\n")
	s.WriteString("  Peer ID:\n")
	s.WriteString("  " + m.peerIDInput.View() + "\n\n")

	if m.newConvError != "" {
		s.WriteString(errorStyle.Render("  " + m.newConvError + "\n\n"))
	}

	s.WriteString(helpStyle.Render("  Tab to switch fields • Enter to create • Esc to cancel"))

	return s.String()
}
