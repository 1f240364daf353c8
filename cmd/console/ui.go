package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/silentwatch/case-engine/internal/handlers"
	"github.com/silentwatch/case-engine/pkg/chat"
)

const PlaceHolderText = "Ask your question here..."

// ConsoleUI is the BubbleTea model that runs the interrogation console.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	client       *apiClient
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	loading      bool

	view       *handlers.ProgressView
	suspectID  string
	speaker    string
	transcript []chat.Message
	rewardCode string
	status     string

	// Suspect selection state
	showSuspectModal bool
	selectedSuspect  int
}

type progressMsg struct {
	view *handlers.ProgressView
	err  error
}

type transcriptMsg struct {
	resp *handlers.TranscriptResponse
	err  error
}

type chatResponseMsg struct {
	resp *chat.Response
	err  error
}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingBottom(1).
			PaddingLeft(3)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	suspectStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

func NewConsoleUI(cfg *ConsoleConfig, client *apiClient) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 500
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	return ConsoleUI{
		config:           cfg,
		client:           client,
		textarea:         ta,
		chatViewport:     chatVp,
		metaViewport:     viewport.New(20, 20),
		showSuspectModal: true,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return m.refreshProgress()
}

func (m ConsoleUI) refreshProgress() tea.Cmd {
	return func() tea.Msg {
		view, err := m.client.getProgress()
		return progressMsg{view: view, err: err}
	}
}

func (m ConsoleUI) loadTranscript(suspectID string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.client.getTranscript(suspectID)
		return transcriptMsg{resp: resp, err: err}
	}
}

func (m ConsoleUI) sendQuestion(suspectID, message string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.client.sendMessage(suspectID, message)
		return chatResponseMsg{resp: resp, err: err}
	}
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showSuspectModal {
		return m.updateSuspectModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			if strings.HasPrefix(input, "/") {
				m.textarea.Reset()
				return m.handleCommand(input)
			}

			m.textarea.Reset()
			m.loading = true
			m.transcript = append(m.transcript, chat.Message{Sender: chat.SenderUser, Text: input})
			m.writeChatContent()
			return m, m.sendQuestion(m.suspectID, input)
		}

	case chatResponseMsg:
		m.loading = false
		if msg.err != nil {
			m.status = errorStyle.Render("Error: " + msg.err.Error())
			m.writeChatContent()
			return m, nil
		}
		resp := msg.resp
		m.transcript = append(m.transcript, chat.Message{Sender: chat.SenderAI, Text: resp.Reply})
		if resp.Intrusion != "" {
			m.transcript = append(m.transcript, chat.Message{Sender: chat.SenderAI, Text: resp.Intrusion})
		}
		if resp.CooldownUntil != "" {
			m.status = systemStyle.Render("Suspect unavailable until " + resp.CooldownUntil)
		} else if resp.QuestionsRemaining > 0 {
			m.status = fmt.Sprintf("%d questions remaining", resp.QuestionsRemaining)
		}
		if resp.CaseClosed {
			m.rewardCode = resp.RewardCode
			m.transcript = append(m.transcript, chat.Message{
				Sender: chat.SenderAI,
				Text: fmt.Sprintf("CASE CLOSED. Time taken: %s. Reward code: %s (use /copy to copy it)",
					resp.TimeTaken, resp.RewardCode),
			})
		}
		m.writeChatContent()
		return m, m.refreshProgress()

	case transcriptMsg:
		if msg.err != nil {
			m.status = errorStyle.Render("Error: " + msg.err.Error())
			return m, nil
		}
		m.transcript = msg.resp.Messages
		if len(m.transcript) == 0 && msg.resp.Greeting != "" {
			m.transcript = []chat.Message{{Sender: chat.SenderAI, Text: msg.resp.Greeting}}
		}
		m.writeChatContent()

	case progressMsg:
		if msg.err == nil && msg.view != nil {
			m.view = msg.view
			if m.view.Progress != nil && m.view.Progress.RewardCode != "" {
				m.rewardCode = m.view.Progress.RewardCode
			}
			m.metaViewport.SetContent(m.writeMetadata())
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *ConsoleUI) resize() {
	chatWidth := int(float64(m.width)*0.72) - 4
	metaWidth := m.width - chatWidth - 6

	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
	m.writeChatContent()
	m.metaViewport.SetContent(m.writeMetadata())
}

func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6
	if chatWidth < 20 {
		chatWidth = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("BLACKWOOD MANOR :: INTERROGATION CONSOLE") + "\n\n")
	if m.speaker != "" {
		content.WriteString("Questioning: " + speakerStyle.Render(m.speaker) + "\n\n")
	}
	content.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth)) + "\n\n")

	for _, msg := range m.transcript {
		switch msg.Sender {
		case chat.SenderUser:
			content.WriteString(userStyle.Render("You: ") + wordwrap.String(msg.Text, chatWidth-5) + "\n\n")
		default:
			// Intrusion and system lines carry their own speaker.
			if strings.HasPrefix(msg.Text, "ROHAN:") || strings.HasPrefix(msg.Text, "System:") {
				content.WriteString(systemStyle.Render(wordwrap.String(msg.Text, chatWidth)) + "\n\n")
				continue
			}
			content.WriteString(speakerStyle.Render(m.speaker+": ") + wordwrap.String(msg.Text, chatWidth-5) + "\n\n")
		}
	}

	if m.loading {
		content.WriteString(systemStyle.Render("...") + "\n")
	}
	if m.status != "" {
		content.WriteString(m.status + "\n")
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func (m *ConsoleUI) writeMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("CASE FILE") + "\n\n")

	if m.view == nil {
		content.WriteString("Loading...\n")
		return content.String()
	}

	doc := m.view.Progress
	content.WriteString("Solver step:\n")
	content.WriteString(fmt.Sprintf("%d of 4\n\n", m.view.SolverStep))

	content.WriteString("Locker:\n")
	content.WriteString(m.view.Locker.Display + "\n\n")

	content.WriteString("Suspects:\n")
	for _, s := range m.view.Suspects {
		marker := "•"
		if !s.Available {
			marker = "×"
		}
		content.WriteString(fmt.Sprintf("%s %s", marker, s.Name))
		if s.CooldownSeconds > 0 {
			content.WriteString(fmt.Sprintf(" (%s)", (time.Duration(s.CooldownSeconds) * time.Second).String()))
		}
		content.WriteString("\n")
	}
	content.WriteString("\n")

	if doc != nil {
		content.WriteString("Evidence:\n")
		content.WriteString(evidenceLine("Postmortem", true, doc.PostmortemViewed))
		content.WriteString(evidenceLine("Manor layout", true, doc.LayoutViewed))
		content.WriteString(evidenceLine("Diary", doc.DiaryUnlocked, doc.DiaryViewed))
		content.WriteString(evidenceLine("CCTV", doc.CCTVUnlocked, doc.CCTVViewed))
		content.WriteString(evidenceLine("Anya's file", doc.AnyaProfileUnlocked, false))
		content.WriteString("\n")

		if doc.CaseClosed {
			content.WriteString(titleStyle.Render("CASE CLOSED") + "\n")
			content.WriteString("Time: " + doc.TimeTaken + "\n")
			content.WriteString("Code: " + doc.RewardCode + "\n\n")
		}
	}

	content.WriteString("Commands:\n")
	content.WriteString("• /suspects: Switch\n")
	content.WriteString("• /view <item>\n")
	content.WriteString("• /key <0-9|clear|enter>\n")
	content.WriteString("• /copy: Reward code\n")
	content.WriteString("• /help: Help\n")
	content.WriteString("• Ctrl+C: Quit\n")

	return content.String()
}

func evidenceLine(name string, unlocked, viewed bool) string {
	switch {
	case !unlocked:
		return "× " + name + " (locked)\n"
	case viewed:
		return "✓ " + name + "\n"
	default:
		return "• " + name + "\n"
	}
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(input)))
	if len(fields) == 0 {
		return m, nil
	}

	switch fields[0] {
	case "/help":
		m.status = systemStyle.Render("Ask questions, or use /suspects, /view <item>, /key <k>, /copy.")
		m.writeChatContent()

	case "/suspects":
		m.showSuspectModal = true
		return m, m.refreshProgress()

	case "/view":
		if len(fields) < 2 {
			m.status = errorStyle.Render("Usage: /view <postmortem|layout|diary|cctv|anya-profile>")
			m.writeChatContent()
			return m, nil
		}
		item := fields[1]
		return m, func() tea.Msg {
			if err := m.client.viewEvidence(item); err != nil {
				view, _ := m.client.getProgress()
				return progressMsg{view: view, err: nil}
			}
			view, err := m.client.getProgress()
			return progressMsg{view: view, err: err}
		}

	case "/key":
		if len(fields) < 2 {
			m.status = errorStyle.Render("Usage: /key <0-9|clear|enter>")
			m.writeChatContent()
			return m, nil
		}
		key := fields[1]
		return m, func() tea.Msg {
			state, err := m.client.pressKey(key)
			if err != nil {
				view, _ := m.client.getProgress()
				return progressMsg{view: view, err: nil}
			}
			view, verr := m.client.getProgress()
			if view != nil {
				view.Locker = *state
			}
			return progressMsg{view: view, err: verr}
		}

	case "/copy":
		if m.rewardCode == "" {
			m.status = errorStyle.Render("No reward code yet. Close the case first.")
		} else if err := clipboard.WriteAll(m.rewardCode); err != nil {
			m.status = errorStyle.Render("Clipboard unavailable: " + err.Error())
		} else {
			m.status = systemStyle.Render("Reward code copied to clipboard.")
		}
		m.writeChatContent()

	default:
		m.status = errorStyle.Render("Unknown command: " + fields[0])
		m.writeChatContent()
	}
	return m, nil
}

func (m ConsoleUI) updateSuspectModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case progressMsg:
		if msg.err == nil && msg.view != nil {
			m.view = msg.view
			m.metaViewport.SetContent(m.writeMetadata())
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyUp:
			if m.selectedSuspect > 0 {
				m.selectedSuspect--
			}
		case tea.KeyDown:
			if m.view != nil && m.selectedSuspect < len(m.view.Suspects)-1 {
				m.selectedSuspect++
			}
		case tea.KeyEnter:
			if m.view == nil || len(m.view.Suspects) == 0 {
				return m, nil
			}
			chosen := m.view.Suspects[m.selectedSuspect]
			m.suspectID = chosen.ID
			m.speaker = chosen.Name
			m.showSuspectModal = false
			m.transcript = nil
			m.status = ""
			if m.width > 0 {
				m.resize()
				m.ready = true
			}
			return m, m.loadTranscript(chosen.ID)
		}
	}
	return m, nil
}

func (m ConsoleUI) View() string {
	if m.showSuspectModal {
		return m.viewSuspectModal()
	}
	if !m.ready {
		return "Initializing..."
	}

	chatPanel := chatPanelStyle.Render(
		m.chatViewport.View() + "\n\n" + m.textarea.View(),
	)
	metaPanel := metaPanelStyle.Render(m.metaViewport.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

func (m ConsoleUI) viewSuspectModal() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("SELECT A SUSPECT") + "\n\n")

	if m.view == nil {
		content.WriteString("Loading suspects...\n")
	} else {
		for i, s := range m.view.Suspects {
			line := s.Name
			if !s.Available {
				line += " (unavailable)"
			} else {
				line += fmt.Sprintf(" (%d questions)", s.QuestionsRemaining)
			}
			if i == m.selectedSuspect {
				content.WriteString(modalSelectedItemStyle.Render("> "+line) + "\n")
			} else {
				content.WriteString(suspectStyle.Render("  "+line) + "\n")
			}
		}
	}
	content.WriteString("\n↑/↓ to choose, Enter to confirm, Esc to quit")

	modal := modalStyle.Render(content.String())
	if m.width == 0 {
		return modal
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
}
