package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/teilomillet/faqchat/widget"
)

// DefaultTitle is shown in the panel header when Options.Title is empty.
const DefaultTitle = "FAQ chat"

// Conversation is the part of widget.Controller the model drives.
type Conversation interface {
	Submit(ctx context.Context, raw string)
	ToggleVisibility()
	State() widget.State
}

// Options configures the model.
type Options struct {
	Title    string
	Endpoint string
	Policy   widget.Policy

	// Open toggles the panel open once the program starts.
	Open bool
}

type keyMap struct {
	Send   key.Binding
	Toggle key.Binding
	Scroll key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Send:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
	Toggle: key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "open/close")),
	Scroll: key.NewBinding(key.WithKeys("pgup", "pgdown"), key.WithHelp("pgup/pgdown", "scroll")),
	Quit:   key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "quit")),
}

// entry is a displayed message with its rendering for the current width.
type entry struct {
	msg      widget.Message
	rendered string
}

// Model is the bubbletea model of the chat panel. The Controller owns the
// conversation; the model only reflects what the Shell forwards.
type Model struct {
	ctx   context.Context
	conv  Conversation
	shell *Shell
	opts  Options

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	renderer *renderer

	messages []entry
	visible  bool
	typing   bool
	ready    bool

	width  int
	height int
}

// NewModel creates the model. shell must be the Shell conv was built with.
func NewModel(ctx context.Context, conv Conversation, shell *Shell, opts Options) Model {
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}

	ta := textarea.New()
	ta.Placeholder = "Ask a question..."
	ta.CharLimit = 2000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorTextDim)
	ta.BlurredStyle = ta.FocusedStyle

	s := spinner.New()
	s.Spinner = spinner.Ellipsis
	s.Style = typingStyle

	return Model{
		ctx:      ctx,
		conv:     conv,
		shell:    shell,
		opts:     opts,
		textarea: ta,
		spinner:  s,
		renderer: newRenderer(80),
	}
}

// Init starts the cursor blink and, when configured, opens the panel.
func (m Model) Init() tea.Cmd {
	if m.opts.Open {
		return tea.Batch(textarea.Blink, m.toggle())
	}
	return textarea.Blink
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Toggle):
			return m, m.toggle()
		case !m.visible:
			return m, nil
		case key.Matches(msg, keys.Send):
			value := m.textarea.Value()
			if strings.TrimSpace(value) == "" {
				return m, nil
			}
			m.textarea.Reset()
			m.shell.syncInput("")
			return m, m.submit(value)
		case key.Matches(msg, keys.Scroll):
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		m.textarea, cmd = m.textarea.Update(msg)
		m.shell.syncInput(m.textarea.Value())
		return m, cmd

	case appendMsg:
		m.messages = append(m.messages, entry{msg: msg.msg, rendered: m.render(msg.msg)})
		m.updateViewport()
		m.viewport.GotoBottom()

	case setInputMsg:
		m.textarea.SetValue(msg.value)

	case typingMsg:
		m.typing = msg.on
		if m.typing {
			cmds = append(cmds, m.spinner.Tick)
		}

	case visibleMsg:
		m.visible = msg.visible
		if m.visible {
			cmds = append(cmds, m.textarea.Focus())
		} else {
			m.textarea.Blur()
		}

	case spinner.TickMsg:
		if m.typing {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	default:
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// toggle flips the panel through the controller. It runs as a command
// because the controller answers through the Shell, which sends back into
// the event loop.
func (m Model) toggle() tea.Cmd {
	conv := m.conv
	return func() tea.Msg {
		conv.ToggleVisibility()
		return nil
	}
}

func (m Model) submit(value string) tea.Cmd {
	ctx, conv := m.ctx, m.conv
	return func() tea.Msg {
		conv.Submit(ctx, value)
		return nil
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	headerHeight := 3 // title line and border
	typingHeight := 1
	inputHeight := 4 // two lines and border
	hintHeight := 1

	vpHeight := height - headerHeight - typingHeight - inputHeight - hintHeight
	if vpHeight < 3 {
		vpHeight = 3
	}
	contentWidth := width - 2
	if contentWidth < 10 {
		contentWidth = 10
	}

	if !m.ready {
		m.viewport = viewport.New(contentWidth, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = contentWidth
		m.viewport.Height = vpHeight
	}
	m.textarea.SetWidth(contentWidth - 4)

	m.renderer.resize(contentWidth - 4)
	for i := range m.messages {
		m.messages[i].rendered = m.render(m.messages[i].msg)
	}
	m.updateViewport()
}

func (m Model) render(msg widget.Message) string {
	width := m.viewport.Width - 2
	if width < 10 {
		width = 10
	}
	switch msg.Origin {
	case widget.OriginUser:
		return userLabelStyle.Render("You") + "\n" + userBubbleStyle.Width(width).Render(msg.Text)
	case widget.OriginBot:
		return botLabelStyle.Render("Bot") + "\n" + botBubbleStyle.Render(m.renderer.render(msg.HTML()))
	default:
		return errorStyle.Width(width).Render(msg.Text)
	}
}

func (m *Model) updateViewport() {
	parts := make([]string, len(m.messages))
	for i, e := range m.messages {
		parts[i] = e.rendered
	}
	m.viewport.SetContent(strings.Join(parts, "\n\n"))
}

// View renders the panel, or the launcher when the panel is hidden.
func (m Model) View() string {
	if !m.ready {
		return hintStyle.Render("  Initializing...")
	}
	if !m.visible {
		return launcherStyle.Render("💬 "+m.opts.Title) + "\n" +
			hintStyle.Render(" ctrl+t open • esc quit")
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.typing {
		b.WriteString(typingStyle.Render(" Bot is typing" + m.spinner.View()))
	}
	b.WriteString("\n")
	b.WriteString(inputPanelStyle.Width(m.viewport.Width).Render(m.textarea.View()))
	b.WriteString("\n")
	b.WriteString(m.renderHints())
	return b.String()
}

func (m Model) renderHeader() string {
	subtitle := m.opts.Endpoint
	if m.opts.Policy != "" {
		subtitle = fmt.Sprintf("%s · %s", subtitle, m.opts.Policy)
	}
	line := titleStyle.Render(m.opts.Title)
	if subtitle != "" {
		line += "  " + subtitleStyle.Render(subtitle)
	}
	return headerStyle.Width(m.viewport.Width).Render(line)
}

func (m Model) renderHints() string {
	var hints []string
	for _, b := range []key.Binding{keys.Send, keys.Toggle, keys.Scroll, keys.Quit} {
		h := b.Help()
		hints = append(hints, h.Key+" "+h.Desc)
	}
	if q := m.conv.State().Queued; q > 0 {
		hints = append(hints, fmt.Sprintf("%d queued", q))
	}
	return hintStyle.Render(" " + strings.Join(hints, " • "))
}
