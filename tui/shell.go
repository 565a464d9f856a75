package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/teilomillet/faqchat/widget"
)

// Messages the Shell forwards to the program.
type (
	appendMsg   struct{ msg widget.Message }
	setInputMsg struct{ value string }
	typingMsg   struct{ on bool }
	visibleMsg  struct{ visible bool }
)

// Shell implements widget.Shell on top of a bubbletea program. Every call
// becomes a tea.Msg handled by Model.Update, so the display is only ever
// touched from the program's event loop.
//
// The controller must only be driven from tea.Cmds, never from Update
// itself: Send blocks until the event loop takes the message.
type Shell struct {
	mu    sync.Mutex
	send  func(tea.Msg)
	input string
}

var _ widget.Shell = (*Shell)(nil)

// NewShell returns a Shell that drops everything until Attach is called.
func NewShell() *Shell {
	return &Shell{}
}

// Attach connects the Shell to a program, usually with program.Send.
func (s *Shell) Attach(send func(tea.Msg)) {
	s.mu.Lock()
	s.send = send
	s.mu.Unlock()
}

func (s *Shell) forward(msg tea.Msg) {
	s.mu.Lock()
	send := s.send
	s.mu.Unlock()
	if send != nil {
		send(msg)
	}
}

func (s *Shell) AppendMessage(msg widget.Message) {
	s.forward(appendMsg{msg: msg})
}

func (s *Shell) SetInputValue(value string) {
	s.mu.Lock()
	s.input = value
	s.mu.Unlock()
	s.forward(setInputMsg{value: value})
}

// InputValue returns the input as last synced by the model.
func (s *Shell) InputValue() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

func (s *Shell) ShowTypingIndicator() {
	s.forward(typingMsg{on: true})
}

func (s *Shell) HideTypingIndicator() {
	s.forward(typingMsg{on: false})
}

func (s *Shell) SetVisible(visible bool) {
	s.forward(visibleMsg{visible: visible})
}

// syncInput records what the user typed without echoing it back.
func (s *Shell) syncInput(value string) {
	s.mu.Lock()
	s.input = value
	s.mu.Unlock()
}
