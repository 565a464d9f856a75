package widget

// Shell is the display side of the widget. It owns the message list, the
// input field, the typing indicator and the panel visibility; the
// Controller drives it and never touches the display directly.
//
// Implementations must not call back into the Controller from inside these
// methods.
type Shell interface {
	AppendMessage(msg Message)
	SetInputValue(value string)
	InputValue() string
	ShowTypingIndicator()
	HideTypingIndicator()
	SetVisible(visible bool)
}
