package widget

import "github.com/teilomillet/faqchat/fragment"

const (
	// FallbackReply is shown when the endpoint answers with valid JSON that
	// carries no usable "response" string.
	FallbackReply = "Sorry, I couldn't process that."

	// ConnectionErrorText is shown when the outbound call fails.
	ConnectionErrorText = "⚠️ Error connecting to server."
)

// Origin tells who authored a Message.
type Origin int

const (
	OriginUser Origin = iota
	OriginBot
	OriginSystemError
)

func (o Origin) String() string {
	switch o {
	case OriginUser:
		return "user"
	case OriginBot:
		return "bot"
	case OriginSystemError:
		return "error"
	default:
		return "unknown"
	}
}

// Message is one entry of the conversation as handed to the Shell.
// User and SystemError messages carry their text verbatim and a nil
// Fragment. Bot messages always carry the formatted Fragment of Text.
type Message struct {
	Text     string
	Origin   Origin
	Fragment *fragment.Fragment
}

// HTML returns the markup to display for the message. Only Bot messages
// contain markup; everything else is escaped text.
func (m Message) HTML() string {
	if m.Fragment != nil {
		return m.Fragment.HTML()
	}
	return fragment.Plain(m.Text).HTML()
}

func userMessage(text string) Message {
	return Message{Text: text, Origin: OriginUser}
}

func botMessage(text string) Message {
	return Message{Text: text, Origin: OriginBot, Fragment: fragment.Format(text)}
}

func errorMessage() Message {
	return Message{Text: ConnectionErrorText, Origin: OriginSystemError}
}
