package entity

type EventKind int

const (
	EventProgress EventKind = iota
	EventToken
	EventToolOutput
	EventTerminal
)

// Event is one item on an answer stream. Text is set for every kind except
// EventToolOutput, which carries Tools instead.
type Event struct {
	Kind  EventKind
	Text  string
	Tools []ToolInvocation
}

func ProgressEvent(text string) Event { return Event{Kind: EventProgress, Text: text} }
func TokenEvent(text string) Event { return Event{Kind: EventToken, Text: text} }
func TerminalEvent(text string) Event { return Event{Kind: EventTerminal, Text: text} }

func ToolOutputEvent(tools []ToolInvocation) Event {
	return Event{Kind: EventToolOutput, Tools: tools}
}
