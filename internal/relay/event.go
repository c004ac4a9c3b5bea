package relay

// EventType names an event exchanged between the server and a connection.
type EventType string

// Server to client events.
const (
	EventHistory        EventType = "history"
	EventPresenceUpdate EventType = "presence-update"
	EventMessage        EventType = "message"
	EventCapacityNotice EventType = "capacity-notice"
)

// Client to server commands.
const (
	CommandSetName     EventType = "set-name"
	CommandSendMessage EventType = "send-message"
)

// CapacityNotice is the text sent to a connection rejected because the
// server is full.
const CapacityNotice = "The chat is full. Please try again later."

// Message is one relayed chat message. It is never modified after the core
// creates it.
type Message struct {
	Author string `json:"author"`
	Text   string `json:"text"`
	Time   string `json:"time"`
}

// Event is a server to client event. Only the field matching Type is set;
// an absent list means an empty one.
type Event struct {
	Type    EventType `json:"type"`
	History []Message `json:"history,omitempty"`
	Users   []string  `json:"users,omitempty"`
	Message *Message  `json:"message,omitempty"`
	Notice  string    `json:"notice,omitempty"`
}

// Command is a client to server command.
type Command struct {
	Type EventType `json:"type"`
	Name string    `json:"name,omitempty"`
	Text string    `json:"text,omitempty"`
}

func historyEvent(history []Message) Event {
	return Event{Type: EventHistory, History: history}
}

func presenceEvent(users []string) Event {
	return Event{Type: EventPresenceUpdate, Users: users}
}

func messageEvent(msg Message) Event {
	return Event{Type: EventMessage, Message: &msg}
}

func capacityEvent() Event {
	return Event{Type: EventCapacityNotice, Notice: CapacityNotice}
}
