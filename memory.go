package agent

// DefaultMemoryCapacity is the number of non-system messages retained when
// no capacity is configured.
const DefaultMemoryCapacity = 10

// Memory is a bounded conversation history.
//
// Non-system messages are kept in a fixed size ring; once it is full, every
// new message evicts the oldest one. The system directive lives in its own
// slot outside the ring and is never evicted.
type Memory struct {
	system *Message

	ring []*Message
	head int
	size int
}

// NewMemory creates a Memory retaining at most capacity non-system messages.
// A capacity below one falls back to DefaultMemoryCapacity.
func NewMemory(capacity int) *Memory {
	if capacity < 1 {
		capacity = DefaultMemoryCapacity
	}

	return &Memory{
		ring: make([]*Message, capacity),
	}
}

// AddSystemMessage sets the system directive, replacing any previous one.
func (m *Memory) AddSystemMessage(content string) {
	m.system = NewContentMessage(RoleSystem, content)
}

// Add appends a message with the given role and content.
//
// A RoleSystem message is routed to the system slot, so the system
// directive always stays the oldest retained message.
func (m *Memory) Add(role Role, content string) {
	m.AddMessage(NewContentMessage(role, content))
}

// AddMessage appends a copy of msg.
func (m *Memory) AddMessage(msg *Message) {
	if msg.Role == RoleSystem {
		m.system = NewMessageFromMessage(msg)
		return
	}

	msg = NewMessageFromMessage(msg)

	if m.size < len(m.ring) {
		m.ring[(m.head+m.size)%len(m.ring)] = msg
		m.size++
		return
	}

	m.ring[m.head] = msg
	m.head = (m.head + 1) % len(m.ring)
}

// Messages returns the system message (if set) followed by the retained
// messages, oldest first. Both the slice and the messages are copies.
func (m *Memory) Messages() []*Message {
	msgs := make([]*Message, 0, m.size+1)
	if m.system != nil {
		msgs = append(msgs, NewMessageFromMessage(m.system))
	}

	for i := 0; i < m.size; i++ {
		msgs = append(msgs, NewMessageFromMessage(m.ring[(m.head+i)%len(m.ring)]))
	}

	return msgs
}

// System returns the system directive and whether one is set.
func (m *Memory) System() (string, bool) {
	if m.system == nil {
		return "", false
	}
	return m.system.Content, true
}

// Len is the number of retained non-system messages.
func (m *Memory) Len() int {
	return m.size
}

func (m *Memory) Capacity() int {
	return len(m.ring)
}

// Reset drops every retained message. The system directive is kept.
func (m *Memory) Reset() {
	for i := range m.ring {
		m.ring[i] = nil
	}
	m.head = 0
	m.size = 0
}
