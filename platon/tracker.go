package platon

import "sync"

// TrackedMessage identifies the most recent rendered list message for one
// (guild, user) scope.
type TrackedMessage struct {
	ChannelID string
	MessageID string
}

// MessageTracker remembers the last rendered list message per scope so a
// fresh command replaces it rather than stacking duplicates. At most one
// live tracked message exists per scope; Track overwrites the previous
// entry and returns it so the caller can best-effort delete it.
type MessageTracker struct {
	mu       sync.Mutex
	messages map[string]map[string]TrackedMessage
}

func NewMessageTracker() *MessageTracker {
	return &MessageTracker{messages: map[string]map[string]TrackedMessage{}}
}

// Get returns the tracked message for the scope, if any.
func (t *MessageTracker) Get(guildID, userID string) (TrackedMessage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg, ok := t.messages[guildID][userID]
	return msg, ok
}

// Track records msg as the scope's live message, returning the superseded
// entry, if there was one.
func (t *MessageTracker) Track(guildID, userID string, msg TrackedMessage) (TrackedMessage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	users, ok := t.messages[guildID]
	if !ok {
		users = map[string]TrackedMessage{}
		t.messages[guildID] = users
	}
	prev, had := users[userID]
	users[userID] = msg
	return prev, had
}

// Reset drops all tracked messages. Run by the midnight sweep.
func (t *MessageTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = map[string]map[string]TrackedMessage{}
}
