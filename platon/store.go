package platon

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// DailyTaskCapacity is the maximum number of items a daily to-do list
	// may hold. Further adds are rejected with a user-visible message.
	DailyTaskCapacity = 19

	// WeeklyQuestCapacity is the maximum number of items a weekly quest
	// checklist may hold.
	WeeklyQuestCapacity = 4

	// taskTextMaxLength matches the modal input limit
	taskTextMaxLength = 100
)

var (
	// ErrItemNotFound is returned when a toggle/delete targets an item ID
	// that no longer exists, e.g. a control on a stale rendering after a
	// concurrent delete. Callers treat it as a cue to re-render.
	ErrItemNotFound = errors.New("item not found")

	// ErrTextTooLong is returned when an item text exceeds the length limit
	// after trimming. Unreachable through the modal, which enforces the
	// same limit client-side.
	ErrTextTooLong = fmt.Errorf("task text exceeds %d characters", taskTextMaxLength)
)

// CapacityError rejects an entire batch add that would push a list past its
// capacity. Nothing from the batch is committed.
type CapacityError struct {
	Limit int
}

func (e CapacityError) Error() string {
	return fmt.Sprintf("list capacity of %d items exceeded", e.Limit)
}

// TaskItem is a single entry in a to-do or quest list. The ID is assigned
// once at creation and is what interactive controls reference, so toggles
// and deletes stay correct even if another interaction reordered the list
// in between.
type TaskItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	CreatedOn string `json:"created_on,omitempty"`
}

// ListStore is the contract shared by the daily and weekly list variants.
// All mutations for one (guild, user) scope are serialized by the
// implementation.
type ListStore interface {
	// Items returns the live items for the scope, creating an empty entry
	// on first access.
	Items(guildID, userID string) ([]TaskItem, error)

	// Add appends the given texts as new incomplete items. Blank texts are
	// dropped; an empty batch succeeds as a no-op. If the batch would
	// exceed the capacity, the whole batch is rejected with CapacityError.
	Add(guildID, userID string, texts []string) ([]TaskItem, error)

	// Toggle flips the completion flag of the item with the given ID.
	Toggle(guildID, userID, itemID string) ([]TaskItem, error)

	// Delete removes the item with the given ID.
	Delete(guildID, userID, itemID string) ([]TaskItem, error)

	// Capacity returns the maximum number of live items per scope.
	Capacity() int
}

// cleanTexts trims the batch, drops blanks, and validates lengths.
func cleanTexts(texts []string) ([]string, error) {
	valid := make([]string, 0, len(texts))
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if utf8Len(t) > taskTextMaxLength {
			return nil, ErrTextTooLong
		}
		valid = append(valid, t)
	}
	return valid, nil
}

func utf8Len(s string) int {
	return len([]rune(s))
}

// TaskStore holds daily to-do lists in memory, keyed by (guild, user).
// Only items stamped with "today" (KST) are live; items from prior days are
// compacted away on the next write and the whole store is cleared by the
// midnight reset.
type TaskStore struct {
	mu     sync.Mutex
	scopes map[string]*taskScope

	// now is injected for tests; defaults to time.Now
	now func() time.Time
}

type taskScope struct {
	mu    sync.Mutex
	items []TaskItem
}

func NewTaskStore() *TaskStore {
	return &TaskStore{
		scopes: map[string]*taskScope{},
		now:    time.Now,
	}
}

func (s *TaskStore) Capacity() int {
	return DailyTaskCapacity
}

func (s *TaskStore) scope(guildID, userID string) *taskScope {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := guildID + "/" + userID
	sc, ok := s.scopes[key]
	if !ok {
		sc = &taskScope{}
		s.scopes[key] = sc
	}
	return sc
}

// live filters the scope's items down to today's. Caller must hold sc.mu.
func (s *TaskStore) live(sc *taskScope) []TaskItem {
	today := dateStamp(s.now())
	items := make([]TaskItem, 0, len(sc.items))
	for _, item := range sc.items {
		if item.CreatedOn == today {
			items = append(items, item)
		}
	}
	return items
}

func (s *TaskStore) Items(guildID, userID string) ([]TaskItem, error) {
	sc := s.scope(guildID, userID)
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return s.live(sc), nil
}

func (s *TaskStore) Add(guildID, userID string, texts []string) ([]TaskItem, error) {
	valid, err := cleanTexts(texts)
	if err != nil {
		return nil, err
	}

	sc := s.scope(guildID, userID)
	sc.mu.Lock()
	defer sc.mu.Unlock()

	items := s.live(sc)
	if len(items)+len(valid) > DailyTaskCapacity {
		return nil, CapacityError{Limit: DailyTaskCapacity}
	}

	today := dateStamp(s.now())
	for _, text := range valid {
		items = append(items, TaskItem{
			ID:        ulid.Make().String(),
			Text:      text,
			CreatedOn: today,
		})
	}
	sc.items = items
	return append([]TaskItem(nil), items...), nil
}

func (s *TaskStore) Toggle(guildID, userID, itemID string) ([]TaskItem, error) {
	sc := s.scope(guildID, userID)
	sc.mu.Lock()
	defer sc.mu.Unlock()

	items := s.live(sc)
	found := false
	for n := range items {
		if items[n].ID == itemID {
			items[n].Completed = !items[n].Completed
			found = true
			break
		}
	}
	sc.items = items
	if !found {
		return items, ErrItemNotFound
	}
	return append([]TaskItem(nil), items...), nil
}

func (s *TaskStore) Delete(guildID, userID, itemID string) ([]TaskItem, error) {
	sc := s.scope(guildID, userID)
	sc.mu.Lock()
	defer sc.mu.Unlock()

	items := s.live(sc)
	kept := make([]TaskItem, 0, len(items))
	found := false
	for _, item := range items {
		if item.ID == itemID {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	sc.items = kept
	if !found {
		return kept, ErrItemNotFound
	}
	return append([]TaskItem(nil), kept...), nil
}

// Reset drops every scope. Run by the midnight sweep; not scoped per-guild.
func (s *TaskStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes = map[string]*taskScope{}
}
