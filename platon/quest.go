package platon

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// questEpochDays is the length of one weekly quest window. Once
// `today > start + 6 days`, the next read starts a fresh epoch.
const questEpochDays = 6

// QuestItems stores a quest epoch's items as a JSON column.
type QuestItems []TaskItem

// Scan implements the sql.Scanner interface.
func (q *QuestItems) Scan(value any) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, q)
	case string:
		return json.Unmarshal([]byte(v), q)
	case nil:
		*q = nil
		return nil
	default:
		return errors.New("invalid type for QuestItems")
	}
}

// Value implements the driver.Valuer interface.
func (q QuestItems) Value() (driver.Value, error) {
	if q == nil {
		q = QuestItems{}
	}
	data, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// GormDataType implements the gorm.GormDataTypeInterface interface.
func (QuestItems) GormDataType() string {
	return "text"
}

// QuestEpoch is one (guild, user) weekly quest checklist window.
type QuestEpoch struct {
	ModelUintID
	ModelUnixTime
	GuildID   string     `gorm:"uniqueIndex:idx_quest_scope;not null" json:"guild_id"`
	UserID    string     `gorm:"uniqueIndex:idx_quest_scope;not null" json:"user_id"`
	StartDate string     `gorm:"not null" json:"start_date"`
	Items     QuestItems `gorm:"type:text" json:"items"`
}

// expired reports whether the epoch window has elapsed as of today.
func (e QuestEpoch) expired(today string) bool {
	start, err := time.ParseInLocation(dateStampLayout, e.StartDate, seoul)
	if err != nil {
		return true
	}
	now, err := time.ParseInLocation(dateStampLayout, today, seoul)
	if err != nil {
		return true
	}
	return now.After(start.AddDate(0, 0, questEpochDays))
}

// EndDate returns the last day of the epoch window.
func (e QuestEpoch) EndDate() string {
	start, err := time.ParseInLocation(dateStampLayout, e.StartDate, seoul)
	if err != nil {
		return e.StartDate
	}
	return start.AddDate(0, 0, questEpochDays).Format(dateStampLayout)
}

// QuestStore persists weekly quest checklists. Epoch rollover is lazy:
// there is no timer, the next read past the window returns a fresh empty
// epoch stamped with today's date. No look-back data is retained.
type QuestStore struct {
	db      *gorm.DB
	writeDB *writeDB
	logger  *slog.Logger

	// mu serializes read-modify-write cycles per scope key
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time
}

func NewQuestStore(db *gorm.DB, w *writeDB, log *slog.Logger) *QuestStore {
	if log == nil {
		log = slog.Default()
	}
	return &QuestStore{
		db:      db,
		writeDB: w,
		logger:  log.With(loggerNameKey, "quest_store"),
		locks:   map[string]*sync.Mutex{},
		now:     time.Now,
	}
}

func (s *QuestStore) Capacity() int {
	return WeeklyQuestCapacity
}

func (s *QuestStore) scopeLock(guildID, userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := guildID + "/" + userID
	mu, ok := s.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[key] = mu
	}
	return mu
}

// epoch loads the current epoch for the scope, creating or rolling it over
// as needed. Caller must hold the scope lock.
func (s *QuestStore) epoch(ctx context.Context, guildID, userID string) (*QuestEpoch, error) {
	today := dateStamp(s.now())

	var e QuestEpoch
	rv := s.db.WithContext(ctx).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		First(&e)
	switch {
	case errors.Is(rv.Error, gorm.ErrRecordNotFound):
		e = QuestEpoch{GuildID: guildID, UserID: userID, StartDate: today}
		if err := s.writeDB.Create(ctx, &e); err != nil {
			return nil, fmt.Errorf("error creating quest epoch: %w", err)
		}
		return &e, nil
	case rv.Error != nil:
		return nil, fmt.Errorf("error loading quest epoch: %w", rv.Error)
	}

	if e.expired(today) {
		e.StartDate = today
		e.Items = QuestItems{}
		if err := s.writeDB.Save(ctx, &e); err != nil {
			return nil, fmt.Errorf("error rolling over quest epoch: %w", err)
		}
		s.logger.InfoContext(
			ctx,
			"quest epoch rolled over",
			"guild_id", guildID,
			"user_id", userID,
			"start_date", today,
		)
	}
	return &e, nil
}

// Epoch returns the current epoch for the scope, for rendering headers.
func (s *QuestStore) Epoch(guildID, userID string) (QuestEpoch, error) {
	mu := s.scopeLock(guildID, userID)
	mu.Lock()
	defer mu.Unlock()
	e, err := s.epoch(context.Background(), guildID, userID)
	if err != nil {
		return QuestEpoch{}, err
	}
	return *e, nil
}

func (s *QuestStore) Items(guildID, userID string) ([]TaskItem, error) {
	e, err := s.Epoch(guildID, userID)
	if err != nil {
		return nil, err
	}
	return append([]TaskItem(nil), e.Items...), nil
}

func (s *QuestStore) Add(guildID, userID string, texts []string) ([]TaskItem, error) {
	valid, err := cleanTexts(texts)
	if err != nil {
		return nil, err
	}

	mu := s.scopeLock(guildID, userID)
	mu.Lock()
	defer mu.Unlock()

	ctx := context.Background()
	e, err := s.epoch(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	if len(e.Items)+len(valid) > WeeklyQuestCapacity {
		return nil, CapacityError{Limit: WeeklyQuestCapacity}
	}
	for _, text := range valid {
		e.Items = append(e.Items, TaskItem{ID: ulid.Make().String(), Text: text})
	}
	if err = s.writeDB.Save(ctx, e); err != nil {
		return nil, err
	}
	return append([]TaskItem(nil), e.Items...), nil
}

func (s *QuestStore) Toggle(guildID, userID, itemID string) ([]TaskItem, error) {
	mu := s.scopeLock(guildID, userID)
	mu.Lock()
	defer mu.Unlock()

	ctx := context.Background()
	e, err := s.epoch(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	found := false
	for n := range e.Items {
		if e.Items[n].ID == itemID {
			e.Items[n].Completed = !e.Items[n].Completed
			found = true
			break
		}
	}
	if !found {
		return append([]TaskItem(nil), e.Items...), ErrItemNotFound
	}
	if err = s.writeDB.Save(ctx, e); err != nil {
		return nil, err
	}
	return append([]TaskItem(nil), e.Items...), nil
}

func (s *QuestStore) Delete(guildID, userID, itemID string) ([]TaskItem, error) {
	mu := s.scopeLock(guildID, userID)
	mu.Lock()
	defer mu.Unlock()

	ctx := context.Background()
	e, err := s.epoch(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	kept := make(QuestItems, 0, len(e.Items))
	found := false
	for _, item := range e.Items {
		if item.ID == itemID {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return append([]TaskItem(nil), e.Items...), ErrItemNotFound
	}
	e.Items = kept
	if err = s.writeDB.Save(ctx, e); err != nil {
		return nil, err
	}
	return append([]TaskItem(nil), e.Items...), nil
}
