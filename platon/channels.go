package platon

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// ChannelSettings is the single persisted row of notification channel IDs,
// written when an admin runs one of the 알림설정 commands. Persisting them
// means broadcasts keep flowing across restarts without reconfiguration.
type ChannelSettings struct {
	ModelUintID
	ModelUnixTime
	QuoteChannelID  string `json:"quote_channel_id"`
	NewsChannelID   string `json:"news_channel_id"`
	MarketChannelID string `json:"market_channel_id"`
}

// channelCache guards the in-memory copy of ChannelSettings between the
// admin commands that write it and the scheduler ticks that read it.
type channelCache struct {
	mu       sync.RWMutex
	settings ChannelSettings
	writeDB  *writeDB
}

func loadChannelSettings(ctx context.Context, db *gorm.DB, w *writeDB) (*channelCache, error) {
	var settings ChannelSettings
	rv := db.WithContext(ctx).First(&settings)
	if rv.Error != nil {
		if !errors.Is(rv.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("error loading channel settings: %w", rv.Error)
		}
		if err := w.Create(ctx, &settings); err != nil {
			return nil, fmt.Errorf("error creating channel settings: %w", err)
		}
	}
	return &channelCache{settings: settings, writeDB: w}, nil
}

func (c *channelCache) get() ChannelSettings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

func (c *channelCache) update(
	ctx context.Context,
	mutate func(*ChannelSettings),
) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	updated := c.settings
	mutate(&updated)
	if err := c.writeDB.Save(ctx, &updated); err != nil {
		return err
	}
	c.settings = updated
	return nil
}
