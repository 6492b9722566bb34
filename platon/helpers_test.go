package platon

import (
	"log/slog"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateStamp(t *testing.T) {
	t.Parallel()

	// 2026-09-01 23:30 KST
	kst := time.Date(2026, 9, 1, 23, 30, 0, 0, seoul)
	assert.Equal(t, "2026-09-01", dateStamp(kst))
	assert.Equal(t, "2026년 09월 01일", koreanDate(kst))

	// 15:30 UTC the same instant; the stamp is still the KST date
	assert.Equal(t, "2026-09-01", dateStamp(kst.UTC()))

	// one hour later it's past midnight in Seoul
	assert.Equal(t, "2026-09-02", dateStamp(kst.Add(time.Hour)))
}

func TestDisplayName(t *testing.T) {
	t.Parallel()
	user := &discordgo.User{
		ID:         "u1",
		Username:   "username",
		GlobalName: "globalname",
	}

	i := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Member: &discordgo.Member{User: user, Nick: "nickname"},
		},
	}
	assert.Equal(t, "nickname", displayName(i))

	i.Member.Nick = ""
	assert.Equal(t, "globalname", displayName(i))

	user.GlobalName = ""
	assert.Equal(t, "username", displayName(i))

	// DM interaction: user is on the interaction itself
	i = &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			User: &discordgo.User{ID: "u1", Username: "dmuser"},
		},
	}
	assert.Equal(t, "dmuser", displayName(i))
}

func TestIsAdmin(t *testing.T) {
	t.Parallel()
	i := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Member: &discordgo.Member{
				User:        &discordgo.User{ID: "u1"},
				Permissions: discordgo.PermissionAdministrator,
			},
		},
	}
	assert.True(t, isAdmin(i))

	i.Member.Permissions = discordgo.PermissionSendMessages
	assert.False(t, isAdmin(i))

	i.Member = nil
	assert.False(t, isAdmin(i))
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exact", truncate("exact", 5))
	assert.Equal(t, "trunc", truncate("truncated", 5))
	// rune-aware, not byte-aware
	assert.Equal(t, "한국어", truncate("한국어 텍스트", 3))
}

func TestStructToSlogValueRedaction(t *testing.T) {
	t.Parallel()
	cfg := &DiscordConfig{
		Token:         "super-secret",
		ApplicationID: "12345",
	}
	v := structToSlogValue(cfg)
	require.Equal(t, slog.KindGroup, v.Kind())

	attrs := map[string]string{}
	for _, attr := range v.Group() {
		if attr.Value.Kind() == slog.KindString {
			attrs[attr.Key] = attr.Value.String()
		}
	}
	assert.Equal(t, "[redacted]", attrs["token"])
	assert.NotContains(t, attrs["token"], "super-secret")
}

func TestDiscordInteractionOptions(t *testing.T) {
	t.Parallel()
	i := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionApplicationCommand,
			Data: discordgo.ApplicationCommandInteractionData{
				Name: DiscordSlashCommandCoinPrice,
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{
						Name:  coinPriceQueryOption,
						Type:  discordgo.ApplicationCommandOptionString,
						Value: "비트코인",
					},
				},
			},
		},
	}
	options := discordInteractionOptions(i)
	require.Contains(t, options, coinPriceQueryOption)
	assert.Equal(t, "비트코인", options[coinPriceQueryOption].StringValue())
}
