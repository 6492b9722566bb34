package platon

import (
	"log/slog"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCommands(t *testing.T) {
	t.Parallel()
	d := newDiscord(DefaultConfig().Discord)
	d.logger = slog.Default()
	d.session = newStubSession()

	created, err := d.registerCommands()
	require.NoError(t, err)

	byName := map[string]*discordgo.ApplicationCommand{}
	for _, c := range created {
		byName[c.Name] = c
	}
	for _, name := range []string{
		DiscordSlashCommandTodo,
		DiscordSlashCommandQuest,
		DiscordSlashCommandCoinPrice,
		DiscordSlashCommandTopCoins,
		DiscordSlashCommandNews,
		DiscordSlashCommandQuote,
		DiscordSlashCommandMarketAlert,
		DiscordSlashCommandNewsAlert,
		DiscordSlashCommandQuoteAlert,
		DiscordSlashCommandHelp,
	} {
		require.Contains(t, byName, name)
	}
	assert.Len(t, created, 10)

	// the channel-set commands are admin-gated
	for _, name := range []string{
		DiscordSlashCommandMarketAlert,
		DiscordSlashCommandNewsAlert,
		DiscordSlashCommandQuoteAlert,
	} {
		cmd := byName[name]
		require.NotNil(t, cmd.DefaultMemberPermissions, name)
		assert.Equal(
			t,
			int64(discordgo.PermissionAdministrator),
			*cmd.DefaultMemberPermissions,
		)
	}
	assert.Nil(t, byName[DiscordSlashCommandTodo].DefaultMemberPermissions)

	// the coin price command requires its query option
	opts := byName[DiscordSlashCommandCoinPrice].Options
	require.Len(t, opts, 1)
	assert.Equal(t, coinPriceQueryOption, opts[0].Name)
	assert.True(t, opts[0].Required)
}

func TestDiscordSessionSetLogLevel(t *testing.T) {
	t.Parallel()
	session := DiscordSession{session: &discordgo.Session{}}

	require.NoError(t, session.SetLogLevel(slog.LevelDebug))
	assert.Equal(t, discordgo.LogDebug, session.session.LogLevel)

	require.NoError(t, session.SetLogLevel(slog.LevelError))
	assert.Equal(t, discordgo.LogError, session.session.LogLevel)

	assert.Error(t, session.SetLogLevel(slog.Level(42)))
}
