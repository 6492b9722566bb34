package platon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSession implements DiscordSessionHandler, recording everything the
// bot sends.
type stubSession struct {
	mu        sync.Mutex
	responses []*discordgo.InteractionResponse
	edits     []*discordgo.WebhookEdit
	deleted   [][2]string
	embeds    map[string][]*discordgo.MessageEmbed
	messages  map[string][]string

	nextMessageID string
}

func newStubSession() *stubSession {
	return &stubSession{
		embeds:        map[string][]*discordgo.MessageEmbed{},
		messages:      map[string][]string{},
		nextMessageID: "m-1",
	}
}

func (s *stubSession) lastResponse(t *testing.T) *discordgo.InteractionResponse {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.responses)
	return s.responses[len(s.responses)-1]
}

func (s *stubSession) Open() error  { return nil }
func (s *stubSession) Close() error { return nil }

func (s *stubSession) AddHandler(any) func() { return func() {} }

func (s *stubSession) ApplicationCommandBulkOverwrite(
	_ string,
	_ string,
	commands []*discordgo.ApplicationCommand,
	_ ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	return commands, nil
}

func (s *stubSession) InteractionRespond(
	_ *discordgo.Interaction,
	resp *discordgo.InteractionResponse,
	_ ...discordgo.RequestOption,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, resp)
	return nil
}

func (s *stubSession) InteractionResponse(
	_ *discordgo.Interaction,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return &discordgo.Message{ID: s.nextMessageID}, nil
}

func (s *stubSession) InteractionResponseEdit(
	_ *discordgo.Interaction,
	newresp *discordgo.WebhookEdit,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits = append(s.edits, newresp)
	return &discordgo.Message{ID: s.nextMessageID}, nil
}

func (s *stubSession) ChannelMessageSend(
	channelID string,
	message string,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[channelID] = append(s.messages[channelID], message)
	return &discordgo.Message{ID: s.nextMessageID}, nil
}

func (s *stubSession) ChannelMessageSendEmbed(
	channelID string,
	embed *discordgo.MessageEmbed,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeds[channelID] = append(s.embeds[channelID], embed)
	return &discordgo.Message{ID: s.nextMessageID}, nil
}

func (s *stubSession) ChannelMessageDelete(
	channelID string,
	messageID string,
	_ ...discordgo.RequestOption,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, [2]string{channelID, messageID})
	return nil
}

func (s *stubSession) UpdateCustomStatus(string) error { return nil }

func (s *stubSession) SetLogLevel(slog.Level) error { return nil }

func newTestPlaton(t *testing.T, session *stubSession) *Platon {
	t.Helper()
	db, w := testDB(t)
	cfg := DefaultConfig()

	p := &Platon{
		config:       cfg,
		logger:       slog.Default(),
		db:           db,
		writeDB:      w,
		todos:        NewTaskStore(),
		todoTracker:  NewMessageTracker(),
		questTracker: NewMessageTracker(),
	}
	p.quests = NewQuestStore(db, w, nil)
	channels, err := loadChannelSettings(context.Background(), db, w)
	require.NoError(t, err)
	p.channels = channels

	p.discord = newDiscord(cfg.Discord)
	p.discord.logger = slog.Default()
	p.discord.session = session
	p.discord.p = p

	p.todoV = p.todoVariant()
	p.questV = p.questVariant()
	return p
}

func commandInteraction(name, guildID, userID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:        "interaction-1",
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   guildID,
			ChannelID: "chan-1",
			Member: &discordgo.Member{
				User: &discordgo.User{ID: userID, Username: "tester"},
			},
			Data: discordgo.ApplicationCommandInteractionData{
				Name: name,
			},
		},
	}
}

func componentInteraction(
	customID listCustomID,
	guildID string,
	userID string,
	values ...string,
) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:        "interaction-2",
			Type:      discordgo.InteractionMessageComponent,
			GuildID:   guildID,
			ChannelID: "chan-1",
			Member: &discordgo.Member{
				User: &discordgo.User{ID: userID, Username: "tester"},
			},
			Data: discordgo.MessageComponentInteractionData{
				CustomID: customID.String(),
				Values:   values,
			},
		},
	}
}

func modalInteraction(
	customID listCustomID,
	guildID string,
	userID string,
	texts ...string,
) *discordgo.InteractionCreate {
	components := make([]discordgo.MessageComponent, 0, len(texts))
	for n, text := range texts {
		components = append(components, &discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				&discordgo.TextInput{
					CustomID: fmt.Sprintf("task_%d", n+1),
					Value:    text,
				},
			},
		})
	}
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:        "interaction-3",
			Type:      discordgo.InteractionModalSubmit,
			GuildID:   guildID,
			ChannelID: "chan-1",
			Member: &discordgo.Member{
				User: &discordgo.User{ID: userID, Username: "tester"},
			},
			Data: discordgo.ModalSubmitInteractionData{
				CustomID:   customID.String(),
				Components: components,
			},
		},
	}
}

func TestDecodeListCustomID(t *testing.T) {
	t.Parallel()
	encoded := listCustomID{"todo", listActionToggle, "u1", "item-1"}.String()
	assert.Equal(t, "todo:toggle:u1:item-1", encoded)

	decoded, err := decodeListCustomID(encoded)
	require.NoError(t, err)
	assert.Equal(t, "todo", decoded.Variant)
	assert.Equal(t, listActionToggle, decoded.Action)
	assert.Equal(t, "u1", decoded.OwnerID)
	assert.Equal(t, "item-1", decoded.ItemID)

	for _, bad := range []string{"", "todo", "todo:add", "todo:add:u1"} {
		_, err = decodeListCustomID(bad)
		assert.Error(t, err, bad)
	}
}

func TestListComponentsLayout(t *testing.T) {
	t.Parallel()
	p := newTestPlaton(t, newStubSession())

	// an empty list is just the add button
	components := listComponents(p.todoV, "u1", nil)
	require.Len(t, components, 1)

	items := []TaskItem{
		{ID: "item-1", Text: "buy milk", Completed: true},
		{ID: "item-2", Text: "call mom"},
	}
	components = listComponents(p.todoV, "u1", items)
	require.Len(t, components, 3)

	toggleRow, ok := components[1].(discordgo.ActionsRow)
	require.True(t, ok)
	sel, ok := toggleRow.Components[0].(discordgo.SelectMenu)
	require.True(t, ok)
	require.Len(t, sel.Options, 2)
	assert.Equal(t, "item-1", sel.Options[0].Value)
	assert.Equal(t, "✅", sel.Options[0].Emoji.Name)
	assert.Equal(t, "⬜", sel.Options[1].Emoji.Name)
}

func TestHandleListCommandTracksMessage(t *testing.T) {
	t.Parallel()
	session := newStubSession()
	p := newTestPlaton(t, session)
	ctx := context.Background()

	p.handleListCommand(ctx, commandInteraction(DiscordSlashCommandTodo, "g1", "u1"), p.todoV)

	resp := session.lastResponse(t)
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, resp.Type)
	assert.Contains(t, resp.Data.Content, "새로운 하루가 시작되었습니다")

	tracked, ok := p.todoTracker.Get("g1", "u1")
	require.True(t, ok)
	assert.Equal(t, TrackedMessage{ChannelID: "chan-1", MessageID: "m-1"}, tracked)

	// a second invocation deletes the superseded message
	p.handleListCommand(ctx, commandInteraction(DiscordSlashCommandTodo, "g1", "u1"), p.todoV)
	require.Len(t, session.deleted, 1)
	assert.Equal(t, [2]string{"chan-1", "m-1"}, session.deleted[0])
}

func TestHandleListCommandGuildOnly(t *testing.T) {
	t.Parallel()
	session := newStubSession()
	p := newTestPlaton(t, session)

	i := commandInteraction(DiscordSlashCommandTodo, "", "u1")
	i.Member = nil
	i.User = &discordgo.User{ID: "u1", Username: "tester"}
	p.handleListCommand(context.Background(), i, p.todoV)

	resp := session.lastResponse(t)
	assert.Equal(t, listGuildOnlyMessage, resp.Data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
}

func TestListComponentRejectsNonOwner(t *testing.T) {
	t.Parallel()
	session := newStubSession()
	p := newTestPlaton(t, session)
	ctx := context.Background()

	items, err := p.todos.Add("g1", "u1", []string{"buy milk"})
	require.NoError(t, err)

	customID := listCustomID{"todo", listActionToggle, "u1", ""}
	i := componentInteraction(customID, "g1", "u2", items[0].ID)
	p.handleListComponent(ctx, i, p.todoV, customID)

	resp := session.lastResponse(t)
	assert.Equal(t, listNotYoursMessage, resp.Data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)

	// no mutation happened
	items, err = p.todos.Items("g1", "u1")
	require.NoError(t, err)
	assert.False(t, items[0].Completed)
}

func TestListComponentToggle(t *testing.T) {
	t.Parallel()
	session := newStubSession()
	p := newTestPlaton(t, session)
	ctx := context.Background()

	items, err := p.todos.Add("g1", "u1", []string{"buy milk"})
	require.NoError(t, err)

	customID := listCustomID{"todo", listActionToggle, "u1", ""}
	i := componentInteraction(customID, "g1", "u1", items[0].ID)
	p.handleListComponent(ctx, i, p.todoV, customID)

	resp := session.lastResponse(t)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)
	assert.Contains(t, resp.Data.Content, "~~buy milk~~")
	assert.Contains(t, resp.Data.Content, "`1/1` (`100.0%`)")

	items, err = p.todos.Items("g1", "u1")
	require.NoError(t, err)
	assert.True(t, items[0].Completed)
}

func TestListComponentDelete(t *testing.T) {
	t.Parallel()
	session := newStubSession()
	p := newTestPlaton(t, session)
	ctx := context.Background()

	items, err := p.todos.Add("g1", "u1", []string{"buy milk", "call mom"})
	require.NoError(t, err)

	customID := listCustomID{"todo", listActionDelete, "u1", ""}
	i := componentInteraction(customID, "g1", "u1", items[0].ID)
	p.handleListComponent(ctx, i, p.todoV, customID)

	resp := session.lastResponse(t)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)
	assert.NotContains(t, resp.Data.Content, "buy milk")

	items, err = p.todos.Items("g1", "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "call mom", items[0].Text)
}

func TestListComponentStaleItemRerenders(t *testing.T) {
	t.Parallel()
	session := newStubSession()
	p := newTestPlaton(t, session)

	_, err := p.todos.Add("g1", "u1", []string{"buy milk"})
	require.NoError(t, err)

	// an ID from an outdated message no longer exists: the list re-renders
	// in place instead of erroring
	customID := listCustomID{"todo", listActionToggle, "u1", ""}
	i := componentInteraction(customID, "g1", "u1", "stale-item-id")
	p.handleListComponent(context.Background(), i, p.todoV, customID)

	resp := session.lastResponse(t)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)
	assert.Contains(t, resp.Data.Content, "buy milk")
}

func TestListComponentAddOpensModal(t *testing.T) {
	t.Parallel()
	session := newStubSession()
	p := newTestPlaton(t, session)

	customID := listCustomID{"todo", listActionAdd, "u1", ""}
	i := componentInteraction(customID, "g1", "u1")
	p.handleListComponent(context.Background(), i, p.todoV, customID)

	resp := session.lastResponse(t)
	assert.Equal(t, discordgo.InteractionResponseModal, resp.Type)
	assert.Equal(t, "todo:modal:u1:", resp.Data.CustomID)
	assert.Len(t, resp.Data.Components, listModalInputCount)
}

func TestListModalAdd(t *testing.T) {
	t.Parallel()
	session := newStubSession()
	p := newTestPlaton(t, session)

	customID := listCustomID{"todo", listActionModal, "u1", ""}
	i := modalInteraction(customID, "g1", "u1", "buy milk", "", "call mom")
	p.handleListModal(context.Background(), i, p.todoV, customID)

	resp := session.lastResponse(t)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)
	assert.Contains(t, resp.Data.Content, "buy milk")
	assert.Contains(t, resp.Data.Content, "call mom")

	items, err := p.todos.Items("g1", "u1")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestListModalAllBlankIsNoOp(t *testing.T) {
	t.Parallel()
	session := newStubSession()
	p := newTestPlaton(t, session)

	customID := listCustomID{"todo", listActionModal, "u1", ""}
	i := modalInteraction(customID, "g1", "u1", "", "  ", "")
	p.handleListModal(context.Background(), i, p.todoV, customID)

	resp := session.lastResponse(t)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)

	items, err := p.todos.Items("g1", "u1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestListModalCapacityRejected(t *testing.T) {
	t.Parallel()
	session := newStubSession()
	p := newTestPlaton(t, session)

	batch := make([]string, 0, DailyTaskCapacity)
	for n := 0; n < DailyTaskCapacity; n++ {
		batch = append(batch, fmt.Sprintf("task %d", n))
	}
	_, err := p.todos.Add("g1", "u1", batch)
	require.NoError(t, err)

	customID := listCustomID{"todo", listActionModal, "u1", ""}
	i := modalInteraction(customID, "g1", "u1", "one too many")
	p.handleListModal(context.Background(), i, p.todoV, customID)

	resp := session.lastResponse(t)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
	assert.Contains(t, resp.Data.Content, fmt.Sprintf("%d", DailyTaskCapacity))

	items, err := p.todos.Items("g1", "u1")
	require.NoError(t, err)
	assert.Len(t, items, DailyTaskCapacity)
}

func TestQuestVariantRendersEpochWindow(t *testing.T) {
	t.Parallel()
	session := newStubSession()
	p := newTestPlaton(t, session)

	customID := listCustomID{"quest", listActionModal, "u1", ""}
	i := modalInteraction(customID, "g1", "u1", "run 5k")
	p.handleListModal(context.Background(), i, p.questV, customID)

	resp := session.lastResponse(t)
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)
	assert.Contains(t, resp.Data.Content, "주간퀘스트")
	assert.Contains(t, resp.Data.Content, "run 5k")

	epoch, err := p.quests.Epoch("g1", "u1")
	require.NoError(t, err)
	assert.Contains(t, resp.Data.Content, epoch.StartDate)
	assert.Contains(t, resp.Data.Content, epoch.EndDate())
}
