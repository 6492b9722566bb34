package platon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	listActionAdd    = "add"
	listActionModal  = "modal"
	listActionToggle = "toggle"
	listActionDelete = "del"

	// listModalInputCount is the number of text inputs on the add modal.
	// The first is mandatory, the rest optional.
	listModalInputCount = 3

	// selectOptionLabelMaxLength bounds item text shown in select menu
	// options. Discord allows 100; item texts already fit, the truncate is
	// for the completed-marker prefix.
	selectOptionLabelMaxLength = 90

	listGuildOnlyMessage = "이 명령어는 서버에서만 사용할 수 있습니다."
	listNotYoursMessage  = "자신의 목록만 수정할 수 있습니다."
)

// listVariant binds one list flavor (daily to-do, weekly quest) to its
// store, tracker, and renderer. The control surface logic below is shared;
// only the variant data differs.
type listVariant struct {
	// name prefixes every component custom ID for this variant
	name string

	command          string
	addLabel         string
	modalTitle       string
	inputLabel       string
	inputPlaceholder string
	togglePrompt     string
	deletePrompt     string

	store   ListStore
	tracker *MessageTracker

	// render builds the message body for the scope's current items
	render func(displayName string, guildID, userID string, items []TaskItem) string
}

// listCustomID is the decoded form of a component custom ID,
// `variant:action:ownerID:itemID`. Controls carry the list owner so
// ownership can be checked without re-parsing rendered content, and item
// IDs instead of positions so stale controls can't hit the wrong item.
type listCustomID struct {
	Variant string
	Action  string
	OwnerID string
	ItemID  string
}

func (c listCustomID) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", c.Variant, c.Action, c.OwnerID, c.ItemID)
}

func decodeListCustomID(customID string) (listCustomID, error) {
	parts := strings.SplitN(customID, ":", 4)
	if len(parts) != 4 {
		return listCustomID{}, fmt.Errorf("invalid custom_id format: %q", customID)
	}
	return listCustomID{
		Variant: parts[0],
		Action:  parts[1],
		OwnerID: parts[2],
		ItemID:  parts[3],
	}, nil
}

// listComponents builds the control set bound to one rendered list
// message: an add button, and (when items exist) a toggle select and a
// delete select, one option per item. Selects keep the surface within
// Discord's five-row limit at the daily capacity of 19, where per-item
// button pairs cannot fit.
func listComponents(v *listVariant, ownerID string, items []TaskItem) []discordgo.MessageComponent {
	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    v.addLabel,
					Style:    discordgo.PrimaryButton,
					Emoji:    &discordgo.ComponentEmoji{Name: "📝"},
					CustomID: listCustomID{v.name, listActionAdd, ownerID, ""}.String(),
				},
			},
		},
	}
	if len(items) == 0 {
		return components
	}

	toggleOptions := make([]discordgo.SelectMenuOption, 0, len(items))
	deleteOptions := make([]discordgo.SelectMenuOption, 0, len(items))
	for _, item := range items {
		marker := "⬜"
		if item.Completed {
			marker = "✅"
		}
		toggleOptions = append(toggleOptions, discordgo.SelectMenuOption{
			Label: truncate(item.Text, selectOptionLabelMaxLength),
			Value: item.ID,
			Emoji: &discordgo.ComponentEmoji{Name: marker},
		})
		deleteOptions = append(deleteOptions, discordgo.SelectMenuOption{
			Label: truncate(item.Text, selectOptionLabelMaxLength),
			Value: item.ID,
			Emoji: &discordgo.ComponentEmoji{Name: "🗑️"},
		})
	}

	components = append(
		components,
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    listCustomID{v.name, listActionToggle, ownerID, ""}.String(),
					Placeholder: v.togglePrompt,
					Options:     toggleOptions,
				},
			},
		},
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    listCustomID{v.name, listActionDelete, ownerID, ""}.String(),
					Placeholder: v.deletePrompt,
					Options:     deleteOptions,
				},
			},
		},
	)
	return components
}

// listAddModal is the structured input collecting up to three new item
// texts at once.
func listAddModal(v *listVariant, ownerID string) *discordgo.InteractionResponse {
	components := make([]discordgo.MessageComponent, 0, listModalInputCount)
	for n := 1; n <= listModalInputCount; n++ {
		components = append(components, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    fmt.Sprintf("task_%d", n),
					Label:       fmt.Sprintf(v.inputLabel, n),
					Style:       discordgo.TextInputShort,
					Placeholder: fmt.Sprintf(v.inputPlaceholder, n),
					Required:    n == 1,
					MaxLength:   taskTextMaxLength,
				},
			},
		})
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   listCustomID{v.name, listActionModal, ownerID, ""}.String(),
			Title:      v.modalTitle,
			Components: components,
		},
	}
}

// modalTexts extracts the submitted input values, in input order.
func modalTexts(modalData discordgo.ModalSubmitInteractionData) []string {
	var texts []string
	for _, component := range modalData.Components {
		if component.Type() != discordgo.ActionsRowComponent {
			continue
		}
		actionsRow, ok := component.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, rowComponent := range actionsRow.Components {
			textInput, ok := rowComponent.(*discordgo.TextInput)
			if !ok {
				continue
			}
			texts = append(texts, textInput.Value)
		}
	}
	return texts
}

// handleListCommand handles a fresh /할일 or /주간퀘 invocation: the
// previously tracked message for the scope is best-effort deleted, then
// the list is rendered and sent with a fresh control surface, and the new
// message recorded.
func (p *Platon) handleListCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	v *listVariant,
) {
	logger := p.logger.With(loggerNameKey, v.command)
	if i.GuildID == "" {
		p.respondEphemeral(ctx, i, listGuildOnlyMessage)
		return
	}
	user := getDiscordUser(i)
	if user == nil {
		return
	}

	if prev, ok := v.tracker.Get(i.GuildID, user.ID); ok {
		// stale or already-deleted messages are expected steady-state
		if err := p.discord.session.ChannelMessageDelete(
			prev.ChannelID,
			prev.MessageID,
			discordgo.WithContext(ctx),
		); err != nil {
			logger.DebugContext(ctx, "could not delete superseded message", tint.Err(err))
		}
	}

	items, err := v.store.Items(i.GuildID, user.ID)
	if err != nil {
		logger.ErrorContext(ctx, "error loading list", tint.Err(err))
		p.respondEphemeral(ctx, i, DiscordErrorMessage)
		return
	}

	err = p.discord.session.InteractionRespond(
		i.Interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content:    v.render(displayName(i), i.GuildID, user.ID, items),
				Components: listComponents(v, user.ID, items),
			},
		},
		discordgo.WithContext(ctx),
	)
	if err != nil {
		logger.ErrorContext(ctx, "error responding to command", tint.Err(err))
		return
	}

	msg, err := p.discord.session.InteractionResponse(
		i.Interaction,
		discordgo.WithContext(ctx),
	)
	if err != nil {
		logger.ErrorContext(ctx, "error fetching sent message", tint.Err(err))
		return
	}
	v.tracker.Track(
		i.GuildID,
		user.ID,
		TrackedMessage{ChannelID: i.ChannelID, MessageID: msg.ID},
	)
}

// handleListComponent dispatches a button push or select choice on a list
// message. The actor must be the owner encoded in the custom ID; anyone
// else gets a visible rejection and no mutation happens.
func (p *Platon) handleListComponent(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	v *listVariant,
	customID listCustomID,
) {
	logger := p.logger.With(
		loggerNameKey, v.command,
		"custom_id", customID.String(),
	)
	user := getDiscordUser(i)
	if user == nil {
		return
	}
	if user.ID != customID.OwnerID {
		p.respondEphemeral(ctx, i, listNotYoursMessage)
		return
	}

	switch customID.Action {
	case listActionAdd:
		if err := p.discord.session.InteractionRespond(
			i.Interaction,
			listAddModal(v, user.ID),
			discordgo.WithContext(ctx),
		); err != nil {
			logger.ErrorContext(ctx, "error opening add modal", tint.Err(err))
		}
	case listActionToggle, listActionDelete:
		values := i.MessageComponentData().Values
		if len(values) == 0 {
			return
		}
		itemID := values[0]

		var items []TaskItem
		var err error
		if customID.Action == listActionToggle {
			items, err = v.store.Toggle(i.GuildID, user.ID, itemID)
		} else {
			items, err = v.store.Delete(i.GuildID, user.ID, itemID)
		}
		switch {
		case errors.Is(err, ErrItemNotFound):
			// a concurrent interaction removed it first; the re-render
			// below brings the surface back in sync
			logger.WarnContext(ctx, "control referenced missing item", "item_id", itemID)
		case err != nil:
			logger.ErrorContext(ctx, "error updating list", tint.Err(err))
			p.respondEphemeral(ctx, i, DiscordErrorMessage)
			return
		}
		p.updateListMessage(ctx, i, v, logger, user.ID, items)
	default:
		logger.WarnContext(ctx, "unknown list action")
	}
}

// handleListModal commits an add-modal submission. Producing zero new
// items (all fields blank) still succeeds and re-renders unchanged. A
// batch that would exceed the capacity is rejected whole.
func (p *Platon) handleListModal(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	v *listVariant,
	customID listCustomID,
) {
	logger := p.logger.With(loggerNameKey, v.command)
	user := getDiscordUser(i)
	if user == nil {
		return
	}
	if user.ID != customID.OwnerID {
		p.respondEphemeral(ctx, i, listNotYoursMessage)
		return
	}

	items, err := v.store.Add(i.GuildID, user.ID, modalTexts(i.ModalSubmitData()))
	var capErr CapacityError
	switch {
	case errors.As(err, &capErr):
		p.respondEphemeral(ctx, i, fmt.Sprintf(
			"최대 %d개까지만 등록할 수 있습니다. 입력한 항목은 추가되지 않았습니다.",
			capErr.Limit,
		))
		return
	case err != nil:
		logger.ErrorContext(ctx, "error adding items", tint.Err(err))
		p.respondEphemeral(ctx, i, DiscordErrorMessage)
		return
	}
	p.updateListMessage(ctx, i, v, logger, user.ID, items)
}

// updateListMessage re-renders the list and atomically replaces the
// message content and control set in place.
func (p *Platon) updateListMessage(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	v *listVariant,
	logger *slog.Logger,
	ownerID string,
	items []TaskItem,
) {
	err := p.discord.session.InteractionRespond(
		i.Interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Content:    v.render(displayName(i), i.GuildID, ownerID, items),
				Components: listComponents(v, ownerID, items),
			},
		},
		discordgo.WithContext(ctx),
	)
	if err != nil {
		logger.ErrorContext(ctx, "error updating list message", tint.Err(err))
	}
}

// respondEphemeral sends a short reply visible only to the invoking user.
func (p *Platon) respondEphemeral(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	content string,
) {
	err := p.discord.session.InteractionRespond(
		i.Interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: content,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		},
		discordgo.WithContext(ctx),
	)
	if err != nil {
		p.logger.ErrorContext(ctx, "error sending ephemeral response", tint.Err(err))
	}
}

// todoVariant builds the daily to-do list variant.
func (p *Platon) todoVariant() *listVariant {
	v := &listVariant{
		name:             "todo",
		command:          DiscordSlashCommandTodo,
		addLabel:         "할 일 추가하기",
		modalTitle:       "할 일 추가",
		inputLabel:       "할 일 %d",
		inputPlaceholder: "%d번째 할 일을 입력하세요",
		togglePrompt:     "완료 상태를 전환할 할 일 선택",
		deletePrompt:     "삭제할 할 일 선택",
		store:            p.todos,
		tracker:          p.todoTracker,
	}
	v.render = func(name, _, _ string, items []TaskItem) string {
		return renderDailyList(name, koreanDate(time.Now()), items)
	}
	return v
}

// questVariant builds the weekly quest checklist variant.
func (p *Platon) questVariant() *listVariant {
	v := &listVariant{
		name:             "quest",
		command:          DiscordSlashCommandQuest,
		addLabel:         "퀘스트 추가하기",
		modalTitle:       "주간퀘스트 추가",
		inputLabel:       "퀘스트 %d",
		inputPlaceholder: "%d번째 퀘스트를 입력하세요",
		togglePrompt:     "완료 상태를 전환할 퀘스트 선택",
		deletePrompt:     "삭제할 퀘스트 선택",
		store:            p.quests,
		tracker:          p.questTracker,
	}
	v.render = func(name, guildID, userID string, items []TaskItem) string {
		epoch, err := p.quests.Epoch(guildID, userID)
		if err != nil {
			p.logger.Error("error loading quest epoch for render", tint.Err(err))
			return renderWeeklyList(name, dateStamp(time.Now()), dateStamp(time.Now()), items)
		}
		return renderWeeklyList(name, epoch.StartDate, epoch.EndDate(), items)
	}
	return v
}
