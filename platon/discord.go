package platon

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	DiscordSlashCommandTodo        = "할일"
	DiscordSlashCommandQuest       = "주간퀘"
	DiscordSlashCommandCoinPrice   = "코인시세"
	DiscordSlashCommandTopCoins    = "인기코인"
	DiscordSlashCommandMarketAlert = "코인알림설정"
	DiscordSlashCommandNews        = "뉴스조회"
	DiscordSlashCommandNewsAlert   = "뉴스알림설정"
	DiscordSlashCommandQuote       = "명언조회"
	DiscordSlashCommandQuoteAlert  = "명언알림설정"
	DiscordSlashCommandHelp        = "도움말"

	// coinPriceQueryOption is the option name for the coin query on the
	// 코인시세 command.
	coinPriceQueryOption = "코인"
)

// Discord manages the bot's gateway session: opening it, registering
// slash commands, and tracking connection state.
type Discord struct {
	session                     DiscordSessionHandler
	config                      *DiscordConfig
	logger                      *slog.Logger
	metricConnects              atomic.Int64
	metricDisconnects           atomic.Int64
	connected                   atomic.Bool
	discordgoRemoveHandlerFuncs []func()
	p                           *Platon
}

func newDiscord(config *DiscordConfig) *Discord {
	return &Discord{
		config:                      config,
		discordgoRemoveHandlerFuncs: []func(){},
	}
}

// newSession initializes a new Discord session for the Discord struct.
func (d *Discord) newSession() (DiscordSessionHandler, error) {
	session := DiscordSession{
		logger: d.logger.With(loggerNameKey, "discord_session_handler"),
	}
	disc, err := discordgo.New("Bot " + d.config.Token)
	if err != nil {
		return session, fmt.Errorf("error creating discord session: %w", err)
	}
	disc.SyncEvents = false
	disc.StateEnabled = false
	disc.Identify.Intents = d.config.GatewayIntents
	session.session = disc
	if d.config.httpClient != nil {
		disc.Client = d.config.httpClient
	}

	if err = session.SetLogLevel(d.config.DiscordGoLogLevel.Level()); err != nil {
		return session, err
	}

	return session, nil
}

// registerCommands sends the bot's commands to the discord bulk overwrite
// endpoint
func (d *Discord) registerCommands(
	options ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	commands := []*discordgo.ApplicationCommand{
		d.appCommandTodo(),
		d.appCommandQuest(),
		d.appCommandCoinPrice(),
		d.appCommandTopCoins(),
		d.appCommandNews(),
		d.appCommandQuote(),
		d.appCommandSetChannel(
			DiscordSlashCommandMarketAlert,
			"실시간 시세 알림을 받을 채널을 설정합니다",
		),
		d.appCommandSetChannel(
			DiscordSlashCommandNewsAlert,
			"주기적 뉴스 알림을 받을 채널을 설정합니다",
		),
		d.appCommandSetChannel(
			DiscordSlashCommandQuoteAlert,
			"매일 아침 명언을 받을 채널을 설정합니다",
		),
		d.appCommandHelp(),
	}

	created, err := d.session.ApplicationCommandBulkOverwrite(
		d.config.ApplicationID,
		d.config.GuildID,
		commands,
		options...,
	)
	if err != nil {
		d.logger.Error("error overwriting discord commands", tint.Err(err))
		return created, err
	}
	for _, c := range created {
		d.logger.Info("created command", "name", c.Name, "id", c.ID)
	}
	return created, nil
}

func (*Discord) appCommandTodo() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandTodo,
		Type:        discordgo.ChatApplicationCommand,
		Description: "개인 할 일 목록을 관리합니다",
	}
}

func (*Discord) appCommandQuest() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandQuest,
		Type:        discordgo.ChatApplicationCommand,
		Description: "주간퀘스트 체크리스트를 관리합니다",
	}
}

func (*Discord) appCommandCoinPrice() *discordgo.ApplicationCommand {
	minLength := 1
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandCoinPrice,
		Type:        discordgo.ChatApplicationCommand,
		Description: "암호화폐의 실시간 시세를 조회합니다",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        coinPriceQueryOption,
				Description: "코인 심볼 또는 이름 (예: BTC, 비트코인, ETH, 이더리움)",
				Required:    true,
				MinLength:   &minLength,
				MaxLength:   50,
			},
		},
	}
}

func (*Discord) appCommandTopCoins() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandTopCoins,
		Type:        discordgo.ChatApplicationCommand,
		Description: "거래대금 기준 TOP 5 코인과 비트코인 시세를 조회합니다",
	}
}

func (*Discord) appCommandNews() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandNews,
		Type:        discordgo.ChatApplicationCommand,
		Description: "실시간 뉴스를 확인합니다",
	}
}

func (*Discord) appCommandQuote() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandQuote,
		Type:        discordgo.ChatApplicationCommand,
		Description: "AI가 생성한 명언을 확인합니다",
	}
}

func (*Discord) appCommandSetChannel(
	name string,
	description string,
) *discordgo.ApplicationCommand {
	adminPermission := int64(discordgo.PermissionAdministrator)
	return &discordgo.ApplicationCommand{
		Name:                     name,
		Type:                     discordgo.ChatApplicationCommand,
		Description:              description,
		DefaultMemberPermissions: &adminPermission,
	}
}

func (*Discord) appCommandHelp() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        DiscordSlashCommandHelp,
		Type:        discordgo.ChatApplicationCommand,
		Description: "사용 가능한 모든 명령어를 확인합니다",
	}
}

func (d *Discord) handlerReady() func(
	s *discordgo.Session,
	r *discordgo.Ready,
) {
	return func(s *discordgo.Session, r *discordgo.Ready) {
		d.logger.Info(
			"ready",
			"session_id", r.SessionID,
			"user_id", r.User.ID,
			"username", r.User.Username,
		)
		if d.config.CustomStatus != "" {
			if err := d.session.UpdateCustomStatus(d.config.CustomStatus); err != nil {
				d.logger.Error("error setting custom status", tint.Err(err))
			}
		}
	}
}

func (d *Discord) handlerConnect() func(
	s *discordgo.Session,
	r *discordgo.Connect,
) {
	return func(s *discordgo.Session, r *discordgo.Connect) {
		d.metricConnects.Add(1)
		d.connected.Store(true)
		d.logger.Info("connected")

		if d.p == nil || d.config.StartupMessage == "" {
			return
		}
		channels := d.p.channels.get()
		if channels.QuoteChannelID == "" {
			return
		}
		if _, err := d.session.ChannelMessageSend(
			channels.QuoteChannelID,
			d.config.StartupMessage,
			discordgo.WithRetryOnRatelimit(false),
			discordgo.WithRestRetries(1),
		); err != nil {
			d.logger.Error("unable to send startup message", tint.Err(err))
		}
	}
}

func (d *Discord) handlerDisconnect() func(
	s *discordgo.Session,
	r *discordgo.Disconnect,
) {
	return func(s *discordgo.Session, r *discordgo.Disconnect) {
		d.connected.Store(false)
		d.metricDisconnects.Add(1)
		d.logger.Info("disconnected")
	}
}

// ackResponse defers the interaction so slow upstream calls can edit the
// response later. Loading for public lookups, ephemeral otherwise.
func (*Discord) ackResponse(commandName string) *discordgo.InteractionResponse {
	switch commandName {
	case DiscordSlashCommandCoinPrice,
		DiscordSlashCommandTopCoins,
		DiscordSlashCommandNews,
		DiscordSlashCommandQuote:
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		}
	default:
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Flags: discordgo.MessageFlagsEphemeral,
			},
		}
	}
}

// DiscordSessionHandler defines the subset of `discordgo.Session` methods
// used by this application, to enable testing/mocking.
type DiscordSessionHandler interface {
	// Open creates a websocket connection to Discord
	Open() error

	// Close closes the websocket connection to Discord
	Close() error

	// AddHandler adds a discord gateway event handler
	AddHandler(handler any) func()

	// ApplicationCommandBulkOverwrite overwrites the application's
	// slash commands in bulk
	ApplicationCommandBulkOverwrite(
		appID string,
		guildID string,
		commands []*discordgo.ApplicationCommand,
		options ...discordgo.RequestOption,
	) ([]*discordgo.ApplicationCommand, error)

	// InteractionRespond sends an interaction response to Discord
	InteractionRespond(
		interaction *discordgo.Interaction,
		resp *discordgo.InteractionResponse,
		options ...discordgo.RequestOption,
	) error

	// InteractionResponse gets the response to an interaction
	InteractionResponse(
		interaction *discordgo.Interaction,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// InteractionResponseEdit modifies the response to the given interaction
	InteractionResponseEdit(
		interaction *discordgo.Interaction,
		newresp *discordgo.WebhookEdit,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// ChannelMessageSend sends a message to the given channel
	ChannelMessageSend(
		channelID string,
		message string,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// ChannelMessageSendEmbed sends an embed to the given channel
	ChannelMessageSendEmbed(
		channelID string,
		embed *discordgo.MessageEmbed,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// ChannelMessageDelete deletes the given message
	ChannelMessageDelete(
		channelID string,
		messageID string,
		options ...discordgo.RequestOption,
	) error

	// UpdateCustomStatus sets the bot's user status to the given string
	UpdateCustomStatus(status string) error

	// SetLogLevel modifies the session's log level
	SetLogLevel(lvl slog.Level) error
}

// DiscordSession implements DiscordSessionHandler, wrapping a
// [discordgo.Session](https://pkg.go.dev/github.com/bwmarrin/discordgo#Session)
type DiscordSession struct {
	session *discordgo.Session
	logger  *slog.Logger
}

func (d DiscordSession) Open() error {
	return d.session.Open()
}

func (d DiscordSession) Close() error {
	return d.session.Close()
}

func (d DiscordSession) AddHandler(handler any) func() {
	return d.session.AddHandler(handler)
}

func (d DiscordSession) ApplicationCommandBulkOverwrite(
	appID string,
	guildID string,
	commands []*discordgo.ApplicationCommand,
	options ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	return d.session.ApplicationCommandBulkOverwrite(
		appID,
		guildID,
		commands,
		options...,
	)
}

func (d DiscordSession) InteractionRespond(
	interaction *discordgo.Interaction,
	resp *discordgo.InteractionResponse,
	options ...discordgo.RequestOption,
) error {
	return d.session.InteractionRespond(interaction, resp, options...)
}

func (d DiscordSession) InteractionResponse(
	interaction *discordgo.Interaction,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	msg, err := d.session.InteractionResponse(interaction, options...)
	if err != nil {
		d.logger.Error("error getting interaction response", tint.Err(err))
	}
	return msg, err
}

func (d DiscordSession) InteractionResponseEdit(
	interaction *discordgo.Interaction,
	newresp *discordgo.WebhookEdit,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.InteractionResponseEdit(interaction, newresp, options...)
}

func (d DiscordSession) ChannelMessageSend(
	channelID string,
	message string,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.ChannelMessageSend(channelID, message, options...)
}

func (d DiscordSession) ChannelMessageSendEmbed(
	channelID string,
	embed *discordgo.MessageEmbed,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.ChannelMessageSendEmbed(channelID, embed, options...)
}

func (d DiscordSession) ChannelMessageDelete(
	channelID string,
	messageID string,
	options ...discordgo.RequestOption,
) error {
	return d.session.ChannelMessageDelete(channelID, messageID, options...)
}

func (d DiscordSession) UpdateCustomStatus(status string) error {
	return d.session.UpdateCustomStatus(status)
}

func (d DiscordSession) SetLogLevel(lvl slog.Level) error {
	switch lvl.Level() {
	case slog.LevelInfo:
		d.session.LogLevel = discordgo.LogInformational
	case slog.LevelWarn:
		d.session.LogLevel = discordgo.LogWarning
	case slog.LevelDebug:
		d.session.LogLevel = discordgo.LogDebug
	case slog.LevelError:
		d.session.LogLevel = discordgo.LogError
	default:
		return fmt.Errorf("invalid log level: %s", lvl)
	}
	return nil
}
