package platon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// Platon is the bot: the gateway session, the list stores, the upstream
// data clients, the broadcast scheduler, and the status API, wired
// together by New and driven by Run.
type Platon struct {
	config  *Config
	logger  *slog.Logger
	discord *Discord

	db      *gorm.DB
	writeDB *writeDB

	todos  *TaskStore
	quests *QuestStore

	todoTracker  *MessageTracker
	questTracker *MessageTracker

	todoV  *listVariant
	questV *listVariant

	channels *channelCache

	upbit  *UpbitClient
	news   *NewsClient
	quotes *QuoteGenerator

	cron *cron.Cron
	api  *API

	httpClient *http.Client
	startedAt  time.Time

	metricCommands    atomic.Int64
	metricComponents  atomic.Int64
	metricDailyResets atomic.Int64
}

// New creates a Platon bot from the given config. The database and
// gateway session are not opened until Run.
func New(config *Config) (*Platon, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := slog.New(newLogHandler(config.LogLevel))
	slog.SetDefault(logger)

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.HTTPTimeout}
	}

	p := &Platon{
		config:       config,
		logger:       logger,
		httpClient:   httpClient,
		todos:        NewTaskStore(),
		todoTracker:  NewMessageTracker(),
		questTracker: NewMessageTracker(),
		startedAt:    time.Now(),
	}

	p.discord = newDiscord(config.Discord)
	p.discord.logger = slog.New(
		newLogHandler(config.Discord.LogLevel),
	).With(loggerNameKey, "discord")
	p.discord.config.httpClient = httpClient
	p.discord.p = p

	p.upbit = newUpbitClient(config.Upbit, httpClient, logger)
	p.news = newNewsClient(config.News, httpClient, logger)
	p.quotes = newQuoteGenerator(
		config.OpenAI,
		httpClient,
		slog.New(newLogHandler(config.OpenAI.LogLevel)),
	)

	return p, nil
}

// Run opens the database and gateway session, registers commands, starts
// the scheduler and status API, and blocks until ctx is canceled, then
// shuts everything down gracefully.
func (p *Platon) Run(ctx context.Context) error {
	startupCtx, startupCancel := context.WithTimeout(ctx, p.config.StartupTimeout)
	defer startupCancel()

	db, err := newDatabase(
		startupCtx,
		p.config,
		newLogHandler(p.config.DatabaseLogLevel),
	)
	if err != nil {
		return err
	}
	p.db = db
	p.writeDB = newWriteDB(db, p.logger)
	p.quests = NewQuestStore(db, p.writeDB, p.logger)
	p.channels, err = loadChannelSettings(startupCtx, db, p.writeDB)
	if err != nil {
		return err
	}
	p.todoV = p.todoVariant()
	p.questV = p.questVariant()

	session, err := p.discord.newSession()
	if err != nil {
		return err
	}
	p.discord.session = session
	discordgo.Logger = discordgoLoggerFunc(
		ctx,
		newLogHandler(p.config.Discord.DiscordGoLogLevel),
	)

	p.discord.discordgoRemoveHandlerFuncs = []func(){
		session.AddHandler(p.discord.handlerReady()),
		session.AddHandler(p.discord.handlerConnect()),
		session.AddHandler(p.discord.handlerDisconnect()),
		session.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
			p.handleInteraction(ctx, i)
		}),
	}

	if err = session.Open(); err != nil {
		return fmt.Errorf("error opening discord session: %w", err)
	}
	if _, err = p.discord.registerCommands(
		discordgo.WithContext(startupCtx),
	); err != nil {
		_ = session.Close()
		return fmt.Errorf("error registering commands: %w", err)
	}

	p.cron = p.newScheduler()
	p.cron.Start()

	// startedAt is set in New: the status API goroutine below reads it,
	// so it must never be written once Serve is running.
	apiErr := make(chan error, 1)
	if p.config.API.Enabled {
		p.api = newAPI(p, p.config.API)
		go func() {
			apiErr <- p.api.Serve()
		}()
	}

	p.logger.Info("startup complete")

	select {
	case <-ctx.Done():
	case err = <-apiErr:
		p.logger.Error("status API failed", tint.Err(err))
	}

	p.shutdown(err)
	return err
}

func (p *Platon) shutdown(runErr error) {
	p.logger.Info("shutting down", tint.Err(runErr))

	cronCtx := p.cron.Stop()
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		p.config.ShutdownTimeout,
	)
	defer cancel()

	select {
	case <-cronCtx.Done():
	case <-shutdownCtx.Done():
		p.logger.Warn("timed out waiting for running jobs")
	}

	if p.api != nil {
		if err := p.api.Shutdown(shutdownCtx); err != nil {
			p.logger.Error("error stopping status API", tint.Err(err))
		}
	}

	for _, removeHandler := range p.discord.discordgoRemoveHandlerFuncs {
		removeHandler()
	}
	if err := p.discord.session.Close(); err != nil {
		p.logger.Error("error closing discord session", tint.Err(err))
	}
	p.logger.Info("shutdown complete")
}

// variantFor resolves the list variant a component custom ID belongs to.
func (p *Platon) variantFor(name string) *listVariant {
	switch name {
	case p.todoV.name:
		return p.todoV
	case p.questV.name:
		return p.questV
	default:
		return nil
	}
}

// handleInteraction dispatches every gateway interaction: slash commands
// by name, component and modal interactions by the variant prefix of
// their custom ID.
func (p *Platon) handleInteraction(ctx context.Context, i *discordgo.InteractionCreate) {
	logger := p.logger.With(interactionLogAttrs(i)...)

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		p.metricCommands.Add(1)
		name := i.ApplicationCommandData().Name
		logger.InfoContext(ctx, "command received", "command", name)
		p.handleCommand(ctx, i, name)
	case discordgo.InteractionMessageComponent:
		p.metricComponents.Add(1)
		customID, err := decodeListCustomID(i.MessageComponentData().CustomID)
		if err != nil {
			logger.WarnContext(ctx, "undecodable component custom_id", tint.Err(err))
			return
		}
		v := p.variantFor(customID.Variant)
		if v == nil {
			logger.WarnContext(ctx, "unknown component variant", "variant", customID.Variant)
			return
		}
		p.handleListComponent(ctx, i, v, customID)
	case discordgo.InteractionModalSubmit:
		p.metricComponents.Add(1)
		customID, err := decodeListCustomID(i.ModalSubmitData().CustomID)
		if err != nil {
			logger.WarnContext(ctx, "undecodable modal custom_id", tint.Err(err))
			return
		}
		v := p.variantFor(customID.Variant)
		if v == nil {
			logger.WarnContext(ctx, "unknown modal variant", "variant", customID.Variant)
			return
		}
		p.handleListModal(ctx, i, v, customID)
	default:
		logger.WarnContext(ctx, "unhandled interaction type")
	}
}

func (p *Platon) handleCommand(ctx context.Context, i *discordgo.InteractionCreate, name string) {
	// list commands respond with their message directly; everything else
	// defers first so upstream latency can't blow the 3-second window
	switch name {
	case DiscordSlashCommandTodo:
		p.handleListCommand(ctx, i, p.todoV)
		return
	case DiscordSlashCommandQuest:
		p.handleListCommand(ctx, i, p.questV)
		return
	}

	if err := p.discord.session.InteractionRespond(
		i.Interaction,
		p.discord.ackResponse(name),
		discordgo.WithContext(ctx),
	); err != nil {
		p.logger.ErrorContext(ctx, "error acknowledging command", tint.Err(err))
		return
	}

	switch name {
	case DiscordSlashCommandCoinPrice:
		p.handleCoinPrice(ctx, i)
	case DiscordSlashCommandTopCoins:
		p.handleTopCoins(ctx, i)
	case DiscordSlashCommandNews:
		p.handleNews(ctx, i)
	case DiscordSlashCommandQuote:
		p.handleQuote(ctx, i)
	case DiscordSlashCommandMarketAlert,
		DiscordSlashCommandNewsAlert,
		DiscordSlashCommandQuoteAlert:
		p.handleSetChannel(ctx, i, name)
	case DiscordSlashCommandHelp:
		p.handleHelp(ctx, i)
	default:
		p.logger.WarnContext(ctx, "unknown command", "command", name)
		p.editResponseContent(ctx, i, DiscordErrorMessage)
	}
}

// editResponseContent replaces a deferred response with plain text.
func (p *Platon) editResponseContent(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	content string,
) {
	if _, err := p.discord.session.InteractionResponseEdit(
		i.Interaction,
		&discordgo.WebhookEdit{Content: &content},
		discordgo.WithContext(ctx),
	); err != nil {
		p.logger.ErrorContext(ctx, "error editing response", tint.Err(err))
	}
}

// editResponseEmbed replaces a deferred response with an embed.
func (p *Platon) editResponseEmbed(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	embed *discordgo.MessageEmbed,
) {
	if _, err := p.discord.session.InteractionResponseEdit(
		i.Interaction,
		&discordgo.WebhookEdit{Embeds: &[]*discordgo.MessageEmbed{embed}},
		discordgo.WithContext(ctx),
	); err != nil {
		p.logger.ErrorContext(ctx, "error editing response", tint.Err(err))
	}
}

func (p *Platon) handleCoinPrice(ctx context.Context, i *discordgo.InteractionCreate) {
	opt, ok := discordInteractionOptions(i)[coinPriceQueryOption]
	if !ok {
		p.editResponseContent(ctx, i, DiscordErrorMessage)
		return
	}
	query := opt.StringValue()
	symbol := findSymbol(query)

	tickers, err := p.upbit.Tickers(ctx, "KRW-"+symbol)
	if err != nil || len(tickers) == 0 {
		if err != nil {
			p.logger.WarnContext(
				ctx,
				"coin lookup failed",
				"query", query,
				"symbol", symbol,
				tint.Err(err),
			)
		}
		p.editResponseContent(ctx, i, fmt.Sprintf(
			"'%s' 코인을 찾을 수 없습니다. 심볼(BTC) 또는 한글명(비트코인)으로 검색해주세요.",
			truncate(query, 50),
		))
		return
	}
	// bitcoin also gets its dollar-market quote
	var usdt *UpbitTicker
	if symbol == "BTC" {
		usdtTickers, usdtErr := p.upbit.Tickers(ctx, usdtBitcoinMarket)
		if usdtErr != nil {
			p.logger.WarnContext(ctx, "usdt market lookup failed", tint.Err(usdtErr))
		} else if len(usdtTickers) > 0 {
			usdt = &usdtTickers[0]
		}
	}
	p.editResponseEmbed(ctx, i, priceEmbed(symbol, tickers[0], usdt))
}

func (p *Platon) handleTopCoins(ctx context.Context, i *discordgo.InteractionCreate) {
	embed, err := p.marketSummaryEmbed(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "error building market summary", tint.Err(err))
		p.editResponseContent(ctx, i, DiscordErrorMessage)
		return
	}
	p.editResponseEmbed(ctx, i, embed)
}

func (p *Platon) handleNews(ctx context.Context, i *discordgo.InteractionCreate) {
	headlines, err := p.news.Headlines(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "error fetching headlines", tint.Err(err))
		p.editResponseContent(ctx, i, DiscordErrorMessage)
		return
	}
	p.editResponseEmbed(ctx, i, newsEmbed(headlines))
}

func (p *Platon) handleQuote(ctx context.Context, i *discordgo.InteractionCreate) {
	p.editResponseEmbed(ctx, i, quoteEmbed(p.quotes.Generate(ctx)))
}

// handleSetChannel records the invoking channel as the broadcast target
// for the given alert command. Discord already gates these commands on
// the administrator permission; the isAdmin check backstops servers that
// loosened the command permissions.
func (p *Platon) handleSetChannel(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	name string,
) {
	if i.GuildID == "" {
		p.editResponseContent(ctx, i, listGuildOnlyMessage)
		return
	}
	if !isAdmin(i) {
		p.editResponseContent(ctx, i, "관리자만 알림 채널을 설정할 수 있습니다.")
		return
	}

	var what string
	err := p.channels.update(ctx, func(cs *ChannelSettings) {
		switch name {
		case DiscordSlashCommandMarketAlert:
			cs.MarketChannelID = i.ChannelID
			what = "실시간 시세"
		case DiscordSlashCommandNewsAlert:
			cs.NewsChannelID = i.ChannelID
			what = "뉴스"
		case DiscordSlashCommandQuoteAlert:
			cs.QuoteChannelID = i.ChannelID
			what = "아침 명언"
		}
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "error saving channel settings", tint.Err(err))
		p.editResponseContent(ctx, i, DiscordErrorMessage)
		return
	}
	p.logger.InfoContext(
		ctx,
		"alert channel updated",
		"command", name,
		"channel_id", i.ChannelID,
	)
	p.editResponseContent(ctx, i, fmt.Sprintf(
		"✅ 이제 <#%s> 채널에서 %s 알림을 받습니다.",
		i.ChannelID,
		what,
	))
}

func (p *Platon) handleHelp(ctx context.Context, i *discordgo.InteractionCreate) {
	p.editResponseEmbed(ctx, i, helpEmbed())
}

func helpEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "📖 명령어 안내",
		Color: colorEven,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "📋 체크리스트",
				Value: fmt.Sprintf(
					"`/%s` 오늘의 할 일 목록 (매일 자정 초기화, 최대 %d개)\n"+
						"`/%s` 주간퀘스트 체크리스트 (7일 주기, 최대 %d개)",
					DiscordSlashCommandTodo, DailyTaskCapacity,
					DiscordSlashCommandQuest, WeeklyQuestCapacity,
				),
			},
			{
				Name: "📈 코인",
				Value: fmt.Sprintf(
					"`/%s` 코인 시세 조회 (심볼 또는 한글명)\n"+
						"`/%s` 거래대금 TOP %d + 비트코인",
					DiscordSlashCommandCoinPrice,
					DiscordSlashCommandTopCoins, topMarketCount,
				),
			},
			{
				Name: "📰 뉴스 / 💬 명언",
				Value: fmt.Sprintf(
					"`/%s` 실시간 인기 뉴스\n`/%s` AI 명언 생성",
					DiscordSlashCommandNews,
					DiscordSlashCommandQuote,
				),
			},
			{
				Name: "🔔 알림 설정 (관리자)",
				Value: fmt.Sprintf(
					"`/%s` 3시간마다 시세 알림\n"+
						"`/%s` 3시간마다 뉴스 알림\n"+
						"`/%s` 매일 오전 9시 명언 알림",
					DiscordSlashCommandMarketAlert,
					DiscordSlashCommandNewsAlert,
					DiscordSlashCommandQuoteAlert,
				),
			},
		},
	}
}
