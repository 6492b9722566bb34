package platon

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"github.com/robfig/cron/v3"
)

// Cron expressions, evaluated in KST.
const (
	// scheduleDailyReset clears every daily to-do list at midnight.
	scheduleDailyReset = "0 0 * * *"

	// scheduleMorningQuote sends the quote of the day at 09:00.
	scheduleMorningQuote = "0 9 * * *"

	// schedulePeriodic sends the news and market broadcasts every three
	// hours, on the hour.
	schedulePeriodic = "0 */3 * * *"
)

// newScheduler builds the cron runner for the bot's recurring jobs. Jobs
// are wrapped with SkipIfStillRunning so a slow upstream call can never
// stack a second run of the same job, and Recover so a panicking job
// doesn't take down the runner.
func (p *Platon) newScheduler() *cron.Cron {
	cronLogger := &cronSlogAdapter{logger: p.logger.With(loggerNameKey, "cron")}
	c := cron.New(
		cron.WithLocation(seoul),
		cron.WithChain(
			cron.SkipIfStillRunning(cronLogger),
			cron.Recover(cronLogger),
		),
	)

	mustSchedule(c, p.logger, scheduleDailyReset, p.runDailyReset)
	mustSchedule(c, p.logger, scheduleMorningQuote, func() {
		p.broadcastQuote(context.Background())
	})
	mustSchedule(c, p.logger, schedulePeriodic, func() {
		ctx := context.Background()
		p.broadcastNews(ctx)
		p.broadcastMarkets(ctx)
	})
	return c
}

// mustSchedule panics on a bad expression; the expressions above are
// constants, so this can only fire on a programming error.
func mustSchedule(c *cron.Cron, logger *slog.Logger, spec string, job func()) {
	if _, err := c.AddFunc(spec, job); err != nil {
		logger.Error("invalid cron expression", "spec", spec, tint.Err(err))
		panic(err)
	}
}

// runDailyReset clears every daily to-do list and the tracked list
// messages, so the first command of the new day renders a fresh empty
// list. Weekly quests roll over lazily on their own schedule and are not
// touched here.
func (p *Platon) runDailyReset() {
	p.todos.Reset()
	p.todoTracker.Reset()
	p.metricDailyResets.Add(1)
	p.logger.Info("daily reset complete")
}

// broadcastQuote sends the quote of the day to the configured quote
// channel. Generation failures inside the generator degrade to the
// fallback quote, so this only skips when no channel is set.
func (p *Platon) broadcastQuote(ctx context.Context) {
	channelID := p.channels.get().QuoteChannelID
	if channelID == "" {
		p.logger.Debug("no quote channel configured; skipping broadcast")
		return
	}
	quote := p.quotes.Generate(ctx)
	if _, err := p.discord.session.ChannelMessageSendEmbed(
		channelID,
		quoteEmbed(quote),
	); err != nil {
		p.logger.Error("error sending quote broadcast", tint.Err(err))
	}
}

// broadcastNews sends the current headline ranking to the configured news
// channel.
func (p *Platon) broadcastNews(ctx context.Context) {
	channelID := p.channels.get().NewsChannelID
	if channelID == "" {
		p.logger.Debug("no news channel configured; skipping broadcast")
		return
	}
	headlines, err := p.news.Headlines(ctx)
	if err != nil {
		p.logger.Error("error fetching headlines for broadcast", tint.Err(err))
		return
	}
	if _, err = p.discord.session.ChannelMessageSendEmbed(
		channelID,
		newsEmbed(headlines),
	); err != nil {
		p.logger.Error("error sending news broadcast", tint.Err(err))
	}
}

// broadcastMarkets sends the market snapshot to the configured market
// channel.
func (p *Platon) broadcastMarkets(ctx context.Context) {
	channelID := p.channels.get().MarketChannelID
	if channelID == "" {
		p.logger.Debug("no market channel configured; skipping broadcast")
		return
	}
	embed, err := p.marketSummaryEmbed(ctx)
	if err != nil {
		p.logger.Error("error building market broadcast", tint.Err(err))
		return
	}
	if _, err = p.discord.session.ChannelMessageSendEmbed(
		channelID,
		embed,
	); err != nil {
		p.logger.Error("error sending market broadcast", tint.Err(err))
	}
}

// marketSummaryEmbed fetches the bitcoin snapshot and top markets and
// renders them as one embed. Shared by the broadcast and the 인기코인
// command.
func (p *Platon) marketSummaryEmbed(ctx context.Context) (*discordgo.MessageEmbed, error) {
	btc, top, names, err := p.upbit.MarketSnapshot(ctx, topMarketCount)
	if err != nil {
		return nil, err
	}
	return topMarketsEmbed(btc, top, names), nil
}

// cronSlogAdapter bridges the cron logger interface onto slog.
type cronSlogAdapter struct {
	logger *slog.Logger
}

func (a *cronSlogAdapter) Info(msg string, keysAndValues ...any) {
	a.logger.Info(msg, keysAndValues...)
}

func (a *cronSlogAdapter) Error(err error, msg string, keysAndValues ...any) {
	attrs := append([]any{tint.Err(err)}, keysAndValues...)
	a.logger.Error(msg, attrs...)
}
