// Package platon implements a Discord bot for a single Korean-language
// community: interactive per-user task lists, Upbit cryptocurrency prices,
// a Naver news ranking digest, and an AI-generated daily quote.
//
// Key components of the package include:
//
//   - Platon: The main struct tying the bot together and running its lifecycle.
//   - Discord: Gateway session management and slash command registration.
//   - TaskStore / QuestStore: Per-(guild, user) list state. Daily to-do lists
//     live in memory and reset at midnight KST; weekly quest checklists are
//     persisted to SQLite and roll over lazily once their 7-day window ends.
//   - MessageTracker: Remembers the most recent rendered list message per
//     scope so a fresh command replaces it instead of stacking duplicates.
//   - UpbitClient / NewsClient / QuoteGenerator: Outbound integrations, each
//     run on its own goroutine behind a deferred interaction ack.
//
// Scheduled work (midnight reset, 09:00 quote, 3-hourly news and market
// broadcasts) runs on a single cron instance pinned to Asia/Seoul, with
// overlapping runs skipped rather than queued.
package platon
