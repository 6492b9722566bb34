package platon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/bwmarrin/discordgo"
)

const (
	// newsHeadlineCount is how many ranked headlines a lookup or broadcast
	// includes.
	newsHeadlineCount = 10

	newsEmbedColor = 0x03C75A

	// newsUserAgent is sent with scrape requests; the ranking page serves
	// a degraded layout to clients without a browser-ish UA.
	newsUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Headline is one entry scraped from the press ranking page.
type Headline struct {
	Rank  string
	Title string
	URL   string
}

// NewsClient scrapes the most-viewed headlines from a Naver press ranking
// page. Scraping is inherently tied to the page markup; selector misses
// return an error rather than an empty result so layout changes surface in
// the logs.
type NewsClient struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

func newNewsClient(
	cfg *NewsConfig,
	httpClient *http.Client,
	logger *slog.Logger,
) *NewsClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &NewsClient{
		url:        cfg.URL,
		httpClient: httpClient,
		logger:     logger.With(loggerNameKey, "news"),
	}
}

// Headlines fetches and parses the ranking page, returning at most
// newsHeadlineCount entries in rank order.
func (c *NewsClient) Headlines(ctx context.Context) ([]Headline, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating news request: %w", err)
	}
	req.Header.Set("User-Agent", newsUserAgent)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching news page: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.logger.DebugContext(
		ctx,
		"news page response",
		"status", resp.StatusCode,
		"duration", time.Since(started),
	)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news page returned %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error parsing news page: %w", err)
	}
	return parseHeadlines(doc)
}

func parseHeadlines(doc *goquery.Document) ([]Headline, error) {
	var headlines []Headline
	doc.Find("ul.press_ranking_list > li.as_thumb").EachWithBreak(
		func(_ int, s *goquery.Selection) bool {
			title := strings.TrimSpace(s.Find("strong.list_title").Text())
			if title == "" {
				return true
			}
			link, _ := s.Find("a._es_pc_link").Attr("href")
			rank := strings.TrimSpace(s.Find("em.list_ranking_num").Text())
			headlines = append(headlines, Headline{
				Rank:  rank,
				Title: title,
				URL:   link,
			})
			return len(headlines) < newsHeadlineCount
		},
	)
	if len(headlines) == 0 {
		return nil, fmt.Errorf("no headlines found; page layout may have changed")
	}
	return headlines, nil
}

// newsEmbed renders the ranked headlines as one embed.
func newsEmbed(headlines []Headline) *discordgo.MessageEmbed {
	var b strings.Builder
	for _, h := range headlines {
		rank := h.Rank
		if rank == "" {
			rank = "-"
		}
		if h.URL != "" {
			fmt.Fprintf(&b, "**%s.** [%s](%s)\n", rank, h.Title, h.URL)
		} else {
			fmt.Fprintf(&b, "**%s.** %s\n", rank, h.Title)
		}
	}
	return &discordgo.MessageEmbed{
		Title:       "📰 실시간 인기 뉴스",
		Description: b.String(),
		Color:       newsEmbedColor,
		Footer:      &discordgo.MessageEmbedFooter{Text: "출처: 네이버 뉴스"},
		Timestamp:   time.Now().In(seoul).Format(time.RFC3339),
	}
}
