package platon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
)

const (
	// topMarketCount is how many KRW markets the 인기코인 command and the
	// periodic market broadcast list, ranked by 24h trade value.
	topMarketCount = 5

	upbitTickerPath  = "/ticker"
	upbitMarketsPath = "/market/all"

	krwBitcoinMarket  = "KRW-BTC"
	usdtBitcoinMarket = "USDT-BTC"
)

// Embed colors keyed to the 24h price change. Strong shades for moves of
// 5% or more, washed-out shades under that.
const (
	colorRiseStrong = 0xFF3B3B
	colorRiseSoft   = 0xFF8181
	colorFallStrong = 0x3B3BFF
	colorFallSoft   = 0x8181FF
	colorEven       = 0x99AAB5
)

const strongChangeThreshold = 0.05

// UpbitTicker is one market's current snapshot from /ticker.
type UpbitTicker struct {
	Market            string  `json:"market"`
	TradePrice        float64 `json:"trade_price"`
	Change            string  `json:"change"`
	SignedChangeRate  float64 `json:"signed_change_rate"`
	SignedChangePrice float64 `json:"signed_change_price"`
	AccTradePrice24H  float64 `json:"acc_trade_price_24h"`
	HighPrice         float64 `json:"high_price"`
	LowPrice          float64 `json:"low_price"`
}

// UpbitMarket is one entry from /market/all.
type UpbitMarket struct {
	Market      string `json:"market"`
	KoreanName  string `json:"korean_name"`
	EnglishName string `json:"english_name"`
}

// UpbitClient reads public market data from the Upbit REST API. No
// authentication is needed for the endpoints used here.
type UpbitClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func newUpbitClient(
	cfg *UpbitConfig,
	httpClient *http.Client,
	logger *slog.Logger,
) *UpbitClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpbitClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger.With(loggerNameKey, "upbit"),
	}
}

func (c *UpbitClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("error creating upbit request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error calling upbit: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.logger.DebugContext(
		ctx,
		"upbit response",
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(started),
	)
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf(
			"upbit returned %d: %s",
			resp.StatusCode,
			strings.TrimSpace(string(body)),
		)
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding upbit response: %w", err)
	}
	return nil
}

// Tickers fetches current snapshots for the given market codes
// (e.g. "KRW-BTC").
func (c *UpbitClient) Tickers(ctx context.Context, markets ...string) ([]UpbitTicker, error) {
	if len(markets) == 0 {
		return nil, fmt.Errorf("no markets given")
	}
	query := url.Values{"markets": []string{strings.Join(markets, ",")}}
	var tickers []UpbitTicker
	if err := c.getJSON(ctx, upbitTickerPath, query, &tickers); err != nil {
		return nil, err
	}
	return tickers, nil
}

// Markets fetches the full market listing.
func (c *UpbitClient) Markets(ctx context.Context) ([]UpbitMarket, error) {
	var markets []UpbitMarket
	if err := c.getJSON(ctx, upbitMarketsPath, nil, &markets); err != nil {
		return nil, err
	}
	return markets, nil
}

// MarketSnapshot returns the bitcoin ticker plus the top n remaining KRW
// markets by 24h trade value, and the Korean name for each market.
func (c *UpbitClient) MarketSnapshot(
	ctx context.Context,
	n int,
) (*UpbitTicker, []UpbitTicker, map[string]string, error) {
	markets, err := c.Markets(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	names := make(map[string]string, len(markets))
	codes := make([]string, 0, len(markets))
	for _, m := range markets {
		if !strings.HasPrefix(m.Market, "KRW-") {
			continue
		}
		names[m.Market] = m.KoreanName
		codes = append(codes, m.Market)
	}
	if len(codes) == 0 {
		return nil, nil, nil, fmt.Errorf("no KRW markets listed")
	}

	tickers, err := c.Tickers(ctx, codes...)
	if err != nil {
		return nil, nil, nil, err
	}
	sort.Slice(tickers, func(i, j int) bool {
		return tickers[i].AccTradePrice24H > tickers[j].AccTradePrice24H
	})

	// bitcoin is shown pinned, never inside the ranking
	var btc *UpbitTicker
	top := make([]UpbitTicker, 0, n)
	for i := range tickers {
		if tickers[i].Market == krwBitcoinMarket {
			t := tickers[i]
			btc = &t
			continue
		}
		if len(top) < n {
			top = append(top, tickers[i])
		}
	}
	return btc, top, names, nil
}

// coinNames maps Korean coin names to their Upbit symbols, covering the
// major KRW markets so queries like "비트코인" resolve without a market
// listing round-trip.
var coinNames = map[string]string{
	"비트코인":     "BTC",
	"이더리움":     "ETH",
	"리플":       "XRP",
	"솔라나":      "SOL",
	"도지코인":     "DOGE",
	"에이다":      "ADA",
	"아발란체":     "AVAX",
	"트론":       "TRX",
	"체인링크":     "LINK",
	"폴카닷":      "DOT",
	"폴리곤":      "POL",
	"비트코인캐시":   "BCH",
	"이더리움클래식":  "ETC",
	"스텔라루멘":    "XLM",
	"니어프로토콜":   "NEAR",
	"앱토스":      "APT",
	"수이":       "SUI",
	"아비트럼":     "ARB",
	"옵티미즘":     "OP",
	"코스모스":     "ATOM",
	"알고랜드":     "ALGO",
	"샌드박스":     "SAND",
	"디센트럴랜드":   "MANA",
	"엑시인피니티":   "AXS",
	"테조스":      "XTZ",
	"이오스":      "EOS",
	"스택스":      "STX",
	"헤데라":      "HBAR",
	"비체인":      "VET",
	"쎄타토큰":     "THETA",
	"질리카":      "ZIL",
	"온톨로지":     "ONT",
	"네오":       "NEO",
	"웨이브":      "WAVES",
	"아이오타":     "IOTA",
	"그로스톨코인":   "GRS",
	"스테이터스네트워크": "SNT",
	"시빅":       "CVC",
	"스톰엑스":     "STMX",
	"펀디엑스":     "PUNDIX",
	"세럼":       "SRM",
	"솔라":       "SXP",
	"스와이프":     "SXP",
	"칠리즈":      "CHZ",
	"밀크":       "MLK",
	"보라":       "BORA",
	"메타디움":     "META",
	"센티넬프로토콜":  "UPP",
	"아하토큰":     "AHT",
	"메디블록":     "MED",
	"펀디스":      "FUN",
	"온버프":      "ONIT",
	"무비블록":     "MBL",
	"디카르고":     "DKA",
	"플레이댑":     "PLA",
	"스트라이크":    "STRK",
	"마스크네트워크":  "MASK",
	"갤럭시아":     "GXA",
	"가스":       "GAS",
	"카이아":      "KAIA",
	"클레이튼":     "KLAY",
	"루나":       "LUNA",
	"페페":       "PEPE",
	"시바이누":     "SHIB",
	"봉크":       "BONK",
	"월드코인":     "WLD",
	"세이":       "SEI",
	"셀레스티아":    "TIA",
	"인젝티브":     "INJ",
	"주피터":      "JUP",
	"온도파이낸스":   "ONDO",
	"유니스왑":     "UNI",
	"에이브":      "AAVE",
	"메이커":      "MKR",
	"커브":       "CRV",
	"컴파운드":     "COMP",
	"원인치":      "1INCH",
	"비트토렌트":    "BTT",
	"파일코인":     "FIL",
	"알위브":      "AR",
	"더그래프":     "GRT",
	"렌더토큰":     "RENDER",
	"텐서":       "TNSR",
	"리스크":      "LSK",
	"스팀":       "STEEM",
	"스팀달러":     "SBD",
	"아더":       "ARDR",
	"스트라티스":    "STRAX",
	"피르마체인":    "FCT2",
	"아르고":      "AERGO",
	"엘프":       "ELF",
	"캐리프로토콜":   "CRE",
	"모스코인":     "MOC",
	"티티씨":      "TTC",
	"폴리매쉬":     "POLYX",
	"아이콘":      "ICX",
	"오미세고":     "OMG",
	"왁스":       "WAXP",
	"파워렛저":     "POWR",
	"엔진코인":     "ENJ",
	"오브스":      "ORBS",
	"카바":       "KAVA",
	"스트라이프":    "STPT",
	"앵커":       "ANKR",
	"크립토닷컴체인":  "CRO",
	"제로엑스":     "ZRX",
	"베이직어텐션토큰": "BAT",
	"오션프로토콜":   "OCEAN",
	"던프로토콜":    "DAWN",
	"솔브프로토콜":   "SOLVE",
	"휴먼스케이프":   "HUM",
	"아하":       "AHT",
	"덴트":       "DENT",
	"비트코인에스브이": "BSV",
	"퀀텀":       "QTUM",
	"라이트코인":    "LTC",
	"대시":       "DASH",
	"지캐시":      "ZEC",
	"모네로":      "XMR",
	"비트코인골드":   "BTG",
}

// findSymbol resolves a user query to an Upbit symbol. Korean names hit
// the static table; anything else is treated as a symbol and uppercased.
func findSymbol(query string) string {
	query = strings.TrimSpace(query)
	if symbol, ok := coinNames[query]; ok {
		return symbol
	}
	return strings.ToUpper(query)
}

// koreanNameOf is the reverse lookup for display, falling back to the
// symbol itself for coins outside the table.
func koreanNameOf(symbol string) string {
	for name, s := range coinNames {
		if s == symbol {
			return name
		}
	}
	return symbol
}

// formatKRW renders a KRW price: comma-grouped with no decimals at or
// above 100 won, two decimals below (the altcoin sub-won range).
func formatKRW(price float64) string {
	if price >= 100 {
		return humanize.Comma(int64(price + 0.5))
	}
	return humanize.CommafWithDigits(price, 2)
}

// formatUSDT renders a USDT price: two decimals at or above 100, four
// below.
func formatUSDT(price float64) string {
	if price >= 100 {
		return humanize.FormatFloat("#,###.##", price)
	}
	return humanize.FormatFloat("#,###.####", price)
}

// formatTradeValue renders a 24h accumulated trade value in millions of
// KRW, e.g. "1,234백만원".
func formatTradeValue(accTradePrice float64) string {
	return humanize.Comma(int64(accTradePrice/1_000_000)) + "백만원"
}

func changeEmoji(change string) string {
	switch change {
	case "RISE":
		return "🔺"
	case "FALL":
		return "⏬"
	default:
		return "➖"
	}
}

func changeColor(change string, signedRate float64) int {
	strong := signedRate >= strongChangeThreshold || signedRate <= -strongChangeThreshold
	switch change {
	case "RISE":
		if strong {
			return colorRiseStrong
		}
		return colorRiseSoft
	case "FALL":
		if strong {
			return colorFallStrong
		}
		return colorFallSoft
	default:
		return colorEven
	}
}

// priceEmbed renders a single coin's snapshot. usdt is the coin's USDT
// market ticker, shown as an extra field when available (bitcoin only).
func priceEmbed(symbol string, t UpbitTicker, usdt *UpbitTicker) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s %s (%s)", changeEmoji(t.Change), koreanNameOf(symbol), symbol),
		Color: changeColor(t.Change, t.SignedChangeRate),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "현재가",
				Value:  formatKRW(t.TradePrice) + "원",
				Inline: true,
			},
			{
				Name: "전일 대비",
				Value: fmt.Sprintf(
					"%s %.2f%% (%s원)",
					changeEmoji(t.Change),
					t.SignedChangeRate*100,
					formatKRW(math.Abs(t.SignedChangePrice)),
				),
				Inline: true,
			},
			{
				Name:   "거래대금 (24h)",
				Value:  formatTradeValue(t.AccTradePrice24H),
				Inline: true,
			},
			{
				Name:   "고가 / 저가 (24h)",
				Value:  formatKRW(t.HighPrice) + "원 / " + formatKRW(t.LowPrice) + "원",
				Inline: false,
			},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "출처: 업비트"},
		Timestamp: time.Now().In(seoul).Format(time.RFC3339),
	}
	if usdt != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "USDT 마켓",
			Value:  formatUSDT(usdt.TradePrice) + " USDT",
			Inline: true,
		})
	}
	return embed
}

// topMarketsEmbed renders the trade value ranking plus a pinned bitcoin
// snapshot at the top.
func topMarketsEmbed(
	btc *UpbitTicker,
	top []UpbitTicker,
	names map[string]string,
) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:     "📊 실시간 인기 코인",
		Color:     colorEven,
		Footer:    &discordgo.MessageEmbedFooter{Text: "거래대금 기준 TOP 5 | 출처: 업비트"},
		Timestamp: time.Now().In(seoul).Format(time.RFC3339),
	}
	if btc != nil {
		embed.Color = changeColor(btc.Change, btc.SignedChangeRate)
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "💰 비트코인 (BTC)",
			Value: fmt.Sprintf(
				"%s원 (%s %.2f%%, %s원)",
				formatKRW(btc.TradePrice),
				changeEmoji(btc.Change),
				btc.SignedChangeRate*100,
				formatKRW(math.Abs(btc.SignedChangePrice)),
			),
			Inline: false,
		})
	}
	for n, t := range top {
		symbol := strings.TrimPrefix(t.Market, "KRW-")
		name, ok := names[t.Market]
		if !ok {
			name = symbol
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: fmt.Sprintf("%d. %s (%s)", n+1, name, symbol),
			Value: fmt.Sprintf(
				"%s원 (%s %.2f%%, %s원) | 거래대금 %s",
				formatKRW(t.TradePrice),
				changeEmoji(t.Change),
				t.SignedChangeRate*100,
				formatKRW(math.Abs(t.SignedChangePrice)),
				formatTradeValue(t.AccTradePrice24H),
			),
			Inline: false,
		})
	}
	return embed
}
