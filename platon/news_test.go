package platon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rankingPageFixture = `<!DOCTYPE html>
<html>
<body>
<ul class="press_ranking_list">
  <li class="as_thumb">
    <a href="https://n.news.example/article/1" class="_es_pc_link">
      <em class="list_ranking_num">1</em>
      <strong class="list_title">첫 번째 헤드라인</strong>
    </a>
  </li>
  <li class="as_thumb">
    <a href="https://n.news.example/article/2" class="_es_pc_link">
      <em class="list_ranking_num">2</em>
      <strong class="list_title">두 번째 헤드라인</strong>
    </a>
  </li>
  <li class="as_thumb">
    <a href="https://n.news.example/article/3" class="_es_pc_link">
      <em class="list_ranking_num">3</em>
      <strong class="list_title">세 번째 헤드라인</strong>
    </a>
  </li>
</ul>
</body>
</html>`

func newTestNewsClient(t *testing.T, handler http.Handler) *NewsClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return newNewsClient(&NewsConfig{URL: srv.URL}, srv.Client(), nil)
}

func TestNewsHeadlines(t *testing.T) {
	t.Parallel()
	client := newTestNewsClient(
		t,
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NotEmpty(t, r.Header.Get("User-Agent"))
			_, _ = w.Write([]byte(rankingPageFixture))
		}),
	)

	headlines, err := client.Headlines(context.Background())
	require.NoError(t, err)
	require.Len(t, headlines, 3)
	assert.Equal(t, "1", headlines[0].Rank)
	assert.Equal(t, "첫 번째 헤드라인", headlines[0].Title)
	assert.Equal(t, "https://n.news.example/article/1", headlines[0].URL)
	assert.Equal(t, "세 번째 헤드라인", headlines[2].Title)
}

func TestNewsHeadlinesLayoutChanged(t *testing.T) {
	t.Parallel()
	client := newTestNewsClient(
		t,
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html><body><p>redesigned page</p></body></html>"))
		}),
	)

	_, err := client.Headlines(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "layout")
}

func TestNewsHeadlinesErrorStatus(t *testing.T) {
	t.Parallel()
	client := newTestNewsClient(
		t,
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}),
	)

	_, err := client.Headlines(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestParseHeadlinesLimit(t *testing.T) {
	t.Parallel()
	var b strings.Builder
	b.WriteString(`<ul class="press_ranking_list">`)
	for n := 1; n <= newsHeadlineCount+3; n++ {
		b.WriteString(`<li class="as_thumb"><a href="#" class="_es_pc_link">`)
		b.WriteString(`<strong class="list_title">headline</strong></a></li>`)
	}
	b.WriteString(`</ul>`)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(b.String()))
	require.NoError(t, err)
	headlines, err := parseHeadlines(doc)
	require.NoError(t, err)
	assert.Len(t, headlines, newsHeadlineCount)
}

func TestNewsEmbed(t *testing.T) {
	t.Parallel()
	embed := newsEmbed([]Headline{
		{Rank: "1", Title: "with link", URL: "https://example.com/1"},
		{Title: "no rank, no link"},
	})
	assert.Contains(t, embed.Description, "[with link](https://example.com/1)")
	assert.Contains(t, embed.Description, "**-.** no rank, no link")
	assert.Equal(t, newsEmbedColor, embed.Color)
}
