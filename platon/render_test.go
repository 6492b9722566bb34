package platon

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderDailyListEmpty(t *testing.T) {
	t.Parallel()
	out := renderDailyList("테스터", "2026년 09월 01일", nil)

	assert.Contains(t, out, "# 📋 테스터님의 할 일")
	assert.Contains(t, out, "2026년 09월 01일")
	assert.Contains(t, out, "새로운 하루가 시작되었습니다")
	assert.Contains(t, out, fmt.Sprintf("최대 %d개", DailyTaskCapacity))
	assert.NotContains(t, out, "진행률")
}

func TestRenderDailyListProgress(t *testing.T) {
	t.Parallel()
	items := []TaskItem{
		{ID: "a", Text: "buy milk", Completed: true},
		{ID: "b", Text: "call mom"},
	}
	out := renderDailyList("테스터", "2026년 09월 01일", items)

	assert.Contains(t, out, "`1/2` (`50.0%`)")
	assert.Contains(t, out, "> ✅ ~~buy milk~~")
	assert.Contains(t, out, "> ⬜ call mom")
	assert.NotContains(t, out, "~~call mom~~")
}

func TestRenderDailyListOrderPreserved(t *testing.T) {
	t.Parallel()
	items := []TaskItem{
		{ID: "a", Text: "first"},
		{ID: "b", Text: "second"},
		{ID: "c", Text: "third"},
	}
	out := renderDailyList("t", "d", items)
	assert.Less(t, strings.Index(out, "first"), strings.Index(out, "second"))
	assert.Less(t, strings.Index(out, "second"), strings.Index(out, "third"))
}

func TestRenderIsDeterministic(t *testing.T) {
	t.Parallel()
	items := []TaskItem{
		{ID: "a", Text: "one", Completed: true},
		{ID: "b", Text: "two"},
	}
	assert.Equal(
		t,
		renderDailyList("t", "d", items),
		renderDailyList("t", "d", items),
	)
	assert.Equal(
		t,
		renderWeeklyList("t", "2026-09-01", "2026-09-07", items),
		renderWeeklyList("t", "2026-09-01", "2026-09-07", items),
	)
}

func TestRenderWeeklyList(t *testing.T) {
	t.Parallel()
	out := renderWeeklyList("테스터", "2026-09-01", "2026-09-07", nil)
	assert.Contains(t, out, "# ⚔️ 테스터님의 주간퀘스트")
	assert.Contains(t, out, "2026-09-01 ~ 2026-09-07")
	assert.Contains(t, out, fmt.Sprintf("최대 %d개", WeeklyQuestCapacity))

	out = renderWeeklyList("테스터", "2026-09-01", "2026-09-07", []TaskItem{
		{ID: "a", Text: "run 5k", Completed: true},
		{ID: "b", Text: "read", Completed: true},
		{ID: "c", Text: "write"},
	})
	assert.Contains(t, out, "`2/3` (`66.7%`)")
}
