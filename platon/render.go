package platon

import (
	"fmt"
	"strings"
)

// Renderers are pure: given identical inputs they produce identical text.
// The header date is an explicit input, never read from a clock here.

// renderDailyList builds the message body for a daily to-do list.
// dateHeader is the display date, e.g. "2026년 09월 01일".
func renderDailyList(name string, dateHeader string, items []TaskItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# 📋 %s님의 할 일\n", name)
	fmt.Fprintf(&b, "**%s**\n\n", dateHeader)

	if len(items) == 0 {
		b.WriteString("```md\n")
		b.WriteString("# 새로운 하루가 시작되었습니다!\n")
		b.WriteString("* '할 일 추가하기' 버튼으로 할 일을 추가하세요\n")
		fmt.Fprintf(&b, "* 하루에 최대 %d개까지 등록 가능\n", DailyTaskCapacity)
		b.WriteString("* 매일 자정에 새로운 목록이 시작됩니다\n")
		b.WriteString("```")
		return b.String()
	}

	b.WriteString(progressLine(items))
	b.WriteString("\n**📌 할 일 목록**\n")
	b.WriteString(itemLines(items))
	return b.String()
}

// renderWeeklyList builds the message body for a weekly quest checklist.
// startDate and endDate bound the epoch window, both yyyy-mm-dd.
func renderWeeklyList(name string, startDate, endDate string, items []TaskItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# ⚔️ %s님의 주간퀘스트\n", name)
	fmt.Fprintf(&b, "**%s ~ %s**\n\n", startDate, endDate)

	if len(items) == 0 {
		b.WriteString("```md\n")
		b.WriteString("# 새로운 주간퀘스트 기간이 시작되었습니다!\n")
		b.WriteString("* '퀘스트 추가하기' 버튼으로 퀘스트를 추가하세요\n")
		fmt.Fprintf(&b, "* 한 주에 최대 %d개까지 등록 가능\n", WeeklyQuestCapacity)
		b.WriteString("* 7일이 지나면 새로운 목록이 시작됩니다\n")
		b.WriteString("```")
		return b.String()
	}

	b.WriteString(progressLine(items))
	b.WriteString("\n**📌 퀘스트 목록**\n")
	b.WriteString(itemLines(items))
	return b.String()
}

// progressLine renders the completed/total fraction to one decimal percent.
func progressLine(items []TaskItem) string {
	completed := 0
	for _, item := range items {
		if item.Completed {
			completed++
		}
	}
	progress := float64(completed) / float64(len(items)) * 100
	return fmt.Sprintf(
		"**진행률**: `%d/%d` (`%.1f%%`)\n",
		completed,
		len(items),
		progress,
	)
}

func itemLines(items []TaskItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		if item.Completed {
			lines = append(lines, fmt.Sprintf("> ✅ ~~%s~~", item.Text))
		} else {
			lines = append(lines, fmt.Sprintf("> ⬜ %s", item.Text))
		}
	}
	return strings.Join(lines, "\n")
}
