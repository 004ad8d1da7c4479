package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"SeriesKeeper/internal/model"
)

var outcomeIcons = map[model.Outcome]string{
	model.OutcomeFresh:        "✅",
	model.OutcomeFetchedFull:  "📥",
	model.OutcomeFetchedDelta: "🔄",
	model.OutcomeStale:        "⚠️",
	model.OutcomeError:        "❌",
}

// FormatRefreshAlert formats the degraded reports of a refresh run.
// It returns "" when every series refreshed cleanly.
func FormatRefreshAlert(reports []model.RefreshReport, at time.Time) string {
	var degraded []model.RefreshReport
	for _, r := range reports {
		if r.Degraded() {
			degraded = append(degraded, r)
		}
	}
	if len(degraded) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("🚨 <b>SeriesKeeper 刷新异常</b> | %s\n\n", at.Format("2006-01-02 15:04")))
	for _, r := range degraded {
		writeReportLine(&b, r)
		if r.Err != "" {
			b.WriteString(fmt.Sprintf("   原因: %s\n", html.EscapeString(r.Err)))
		}
	}
	b.WriteString(fmt.Sprintf("\n%d/%d 个序列未能更新", len(degraded), len(reports)))
	return b.String()
}

// FormatStatus formats the latest known state of every series.
func FormatStatus(reports []model.RefreshReport) string {
	var b strings.Builder
	b.WriteString("📦 <b>缓存状态</b>\n\n")
	if len(reports) == 0 {
		b.WriteString("暂无刷新记录")
		return b.String()
	}
	for _, r := range reports {
		writeReportLine(&b, r)
		b.WriteString(fmt.Sprintf("   更新时间: %s\n", r.At.Format("2006-01-02 15:04")))
	}
	return b.String()
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return "可用命令:\n• /status 查看缓存状态\n• /refresh 立即刷新全部序列"
}

func writeReportLine(b *strings.Builder, r model.RefreshReport) {
	icon := outcomeIcons[r.Outcome]
	if icon == "" {
		icon = "•"
	}
	watermark := "-"
	if !r.Watermark.IsZero() {
		watermark = r.Watermark.Format(model.DayLayout)
	}
	b.WriteString(fmt.Sprintf("%s %s <b>%s</b>: %s | 截至 %s | %d 条\n",
		icon, r.Kind, html.EscapeString(r.Key.String()), r.Outcome, watermark, r.Points))
}
