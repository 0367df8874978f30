package cycle

import (
	"time"
)

// ============================================================================
// 周结算窗口（固定 UTC+5:30）
// ============================================================================
//
// 【结算周期定义】
//
// 上周一 00:00（IST） -> 本周一 00:00（IST），右开区间
// cycleKey = 该周期内的周日日期（IST），格式 YYYY-MM-DD
//
// 【为什么手算偏移而不用 time.LoadLocation？】
//
// 1. 结算时区是业务常量 +05:30，与部署机器的本地时区无关
// 2. 容器里往往没有 tzdata，LoadLocation("Asia/Kolkata") 可能直接失败
//
// 做法：把 UTC 时间加上固定偏移得到"钟面时间"，在钟面上取日期和星期，
// 再减回偏移还原成 UTC。
//
// ============================================================================

// ISTOffset 固定结算时区偏移 +05:30
const ISTOffset = 5*time.Hour + 30*time.Minute

const day = 24 * time.Hour

// Window 一个周结算窗口，[Start, End) 均为 UTC 时间
type Window struct {
	Start time.Time // 上周一 00:00 IST
	End   time.Time // 本周一 00:00 IST（不含）
	Key   string    // 周期标识：窗口内周日的 IST 日期
}

// istClock 把 UTC 时间换算到 IST 钟面（返回值仍标记为 UTC，仅用于读字段）
func istClock(t time.Time) time.Time {
	return t.UTC().Add(ISTOffset)
}

// StartOfISTDay 给定时刻所在 IST 日的 00:00，以 UTC 表示
func StartOfISTDay(t time.Time) time.Time {
	c := istClock(t)
	y, m, d := c.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(-ISTOffset)
}

// WeekWindow 计算 now 所处的周结算窗口
// 纯函数：同一个 now 永远得到同一个窗口
func WeekWindow(now time.Time) Window {
	todayStart := StartOfISTDay(now)

	// IST 钟面上的星期几，换算成"距本周一的天数"
	wd := istClock(todayStart).Weekday()
	daysSinceMonday := (int(wd) + 6) % 7

	thisMonday := todayStart.Add(-time.Duration(daysSinceMonday) * day)

	start := thisMonday.Add(-7 * day)
	end := thisMonday // 右开

	// cycleKey：窗口起点往后 6 天是周日
	sunday := start.Add(6 * day)
	key := istClock(sunday).Format("2006-01-02")

	return Window{Start: start, End: end, Key: key}
}
