package utils

import (
	"fmt"
	"time"
)

// ValidateCoordinates проверяет валидность координат
func ValidateCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// ISOWeekStart возвращает понедельник ISO-недели (year, week).
// 4 января всегда попадает в первую неделю года.
func ISOWeekStart(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -offset)
	return monday.AddDate(0, 0, (week-1)*7)
}

// WeekLabel форматирует неделю как диапазон дат понедельник - воскресенье
func WeekLabel(year, week int) string {
	start := ISOWeekStart(year, week)
	end := start.AddDate(0, 0, 6)
	return fmt.Sprintf("%s - %s", start.Format("January 2, 2006"), end.Format("January 2, 2006"))
}
