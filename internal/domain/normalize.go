package domain

import "strings"

// SplitZipCodes разбивает значение "ZipCode(s)" на отдельные индексы.
// Пустые элементы отбрасываются, порядок и дубли сохраняются как в исходной строке.
func SplitZipCodes(raw string) []string {
	parts := strings.Split(raw, ",")
	zips := make([]string, 0, len(parts))
	for _, p := range parts {
		if z := strings.TrimSpace(p); z != "" {
			zips = append(zips, z)
		}
	}
	return zips
}

// NormalizeCount приводит отсутствующее или отрицательное число разрешений к нулю
func NormalizeCount(v *float64) int {
	if v == nil || *v <= 0 {
		return 0
	}
	return int(*v)
}
