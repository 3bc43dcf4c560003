// Package analysis computes descriptive statistics over the permit datasets.
// It backs the stats endpoint and the analyze CLI.
package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/permit-map/internal/domain"
)

// DefaultPercentiles - перцентили распределения недельных счётчиков
var DefaultPercentiles = []float64{25, 50, 75, 90, 95}

// TypeDistribution считает записи, сумму и среднее по типам недельного датасета.
// Порядок: по убыванию суммы, при равенстве по имени типа.
func TypeDistribution(records []domain.PermitRecord) []domain.TypeStats {
	index := make(map[string]int)
	stats := make([]domain.TypeStats, 0)
	for _, r := range records {
		i, ok := index[r.EventType]
		if !ok {
			i = len(stats)
			index[r.EventType] = i
			stats = append(stats, domain.TypeStats{EventType: r.EventType})
		}
		stats[i].Records++
		stats[i].Permits += r.PermitCount
	}
	return finishTypeStats(stats)
}

// TypeTotalsDistribution - то же по строкам total_by_type (type_count)
func TypeTotalsDistribution(totals []domain.TypeTotal) []domain.TypeStats {
	index := make(map[string]int)
	stats := make([]domain.TypeStats, 0)
	for _, t := range totals {
		i, ok := index[t.EventType]
		if !ok {
			i = len(stats)
			index[t.EventType] = i
			stats = append(stats, domain.TypeStats{EventType: t.EventType})
		}
		stats[i].Records++
		stats[i].Permits += t.TypeCount
	}
	return finishTypeStats(stats)
}

func finishTypeStats(stats []domain.TypeStats) []domain.TypeStats {
	for i := range stats {
		if stats[i].Records > 0 {
			stats[i].Mean = float64(stats[i].Permits) / float64(stats[i].Records)
		}
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Permits != stats[j].Permits {
			return stats[i].Permits > stats[j].Permits
		}
		return stats[i].EventType < stats[j].EventType
	})
	return stats
}

// WeeklyZipTotals суммирует permit_count по (year, week, zip)
func WeeklyZipTotals(records []domain.PermitRecord) []int {
	type key struct {
		week domain.Week
		zip  string
	}
	index := make(map[key]int)
	totals := make([]int, 0)
	for _, r := range records {
		k := key{week: r.WeekKey(), zip: r.ZipCode}
		i, ok := index[k]
		if !ok {
			i = len(totals)
			index[k] = i
			totals = append(totals, 0)
		}
		totals[i] += r.PermitCount
	}
	return totals
}

// DistinctZipCodes считает различные ZIP в записях
func DistinctZipCodes(records []domain.PermitRecord) int {
	seen := make(map[string]struct{})
	for _, r := range records {
		seen[r.ZipCode] = struct{}{}
	}
	return len(seen)
}

// DistinctWeeks считает различные недели в записях
func DistinctWeeks(records []domain.PermitRecord) int {
	seen := make(map[domain.Week]struct{})
	for _, r := range records {
		seen[r.WeekKey()] = struct{}{}
	}
	return len(seen)
}

// Describe возвращает count/min/max/mean и перцентили (линейная интерполяция)
func Describe(values []int, percentiles []float64) domain.DistributionStats {
	out := domain.DistributionStats{
		Count:       len(values),
		Percentiles: make(map[string]float64, len(percentiles)),
	}
	if len(values) == 0 {
		return out
	}

	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	sum := 0
	for _, v := range sorted {
		sum += v
	}
	out.Min = sorted[0]
	out.Max = sorted[len(sorted)-1]
	out.Mean = float64(sum) / float64(len(sorted))

	for _, p := range percentiles {
		out.Percentiles[PercentileKey(p)] = Percentile(sorted, p)
	}
	return out
}

// Percentile - перцентиль p (0..100) по отсортированным значениям,
// линейная интерполяция между соседними рангами
func Percentile(sorted []int, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return float64(sorted[0])
	}
	if p >= 100 {
		return float64(sorted[n-1])
	}

	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	frac := rank - float64(lo)
	return float64(sorted[lo]) + frac*float64(sorted[hi]-sorted[lo])
}

// PercentileKey - ключ перцентиля в ответе: 25 -> "p25", 16.67 -> "p16.67"
func PercentileKey(p float64) string {
	return fmt.Sprintf("p%g", p)
}

// BucketCounts считает, сколько значений попало в каждый бакет
func BucketCounts(values []int, bucket func(int) int, buckets int) []int {
	counts := make([]int, buckets)
	for _, v := range values {
		b := bucket(v)
		if b >= 0 && b < buckets {
			counts[b]++
		}
	}
	return counts
}
