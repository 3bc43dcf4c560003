// Package classifier maps per-ZIP permit counts to one of seven palette colors.
package classifier

import (
	"fmt"
	"sort"
	"sync"

	"github.com/permit-map/internal/domain"
	"go.uber.org/zap"
)

// BucketCount - число цветов шкалы
const BucketCount = 7

// Palette - упорядоченная шкала цветов; индекс бакета указывает прямо в неё
type Palette [BucketCount]string

// DefaultPalette: серый для "нет разрешений", далее от светло-розового к тёмно-красному
var DefaultPalette = Palette{
	"#808080",
	"#fee5d9",
	"#fcbba1",
	"#fc9272",
	"#fb6a4a",
	"#de2d26",
	"#a50f15",
}

// Policy - способ выбора порогов
type Policy int

const (
	// Absolute - фиксированные пороги для недельных значений
	Absolute Policy = iota
	// Quantile - квантильные пороги по total_permits всех границ
	Quantile
)

func (p Policy) String() string {
	if p == Quantile {
		return "quantile"
	}
	return "absolute"
}

// PolicyFor выбирает политику по режиму отображения
func PolicyFor(mode domain.ViewMode) Policy {
	if mode.IsAllTime() {
		return Quantile
	}
	return Absolute
}

// Breaks - возрастающие пороги; значение попадает в первый бакет i с v <= breaks[i]
type Breaks []int

// AbsoluteBreaks - пороги недельной шкалы
var AbsoluteBreaks = Breaks{0, 1, 3, 6, 10, 15}

// QuantileBreaks берёт значения рангов floor(N*i/7), i=1..6, из отсортированных итогов.
// Для пустого набора возвращает nil.
func QuantileBreaks(totals []int) Breaks {
	n := len(totals)
	if n == 0 {
		return nil
	}

	sorted := make([]int, n)
	copy(sorted, totals)
	sort.Ints(sorted)

	breaks := make(Breaks, BucketCount-1)
	for i := 1; i < BucketCount; i++ {
		breaks[i-1] = sorted[n*i/BucketCount]
	}
	return breaks
}

// Bucket возвращает индекс первого бакета, порог которого не меньше v.
// Равенство порогу относит значение к нижнему бакету; результат ограничен [0, BucketCount-1].
func Bucket(v int, breaks Breaks) int {
	i := 0
	for i < len(breaks) && v > breaks[i] {
		i++
	}
	if i > BucketCount-1 {
		i = BucketCount - 1
	}
	return i
}

// Classifier хранит палитру и квантильные пороги текущего набора границ
type Classifier struct {
	mu       sync.RWMutex
	palette  Palette
	quantile Breaks
	loaded   bool
	logger   *zap.Logger
}

// New создает Classifier; до SetBoundaryTotals квантильные пороги пусты
func New(palette Palette, logger *zap.Logger) *Classifier {
	return &Classifier{
		palette: palette,
		logger:  logger,
	}
}

// SetBoundaryTotals пересчитывает квантильные пороги. Вызывается один раз на загрузку границ.
func (c *Classifier) SetBoundaryTotals(totals []int) Breaks {
	breaks := QuantileBreaks(totals)

	c.mu.Lock()
	c.quantile = breaks
	c.loaded = true
	c.mu.Unlock()

	c.logger.Info("Quantile breaks computed",
		zap.Int("boundaries", len(totals)),
		zap.Ints("breaks", []int(breaks)))

	return append(Breaks(nil), breaks...)
}

// Loaded - пороги рассчитаны хотя бы один раз
func (c *Classifier) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Breaks возвращает копию порогов политики
func (c *Classifier) Breaks(p Policy) Breaks {
	if p == Absolute {
		return append(Breaks(nil), AbsoluteBreaks...)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return append(Breaks(nil), c.quantile...)
}

// Classify возвращает индекс бакета в [0, 6]
func (c *Classifier) Classify(v int, p Policy) int {
	if p == Absolute {
		if v <= 0 {
			return 0
		}
		return Bucket(v, AbsoluteBreaks)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return Bucket(v, c.quantile)
}

// ClassifyMode классифицирует значение по политике режима
func (c *Classifier) ClassifyMode(v int, mode domain.ViewMode) int {
	return c.Classify(v, PolicyFor(mode))
}

// Color возвращает цвет бакета
func (c *Classifier) Color(bucket int) string {
	if bucket < 0 {
		bucket = 0
	}
	if bucket > BucketCount-1 {
		bucket = BucketCount - 1
	}
	return c.palette[bucket]
}

// Palette возвращает палитру
func (c *Classifier) Palette() Palette {
	return c.palette
}

// LegendEntry - строка легенды: диапазон целых значений бакета
type LegendEntry struct {
	Bucket int    `json:"bucket"`
	Color  string `json:"color"`
	Min    *int   `json:"min,omitempty"`
	Max    *int   `json:"max,omitempty"`
	Label  string `json:"label"`
	Empty  bool   `json:"empty,omitempty"`
}

// Legend строит 7 строк легенды для политики
func (c *Classifier) Legend(p Policy) []LegendEntry {
	return BuildLegend(c.Breaks(p), c.palette)
}

// BuildLegend описывает диапазоны бакетов. Бакет без возможных значений
// (совпадающие пороги) помечается Empty.
func BuildLegend(breaks Breaks, palette Palette) []LegendEntry {
	entries := make([]LegendEntry, BucketCount)
	for i := range entries {
		e := LegendEntry{Bucket: i, Color: palette[i]}

		lo := 0
		if i > 0 {
			if i-1 >= len(breaks) {
				e.Empty = true
				entries[i] = e
				continue
			}
			lo = breaks[i-1] + 1
		}

		if i < len(breaks) && i < BucketCount-1 {
			hi := breaks[i]
			if hi < lo {
				e.Empty = true
				entries[i] = e
				continue
			}
			e.Min, e.Max = intPtr(lo), intPtr(hi)
			if lo == hi {
				e.Label = fmt.Sprintf("%d", lo)
			} else {
				e.Label = fmt.Sprintf("%d-%d", lo, hi)
			}
		} else {
			e.Min = intPtr(lo)
			e.Label = fmt.Sprintf("%d+", lo)
		}
		entries[i] = e
	}
	return entries
}

func intPtr(v int) *int {
	return &v
}
