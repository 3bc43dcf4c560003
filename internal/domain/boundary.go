package domain

import "github.com/paulmach/orb"

// ZipBoundary - полигон почтового индекса с предрасчитанным числом разрешений за всё время
type ZipBoundary struct {
	PostalCode   string                 `json:"postal_code" db:"postal_code"`
	TotalPermits int                    `json:"total_permits" db:"total_permits"`
	Geometry     orb.Geometry           `json:"-" db:"-"`
	Properties   map[string]interface{} `json:"properties,omitempty" db:"-"`
}

// BoundaryTotals возвращает total_permits всех границ в исходном порядке
func BoundaryTotals(boundaries []ZipBoundary) []int {
	totals := make([]int, len(boundaries))
	for i, b := range boundaries {
		totals[i] = b.TotalPermits
	}
	return totals
}
