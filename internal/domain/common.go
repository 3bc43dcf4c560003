package domain

import "time"

type Point struct {
	Lat float64 `json:"lat" db:"lat"`
	Lon float64 `json:"lon" db:"lon"`
}

// Statistics представляет статистику по загруженному датасету разрешений
type Statistics struct {
	Records     int               `json:"records"`
	ZipCodes    int               `json:"zip_codes"`
	Weeks       int               `json:"weeks"`
	Types       int               `json:"types"`
	ByType      []TypeStats       `json:"by_type"`
	Weekly      DistributionStats `json:"weekly"`
	AllTime     DistributionStats `json:"all_time"`
	Breaks      []int             `json:"quantile_breaks"`
	Buckets     []int             `json:"bucket_counts"`
	LastUpdated time.Time         `json:"last_updated"`
	DataVersion string            `json:"data_version"`
}

// TypeStats статистика по одному типу разрешения
type TypeStats struct {
	EventType string  `json:"event_type"`
	Records   int     `json:"records"`
	Permits   int     `json:"permits"`
	Mean      float64 `json:"mean"`
}

// DistributionStats описательная статистика распределения счётчиков
type DistributionStats struct {
	Count       int                `json:"count"`
	Min         int                `json:"min"`
	Max         int                `json:"max"`
	Mean        float64            `json:"mean"`
	Percentiles map[string]float64 `json:"percentiles"`
}
