package models

import (
	"math"
	"time"
)

// UpcomingHarvestWindow is how far ahead a harvest date counts as upcoming.
const UpcomingHarvestWindow = 14 * 24 * time.Hour

// CropStats summarises a user's crops for the profile page.
type CropStats struct {
	TotalGardens     int            `json:"total_gardens"`
	TotalCrops       int            `json:"total_crops"`
	SharedCrops      int            `json:"shared_crops"`
	HarvestedCrops   int            `json:"harvested_crops"`
	ActiveCrops      int            `json:"active_crops"`
	AverageProgress  int            `json:"average_progress"`
	UpcomingHarvests int            `json:"upcoming_harvests"`
	CropsByStatus    map[string]int `json:"crops_by_status"`
	CropsByCategory  map[string]int `json:"crops_by_category"`
}

// ComputeCropStats scans crops in process. now anchors the upcoming-harvest
// window; crops without a parseable harvest date are never upcoming.
func ComputeCropStats(gardens int, crops []Crop, now time.Time) CropStats {
	st := CropStats{
		TotalGardens:    gardens,
		TotalCrops:      len(crops),
		CropsByStatus:   map[string]int{},
		CropsByCategory: map[string]int{},
	}
	if len(crops) == 0 {
		return st
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	horizon := today.Add(UpcomingHarvestWindow)
	progress := 0
	for _, c := range crops {
		progress += c.Progress
		if c.Shared {
			st.SharedCrops++
		}
		if c.Status != "" {
			st.CropsByStatus[c.Status]++
		}
		category := c.Category
		if category == "" {
			category = "uncategorized"
		}
		st.CropsByCategory[category]++

		if c.Status == StatusHarvested {
			st.HarvestedCrops++
			continue
		}
		st.ActiveCrops++
		if d, err := time.Parse(DateLayout, c.HarvestDate); err == nil {
			if !d.Before(today) && !d.After(horizon) {
				st.UpcomingHarvests++
			}
		}
	}
	st.AverageProgress = int(math.Round(float64(progress) / float64(len(crops))))
	return st
}
