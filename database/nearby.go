// civictrack/database/nearby.go
package database

import (
	"civictrack/models"
	"civictrack/utils"
)

// nearbyFilter applies the spatial and attribute filters to a candidate
// slice. Candidates must already exclude hidden issues and be sorted
// newest first; the filter preserves that order. Both store
// implementations funnel through here so distance results are identical.
func nearbyFilter(candidates []models.Issue, lat, lng, radiusKm float64, status models.Status, category models.Category) []models.NearbyIssue {
	out := []models.NearbyIssue{}
	for _, issue := range candidates {
		d := utils.Haversine(lat, lng, issue.Latitude, issue.Longitude)
		if d >= radiusKm {
			continue
		}
		if status != "" && string(status) != models.FilterAll && issue.Status != status {
			continue
		}
		if category != "" && string(category) != models.FilterAll && issue.Category != category {
			continue
		}
		out = append(out, models.NearbyIssue{Issue: issue, DistanceKm: d})
	}
	return out
}
