package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/pkordes/missionmap/internal/domain"
)

// ChoroplethScale is the fill color per intensity level; level n is used for
// regions with n missions, capped at the last step.
var ChoroplethScale = []string{"#ffffff", "#dcfce7", "#bbf7d0", "#86efac", "#4ade80", "#16a34a"}

// RegionSummary is one row of the analytics table.
type RegionSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Missions     int    `json:"missions"`
	Attendees    int    `json:"attendees"`
	PlannedTrips int    `json:"plannedTrips"`
	Markers      int    `json:"markers"`
	Level        int    `json:"level"`
	Fill         string `json:"fill"`
}

// UpcomingTrip is a planned trip that has not started yet.
type UpcomingTrip struct {
	RegionID   string `json:"regionId"`
	RegionName string `json:"regionName"`
	Title      string `json:"title"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	DaysLeft   int    `json:"daysLeft"`
}

// Report aggregates the document for the analytics view.
type Report struct {
	Regions        []RegionSummary         `json:"regions"`
	TotalMissions  int                     `json:"totalMissions"`
	TotalAttendees int                     `json:"totalAttendees"`
	RegionsVisited int                     `json:"regionsVisited"`
	ByCategory     map[domain.Category]int `json:"byCategory"`
	Upcoming       []UpcomingTrip          `json:"upcoming"`
}

// ReportService derives read-only views from the current document.
type ReportService struct {
	docs Documents
	now  func() time.Time
}

// NewReportService constructs a ReportService. now defaults to time.Now.
func NewReportService(docs Documents, now func() time.Time) *ReportService {
	if now == nil {
		now = time.Now
	}
	return &ReportService{docs: docs, now: now}
}

// Build computes the report from a snapshot of the document.
func (s *ReportService) Build(_ context.Context) Report {
	doc := s.docs.Snapshot()
	rep := Report{
		Regions:    make([]RegionSummary, 0, len(doc.Regions)),
		ByCategory: map[domain.Category]int{},
		Upcoming:   []UpcomingTrip{},
	}
	today := s.now()

	for id, r := range doc.Regions {
		sum := RegionSummary{
			ID:           id,
			Name:         r.Name,
			Missions:     len(r.Missions),
			PlannedTrips: len(r.PlannedTrips),
			Markers:      len(r.Markers),
		}
		for _, m := range r.Missions {
			sum.Attendees += m.Attendees
			rep.ByCategory[m.Category]++
		}
		sum.Level = Level(sum.Missions)
		sum.Fill = ChoroplethScale[sum.Level]

		rep.Regions = append(rep.Regions, sum)
		rep.TotalMissions += sum.Missions
		rep.TotalAttendees += sum.Attendees
		if sum.Missions > 0 {
			rep.RegionsVisited++
		}

		for _, p := range r.PlannedTrips {
			days, ok := DaysUntil(p.StartDate, today)
			if !ok || days < 0 {
				continue
			}
			rep.Upcoming = append(rep.Upcoming, UpcomingTrip{
				RegionID:   id,
				RegionName: r.Name,
				Title:      p.Title,
				StartDate:  p.StartDate,
				EndDate:    p.EndDate,
				DaysLeft:   days,
			})
		}
	}

	sort.Slice(rep.Regions, func(i, j int) bool {
		a, b := rep.Regions[i], rep.Regions[j]
		if a.Missions != b.Missions {
			return a.Missions > b.Missions
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	sort.Slice(rep.Upcoming, func(i, j int) bool {
		a, b := rep.Upcoming[i], rep.Upcoming[j]
		if a.DaysLeft != b.DaysLeft {
			return a.DaysLeft < b.DaysLeft
		}
		return a.RegionID < b.RegionID
	})
	return rep
}

// Level maps a mission count onto the choropleth scale.
func Level(missions int) int {
	return min(missions, len(ChoroplethScale)-1)
}

// DaysUntil returns the whole days from today's local midnight to date,
// rounded up. ok is false when date does not parse.
func DaysUntil(date string, today time.Time) (days int, ok bool) {
	target, err := time.ParseInLocation(domain.DateLayout, date, today.Location())
	if err != nil {
		return 0, false
	}
	y, m, d := today.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, today.Location())
	return int(math.Ceil(target.Sub(midnight).Hours() / 24)), true
}
