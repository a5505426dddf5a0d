package session

import (
	"context"
	"log/slog"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/services"
)

// DashboardLoader fetches and assembles the selected business' snapshot and
// routes the outcome through a Tracker.
type DashboardLoader struct {
	sources         services.DashboardSources
	sessions        *Manager
	tracker         *Tracker[core.DashboardSnapshot]
	criticalDecline float64
	now             func() time.Time
}

func NewDashboardLoader(sources services.DashboardSources, sessions *Manager, tracker *Tracker[core.DashboardSnapshot], criticalDecline float64) *DashboardLoader {
	return &DashboardLoader{
		sources:         sources,
		sessions:        sessions,
		tracker:         tracker,
		criticalDecline: criticalDecline,
		now:             time.Now,
	}
}

// Load refreshes the snapshot for the currently selected business. It returns
// the tracker state after the attempt and whether this call's result was
// applied. A result is applied only while its business is still selected.
func (l *DashboardLoader) Load(ctx context.Context) (State[core.DashboardSnapshot], bool) {
	s, err := l.sessions.Current()
	if err != nil || !s.HasBusiness() {
		l.tracker.Reset()
		return l.tracker.State(), true
	}

	ticket := l.tracker.Begin(s.BusinessID)
	snap, err := l.fetch(ctx, s.BusinessID)
	applied := l.tracker.CompleteIf(ticket, snap, err, l.selected)
	if !applied {
		slog.DebugContext(ctx, "Discarded stale dashboard load",
			"business_id", ticket.BusinessID,
			"request_id", ticket.RequestID)
	}
	return l.tracker.State(), applied
}

func (l *DashboardLoader) selected(businessID int64) bool {
	s, err := l.sessions.Current()
	return err == nil && s.BusinessID == businessID
}

func (l *DashboardLoader) fetch(ctx context.Context, businessID int64) (core.DashboardSnapshot, error) {
	data, err := services.FetchDashboardData(ctx, l.sources, businessID)
	if err != nil {
		return core.DashboardSnapshot{}, err
	}
	now := l.now()
	snap, err := services.Assemble(services.DashboardInput{
		Business:               data.Business,
		Transactions:           data.Transactions,
		Categories:             data.Categories,
		LatestForecast:         data.LatestForecast,
		LatestRiskScore:        data.LatestRiskScore,
		Today:                  core.DateOf(now),
		CriticalDeclinePercent: l.criticalDecline,
	})
	if err != nil {
		return core.DashboardSnapshot{}, err
	}
	snap.GeneratedAt = now
	return snap, nil
}
