package availability

import (
	"context"
	"log/slog"
	"time"

	"aparthaven/internal/domain/property"
	"aparthaven/internal/domain/shared/daterange"
)

// Resolver merges stored records, property defaults and staged overrides into
// one record per calendar day. It is a pure read and it never fails hard: an
// unreachable store degrades to the fully synthesized default schedule so a
// calendar can always be rendered.
type Resolver struct {
	Store        Repository
	Cache        OverrideCache
	Catalog      property.Catalog
	Logger       *slog.Logger
	StoreTimeout time.Duration
	Now          func() time.Time
}

// Resolve returns one DayRecord per calendar day in the closed interval
// [from, to], ordered by date ascending.
func (r *Resolver) Resolve(ctx context.Context, id property.PropertyID, from, to time.Time) ([]DayRecord, error) {
	prop, err := r.Catalog.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	defaults := prop.Defaults()

	from = daterange.Day(from)
	to = daterange.Day(to)
	if to.Before(from) {
		from, to = to, from
	}

	stored := r.loadStored(ctx, id, from, to)
	overrides := r.loadOverrides(ctx, id)

	today := r.now()
	var days []DayRecord
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		rec, ok := stored[daterange.Key(d)]
		if !ok {
			rec = Synthesize(d, defaults, today)
		}
		if o, ok := overrides[daterange.Key(d)]; ok {
			rec = o.Apply(rec)
		}
		days = append(days, rec)
	}
	return days, nil
}

func (r *Resolver) loadStored(ctx context.Context, id property.PropertyID, from, to time.Time) map[string]DayRecord {
	timeout := r.StoreTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	recs, err := r.Store.Range(ctx, id, from, to)
	if err != nil {
		r.log().Warn("availability store unreachable, serving defaults", "property_id", id, "error", err)
		return nil
	}
	byDay := make(map[string]DayRecord, len(recs))
	for _, rec := range recs {
		byDay[daterange.Key(rec.Date)] = rec
	}
	return byDay
}

func (r *Resolver) loadOverrides(ctx context.Context, id property.PropertyID) map[string]Override {
	if r.Cache == nil {
		return nil
	}
	overrides, err := r.Cache.Overrides(ctx, id)
	if err != nil {
		// Staged overrides are a preview convenience; a broken cache must
		// never break the calendar.
		r.log().Debug("override cache read failed, ignoring", "property_id", id, "error", err)
		return nil
	}
	return overrides
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Resolver) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
