/*
Copyright © 2026 the GreenVar authors.
This file is part of GreenVar.

GreenVar is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GreenVar is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GreenVar.  If not, see <http://www.gnu.org/licenses/>.
*/

package greenvar

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/ctessum/sparse"
)

// SeasonWeeks is the fixed set of ISO weeks making up the growing
// season, in chronological order: week 40 of the starting year through
// week 2 of the following year.
var SeasonWeeks = []int{40, 41, 42, 43, 44, 45, 46, 47, 48, 49, 50, 51, 52, 1, 2}

// ErrDayCountMismatch indicates that the number of daily rainfall
// layers supplied for a year does not match the number of calendar
// days in that year's growing season. It signals a data-acquisition
// defect upstream and is fatal for the whole run.
var ErrDayCountMismatch = errors.New("greenvar: mismatch between rainfall layer count and growing-season day count")

// SeasonDays returns the calendar days of the growing season starting
// in the given year: October 1 of that year through January 15 of the
// following year, inclusive.
func SeasonDays(year int) []time.Time {
	start := time.Date(year, time.October, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year+1, time.January, 15, 0, 0, 0, 0, time.UTC)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// seasonWeekSlot maps a calendar day to its index in SeasonWeeks.
// The slot is determined by the day's ISO week number. Days whose ISO
// week falls outside the fixed set (week 39 when October 1 belongs to
// the last September week, week 53 in long ISO years, and week 3 at
// the mid-January boundary) are folded into the nearest season week.
func seasonWeekSlot(day time.Time) (int, error) {
	_, wk := day.ISOWeek()
	switch {
	case wk >= 40 && wk <= 52:
		return wk - 40, nil
	case wk == 1 || wk == 2:
		return 12 + wk, nil
	case wk == 39:
		return 0, nil
	case wk == 53:
		return 13, nil // between weeks 52 and 1; counts with week 1
	case wk == 3:
		return len(SeasonWeeks) - 1, nil
	}
	return 0, fmt.Errorf("greenvar: day %v (ISO week %d) is outside the growing season", day, wk)
}

// WeeklyTotals sums the daily rainfall grids of one growing season into
// a stack of weekly totals. The iterator must supply exactly one layer
// per calendar day of the season starting in the given year, in
// chronological order; any other count returns ErrDayCountMismatch.
// The returned stack is ordered and labeled as SeasonWeeks. Weeks are
// determined from calendar ISO week numbers, not day offsets, so
// partial weeks at the season boundaries are still captured.
func WeeklyTotals(year int, next NextData) (*Stack, error) {
	days := SeasonDays(year)
	var weekly []*sparse.DenseArray
	for _, day := range days {
		data, err := next()
		if err != nil {
			if err == io.EOF {
				return nil, ErrDayCountMismatch
			}
			return nil, err
		}
		if weekly == nil {
			weekly = make([]*sparse.DenseArray, len(SeasonWeeks))
			for i := range weekly {
				weekly[i] = sparse.ZerosDense(data.Shape...)
			}
		} else if err := checkShape(weekly[0], data); err != nil {
			return nil, err
		}
		slot, err := seasonWeekSlot(day)
		if err != nil {
			return nil, err
		}
		weekly[slot].AddDense(data)
	}
	if _, err := next(); err != io.EOF {
		if err == nil {
			return nil, ErrDayCountMismatch
		}
		return nil, err
	}
	return &Stack{Times: append([]int(nil), SeasonWeeks...), Layers: weekly}, nil
}

// seasonStats holds the per-year products of the rainfall aggregation:
// the season rainfall total and the CV of the weekly totals.
type seasonStats struct {
	total *sparse.DenseArray
	cv    *sparse.DenseArray
}

// SeasonalRainfallStats computes, for each given year, the weekly
// growing-season rainfall totals, then combines them into two
// long-term products: the mean annual (season-total) rainfall and the
// mean across years of the per-year CV of weekly rainfall. The open
// function returns a daily-grid iterator for one year. Years are
// processed concurrently by at most the given number of workers
// (GOMAXPROCS if workers < 1); results are combined in ascending year
// order so the output is reproducible. Progress messages are sent to
// msgChan if it is not nil. Any per-year error aborts the whole
// computation.
func SeasonalRainfallStats(years []int, open func(year int) (NextData, error), workers int, msgChan chan string) (meanTotal, meanWeeklyCV *sparse.DenseArray, err error) {
	if len(years) == 0 {
		return nil, nil, fmt.Errorf("greenvar: no years given for rainfall statistics")
	}
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	sorted := make([]int, len(years))
	copy(sorted, years)
	sort.Ints(sorted)

	results := make([]seasonStats, len(sorted))
	errs := make([]error, len(sorted))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, year := range sorted {
		wg.Add(1)
		go func(i, year int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i], errs[i] = yearRainfallStats(year, open)
			if errs[i] == nil && msgChan != nil {
				msgChan <- fmt.Sprintf("Computed weekly rainfall statistics for %d–%d season", year, year+1)
			}
		}(i, year)
	}
	wg.Wait()
	for _, e := range errs {
		if e != nil {
			return nil, nil, e
		}
	}

	// Combine in ascending year order.
	ny := float64(len(sorted))
	meanTotal = sparse.ZerosDense(results[0].total.Shape...)
	meanWeeklyCV = sparse.ZerosDense(results[0].cv.Shape...)
	for _, r := range results {
		if err := checkShape(meanTotal, r.total); err != nil {
			return nil, nil, err
		}
		meanTotal.AddDense(r.total)
		meanWeeklyCV.AddDense(r.cv)
	}
	return arrayScale(meanTotal, 1/ny), arrayScale(meanWeeklyCV, 1/ny), nil
}

func yearRainfallStats(year int, open func(year int) (NextData, error)) (seasonStats, error) {
	next, err := open(year)
	if err != nil {
		return seasonStats{}, err
	}
	weekly, err := WeeklyTotals(year, next)
	if err != nil {
		return seasonStats{}, err
	}
	cv, err := TemporalCV(weekly.Iter())
	if err != nil {
		return seasonStats{}, err
	}
	total := sparse.ZerosDense(weekly.Layers[0].Shape...)
	for _, w := range weekly.Layers {
		total.AddDense(w)
	}
	return seasonStats{total: total, cv: cv}, nil
}
