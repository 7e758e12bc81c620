package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tazhate/remindbot/internal/domain"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestNextDueOnceConvertsWallTimeToUTC(t *testing.T) {
	sg := mustLoc(t, "Asia/Singapore")
	freq := domain.Frequency{Kind: domain.FrequencyOnce, Year: 2025, Month: time.June, Day: 10}

	got, err := NextDue(freq, 14, 0, sg, time.Now())
	require.NoError(t, err)
	// Singapore is UTC+8 year round.
	require.Equal(t, time.Date(2025, time.June, 10, 6, 0, 0, 0, time.UTC), got)
}

func TestNextDueOncePastDateIsNotAdjusted(t *testing.T) {
	freq := domain.Frequency{Kind: domain.FrequencyOnce, Year: 2020, Month: time.January, Day: 1}

	got, err := NextDue(freq, 9, 0, time.UTC, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, got.Before(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestNextDueOnceRejectsImpossibleDate(t *testing.T) {
	freq := domain.Frequency{Kind: domain.FrequencyOnce, Year: 2025, Month: time.February, Day: 30}

	_, err := NextDue(freq, 9, 0, time.UTC, time.Now())
	require.Error(t, err)
}

func TestNextDueDailyKeepsWallClockAcrossFallBack(t *testing.T) {
	ny := mustLoc(t, "America/New_York")
	freq := domain.Frequency{Kind: domain.FrequencyDaily}

	// DST in New York ends on Nov 2 2025.
	after := time.Date(2025, time.November, 1, 8, 0, 0, 0, ny)
	first, err := NextDue(freq, 9, 0, ny, after)
	require.NoError(t, err)
	second, err := NextDue(freq, 9, 0, ny, first)
	require.NoError(t, err)

	require.Equal(t, "09:00", first.In(ny).Format("15:04"))
	require.Equal(t, "09:00", second.In(ny).Format("15:04"))
	// The local day across the transition is 25 real hours long.
	require.Equal(t, 25*time.Hour, second.Sub(first))
}

func TestNextDueDailyKeepsWallClockAcrossSpringForward(t *testing.T) {
	ny := mustLoc(t, "America/New_York")
	freq := domain.Frequency{Kind: domain.FrequencyDaily}

	// DST in New York starts on Mar 9 2025.
	after := time.Date(2025, time.March, 8, 8, 0, 0, 0, ny)
	first, err := NextDue(freq, 9, 0, ny, after)
	require.NoError(t, err)
	second, err := NextDue(freq, 9, 0, ny, first)
	require.NoError(t, err)

	require.Equal(t, "09:00", second.In(ny).Format("15:04"))
	require.Equal(t, 23*time.Hour, second.Sub(first))
}

func TestNextDueDailySameDayWhenWallTimeStillAhead(t *testing.T) {
	freq := domain.Frequency{Kind: domain.FrequencyDaily}

	after := time.Date(2025, time.January, 1, 8, 0, 0, 0, time.UTC)
	got, err := NextDue(freq, 9, 0, time.UTC, after)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC), got)
}

func TestNextDueWeekly(t *testing.T) {
	// Jan 1 2025 is a Wednesday.
	for _, tc := range []struct {
		name    string
		weekday time.Weekday
		after   time.Time
		want    time.Time
	}{
		{
			name:    "later this week",
			weekday: time.Friday,
			after:   time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
			want:    time.Date(2025, time.January, 3, 9, 0, 0, 0, time.UTC),
		},
		{
			name:    "same day before wall time",
			weekday: time.Wednesday,
			after:   time.Date(2025, time.January, 1, 8, 0, 0, 0, time.UTC),
			want:    time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			name:    "exactly at wall time rolls a week",
			weekday: time.Wednesday,
			after:   time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC),
			want:    time.Date(2025, time.January, 8, 9, 0, 0, 0, time.UTC),
		},
		{
			name:    "crosses month boundary",
			weekday: time.Saturday,
			after:   time.Date(2025, time.January, 29, 0, 0, 0, 0, time.UTC),
			want:    time.Date(2025, time.February, 1, 9, 0, 0, 0, time.UTC),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			freq := domain.Frequency{Kind: domain.FrequencyWeekly, Weekday: tc.weekday}
			got, err := NextDue(freq, 9, 0, time.UTC, tc.after)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNextDueWeeklyKeepsWallClockAcrossSpringForward(t *testing.T) {
	ny := mustLoc(t, "America/New_York")
	freq := domain.Frequency{Kind: domain.FrequencyWeekly, Weekday: time.Wednesday}

	// Mar 5 2025 is a Wednesday; DST starts on Mar 9.
	prev := time.Date(2025, time.March, 5, 9, 0, 0, 0, ny)
	got, err := NextDue(freq, 9, 0, ny, prev)
	require.NoError(t, err)

	require.Equal(t, time.Date(2025, time.March, 12, 9, 0, 0, 0, ny).UTC(), got)
	require.Equal(t, "09:00", got.In(ny).Format("15:04"))
	// A week minus the hour lost to the transition.
	require.Equal(t, 167*time.Hour, got.Sub(prev))
}

func TestNextDueMonthlySkipsShortMonths(t *testing.T) {
	freq := domain.Frequency{Kind: domain.FrequencyMonthly, Day: 31}

	after := time.Date(2025, time.April, 2, 0, 0, 0, 0, time.UTC)
	got, err := NextDue(freq, 9, 0, time.UTC, after)
	require.NoError(t, err)
	// April has 30 days, so the next fire is May 31, not Apr 30.
	require.Equal(t, time.Date(2025, time.May, 31, 9, 0, 0, 0, time.UTC), got)
}

func TestNextDueMonthlySkipsFebruary(t *testing.T) {
	freq := domain.Frequency{Kind: domain.FrequencyMonthly, Day: 30}

	after := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)
	got, err := NextDue(freq, 9, 0, time.UTC, after)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, time.March, 30, 9, 0, 0, 0, time.UTC), got)
}

func TestNextDueMonthlySameMonthWhenStillAhead(t *testing.T) {
	freq := domain.Frequency{Kind: domain.FrequencyMonthly, Day: 15}

	after := time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)
	got, err := NextDue(freq, 9, 0, time.UTC, after)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC), got)
}

func TestNextDueYearlySkipsNonLeapYears(t *testing.T) {
	freq := domain.Frequency{Kind: domain.FrequencyYearly, Month: time.February, Day: 29}

	after := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	got, err := NextDue(freq, 9, 0, time.UTC, after)
	require.NoError(t, err)
	require.Equal(t, time.Date(2028, time.February, 29, 9, 0, 0, 0, time.UTC), got)
}

func TestNextDueYearlyNextOccurrenceThisYear(t *testing.T) {
	freq := domain.Frequency{Kind: domain.FrequencyYearly, Month: time.December, Day: 25}

	after := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	got, err := NextDue(freq, 18, 30, time.UTC, after)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, time.December, 25, 18, 30, 0, 0, time.UTC), got)
}

func TestNextDueIsStrictlyInTheFuture(t *testing.T) {
	ny := mustLoc(t, "America/New_York")
	freqs := []domain.Frequency{
		{Kind: domain.FrequencyDaily},
		{Kind: domain.FrequencyWeekly, Weekday: time.Monday},
		{Kind: domain.FrequencyMonthly, Day: 31},
		{Kind: domain.FrequencyYearly, Month: time.February, Day: 29},
	}

	after := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 400; i++ {
		for _, freq := range freqs {
			got, err := NextDue(freq, 9, 0, ny, after)
			require.NoError(t, err)
			require.True(t, got.After(after), "%s: %s is not after %s", freq.Kind, got, after)

			// Feeding the result back must advance again.
			next, err := NextDue(freq, 9, 0, ny, got)
			require.NoError(t, err)
			require.True(t, next.After(got))
		}
		after = after.Add(17 * time.Hour)
	}
}

func TestNextDueRejectsNilLocation(t *testing.T) {
	_, err := NextDue(domain.Frequency{Kind: domain.FrequencyDaily}, 9, 0, nil, time.Now())
	require.ErrorIs(t, err, ErrNoLocation)
}

func TestNextDueRejectsInvalidFrequency(t *testing.T) {
	_, err := NextDue(domain.Frequency{Kind: "hourly"}, 9, 0, time.UTC, time.Now())
	require.Error(t, err)

	_, err = NextDue(domain.Frequency{Kind: domain.FrequencyMonthly, Day: 32}, 9, 0, time.UTC, time.Now())
	require.Error(t, err)
}

func TestDaysInMonth(t *testing.T) {
	require.Equal(t, 31, DaysInMonth(2025, time.January))
	require.Equal(t, 28, DaysInMonth(2025, time.February))
	require.Equal(t, 29, DaysInMonth(2028, time.February))
	require.Equal(t, 30, DaysInMonth(2025, time.April))
}
