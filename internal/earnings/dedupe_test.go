package earnings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EarningsTracker/internal/domain"
)

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func report(code, period, disclosed string) domain.Report {
	return domain.Report{Code: code, Period: day(period), DisclosureDate: day(disclosed)}
}

func TestLatestPerPeriodKeepsNewestDisclosure(t *testing.T) {
	t.Parallel()

	got := LatestPerPeriod([]domain.Report{
		report("A", "2025-06-30", "2025-06-28"),
		report("A", "2025-06-30", "2025-06-30"),
	})

	require.Len(t, got, 1)
	assert.Equal(t, "2025-06-30", got[0].DisclosureKey())

	got = LatestPerPeriod([]domain.Report{
		report("A", "2025-06-30", "2025-06-30"),
		report("A", "2025-06-30", "2025-06-28"),
	})
	require.Len(t, got, 1)
	assert.Equal(t, "2025-06-30", got[0].DisclosureKey())
}

func TestLatestPerPeriodTieKeepsFirstSeen(t *testing.T) {
	t.Parallel()

	first := report("A", "2025-06-30", "2025-07-01")
	first.ForecastType = "first"
	second := report("A", "2025-06-30", "2025-07-01")
	second.ForecastType = "second"

	got := LatestPerPeriod([]domain.Report{first, second})
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].ForecastType)
}

func TestLatestPerEntityKeepsLatestPeriod(t *testing.T) {
	t.Parallel()

	got := LatestPerEntity([]domain.Report{
		report("A", "2025-03-31", "2025-04-10"),
		report("A", "2025-06-30", "2025-07-10"),
		report("B", "2025-06-30", "2025-07-09"),
	})

	require.Len(t, got, 2)
	assert.Equal(t, "2025-06-30", got["A"].PeriodKey())
	assert.Equal(t, "2025-07-10", got["A"].DisclosureKey())
	assert.Equal(t, "2025-07-09", got["B"].DisclosureKey())
}

func TestLatestPerEntitySameDayPrefersLaterPeriod(t *testing.T) {
	t.Parallel()

	got := LatestPerEntity([]domain.Report{
		report("A", "2025-06-30", "2025-07-10"),
		report("A", "2025-03-31", "2025-07-10"),
	})
	assert.Equal(t, "2025-06-30", got["A"].PeriodKey())

	got = LatestPerEntity([]domain.Report{
		report("A", "2025-03-31", "2025-07-10"),
		report("A", "2025-06-30", "2025-07-10"),
	})
	assert.Equal(t, "2025-06-30", got["A"].PeriodKey())
}

func TestOrderedSortsNewestFirstThenCode(t *testing.T) {
	t.Parallel()

	got := Ordered(map[string]domain.Report{
		"B": report("B", "2025-06-30", "2025-07-10"),
		"A": report("A", "2025-06-30", "2025-07-10"),
		"C": report("C", "2025-06-30", "2025-07-12"),
	})

	require.Len(t, got, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{got[0].Code, got[1].Code, got[2].Code})
}
