package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lxidea/whut-portal/app/listing"
	"github.com/lxidea/whut-portal/app/portal"
)

func TestPagerLine(t *testing.T) {
	p := listing.NewPager(5, 120, 12, 1)
	assert.Equal(t, "1 … 4 [5] 6 … 10", pagerLine(p))
}

func TestPasswordOrStdin(t *testing.T) {
	got, err := passwordOrStdin("secret", strings.NewReader("ignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "secret", got)

	got, err = passwordOrStdin("", strings.NewReader("typed\n"))
	require.NoError(t, err)
	assert.Equal(t, "typed", got)

	_, err = passwordOrStdin("", strings.NewReader(""))
	assert.Error(t, err)

	_, err = passwordOrStdin("", strings.NewReader("\n"))
	assert.EqualError(t, err, "password is required")
}

func TestPasswordOrStdinKeepsSpaces(t *testing.T) {
	got, err := passwordOrStdin("", strings.NewReader("correct horse battery\r\nnext line\n"))
	require.NoError(t, err)
	assert.Equal(t, "correct horse battery", got)

	got, err = passwordOrStdin("", strings.NewReader(" padded "))
	require.NoError(t, err)
	assert.Equal(t, " padded ", got)
}

func TestPrintMonthly(t *testing.T) {
	m := &portal.MonthlyCalendar{
		Year:      2025,
		Month:     9,
		MonthName: "September",
		Days: []portal.CalendarDay{
			{Day: 1, Weekday: 0, WeekInfo: &portal.WeekInfo{WeekNumber: 1}},
			{Day: 2, Weekday: 1, IsToday: true, WeekInfo: &portal.WeekInfo{WeekNumber: 1}},
			{Day: 8, Weekday: 0, WeekInfo: &portal.WeekInfo{WeekNumber: 2, IsHoliday: true}},
		},
	}

	var buf bytes.Buffer
	printMonthly(&buf, m)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "September 2025", lines[0])
	assert.Equal(t, " 1   1   2*", lines[2])
	assert.Equal(t, " 2   8h", lines[3])
}

func TestPrintSummaryWithoutSemester(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &portal.CalendarSummary{})
	assert.Equal(t, "No current semester.\n", buf.String())
}

func TestPrintCategoryStats(t *testing.T) {
	var buf bytes.Buffer
	err := printCategoryStats(&buf, []listing.CategoryStat{
		{Category: "notice", Total: 42, Latest: "Exam week"},
		{Category: "empty", Total: 0},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"CATEGORY", "TOTAL", "LATEST"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"notice", "42", "Exam", "week"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"empty", "0", "-"}, strings.Fields(lines[2]))
}
