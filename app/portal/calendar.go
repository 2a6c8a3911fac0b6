package portal

import (
	"context"
	"net/url"
	"strconv"
)

func (c *Client) GetCalendarSummary(ctx context.Context) (*CalendarSummary, error) {
	var summary CalendarSummary
	if err := c.get(ctx, "calendar summary", "/api/calendar/summary", nil, "", &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *Client) GetCurrentSemester(ctx context.Context) (*Semester, error) {
	var semester Semester
	if err := c.get(ctx, "current semester", "/api/calendar/semesters/current", nil, "", &semester); err != nil {
		return nil, err
	}
	return &semester, nil
}

func (c *Client) ListSemesters(ctx context.Context) ([]Semester, error) {
	var semesters []Semester
	if err := c.get(ctx, "list semesters", "/api/calendar/semesters", nil, "", &semesters); err != nil {
		return nil, err
	}
	return semesters, nil
}

// GetMonthlyCalendar leaves year or month out of the query when zero so
// the backend falls back to the current month.
func (c *Client) GetMonthlyCalendar(ctx context.Context, year, month int) (*MonthlyCalendar, error) {
	query := url.Values{}
	if year > 0 {
		query.Set("year", strconv.Itoa(year))
	}
	if month > 0 {
		query.Set("month", strconv.Itoa(month))
	}

	var monthly MonthlyCalendar
	if err := c.get(ctx, "monthly calendar", "/api/calendar/monthly", query, "", &monthly); err != nil {
		return nil, err
	}
	return &monthly, nil
}
