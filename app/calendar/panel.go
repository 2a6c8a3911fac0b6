package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lxidea/whut-portal/app/portal"
)

const DefaultInterval = time.Hour

type API interface {
	GetCalendarSummary(ctx context.Context) (*portal.CalendarSummary, error)
	GetMonthlyCalendar(ctx context.Context, year, month int) (*portal.MonthlyCalendar, error)
}

var _ API = (*portal.Client)(nil)

// Panel keeps the academic calendar summary shown next to the news list.
// A failed refresh never discards the last good summary.
type Panel struct {
	api      API
	interval time.Duration
	timeout  time.Duration

	mu        sync.RWMutex
	summary   *portal.CalendarSummary
	fetchedAt time.Time
	lastErr   error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPanel(api API, interval, timeout time.Duration) *Panel {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Panel{
		api:      api,
		interval: interval,
		timeout:  timeout,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (p *Panel) Refresh(ctx context.Context) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	summary, err := p.api.GetCalendarSummary(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.lastErr = err
		return fmt.Errorf("failed to refresh calendar summary: %w", err)
	}

	p.summary = summary
	p.fetchedAt = time.Now()
	p.lastErr = nil
	return nil
}

// Summary returns the last good summary, nil before the first success.
func (p *Panel) Summary() (*portal.CalendarSummary, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.summary, p.fetchedAt
}

// Err is the error of the latest refresh, nil if it succeeded.
func (p *Panel) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

func (p *Panel) Monthly(ctx context.Context, year, month int) (*portal.MonthlyCalendar, error) {
	if month < 0 || month > 12 {
		return nil, fmt.Errorf("%w: month must be between 1 and 12", portal.ErrInvalidQuery)
	}
	return p.api.GetMonthlyCalendar(ctx, year, month)
}

// Start refreshes immediately and then on every interval until Stop.
func (p *Panel) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.refreshLogged()

		for {
			select {
			case <-p.ctx.Done():
				return
			case <-ticker.C:
				p.refreshLogged()
			}
		}
	}()
}

func (p *Panel) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *Panel) refreshLogged() {
	if err := p.Refresh(p.ctx); err != nil {
		if p.ctx.Err() != nil {
			return
		}
		slog.Warn("Calendar refresh failed, keeping last summary", "error", err)
		return
	}
	slog.Debug("Calendar summary refreshed")
}
