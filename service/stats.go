package service

import (
	"context"
	"fmt"

	"taxidispatch/pkg/models"
)

type OrderStats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

type DriverStats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Busy   int `json:"busy"`
}

type ClientStats struct {
	Total int `json:"total"`
}

type Stats struct {
	Orders  OrderStats  `json:"orders"`
	Drivers DriverStats `json:"drivers"`
	Clients ClientStats `json:"clients"`
}

type StatsService interface {
	Get(ctx context.Context) (*Stats, error)
}

type statsService struct {
	*deps
}

func NewStatsService(d *deps) StatsService {
	return &statsService{deps: d}
}

func (s *statsService) Get(ctx context.Context) (*Stats, error) {
	var (
		st     Stats
		err    error
		active = models.DriverStatusActive
		busy   = true
	)

	orders := s.stg.Order()
	if st.Orders.Total, err = orders.Count(ctx); err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}
	if st.Orders.Active, err = orders.Count(ctx, models.ActiveOrderStatuses...); err != nil {
		return nil, fmt.Errorf("count active orders: %w", err)
	}
	if st.Orders.Completed, err = orders.Count(ctx, models.OrderStatusCompleted); err != nil {
		return nil, fmt.Errorf("count completed orders: %w", err)
	}
	if st.Orders.Cancelled, err = orders.Count(ctx, models.OrderStatusCancelled); err != nil {
		return nil, fmt.Errorf("count cancelled orders: %w", err)
	}

	drivers := s.stg.Driver()
	if st.Drivers.Total, err = drivers.Count(ctx, models.DriverFilter{}); err != nil {
		return nil, fmt.Errorf("count drivers: %w", err)
	}
	if st.Drivers.Active, err = drivers.Count(ctx, models.DriverFilter{Status: &active}); err != nil {
		return nil, fmt.Errorf("count active drivers: %w", err)
	}
	if st.Drivers.Busy, err = drivers.Count(ctx, models.DriverFilter{Busy: &busy}); err != nil {
		return nil, fmt.Errorf("count busy drivers: %w", err)
	}

	if st.Clients.Total, err = s.stg.Client().Count(ctx); err != nil {
		return nil, fmt.Errorf("count clients: %w", err)
	}
	return &st, nil
}
