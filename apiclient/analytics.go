package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Report is an analytics payload; its shape varies per report.
type Report map[string]any

// AnalyticsQuery narrows a report. Zero fields are omitted.
type AnalyticsQuery struct {
	TimeRange string // e.g. "week", "month", "year"
	ShopID    int64
}

func (q AnalyticsQuery) values() url.Values {
	v := url.Values{}
	if q.TimeRange != "" {
		v.Set("time_range", q.TimeRange)
	}
	if q.ShopID != 0 {
		v.Set("shop_id", strconv.FormatInt(q.ShopID, 10))
	}
	return v
}

type Analytics struct {
	client *Client
}

func (a *Analytics) Sales(ctx context.Context, q AnalyticsQuery) (Report, error) {
	return a.report(ctx, "analytics/sales/", q)
}

func (a *Analytics) Customers(ctx context.Context, q AnalyticsQuery) (Report, error) {
	return a.report(ctx, "analytics/customers/", q)
}

func (a *Analytics) Inventory(ctx context.Context, q AnalyticsQuery) (Report, error) {
	return a.report(ctx, "analytics/inventory/", q)
}

func (a *Analytics) Financial(ctx context.Context, q AnalyticsQuery) (Report, error) {
	return a.report(ctx, "analytics/financial/", q)
}

func (a *Analytics) report(ctx context.Context, path string, q AnalyticsQuery) (Report, error) {
	var r Report
	if err := a.client.Do(ctx, http.MethodGet, path, q.values(), nil, &r); err != nil {
		return nil, err
	}
	return r, nil
}
