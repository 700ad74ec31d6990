package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Resource is a REST collection at path supporting the usual CRUD verbs.
type Resource[T any] struct {
	client *Client
	path   string
}

func NewResource[T any](client *Client, path string) *Resource[T] {
	return &Resource[T]{client: client, path: path}
}

// page is the paginated list envelope some endpoints answer with.
type page[T any] struct {
	Count   int    `json:"count"`
	Next    string `json:"next"`
	Results []T    `json:"results"`
}

// List returns the collection. Both plain arrays and paginated envelopes are
// accepted; for the latter only the first page is returned.
func (r *Resource[T]) List(ctx context.Context, query url.Values) ([]T, error) {
	var raw json.RawMessage
	if err := r.client.Do(ctx, http.MethodGet, r.path, query, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[T](raw)
}

func (r *Resource[T]) Get(ctx context.Context, id int64) (*T, error) {
	var item T
	if err := r.client.Do(ctx, http.MethodGet, r.itemPath(id), nil, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Resource[T]) Create(ctx context.Context, item *T) (*T, error) {
	var created T
	if err := r.client.Do(ctx, http.MethodPost, r.path, nil, item, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *Resource[T]) Update(ctx context.Context, id int64, item *T) (*T, error) {
	var updated T
	if err := r.client.Do(ctx, http.MethodPut, r.itemPath(id), nil, item, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *Resource[T]) Delete(ctx context.Context, id int64) error {
	return r.client.Do(ctx, http.MethodDelete, r.itemPath(id), nil, nil, nil)
}

func (r *Resource[T]) itemPath(id int64) string {
	return r.path + strconv.FormatInt(id, 10) + "/"
}

func decodeList[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("failed to parse list: %w", err)
		}
		return items, nil
	}
	var p page[T]
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, fmt.Errorf("failed to parse list: %w", err)
	}
	return p.Results, nil
}
