// internal/paging/paging.go
package paging

import (
	"context"
	"fmt"
)

// DefaultSize is the page size used by batch scans.
const DefaultSize = 5000

// Page addresses one fixed-size window of a result set.
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of rows preceding the page.
func (p Page) Offset() int {
	return p.Number * p.Size
}

// Slice is one page of results plus whether another page follows.
type Slice[T any] struct {
	Items   []T
	HasNext bool
}

// FetchFunc loads a single page.
type FetchFunc[T any] func(ctx context.Context, page Page) (Slice[T], error)

// Walk fetches pages in order and hands each one to visit until a page
// reports no successor.
func Walk[T any](ctx context.Context, size int, fetch FetchFunc[T], visit func([]T)) error {
	if size <= 0 {
		size = DefaultSize
	}

	for number := 0; ; number++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		slice, err := fetch(ctx, Page{Number: number, Size: size})
		if err != nil {
			return fmt.Errorf("fetch page %d: %w", number, err)
		}

		visit(slice.Items)

		if !slice.HasNext {
			return nil
		}
	}
}

// Collect materializes every page into a single slice.
func Collect[T any](ctx context.Context, size int, fetch FetchFunc[T]) ([]T, error) {
	var result []T
	err := Walk(ctx, size, fetch, func(items []T) {
		result = append(result, items...)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SliceOf trims an over-fetched result (size+1 rows) into a Slice.
func SliceOf[T any](rows []T, size int) Slice[T] {
	if len(rows) > size {
		return Slice[T]{Items: rows[:size], HasNext: true}
	}
	return Slice[T]{Items: rows}
}
