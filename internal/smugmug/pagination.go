package smugmug

import (
	"context"
	"fmt"
)

// paginate implements spec.md §6.1's pagination contract: pass start
// (1-based) and count (max pageSize) until len(accumulated) >= Total.
// fetchPage must perform one GET at the given start/count and return the
// number of items the page held (before any filtering) plus the reported
// Pages.Total.
func paginate(ctx context.Context, fetchPage func(ctx context.Context, start, count int) (itemsInPage, total int, err error)) error {
	start := 1
	accumulated := 0

	for {
		n, total, err := fetchPage(ctx, start, pageSize)
		if err != nil {
			return fmt.Errorf("smugmug: paginating: %w", err)
		}

		accumulated += n
		start += pageSize

		if accumulated >= total || n == 0 {
			return nil
		}
	}
}
