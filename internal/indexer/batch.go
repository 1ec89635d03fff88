package indexer

// batchRange is a half-open window [start, end) over the product list.
type batchRange struct {
	start, end int
}

// batches splits n items into consecutive windows of at most size items.
func batches(n, size int) []batchRange {
	if n <= 0 {
		return nil
	}
	if size <= 0 {
		size = n
	}
	out := make([]batchRange, 0, (n+size-1)/size)
	for i := 0; i < n; i += size {
		end := i + size
		if end > n {
			end = n
		}
		out = append(out, batchRange{start: i, end: end})
	}
	return out
}
