package crawl

// item is a queued URL with its BFS depth.
type item struct {
	url   string
	depth int
}

// frontier is a FIFO of normalized URLs with a visited set and a hard
// cap on how many URLs may ever be admitted. It is not safe for
// concurrent use; the crawler owns it from a single goroutine.
type frontier struct {
	queue   []item
	visited map[string]struct{}
	cap     int
}

func newFrontier(capacity int) *frontier {
	return &frontier{
		visited: make(map[string]struct{}, capacity),
		cap:     capacity,
	}
}

// push admits url at depth unless it was already seen or the cap is
// reached. Returns true when the URL was queued.
func (f *frontier) push(url string, depth int) bool {
	if _, seen := f.visited[url]; seen {
		return false
	}
	if len(f.visited) >= f.cap {
		return false
	}
	f.visited[url] = struct{}{}
	f.queue = append(f.queue, item{url: url, depth: depth})
	return true
}

// pop removes and returns up to n items from the head of the queue.
func (f *frontier) pop(n int) []item {
	if n > len(f.queue) {
		n = len(f.queue)
	}
	batch := f.queue[:n]
	f.queue = f.queue[n:]
	return batch
}

func (f *frontier) empty() bool {
	return len(f.queue) == 0
}

func (f *frontier) seen(url string) bool {
	_, ok := f.visited[url]
	return ok
}
