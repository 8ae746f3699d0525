// Package crawl implements the breadth-first site crawl: URL
// normalization and scoping, a capped FIFO frontier with a visited
// set, page extraction with goquery, and a batch driver that renders
// up to a configured number of pages in parallel per frontier level.
package crawl
