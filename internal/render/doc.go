// Package render loads pages in headless Chrome via chromedp so that
// audits see the DOM after JavaScript has run, the way a real visitor
// and a search engine renderer do.
package render
