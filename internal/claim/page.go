package claim

import "time"

// Page is the browser capability surface the claim protocol drives.
// Selector strings are opaque here; implementations decide how to
// interpret them. The rod implementation accepts plain CSS plus a
// "text=" prefix matched against visible element text, which is how
// the faucet's send button and result banners are identified.
//
// Lookups other than WaitVisible and Navigate must not block waiting
// for elements to appear; the protocol decides when to wait.
type Page interface {
	// Navigate loads url and waits for page readiness up to timeout.
	// An error means readiness was never observed, not necessarily
	// that the page is unusable.
	Navigate(url string, timeout time.Duration) error

	// WaitVisible blocks until the selector matches a visible element
	// or the timeout elapses.
	WaitVisible(selector string, timeout time.Duration) error

	// Locate returns the first element currently matching selector.
	Locate(selector string) (Element, error)

	// Text returns the visible text of the first current match.
	Text(selector string) (string, error)

	// Count returns how many elements currently match.
	Count(selector string) (int, error)

	// Reload reloads the current page.
	Reload() error
}

// Element is a handle to one located page element.
type Element interface {
	Click() error

	// ClearAndFill empties the element, pauses briefly, then types
	// text character by character with perChar delay between keys.
	ClearAndFill(text string, perChar time.Duration) error

	Text() (string, error)
}
