// Package browser abstracts the automation client driving the meeting web
// UI. The bot state machine depends only on Driver, so the concrete
// automation technology can be swapped without touching session logic.
package browser

import "time"

// Driver is the capability surface the bot needs from a browser automation
// client. Selectors starting with "//" are XPath, anything else is CSS.
// Element lookups are bounded by timeout; a missing element is reported, not
// blocked on.
type Driver interface {
	Navigate(url string) error

	// Exists reports whether an element appears within timeout. Absence is
	// "condition not met", never an error.
	Exists(selector string, timeout time.Duration) bool

	Click(selector string, timeout time.Duration) error
	Fill(selector, text string, timeout time.Duration) error
	Text(selector string, timeout time.Duration) (string, error)
	Attribute(selector, name string, timeout time.Duration) (string, error)

	// Eval runs a script in the page and returns its result as a string.
	Eval(js string) (string, error)

	// LocalStorage reads one key from the page's local storage. Missing keys
	// return an empty string.
	LocalStorage(key string) (string, error)

	// Quit tears down the page and the browser process.
	Quit() error
}
