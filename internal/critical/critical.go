// Package critical provides the mutual-exclusion primitive shared by the shell
// loop, the receive path and ABI callbacks running on behalf of an application.
package critical

import "sync"

// Section serialises access to state that is touched from more than one
// execution context. It is not reentrant. The zero value is ready to use.
type Section struct {
	mu sync.Mutex
}

// Do runs fn with the section held. The section is released even if fn panics.
func (s *Section) Do(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}
