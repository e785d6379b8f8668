package host

import (
	"time"

	"github.com/reglet-dev/h7-kernel/domain/ports"
)

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFiles sets the storage LoadFile reads from.
func WithFiles(fr ports.FileReader) LoaderOption {
	return func(l *Loader) { l.files = fr }
}

// WithPollInterval sets how long ReceiveHex sleeps when the source is empty.
func WithPollInterval(d time.Duration) LoaderOption {
	return func(l *Loader) {
		if d > 0 {
			l.poll = d
		}
	}
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCache sets the cache controller. The default is a no-op controller.
func WithCache(cc ports.CacheController) EngineOption {
	return func(e *Engine) { e.cache = cc }
}

// WithCRCPolicy sets what a CRC mismatch means to Run.
func WithCRCPolicy(p CRCPolicy) EngineOption {
	return func(e *Engine) { e.policy = p }
}

// WithInputFlush clears q after every run, dropping keystrokes the
// application left unread.
func WithInputFlush(q Clearer) EngineOption {
	return func(e *Engine) { e.input = q }
}
