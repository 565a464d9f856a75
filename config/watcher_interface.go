package config

// Watcher provides the live configuration and notifies subscribers when a
// new, valid version has been loaded.
type Watcher interface {
	GetCurrentConfig() *Config
	Subscribe() <-chan *Config
	Close() error
}
