package store

import (
	"fmt"
	"log"

	"github.com/gcbaptista/go-dupfinder/config"
)

// Open creates the store selected by settings.Store.Driver.
func Open(settings config.Settings) (Store, error) {
	path := settings.StorePath()
	switch settings.Store.Driver {
	case config.DriverMemory:
		log.Printf("Using memory store with snapshot %s", path)
		return OpenMemoryStore(path)
	case config.DriverSQLite:
		log.Printf("Using sqlite store at %s", path)
		return OpenSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", settings.Store.Driver)
	}
}
