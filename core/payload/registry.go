package payload

import (
	"fmt"
	"sync"
)

// converters is the global registry of named Converter implementations.
//
// "default" is registered out of the box. Custom converters (e.g. a
// protobuf-schema-aware one matching the server's actual wire format) can be
// added via RegisterConverter before worker construction.
var (
	converters = map[string]Converter{
		"default": JSONConverter{},
	}
	mutex sync.RWMutex
)

// GetConverter retrieves a Converter by name from the registry.
func GetConverter(name string) (Converter, error) {
	mutex.RLock()
	defer mutex.RUnlock()

	c, exists := converters[name]
	if !exists {
		return nil, fmt.Errorf("unknown data converter: %s", name)
	}
	return c, nil
}

// RegisterConverter adds or replaces a named Converter in the global registry.
func RegisterConverter(name string, converter Converter) {
	mutex.Lock()
	defer mutex.Unlock()

	converters[name] = converter
}
