package enums

import (
	"fmt"
	"strings"
)

// POSProvider identifies the external point-of-sale system a location syncs with.
type POSProvider string

const (
	POSProviderNone   POSProvider = "none"
	POSProviderSquare POSProvider = "square"
	POSProviderREST   POSProvider = "rest"
)

var validPOSProviders = []POSProvider{
	POSProviderNone,
	POSProviderSquare,
	POSProviderREST,
}

func (p POSProvider) String() string {
	return string(p)
}

// IsValid reports whether the value matches a known provider.
func (p POSProvider) IsValid() bool {
	for _, candidate := range validPOSProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// Syncable reports whether the provider points at an external system.
func (p POSProvider) Syncable() bool {
	return p != "" && p != POSProviderNone
}

// ParsePOSProvider converts raw input into a POSProvider.
func ParsePOSProvider(value string) (POSProvider, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return POSProviderNone, nil
	}
	for _, candidate := range validPOSProviders {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pos provider %q", value)
}
