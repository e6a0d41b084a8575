package gateway

import (
	"strings"

	"github.com/davidbz/starray/internal/domain"
)

const qualifierSeparator = "/"

// Vendors returns the vendor names served through the gateway.
func Vendors() []string {
	return []string{
		"openai",
		"anthropic",
		"gemini",
	}
}

// QualifiedModel prefixes a bare model name with the vendor.
// Names already carrying a qualifier are returned unchanged.
func QualifiedModel(vendor, model string) string {
	if strings.Contains(model, qualifierSeparator) {
		return model
	}
	return vendor + qualifierSeparator + model
}

// Registrar is the part of the registry the gateway needs.
type Registrar interface {
	RegisterFactory(name string, factory func() (domain.Provider, error)) error
}

// RegisterVendors installs a lazy factory for every gateway vendor.
func RegisterVendors(reg Registrar, cfg Config) error {
	for _, vendor := range Vendors() {
		if err := reg.RegisterFactory(vendor, func() (domain.Provider, error) {
			return NewProvider(vendor, cfg)
		}); err != nil {
			return err
		}
	}
	return nil
}
