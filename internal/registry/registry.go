// Package registry provides the static table of named inverter parameters:
// wire addresses, data types, scaling and classification metadata. The
// registry is built once at startup and read-only afterward, so it is safe
// for unsynchronized concurrent reads from any number of clients.
package registry

import (
	"errors"
	"fmt"

	"github.com/resident-x/go-lynx/internal/protocol"
)

// ErrNotFound is returned when a parameter name is not present in the
// registry.
var ErrNotFound = errors.New("unknown parameter")

// ParameterDefinition is an immutable descriptor for one named inverter
// parameter.
type ParameterDefinition struct {
	// Name is the unique key callers use to request the parameter.
	Name string
	// Index and Subindex form the vendor-assigned parameter ID within the
	// owning module.
	Index    byte
	Subindex byte
	// ModuleID identifies the hardware subsystem owning the parameter;
	// everything in the TLX table lives on the communication board.
	ModuleID byte
	// DataType is the wire data type the inverter reports for this
	// parameter.
	DataType protocol.DataType
	// Scale is the positive divisor applied to the raw integer value to
	// obtain engineering units. 1 for unscaled parameters; ignored for
	// text types.
	Scale float64
	// Unit is the display unit, possibly empty.
	Unit string
	// Classification is the semantic category for downstream consumers,
	// e.g. "power" or "voltage". Doubles as the Home Assistant device
	// class.
	Classification string
	// StateClass is the Home Assistant state class, e.g. "measurement".
	StateClass string
	// Description is a human-readable summary from the vendor guide.
	Description string
}

// Address returns the wire address of the parameter.
func (d ParameterDefinition) Address() protocol.Address {
	return protocol.Address{ModuleID: d.ModuleID, Index: d.Index, Subindex: d.Subindex}
}

// Registry is an immutable name-to-definition mapping preserving
// registration order.
type Registry struct {
	defs  map[string]ParameterDefinition
	names []string
}

// New builds a registry from the given definitions. A duplicate name or a
// non-positive scale on a scalar parameter is a construction error, since
// either means the table itself is broken.
func New(defs []ParameterDefinition) (*Registry, error) {
	r := &Registry{
		defs:  make(map[string]ParameterDefinition, len(defs)),
		names: make([]string, 0, len(defs)),
	}
	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("parameter with empty name (index 0x%02x subindex 0x%02x)", def.Index, def.Subindex)
		}
		if _, exists := r.defs[def.Name]; exists {
			return nil, fmt.Errorf("duplicate parameter name %q", def.Name)
		}
		if !def.DataType.Valid() {
			return nil, fmt.Errorf("parameter %q has invalid data type 0x%x", def.Name, byte(def.DataType))
		}
		if !def.DataType.IsText() && def.Scale <= 0 {
			return nil, fmt.Errorf("parameter %q has non-positive scale %v", def.Name, def.Scale)
		}
		r.defs[def.Name] = def
		r.names = append(r.names, def.Name)
	}
	return r, nil
}

// MustNew is New for static tables; it panics on a malformed table.
func MustNew(defs []ParameterDefinition) *Registry {
	r, err := New(defs)
	if err != nil {
		panic(fmt.Sprintf("registry: %v", err))
	}
	return r
}

// Lookup returns the definition for name, or an error wrapping ErrNotFound.
func (r *Registry) Lookup(name string) (ParameterDefinition, error) {
	def, ok := r.defs[name]
	if !ok {
		return ParameterDefinition{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return def, nil
}

// Has reports whether name is present in the registry.
func (r *Registry) Has(name string) bool {
	_, ok := r.defs[name]
	return ok
}

// Names returns all parameter names in registration order. The returned
// slice is a copy.
func (r *Registry) Names() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// Len returns the number of registered parameters.
func (r *Registry) Len() int {
	return len(r.names)
}

// All returns every definition in registration order.
func (r *Registry) All() []ParameterDefinition {
	defs := make([]ParameterDefinition, 0, len(r.names))
	for _, name := range r.names {
		defs = append(defs, r.defs[name])
	}
	return defs
}
