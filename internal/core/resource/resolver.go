// Package resource validates path segments into resource addresses.
package resource

import (
	"github.com/hexgate/hexgate/internal/core/query/domain"
)

// Catalog reports which resources exist. Implementations must be safe for
// concurrent use.
type Catalog interface {
	HasTable(schema, name string) bool
	HasFunction(schema, name string) bool
}

// ParseIdentifier validates a single identifier.
func ParseIdentifier(raw string) (domain.Identifier, error) {
	return domain.ParseIdentifier(raw)
}

// Resolve validates the raw path segments syntactically.
func Resolve(rawSchema, rawName string, kind domain.ResourceKind) (domain.ResourceAddress, error) {
	schema, err := domain.ParseIdentifier(rawSchema)
	if err != nil {
		return domain.ResourceAddress{}, segmentError("schema", err)
	}
	name, err := domain.ParseIdentifier(rawName)
	if err != nil {
		return domain.ResourceAddress{}, segmentError(kind.String(), err)
	}
	return domain.ResourceAddress{Schema: schema, Name: name, Kind: kind}, nil
}

// Resolver resolves addresses and, when a catalog is set, checks that the
// resource exists.
type Resolver struct {
	catalog Catalog
}

// NewResolver creates a resolver. A nil catalog means syntactic resolution
// only; existence errors then surface from the backend.
func NewResolver(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve validates the segments and checks the catalog.
func (r *Resolver) Resolve(rawSchema, rawName string, kind domain.ResourceKind) (domain.ResourceAddress, error) {
	addr, err := Resolve(rawSchema, rawName, kind)
	if err != nil {
		return domain.ResourceAddress{}, err
	}
	if r == nil || r.catalog == nil {
		return addr, nil
	}

	var found bool
	switch kind {
	case domain.Function:
		found = r.catalog.HasFunction(addr.Schema.String(), addr.Name.String())
	default:
		found = r.catalog.HasTable(addr.Schema.String(), addr.Name.String())
	}
	if !found {
		return domain.ResourceAddress{}, domain.Errorf(domain.ErrUnknownResource, "%s %s does not exist", kind, addr)
	}
	return addr, nil
}

func segmentError(segment string, err error) error {
	if e, ok := domain.AsError(err); ok {
		return domain.Wrap(domain.ErrInvalidIdentifier, err, segment+": "+e.Message)
	}
	return err
}
