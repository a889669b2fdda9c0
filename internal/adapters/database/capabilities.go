package database

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/hexgate/hexgate/internal/core/query/compiler"
	"github.com/hexgate/hexgate/internal/core/query/domain"
)

var (
	sqliteReturning = version.MustConstraints(version.NewConstraint(">= 3.35.0"))
	sqliteNulls     = version.MustConstraints(version.NewConstraint(">= 3.30.0"))
)

// ParseServerVersion extracts a semantic version from a backend version
// string such as "16.2 (Debian 16.2-1)" or "8.0.36-0ubuntu0.22.04.1".
func ParseServerVersion(raw string) (*version.Version, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty server version")
	}
	v, err := version.NewVersion(fields[0])
	if err != nil {
		return nil, fmt.Errorf("unrecognized server version %q: %w", raw, err)
	}
	return v, nil
}

// Capabilities narrows the dialect defaults to what server v supports. A
// nil v keeps the defaults.
func Capabilities(dialect domain.SQLDialect, v *version.Version) compiler.Capabilities {
	caps := compiler.CapabilitiesFor(dialect)
	if v == nil {
		return caps
	}
	if dialect == domain.SQLite {
		caps.Returning = sqliteReturning.Check(v)
		caps.NullsOrdering = sqliteNulls.Check(v)
	}
	return caps
}
