package domain

// MaxIdentifierLength is the longest accepted identifier in bytes. It matches
// PostgreSQL's NAMEDATALEN-1 so names are never silently truncated.
const MaxIdentifierLength = 63

// Identifier is a validated schema, table, column, function or role name.
// The zero value is not a valid identifier; values are created with
// ParseIdentifier only.
type Identifier struct {
	name string
}

// ParseIdentifier validates raw against the identifier grammar: non-empty,
// starts with a letter or underscore, continues with letters, digits or
// underscores, at most MaxIdentifierLength bytes.
func ParseIdentifier(raw string) (Identifier, error) {
	if raw == "" {
		return Identifier{}, Errorf(ErrInvalidIdentifier, "identifier must not be empty")
	}
	if len(raw) > MaxIdentifierLength {
		return Identifier{}, Errorf(ErrInvalidIdentifier, "identifier %.16q... exceeds %d bytes", raw, MaxIdentifierLength)
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return Identifier{}, Errorf(ErrInvalidIdentifier, "identifier %q contains invalid character at position %d", raw, i)
		}
	}
	return Identifier{name: raw}, nil
}

// MustIdentifier is like ParseIdentifier but panics on invalid input. It is
// meant for constants.
func MustIdentifier(raw string) Identifier {
	id, err := ParseIdentifier(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseIdentifiers validates every element of raw.
func ParseIdentifiers(raw []string) ([]Identifier, error) {
	ids := make([]Identifier, 0, len(raw))
	for _, r := range raw {
		id, err := ParseIdentifier(r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// String returns the raw name.
func (i Identifier) String() string {
	return i.name
}

// IsZero reports whether i was never validated.
func (i Identifier) IsZero() bool {
	return i.name == ""
}

// ResourceKind distinguishes tables from functions.
type ResourceKind int

const (
	// Table is a table or view.
	Table ResourceKind = iota
	// Function is a database function.
	Function
)

// String returns the kind name.
func (k ResourceKind) String() string {
	if k == Function {
		return "function"
	}
	return "table"
}

// ResourceAddress identifies a table or function.
type ResourceAddress struct {
	Schema Identifier
	Name   Identifier
	Kind   ResourceKind
}

// String returns schema.name.
func (a ResourceAddress) String() string {
	return a.Schema.String() + "." + a.Name.String()
}
