// Package catalog loads the tables and functions a backend exposes and
// keeps an atomically swapped snapshot for existence checks.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-version"
	"golang.org/x/sync/errgroup"

	"github.com/hexgate/hexgate/internal/adapters/database"
	"github.com/hexgate/hexgate/internal/core/query/compiler"
	"github.com/hexgate/hexgate/internal/core/query/domain"
	"github.com/hexgate/hexgate/internal/core/resource"
	"github.com/hexgate/hexgate/internal/debug"
)

// Table is a table or view.
type Table struct {
	Schema  string   `json:"schema"`
	Name    string   `json:"name"`
	View    bool     `json:"view"`
	Columns []string `json:"columns"`
}

// Function is a database function.
type Function struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

// Snapshot is an immutable view of the catalog.
type Snapshot struct {
	Tables        []Table    `json:"tables"`
	Functions     []Function `json:"functions"`
	ServerVersion string     `json:"server_version"`
	LoadedAt      time.Time  `json:"loaded_at"`

	version   *version.Version
	tables    map[string]bool
	functions map[string]bool
}

func key(schema, name string) string {
	return schema + "." + name
}

// HasTable reports whether schema.name is a table or view.
func (s *Snapshot) HasTable(schema, name string) bool {
	return s != nil && s.tables[key(schema, name)]
}

// HasFunction reports whether schema.name is a function.
func (s *Snapshot) HasFunction(schema, name string) bool {
	return s != nil && s.functions[key(schema, name)]
}

// Version returns the parsed server version, or nil if it was not
// recognized.
func (s *Snapshot) Version() *version.Version {
	if s == nil {
		return nil
	}
	return s.version
}

// Options configures a Catalog.
type Options struct {
	// Schemas limits the catalog; empty means every non-system schema.
	Schemas []string
	// RefreshInterval is the period of Run; zero disables refreshing.
	RefreshInterval time.Duration
}

// Catalog loads and caches snapshots. It is safe for concurrent use.
type Catalog struct {
	adapter database.Adapter
	opts    Options
	current atomic.Pointer[Snapshot]
	loadMu  sync.Mutex
}

// New creates an empty catalog; call Load before use.
func New(adapter database.Adapter, opts Options) *Catalog {
	return &Catalog{adapter: adapter, opts: opts}
}

// Snapshot returns the current snapshot, or nil before the first Load.
func (c *Catalog) Snapshot() *Snapshot {
	return c.current.Load()
}

// HasTable implements resource.Catalog.
func (c *Catalog) HasTable(schema, name string) bool {
	return c.Snapshot().HasTable(schema, name)
}

// HasFunction implements resource.Catalog.
func (c *Catalog) HasFunction(schema, name string) bool {
	return c.Snapshot().HasFunction(schema, name)
}

// Capabilities returns the compiler capabilities of the loaded server.
func (c *Catalog) Capabilities() compiler.Capabilities {
	return database.Capabilities(c.adapter.GetDialect(), c.Snapshot().Version())
}

// Load introspects the backend and swaps in a new snapshot. Tables,
// columns, functions and the server version load concurrently; the
// previous snapshot stays in place if any of them fails.
func (c *Catalog) Load(ctx context.Context) (*Snapshot, error) {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	in, err := introspectorFor(c.adapter.GetDialect())
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(c.opts.Schemas))
	for _, s := range c.opts.Schemas {
		wanted[s] = true
	}
	include := func(schema, name string) bool {
		if len(wanted) > 0 {
			if !wanted[schema] {
				return false
			}
		} else if in.system[schema] || strings.HasPrefix(schema, "pg_") {
			return false
		}
		_, err1 := domain.ParseIdentifier(schema)
		_, err2 := domain.ParseIdentifier(name)
		return err1 == nil && err2 == nil
	}

	var (
		tables    []Table
		columns   = map[string][]string{}
		functions []Function
		rawVer    string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scan(gctx, c.adapter, in.tables, 3, func(cols []string) {
			if include(cols[0], cols[1]) {
				tables = append(tables, Table{Schema: cols[0], Name: cols[1], View: strings.Contains(strings.ToUpper(cols[2]), "VIEW")})
			}
		})
	})
	g.Go(func() error {
		return scan(gctx, c.adapter, in.columns, 3, func(cols []string) {
			k := key(cols[0], cols[1])
			columns[k] = append(columns[k], cols[2])
		})
	})
	if in.functions != "" {
		g.Go(func() error {
			seen := map[string]bool{}
			return scan(gctx, c.adapter, in.functions, 2, func(cols []string) {
				// overloads share one name
				if include(cols[0], cols[1]) && !seen[key(cols[0], cols[1])] {
					seen[key(cols[0], cols[1])] = true
					functions = append(functions, Function{Schema: cols[0], Name: cols[1]})
				}
			})
		})
	}
	g.Go(func() error {
		v, err := c.adapter.ServerVersion(gctx)
		rawVer = v
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	snap := build(tables, columns, functions, rawVer)
	c.current.Store(snap)
	debug.Info("catalog loaded", "tables", len(snap.Tables), "functions", len(snap.Functions), "server_version", rawVer)
	return snap, nil
}

func build(tables []Table, columns map[string][]string, functions []Function, rawVer string) *Snapshot {
	snap := &Snapshot{
		Tables:        tables,
		Functions:     functions,
		ServerVersion: rawVer,
		LoadedAt:      time.Now(),
		tables:        make(map[string]bool, len(tables)),
		functions:     make(map[string]bool, len(functions)),
	}
	if snap.Tables == nil {
		snap.Tables = []Table{}
	}
	if snap.Functions == nil {
		snap.Functions = []Function{}
	}
	for i := range snap.Tables {
		t := &snap.Tables[i]
		t.Columns = columns[key(t.Schema, t.Name)]
		if t.Columns == nil {
			t.Columns = []string{}
		}
		snap.tables[key(t.Schema, t.Name)] = true
	}
	for _, f := range snap.Functions {
		snap.functions[key(f.Schema, f.Name)] = true
	}
	sort.Slice(snap.Tables, func(i, j int) bool {
		return key(snap.Tables[i].Schema, snap.Tables[i].Name) < key(snap.Tables[j].Schema, snap.Tables[j].Name)
	})
	if v, err := database.ParseServerVersion(rawVer); err == nil {
		snap.version = v
	} else if rawVer != "" {
		debug.Warn("unrecognized server version", "version", rawVer)
	}
	return snap
}

// Run refreshes the catalog every RefreshInterval until ctx is done. A
// failed refresh keeps the previous snapshot.
func (c *Catalog) Run(ctx context.Context) {
	if c.opts.RefreshInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Load(ctx); err != nil {
				debug.Warn("catalog refresh failed", "error", err)
			}
		}
	}
}

var _ resource.Catalog = (*Catalog)(nil)
