package configstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lattice-data/gateway/infrastructure/logging"
	"github.com/lattice-data/gateway/pkg/pgnotify"
)

// EventKind classifies a configuration-tree change.
type EventKind int

const (
	NodeCreated EventKind = iota
	NodeDataChanged
	NodeChildrenChanged
	NodeDeleted
)

// Event describes a single node-level change under a watched root.
type Event struct {
	Kind EventKind
	Path string
}

// Client reads and watches a configuration tree stored as (path, value) rows
// in a single table. A node is a leaf if it has no rows whose path is a
// strict descendant of it.
type Client struct {
	db        *sql.DB
	bus       *pgnotify.Bus
	tableName string
	log       *logging.Logger
}

// NewClient wires a Client against an existing DB handle and notification
// bus. tableName is the table holding configuration rows (path text primary
// key, value text, updated_at timestamptz).
func NewClient(db *sql.DB, bus *pgnotify.Bus, tableName string) *Client {
	return &Client{db: db, bus: bus, tableName: tableName, log: logging.Default()}
}

// ReadTree traverses rootPath recursively, returning only leaf nodes: a path
// -> raw-bytes map. Missing nodes are tolerated (an empty result, not an
// error) since absence is a legitimate steady-state condition.
func (c *Client) ReadTree(ctx context.Context, rootPath string) (map[string][]byte, error) {
	rootPath = normalizePath(rootPath)
	query := fmt.Sprintf(`SELECT path, value FROM %s WHERE path = $1 OR path LIKE $2`, c.tableName)
	rows, err := c.db.QueryContext(ctx, query, rootPath, rootPath+"/%")
	if err != nil {
		return nil, fmt.Errorf("configstore: read tree %s: %w", rootPath, err)
	}
	defer rows.Close()

	all := make(map[string]string)
	for rows.Next() {
		var path, value string
		if err := rows.Scan(&path, &value); err != nil {
			return nil, fmt.Errorf("configstore: scan row: %w", err)
		}
		all[path] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("configstore: iterate rows: %w", err)
	}

	out := make(map[string][]byte)
	for path, value := range all {
		leaf := true
		prefix := path + "/"
		for other := range all {
			if strings.HasPrefix(other, prefix) {
				leaf = false
				break
			}
		}
		if leaf {
			out[path] = []byte(value)
		}
	}
	return out, nil
}

// WatchTree installs a watch over rootPath: on insert/update it invokes
// onEvent with NodeCreated/NodeDataChanged and the node's path; on delete it
// invokes onEvent with NodeDeleted. It does not read the store itself;
// re-reading changed values is up to onEvent. The subscription is scoped to
// the configured table; events outside rootPath are filtered out locally.
// Interruption of the underlying bus during steady state is logged and the
// watch is left in place; WatchTree itself does not retry, matching the
// store client's documented failure model.
func (c *Client) WatchTree(ctx context.Context, rootPath string, onEvent func(Event)) error {
	rootPath = normalizePath(rootPath)

	_, err := c.bus.OnInsert(c.tableName, func(_ context.Context, newRow map[string]interface{}) error {
		path, _ := newRow["path"].(string)
		if !underRoot(path, rootPath) {
			return nil
		}
		onEvent(Event{Kind: NodeCreated, Path: path})
		return nil
	})
	if err != nil {
		return fmt.Errorf("configstore: subscribe insert: %w", err)
	}

	_, err = c.bus.OnUpdate(c.tableName, func(_ context.Context, _, newRow map[string]interface{}) error {
		path, _ := newRow["path"].(string)
		if !underRoot(path, rootPath) {
			return nil
		}
		onEvent(Event{Kind: NodeDataChanged, Path: path})
		return nil
	})
	if err != nil {
		return fmt.Errorf("configstore: subscribe update: %w", err)
	}

	_, err = c.bus.OnDelete(c.tableName, func(_ context.Context, oldRow map[string]interface{}) error {
		path, _ := oldRow["path"].(string)
		if !underRoot(path, rootPath) {
			return nil
		}
		onEvent(Event{Kind: NodeDeleted, Path: path})
		return nil
	})
	if err != nil {
		return fmt.Errorf("configstore: subscribe delete: %w", err)
	}

	c.log.WithFields(map[string]interface{}{"root": rootPath}).Info("configstore: watch installed")
	return nil
}

func normalizePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimSuffix(p, "/")
}

func underRoot(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+"/")
}

