/*******************************************************************************
*
* Copyright 2018 SAP SE
*
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You should have received a copy of the License along with this
* program. If not, you may obtain a copy of the License at
*
*     http://www.apache.org/licenses/LICENSE-2.0
*
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
*
*******************************************************************************/

package okapi

import (
	"context"
	"encoding/json"
	"net/url"

	_ "github.com/lib/pq" //the lib/pq driver registers itself with database/sql
	"github.com/sapcc/go-bits/easypg"
	gorp "gopkg.in/gorp.v2"
)

var sqlMigrations = map[string]string{
	"001_initial.up.sql": `
		CREATE TABLE modules (
			id              TEXT NOT NULL PRIMARY KEY,
			descriptor_json TEXT NOT NULL
		);

		CREATE TABLE tenants (
			id           TEXT NOT NULL PRIMARY KEY,
			enabled_json TEXT NOT NULL
		);

		CREATE TABLE logical_clocks (
			key   TEXT    NOT NULL PRIMARY KEY,
			value BIGINT  NOT NULL DEFAULT 0
		);
	`,
	"001_initial.down.sql": `
		DROP TABLE logical_clocks;
		DROP TABLE tenants;
		DROP TABLE modules;
	`,
}

// dbModule is the gorp-mapped row backing a ModuleDescriptor. The
// descriptor itself is stored as JSON rather than normalized across
// columns: unlike keppel's registry state, okapi's module/interface/routing
// shape is read-mostly and always round-tripped as a whole object, never
// queried piecemeal.
type dbModule struct {
	ID             string `db:"id"`
	DescriptorJSON string `db:"descriptor_json"`
}

type dbTenant struct {
	ID          string `db:"id"`
	EnabledJSON string `db:"enabled_json"`
}

// PostgresStore is the Postgres-backed Store implementation. It wraps a
// gorp.DbMap exactly as keppel's internal/keppel.DB does.
type PostgresStore struct {
	gorp.DbMap
}

// InitPostgresStore connects to Postgres and, if runMigrations is set,
// applies any pending migrations first, mirroring keppel's InitDB
// (internal/keppel/database.go). runMigrations is wired to
// Configuration.DatabaseInit so that a node can be run against a schema
// that another node already migrated, without racing both through DDL.
func InitPostgresStore(dbURL url.URL, runMigrations bool) (*PostgresStore, error) {
	cfg := easypg.Configuration{PostgresURL: &dbURL}
	if runMigrations {
		cfg.Migrations = sqlMigrations
	}
	db, err := easypg.Connect(cfg)
	if err != nil {
		return nil, err
	}

	store := &PostgresStore{DbMap: gorp.DbMap{Db: db, Dialect: gorp.PostgresDialect{}}}
	store.AddTableWithName(dbModule{}, "modules").SetKeys(false, "id")
	store.AddTableWithName(dbTenant{}, "tenants").SetKeys(false, "id")
	return store, nil
}

// LoadModules implements Store.
func (s *PostgresStore) LoadModules(ctx context.Context) ([]ModuleDescriptor, error) {
	var rows []dbModule
	_, err := s.WithContext(ctx).Select(&rows, "SELECT * FROM modules ORDER BY id")
	if err != nil {
		return nil, err
	}

	modules := make([]ModuleDescriptor, 0, len(rows))
	for _, row := range rows {
		var m ModuleDescriptor
		if err := json.Unmarshal([]byte(row.DescriptorJSON), &m); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, nil
}

// SaveModule implements Store.
func (s *PostgresStore) SaveModule(ctx context.Context, m ModuleDescriptor) error {
	descriptorJSON, err := json.Marshal(m)
	if err != nil {
		return err
	}

	_, err = s.WithContext(ctx).Exec(`
		INSERT INTO modules (id, descriptor_json) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET descriptor_json = EXCLUDED.descriptor_json
	`, m.ID, string(descriptorJSON))
	return err
}

// DeleteModule implements Store.
func (s *PostgresStore) DeleteModule(ctx context.Context, id string) error {
	_, err := s.WithContext(ctx).Exec(`DELETE FROM modules WHERE id = $1`, id)
	return err
}

// LoadTenants implements Store.
func (s *PostgresStore) LoadTenants(ctx context.Context) ([]Tenant, error) {
	var rows []dbTenant
	_, err := s.WithContext(ctx).Select(&rows, "SELECT * FROM tenants ORDER BY id")
	if err != nil {
		return nil, err
	}

	tenants := make([]Tenant, 0, len(rows))
	for _, row := range rows {
		var enabledIDs []string
		if err := json.Unmarshal([]byte(row.EnabledJSON), &enabledIDs); err != nil {
			return nil, err
		}
		enabled := make(map[string]struct{}, len(enabledIDs))
		for _, id := range enabledIDs {
			enabled[id] = struct{}{}
		}
		tenants = append(tenants, Tenant{ID: row.ID, Enabled: enabled})
	}
	return tenants, nil
}

// SaveTenant implements Store.
func (s *PostgresStore) SaveTenant(ctx context.Context, t Tenant) error {
	enabledIDs := make([]string, 0, len(t.Enabled))
	for id := range t.Enabled {
		enabledIDs = append(enabledIDs, id)
	}
	enabledJSON, err := json.Marshal(enabledIDs)
	if err != nil {
		return err
	}

	_, err = s.WithContext(ctx).Exec(`
		INSERT INTO tenants (id, enabled_json) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET enabled_json = EXCLUDED.enabled_json
	`, t.ID, string(enabledJSON))
	return err
}

// AdvanceTimestamp implements Store. The UPSERT's RETURNING clause makes the
// increment atomic without an explicit transaction.
func (s *PostgresStore) AdvanceTimestamp(ctx context.Context, key string) (int64, error) {
	return s.WithContext(ctx).SelectInt(`
		INSERT INTO logical_clocks (key, value) VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET value = logical_clocks.value + 1
		RETURNING value
	`, key)
}

// CurrentTimestamp implements Store.
func (s *PostgresStore) CurrentTimestamp(ctx context.Context, key string) (int64, error) {
	value, err := s.WithContext(ctx).SelectNullInt(`SELECT value FROM logical_clocks WHERE key = $1`, key)
	if err != nil {
		return 0, err
	}
	if !value.Valid {
		return 0, nil
	}
	return value.Int64, nil
}
