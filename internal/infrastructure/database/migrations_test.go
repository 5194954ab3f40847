package database

import (
	"context"
	"testing"
	"testing/fstest"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20260101_000000_sensors.up.sql":    {Data: []byte("CREATE TABLE sensors (id TEXT PRIMARY KEY);")},
		"20260101_000000_sensors.down.sql":  {Data: []byte("DROP TABLE sensors;")},
		"20260102_000000_readings.up.sql":   {Data: []byte("CREATE TABLE readings (sensor_id TEXT, v REAL);")},
		"20260102_000000_readings.down.sql": {Data: []byte("DROP TABLE readings;")},
		"README.md":                         {Data: []byte("not a migration")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return n == 1
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations()

	applied, err := db.Migrate(ctx, fsys)
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if len(applied) != 2 || applied[0].Name != "sensors" || applied[1].Name != "readings" {
		t.Fatalf("applied = %+v, want sensors then readings", applied)
	}
	if !tableExists(t, db, "sensors") || !tableExists(t, db, "readings") {
		t.Fatal("migrations did not create tables")
	}

	records, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(records) != 2 || len(pending) != 0 {
		t.Errorf("applied=%d pending=%d, want 2/0", len(records), len(pending))
	}
	if records[1].Name != "readings" || records[1].AppliedAt.IsZero() {
		t.Errorf("record = %+v, want name and applied_at", records[1])
	}

	again, err := db.Migrate(ctx, fsys)
	if err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second Migrate() applied %d, want 0", len(again))
	}
}

func TestMigrate_FailureStopsAtBrokenMigration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations()
	fsys["20260103_000000_broken.up.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE oops (")}

	applied, err := db.Migrate(ctx, fsys)
	if err == nil {
		t.Fatal("Migrate() expected error for broken SQL")
	}
	if len(applied) != 2 {
		t.Errorf("applied before failure = %d, want 2", len(applied))
	}

	_, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "broken" {
		t.Errorf("pending = %+v, want only broken", pending)
	}
}

func TestRollback(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations()

	if _, err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	m, err := db.Rollback(ctx, fsys)
	if err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if m.Version != "20260102_000000" {
		t.Errorf("rolled back %q, want 20260102_000000", m.Version)
	}
	if tableExists(t, db, "readings") {
		t.Error("readings should be dropped")
	}
	if !tableExists(t, db, "sensors") {
		t.Error("sensors should remain")
	}

	_, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending after rollback = %d, want 1", len(pending))
	}
}

func TestRollback_NothingApplied(t *testing.T) {
	db := openTestDB(t)

	m, err := db.Rollback(context.Background(), testMigrations())
	if err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if m.Version != "" {
		t.Errorf("Rollback() = %+v, want zero migration", m)
	}
}

func TestRollback_MissingDownFile(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := fstest.MapFS{
		"20260101_000000_sensors.up.sql": {Data: []byte("CREATE TABLE sensors (id TEXT);")},
	}

	if _, err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if _, err := db.Rollback(ctx, fsys); err == nil {
		t.Error("Rollback() expected error without down file")
	}
}

func TestMigrate_NilFS(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.Migrate(context.Background(), nil); err != nil {
		t.Errorf("Migrate(nil) error = %v", err)
	}
}

func TestLoadMigrations(t *testing.T) {
	tests := []struct {
		name    string
		files   fstest.MapFS
		want    []string
		wantErr bool
	}{
		{
			name:  "pairs and sorts",
			files: testMigrations(),
			want:  []string{"sensors", "readings"},
		},
		{
			name: "ignores non-migration files",
			files: fstest.MapFS{
				"20260301_090000_x.sql":                   {Data: []byte("x")},
				"single.up.sql":                           {Data: []byte("x")},
				"notes.txt":                               {Data: []byte("x")},
				"20260301_090000_climate_snapshots.up.sql": {Data: []byte("CREATE TABLE t (a);")},
			},
			want: []string{"climate_snapshots"},
		},
		{
			name: "down without up",
			files: fstest.MapFS{
				"20260301_090000_orphan.down.sql": {Data: []byte("DROP TABLE t;")},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadMigrations(tt.files)
			if (err != nil) != tt.wantErr {
				t.Fatalf("loadMigrations() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("loadMigrations() = %d migrations, want %d", len(got), len(tt.want))
			}
			for i, name := range tt.want {
				if got[i].Name != name {
					t.Errorf("migration[%d].Name = %q, want %q", i, got[i].Name, name)
				}
			}
		})
	}
}
