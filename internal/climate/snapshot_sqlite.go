package climate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteSnapshotRepository implements SnapshotRepository on the
// climate_snapshots table. NULL columns map to absent snapshot fields.
type SQLiteSnapshotRepository struct {
	db *sql.DB
}

// NewSQLiteSnapshotRepository creates a snapshot repository on an open connection.
func NewSQLiteSnapshotRepository(db *sql.DB) *SQLiteSnapshotRepository {
	return &SQLiteSnapshotRepository{db: db}
}

// Load returns the stored snapshot for deviceID, or an empty snapshot if none exists.
func (r *SQLiteSnapshotRepository) Load(ctx context.Context, deviceID string) (Snapshot, error) {
	var (
		hvac, fan, preset, power, dimmer, lastOn sql.NullString
		target                                   sql.NullInt64
	)

	err := r.db.QueryRowContext(ctx,
		`SELECT hvac_mode, fan_mode, preset_mode, target_temperature,
		        power_status, dimmer_status, last_on_operation
		 FROM climate_snapshots WHERE device_id = ?`,
		deviceID,
	).Scan(&hvac, &fan, &preset, &target, &power, &dimmer, &lastOn)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("loading snapshot for %s: %w", deviceID, err)
	}

	var snap Snapshot
	if hvac.Valid {
		m := HVACMode(hvac.String)
		snap.HVACMode = &m
	}
	if fan.Valid {
		f := FanMode(fan.String)
		snap.FanMode = &f
	}
	if preset.Valid {
		p := PresetMode(preset.String)
		snap.PresetMode = &p
	}
	if target.Valid {
		t := int(target.Int64)
		snap.TargetTemperature = &t
	}
	if power.Valid {
		p := PowerStatus(power.String)
		snap.PowerStatus = &p
	}
	if dimmer.Valid {
		d := DimmerStatus(dimmer.String)
		snap.DimmerStatus = &d
	}
	if lastOn.Valid {
		l := HVACMode(lastOn.String)
		snap.LastOnOperation = &l
	}

	return snap, nil
}

// Save upserts the snapshot for deviceID. Absent fields are stored as NULL.
func (r *SQLiteSnapshotRepository) Save(ctx context.Context, deviceID string, snap Snapshot) error {
	if deviceID == "" {
		return fmt.Errorf("device id is required")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO climate_snapshots
		    (device_id, hvac_mode, fan_mode, preset_mode, target_temperature,
		     power_status, dimmer_status, last_on_operation, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(device_id) DO UPDATE SET
		    hvac_mode = excluded.hvac_mode,
		    fan_mode = excluded.fan_mode,
		    preset_mode = excluded.preset_mode,
		    target_temperature = excluded.target_temperature,
		    power_status = excluded.power_status,
		    dimmer_status = excluded.dimmer_status,
		    last_on_operation = excluded.last_on_operation,
		    updated_at = excluded.updated_at`,
		deviceID,
		nullString(snap.HVACMode),
		nullString(snap.FanMode),
		nullString(snap.PresetMode),
		nullInt(snap.TargetTemperature),
		nullString(snap.PowerStatus),
		nullString(snap.DimmerStatus),
		nullString(snap.LastOnOperation),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving snapshot for %s: %w", deviceID, err)
	}
	return nil
}

func nullString[T ~string](v *T) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*v), Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
