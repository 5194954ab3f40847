package climate

import "context"

// SnapshotRepository persists the restore-on-start record of each device.
type SnapshotRepository interface {
	// Load returns the stored snapshot. A device never saved yields an empty
	// snapshot and no error.
	Load(ctx context.Context, deviceID string) (Snapshot, error)

	// Save upserts the snapshot.
	Save(ctx context.Context, deviceID string, snap Snapshot) error
}

// Restore overwrites the defaults with a persisted snapshot. The preset is
// reset to none first; each present and valid field then replaces the
// current value. Absent or invalid fields keep their defaults.
func (d *Device) Restore(snap Snapshot) {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	d.update(func(s *State) {
		s.PresetMode = PresetNone

		if m := snap.HVACMode; m != nil {
			if m.Valid() {
				s.HVACMode = *m
			} else {
				d.warnInvalid("hvac_mode", *m)
			}
		}
		if f := snap.FanMode; f != nil {
			if f.Valid() {
				s.FanMode = *f
			} else {
				d.warnInvalid("fan_mode", *f)
			}
		}
		if p := snap.PresetMode; p != nil {
			if p.Valid() {
				s.PresetMode = *p
			} else {
				d.warnInvalid("preset_mode", *p)
			}
		}
		if t := snap.TargetTemperature; t != nil {
			if *t >= d.cfg.MinTemp && *t <= d.cfg.MaxTemp {
				s.TargetTemperature = *t
			} else {
				d.warnInvalid("target_temperature", *t)
			}
		}
		if p := snap.PowerStatus; p != nil {
			if p.Valid() {
				s.PowerStatus = *p
			} else {
				d.warnInvalid("power_status", *p)
			}
		}
		if dm := snap.DimmerStatus; dm != nil {
			if dm.Valid() {
				s.DimmerStatus = *dm
			} else {
				d.warnInvalid("dimmer_status", *dm)
			}
		}
		if l := snap.LastOnOperation; l != nil {
			if *l == HVACCool || *l == HVACHeat {
				s.LastOnOperation = *l
			} else {
				d.warnInvalid("last_on_operation", *l)
			}
		}
	})

	d.logger.Info("climate state restored",
		"device_id", d.cfg.ID,
		"empty", snap.Empty(),
	)
}

func (d *Device) warnInvalid(field string, value any) {
	d.logger.Warn("ignoring invalid snapshot field",
		"device_id", d.cfg.ID,
		"field", field,
		"value", value,
	)
}
