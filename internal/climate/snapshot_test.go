package climate

import (
	"context"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func TestRestore_FullSnapshot(t *testing.T) {
	d, tx, _ := newTestDevice(t)

	d.Restore(Snapshot{
		HVACMode:          ptr(HVACHeat),
		FanMode:           ptr(FanLow),
		PresetMode:        ptr(PresetSleep),
		TargetTemperature: ptr(26),
		PowerStatus:       ptr(PowerOn),
		DimmerStatus:      ptr(DimmerOn),
		LastOnOperation:   ptr(HVACHeat),
	})

	s := d.State()
	if s.HVACMode != HVACHeat || s.FanMode != FanLow || s.PresetMode != PresetSleep {
		t.Errorf("modes = %s/%s/%s", s.HVACMode, s.FanMode, s.PresetMode)
	}
	if s.TargetTemperature != 26 || s.PowerStatus != PowerOn || s.DimmerStatus != DimmerOn {
		t.Errorf("state = %+v", s)
	}
	if s.LastOnOperation != HVACHeat {
		t.Errorf("LastOnOperation = %q", s.LastOnOperation)
	}
	assertSent(t, tx)

	// Restored beliefs drive the next sequence: no power-on, no dimmer toggle.
	d.SetTargetTemperature(context.Background(), float(25), nil)
	assertSent(t, tx, "heat/low/25")
}

func TestRestore_PartialSnapshotKeepsDefaults(t *testing.T) {
	d, _, _ := newTestDevice(t)

	d.Restore(Snapshot{FanMode: ptr(FanHigh)})

	s := d.State()
	if s.FanMode != FanHigh {
		t.Errorf("FanMode = %s, want high", s.FanMode)
	}
	if s.HVACMode != HVACOff || s.TargetTemperature != 23 || s.PowerStatus != PowerOff {
		t.Errorf("defaults lost: %+v", s)
	}
}

func TestRestore_ResetsPresetWhenAbsent(t *testing.T) {
	d, _, _ := newTestDevice(t)
	d.SetPresetMode(context.Background(), PresetBoost)

	d.Restore(Snapshot{HVACMode: ptr(HVACCool)})

	if got := d.State().PresetMode; got != PresetNone {
		t.Errorf("PresetMode = %s, want none", got)
	}
}

func TestRestore_InvalidFieldsFallBack(t *testing.T) {
	d, _, _ := newTestDevice(t)

	d.Restore(Snapshot{
		HVACMode:          ptr(HVACMode("fan_only")),
		FanMode:           ptr(FanMode("turbo")),
		TargetTemperature: ptr(99),
		PowerStatus:       ptr(PowerStatus("maybe")),
		LastOnOperation:   ptr(HVACOff),
	})

	s := d.State()
	if s.HVACMode != HVACOff || s.FanMode != FanAuto || s.TargetTemperature != 23 || s.PowerStatus != PowerOff {
		t.Errorf("invalid fields applied: %+v", s)
	}
	if s.LastOnOperation != "" {
		t.Errorf("LastOnOperation = %q, want empty", s.LastOnOperation)
	}
}

func TestSnapshotOf_RoundTripsThroughRestore(t *testing.T) {
	src, _, _ := newTestDevice(t)
	ctx := context.Background()
	src.SetTargetTemperature(ctx, float(18), ptr(HVACCool))
	src.SetPresetMode(ctx, PresetSleep)

	dst, _, _ := newTestDevice(t)
	dst.Restore(src.Snapshot())

	a, b := src.State(), dst.State()
	if a.HVACMode != b.HVACMode || a.PresetMode != b.PresetMode || a.TargetTemperature != b.TargetTemperature ||
		a.PowerStatus != b.PowerStatus || a.DimmerStatus != b.DimmerStatus || a.LastOnOperation != b.LastOnOperation {
		t.Errorf("restored %+v, want %+v", b, a)
	}
}

func TestSnapshot_Empty(t *testing.T) {
	if !(Snapshot{}).Empty() {
		t.Error("zero Snapshot should be empty")
	}
	if (Snapshot{PowerStatus: ptr(PowerOn)}).Empty() {
		t.Error("snapshot with power status should not be empty")
	}
	if s := SnapshotOf(State{}); s.LastOnOperation != nil {
		t.Error("unset LastOnOperation should stay absent")
	}
}
