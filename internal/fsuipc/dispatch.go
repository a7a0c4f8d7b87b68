package fsuipc

import (
	"github.com/yegors/fsuipc-bridge/internal/signals"
	"github.com/yegors/fsuipc-bridge/internal/simdata"
)

// Merger receives one batch of converted values per group
type Merger interface {
	MergePartial(group simdata.Group, values simdata.Partial)
}

// Dispatcher converts named raw values into per-group partial updates
type Dispatcher struct {
	table          *signals.Table
	includeParking bool
}

// NewDispatcher creates a dispatcher over table. When includeParking is set the
// parking brake counts as brakes on.
func NewDispatcher(table *signals.Table, includeParking bool) *Dispatcher {
	return &Dispatcher{table: table, includeParking: includeParking}
}

// Batch converts a payload into partial updates keyed by group. Signals are
// applied in table order and the first value stored for a field wins.
func (d *Dispatcher) Batch(payload map[string]any) map[simdata.Group]simdata.Partial {
	batches := make(map[simdata.Group]simdata.Partial)
	set := func(group simdata.Group, f simdata.Field, v simdata.Value) {
		p, ok := batches[group]
		if !ok {
			p = simdata.Partial{}
			batches[group] = p
		}
		p.Set(f, v)
	}

	for _, sig := range d.table.Signals() {
		if sig.Sink == nil {
			continue
		}
		raw, ok := payload[sig.Name]
		if !ok {
			continue
		}
		v, ok := sig.Convert(raw)
		if !ok {
			continue
		}
		set(sig.Sink.Group, sig.Sink.Field, v)
	}

	if on, ok := d.brakes(payload); ok {
		set(simdata.GroupSystems, simdata.FieldBrakesOn, simdata.Bool(on))
	}
	if inHg, ok := d.barometer(payload); ok {
		set(simdata.GroupEnvironment, simdata.FieldPressureInHg, simdata.Float(inHg))
		set(simdata.GroupIndicators, simdata.FieldAltimeterInHg, simdata.Float(inHg))
	}

	for g, p := range batches {
		if len(p) == 0 {
			delete(batches, g)
		}
	}
	return batches
}

// Dispatch batches a payload and merges each group exactly once
func (d *Dispatcher) Dispatch(payload map[string]any, m Merger) int {
	batches := d.Batch(payload)
	for _, g := range simdata.Groups {
		if p, ok := batches[g]; ok {
			m.MergePartial(g, p)
		}
	}
	return len(batches)
}

// brakes is on when either pedal is past the threshold, or the parking brake
// is set when parking counts
func (d *Dispatcher) brakes(payload map[string]any) (bool, bool) {
	left, hasLeft := d.convertFloat(payload, signals.SignalBrakeLeft)
	right, hasRight := d.convertFloat(payload, signals.SignalBrakeRight)

	var on, known bool
	if hasLeft || hasRight {
		on = left > signals.BrakePedalThreshold || right > signals.BrakePedalThreshold
		known = true
	}

	if d.includeParking {
		if parked, ok := d.convertBool(payload, signals.SignalParkingBrake); ok {
			on = on || parked
			known = true
		}
	}
	return on, known
}

// barometer prefers the primary offset. The fallback is only trusted when its
// raw reading is within a plausible millibar range.
func (d *Dispatcher) barometer(payload map[string]any) (float64, bool) {
	if inHg, ok := d.convertFloat(payload, signals.SignalBaroPrimary); ok {
		return inHg, true
	}

	raw, ok := payload[signals.SignalBaroFallback]
	if !ok {
		return 0, false
	}
	mb16, ok := signals.Low16(raw)
	if !ok || mb16 < signals.BaroRawMin || mb16 > signals.BaroRawMax {
		return 0, false
	}
	return d.convertFloat(payload, signals.SignalBaroFallback)
}

func (d *Dispatcher) convertFloat(payload map[string]any, name string) (float64, bool) {
	v, ok := d.convert(payload, name)
	if !ok {
		return 0, false
	}
	return v.AsFloat()
}

func (d *Dispatcher) convertBool(payload map[string]any, name string) (bool, bool) {
	v, ok := d.convert(payload, name)
	if !ok {
		return false, false
	}
	return v.AsBool()
}

func (d *Dispatcher) convert(payload map[string]any, name string) (simdata.Value, bool) {
	raw, ok := payload[name]
	if !ok {
		return simdata.Value{}, false
	}
	sig, ok := d.table.Lookup(name)
	if !ok {
		return simdata.Value{}, false
	}
	return sig.Convert(raw)
}
