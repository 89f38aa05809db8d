package rig

import (
	"context"
	"fmt"
	"time"

	"github.com/CK6170/Loadcurve-go/curve"
)

type Phase string

const (
	PhaseTare     Phase = "tare"
	PhasePush     Phase = "push"
	PhaseHold     Phase = "hold"
	PhaseRelease  Phase = "release"
	PhaseSettle   Phase = "settle"
	PhaseFinished Phase = "finished"
)

type Update struct {
	Phase  Phase
	Done   int // samples taken within the phase
	Target int
	// Latest tare-corrected readings, for display only; the recording keeps
	// raw ratios since the line fit carries the offset anyway.
	Ref float64
	Dut float64
	// Total recorded sample pairs so far.
	Total int
}

// Recording is one run's raw data, handed to the curve pipeline as-is.
type Recording struct {
	Ref     curve.Series
	Dut     curve.Series
	TareRef float64
	TareDut float64
	Taken   time.Time
}

// Acquire tares both channels, then drives the actuator through
// push/hold/release/settle while recording both channels at the configured
// interval. UI-agnostic and cancellable; the motor is stopped on every exit
// path. The resulting streams traverse a rise and a fall, which the phase
// aligner depends on.
func Acquire(ctx context.Context, sess *Session, onUpdate func(Update)) (*Recording, error) {
	if sess == nil || sess.Bridge == nil || sess.Motor == nil {
		return nil, fmt.Errorf("not connected")
	}
	p := sess.Params
	interval := time.Duration(p.SAMPLE.INTERVAL) * time.Millisecond

	emit := func(u Update) {
		if onUpdate != nil {
			onUpdate(u)
		}
	}

	// Make sure nothing is moving while taring.
	if err := sess.Motor.Stop(); err != nil {
		return nil, fmt.Errorf("motor stop before tare: %w", err)
	}

	emit(Update{Phase: PhaseTare, Target: 2 * p.SAMPLE.TARE})
	tareRef, err := sess.Bridge.Tare(p.REF.CHANNEL, p.SAMPLE.TARE, interval)
	if err != nil {
		return nil, fmt.Errorf("tare ref: %w", err)
	}
	emit(Update{Phase: PhaseTare, Done: p.SAMPLE.TARE, Target: 2 * p.SAMPLE.TARE})
	tareDut, err := sess.Bridge.Tare(p.DUT.CHANNEL, p.SAMPLE.TARE, interval)
	if err != nil {
		return nil, fmt.Errorf("tare dut: %w", err)
	}

	rec := &Recording{TareRef: tareRef, TareDut: tareDut, Taken: time.Now()}
	defer func() { _ = sess.Motor.Stop() }()

	duty := int16(p.MOTOR.DUTY)
	accel := uint16(p.MOTOR.ACCEL)
	phases := []struct {
		phase   Phase
		duty    int16
		seconds int
	}{
		{PhasePush, duty, p.MOTOR.PUSH},
		{PhaseHold, 0, p.MOTOR.HOLD},
		{PhaseRelease, -duty, p.MOTOR.PUSH},
		{PhaseSettle, 0, p.MOTOR.SETTLE},
	}

	for _, ph := range phases {
		if err := sess.Motor.DutyAccel(ph.duty, accel); err != nil {
			return nil, fmt.Errorf("%s: motor: %w", ph.phase, err)
		}
		target := ph.seconds * 1000 / p.SAMPLE.INTERVAL
		for done := 0; done < target; done++ {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			ref, dut, err := sess.Bridge.ReadPair(p.REF.CHANNEL, p.DUT.CHANNEL)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", ph.phase, err)
			}
			rec.Ref = append(rec.Ref, ref)
			rec.Dut = append(rec.Dut, dut)
			emit(Update{
				Phase:  ph.phase,
				Done:   done + 1,
				Target: target,
				Ref:    ref - tareRef,
				Dut:    dut - tareDut,
				Total:  len(rec.Ref),
			})
			time.Sleep(interval)
		}
	}

	emit(Update{Phase: PhaseFinished, Total: len(rec.Ref)})
	return rec, nil
}
