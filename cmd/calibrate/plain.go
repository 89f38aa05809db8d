package main

import (
	"context"
	"fmt"

	"github.com/CK6170/Loadcurve-go/rig"
	"github.com/CK6170/Loadcurve-go/ui"
)

// runPlain is the prompt-driven flow for terminals where the TUI misbehaves
// (serial consoles, CI logs). One run per invocation.
func runPlain(configPath string) error {
	p, err := rig.LoadParameters(configPath)
	if err != nil {
		return err
	}
	if changed, err := rig.EnsureSerialPort(configPath, p, true); err != nil {
		return err
	} else if changed {
		fmt.Println("Detected bridge on", p.SERIAL.PORT)
	}

	sess, err := rig.Connect(p)
	if err != nil {
		return err
	}
	defer sess.Close()
	if err := rig.ProbeVersions(sess); err != nil {
		return err
	}
	fmt.Printf("Connected. DUT %s, REF scale %g kg/(V/V).\n", p.DUT.SERIAL, p.REF.SCALE)
	if v, err := sess.BatteryVoltage(); err == nil {
		fmt.Printf("Motor battery: %.1f V\n", v)
	}

	keys, err := ui.StartKeyEvents()
	if err != nil {
		return err
	}
	ui.DrainKeys(keys)
	fmt.Println("Clear the fixture and seat both load cells.")
	fmt.Println("Press any key to start the ramp, ESC to abort.")
	if k := <-keys; k == 27 {
		return fmt.Errorf("aborted")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for k := range keys {
			if k == 27 {
				cancel()
				return
			}
		}
	}()

	lastPhase := rig.Phase("")
	rec, err := rig.Acquire(ctx, sess, func(u rig.Update) {
		if u.Phase != lastPhase {
			lastPhase = u.Phase
			fmt.Printf("\n[%s]\n", u.Phase)
		}
		fmt.Printf("\r  %3d/%3d  REF %+.8f  DUT %+.8f", u.Done, u.Target, u.Ref, u.Dut)
	})
	fmt.Println()
	if err != nil {
		return err
	}

	out, err := rig.CalibrateRecording(rec, p)
	if err != nil {
		return err
	}
	dir, err := rig.SaveRun(rec, out, p)
	if err != nil {
		return fmt.Errorf("fit ok but save failed: %w", err)
	}

	fmt.Printf("\nscale_dut: %.6f kg/(V/V)\n", out.ScaleDUT)
	fmt.Printf("residual:  %.6g\n", out.Residual)
	fmt.Printf("leader:    %s\n", out.Leader)
	fmt.Printf("window:    [%d, %d] of %d\n", out.Window[0], out.Window[1], len(out.CutRef))
	fmt.Printf("saved to:  %s\n", dir)
	return nil
}
