package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/CK6170/Loadcurve-go/curve"
	"github.com/CK6170/Loadcurve-go/rig"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type screen int

const (
	screenEntry screen = iota
	screenRun
	screenResult
)

type model struct {
	scr screen

	configInput textinput.Model
	configPath  string

	sess     *rig.Session
	lastErr  error
	infoLine string

	running    bool
	lastUpdate rig.Update

	outcome  *curve.Outcome
	savedDir string

	// cancellation for the in-flight acquisition
	runCtx    context.Context
	runCancel context.CancelFunc
	runID     int
	updates   chan tea.Msg
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func initialModel(configPath string) model {
	in := textinput.New()
	in.Placeholder = "Path to config.json"
	in.Focus()
	in.CharLimit = 512
	in.Width = 60

	m := model{scr: screenEntry, configInput: in}
	if strings.TrimSpace(configPath) != "" {
		m.configInput.SetValue(configPath)
		m.configInput.CursorEnd()
	}
	return m
}

type errMsg struct{ err error }
type infoMsg struct{ s string }
type connectedMsg struct {
	sess       *rig.Session
	configPath string
	batteryV   float64
}
type acqUpdateMsg struct {
	runID int
	u     rig.Update
}
type acqDoneMsg struct {
	runID int
	rec   *rig.Recording
}
type calDoneMsg struct {
	runID int
	out   *curve.Outcome
	dir   string
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func connectCmd(path string) tea.Cmd {
	return func() tea.Msg {
		p, err := rig.LoadParameters(path)
		if err != nil {
			return errMsg{err}
		}
		if _, err := rig.EnsureSerialPort(path, p, true); err != nil {
			return errMsg{err}
		}
		sess, err := rig.Connect(p)
		if err != nil {
			return errMsg{err}
		}
		if err := rig.ProbeVersions(sess); err != nil {
			_ = sess.Close()
			return errMsg{err}
		}
		batteryV, _ := sess.BatteryVoltage()
		return connectedMsg{sess: sess, configPath: path, batteryV: batteryV}
	}
}

// startAcquire launches the ramp in a goroutine; updates arrive through
// m.updates and are pumped back into bubbletea one message at a time.
func (m *model) startAcquire() tea.Cmd {
	m.runID++
	runID := m.runID
	m.runCtx, m.runCancel = context.WithCancel(context.Background())
	m.updates = make(chan tea.Msg, 64)
	m.running = true
	m.outcome = nil
	m.savedDir = ""

	ch := m.updates
	ctx := m.runCtx
	sess := m.sess
	go func() {
		rec, err := rig.Acquire(ctx, sess, func(u rig.Update) {
			select {
			case ch <- acqUpdateMsg{runID: runID, u: u}:
			default:
			}
		})
		if err != nil {
			ch <- errMsg{err}
			return
		}
		ch <- acqDoneMsg{runID: runID, rec: rec}
	}()
	return m.waitForUpdate()
}

func (m *model) waitForUpdate() tea.Cmd {
	ch := m.updates
	return func() tea.Msg { return <-ch }
}

func (m *model) calibrateCmd(runID int, rec *rig.Recording) tea.Cmd {
	p := m.sess.Params
	return func() tea.Msg {
		out, err := rig.CalibrateRecording(rec, p)
		if err != nil {
			return errMsg{err}
		}
		dir, err := rig.SaveRun(rec, out, p)
		if err != nil {
			return errMsg{fmt.Errorf("fit ok but save failed: %w", err)}
		}
		return calDoneMsg{runID: runID, out: out, dir: dir}
	}
}

func (m model) disconnect() error {
	if m.runCancel != nil {
		m.runCancel()
	}
	if m.sess != nil {
		return m.sess.Close()
	}
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			_ = m.disconnect()
			return m, tea.Quit
		}

		switch m.scr {
		case screenEntry:
			if msg.String() == "enter" {
				path := strings.TrimSpace(m.configInput.Value())
				if path == "" {
					m.lastErr = fmt.Errorf("config path required")
					return m, nil
				}
				m.infoLine = "Connecting..."
				return m, connectCmd(path)
			}
		case screenRun:
			switch msg.String() {
			case "s":
				if !m.running {
					return m, m.startAcquire()
				}
			case "x":
				if m.running && m.runCancel != nil {
					m.runCancel()
					m.running = false
					m.infoLine = "Acquisition cancelled."
				}
			case "b":
				if !m.running {
					_ = m.disconnect()
					m.sess = nil
					m.scr = screenEntry
					m.infoLine = "Disconnected"
				}
			}
		case screenResult:
			switch msg.String() {
			case "n":
				m.scr = screenRun
				return m, m.startAcquire()
			case "q":
				_ = m.disconnect()
				return m, tea.Quit
			}
		}

	case errMsg:
		m.lastErr = msg.err
		m.running = false
		return m, nil

	case infoMsg:
		m.infoLine = msg.s
		return m, nil

	case connectedMsg:
		m.sess = msg.sess
		m.configPath = msg.configPath
		m.lastErr = nil
		m.scr = screenRun
		info := fmt.Sprintf(
			"Connected: bridge %s, motor %s. DUT %s, REF scale %g.",
			m.sess.Params.SERIAL.PORT,
			m.sess.Params.MOTOR.PORT,
			m.sess.Params.DUT.SERIAL,
			m.sess.Params.REF.SCALE,
		)
		if msg.batteryV > 0 {
			info += fmt.Sprintf(" Motor battery %.1f V.", msg.batteryV)
		}
		m.infoLine = info
		return m, nil

	case acqUpdateMsg:
		if msg.runID != m.runID {
			return m, nil
		}
		m.lastUpdate = msg.u
		return m, m.waitForUpdate()

	case acqDoneMsg:
		if msg.runID != m.runID {
			return m, nil
		}
		m.running = false
		m.infoLine = fmt.Sprintf("Acquired %d sample pairs; fitting...", len(msg.rec.Ref))
		return m, m.calibrateCmd(msg.runID, msg.rec)

	case calDoneMsg:
		if msg.runID != m.runID {
			return m, nil
		}
		m.outcome = msg.out
		m.savedDir = msg.dir
		m.scr = screenResult
		m.infoLine = "Calibration complete."
		return m, nil
	}

	if m.scr == screenEntry {
		var cmd tea.Cmd
		m.configInput, cmd = m.configInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Loadcurve Calibration") + "\n")
	b.WriteString(helpStyle.Render("Ctrl+C to quit.") + "\n\n")
	if m.infoLine != "" {
		b.WriteString(okStyle.Render(m.infoLine) + "\n")
	}
	if m.lastErr != nil {
		b.WriteString(errStyle.Render("Error: "+m.lastErr.Error()) + "\n")
	}
	b.WriteString("\n")

	switch m.scr {
	case screenEntry:
		b.WriteString("Config file:\n")
		b.WriteString(m.configInput.View() + "\n\n")
		b.WriteString(helpStyle.Render("Enter to connect.") + "\n")
	case screenRun:
		b.WriteString(m.viewRun())
	case screenResult:
		b.WriteString(m.viewResult())
	}
	return b.String()
}

func (m model) viewRun() string {
	var b strings.Builder
	if m.running {
		u := m.lastUpdate
		b.WriteString(fmt.Sprintf("Phase: %-8s  %d/%d\n", u.Phase, u.Done, u.Target))
		b.WriteString(fmt.Sprintf("REF: %+.8f V/V   DUT: %+.8f V/V\n", u.Ref, u.Dut))
		b.WriteString(fmt.Sprintf("Recorded pairs: %d\n\n", u.Total))
		b.WriteString(helpStyle.Render("x to cancel.") + "\n")
	} else {
		b.WriteString("Clear the fixture, seat both load cells, then start the ramp.\n\n")
		b.WriteString(helpStyle.Render("s to start, b to disconnect.") + "\n")
	}
	return b.String()
}

func (m model) viewResult() string {
	var b strings.Builder
	out := m.outcome
	if out == nil {
		return "No result.\n"
	}
	b.WriteString(fmt.Sprintf("DUT scale:   %.4f kg/(V/V)\n", out.ScaleDUT))
	b.WriteString(fmt.Sprintf("Residual:    %.6g\n", out.Residual))
	b.WriteString(fmt.Sprintf("Leader:      %s (half-sample)\n", out.Leader))
	b.WriteString(fmt.Sprintf("Fit window:  [%d, %d] of %d\n", out.Window[0], out.Window[1], len(out.CutRef)))
	if m.savedDir != "" {
		b.WriteString(fmt.Sprintf("Saved to:    %s\n", m.savedDir))
	}
	b.WriteString("\n" + helpStyle.Render("n for another run, q to quit.") + "\n")
	return b.String()
}

func main() {
	var (
		plain = flag.Bool("plain", false, "plain prompt flow instead of the TUI")
		refit = flag.String("refit", "", "re-fit a stored run directory and exit (no hardware)")
	)
	flag.Parse()

	if *refit != "" {
		if err := runRefit(*refit); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		return
	}

	configPath := flag.Arg(0)
	if *plain {
		if configPath == "" {
			fmt.Fprintln(os.Stderr, "usage: calibrate -plain <config.json>")
			os.Exit(2)
		}
		if err := runPlain(configPath); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		return
	}

	p := tea.NewProgram(initialModel(configPath))
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// runRefit re-runs the fit over a stored run directory, the offline path for
// tuning the window fraction on old data.
func runRefit(dir string) error {
	ref, dut, scaleRef, err := rig.LoadRun(dir)
	if err != nil {
		return err
	}
	out, err := curve.Calibrate(ref, dut, scaleRef, curve.Options{})
	if err != nil {
		return err
	}
	fmt.Printf("scale_dut: %.6f\n", out.ScaleDUT)
	fmt.Printf("residual:  %.6g\n", out.Residual)
	fmt.Printf("leader:    %s\n", out.Leader)
	fmt.Printf("window:    [%d, %d] of %d\n", out.Window[0], out.Window[1], len(out.CutRef))
	return nil
}
