// Package interactive provides a readline shell for verifying single
// PowerHint scenes on one device.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/device"
	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/testharness/reporter"
	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/testharness/runner"
)

// Shell handles interactive mode for powerhint-test.
type Shell struct {
	session *runner.Session
	report  *reporter.ReportWriter
	out     io.Writer
	rl      *readline.Instance
	loaded  bool
}

// New creates a shell for the device id. Report lines are printed to the
// terminal as the commands run.
func New(cfg runner.Config, open runner.TransportFunc, id device.Identity) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          id.Serial + "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	s := newShell(cfg, open, id, rl.Stdout())
	s.rl = rl
	return s, nil
}

func newShell(cfg runner.Config, open runner.TransportFunc, id device.Identity, out io.Writer) *Shell {
	runID := uuid.NewString()
	report := reporter.NewReportWriter(out)
	return &Shell{
		session: runner.NewSession(cfg, open(id.Serial, runID), id, runID, report),
		report:  report,
		out:     out,
	}
}

// Run starts the interactive command loop. It returns when the user quits,
// the input ends or ctx is cancelled.
func (s *Shell) Run(ctx context.Context) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			return
		}

		if !s.Execute(ctx, line) {
			return
		}
	}
}

// Execute runs one command line. It returns false once the shell should
// exit.
func (s *Shell) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()
	case "load", "l":
		s.cmdLoad(ctx)
	case "scenes", "s":
		s.cmdScenes(args)
	case "defaults", "d":
		s.cmdDefaults()
	case "baseline", "b":
		s.cmdBaseline(ctx)
	case "run", "r":
		s.cmdRun(ctx, args)
	case "read":
		s.cmdRead(ctx, args)
	case "results":
		s.cmdResults()
	case "quit", "exit", "q":
		return false
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}

	if err := s.report.Flush(); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
	return true
}

func (s *Shell) printHelp() {
	fmt.Fprint(s.out, `
Commands:
  load, l              Pull and parse the PowerHint configuration
  scenes, s [filter]   List scenes (optional name substring)
  defaults, d          List resource defaults
  baseline, b          Check live values against the resource defaults
  run, r <scene|all>   Enable, check and disable a scene
  read <path>          Read a sysfs value from the device
  results              Show scene results so far
  help, ?              Show this help
  quit, q              Exit

`)
}

func (s *Shell) requireLoaded() bool {
	if !s.loaded {
		fmt.Fprintln(s.out, "No configuration loaded. Run 'load' first.")
	}
	return s.loaded
}

func (s *Shell) cmdLoad(ctx context.Context) {
	defer s.session.RemoveConfigFiles()
	if err := s.session.FetchConfig(ctx); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	if err := s.session.Load(ctx); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	s.loaded = true
	m := s.session.Model()
	fmt.Fprintf(s.out, "Loaded %d scenes, %d resource defaults\n", len(m.Scenes()), len(m.Defaults()))
}

func (s *Shell) cmdScenes(args []string) {
	if !s.requireLoaded() {
		return
	}
	filter := ""
	if len(args) > 0 {
		filter = strings.ToLower(args[0])
	}
	for _, sc := range s.session.Model().Scenes() {
		if filter != "" && !strings.Contains(strings.ToLower(sc.Name), filter) {
			continue
		}
		fmt.Fprintf(s.out, "  %-40s %-12s %3d tunables  %s\n", sc.Name, sc.ID, len(sc.Tunables), sc.Result)
	}
}

func (s *Shell) cmdDefaults() {
	if !s.requireLoaded() {
		return
	}
	for _, d := range s.session.Model().Defaults() {
		fmt.Fprintf(s.out, "  %s = %s\n", d.Path, d.Expected())
	}
}

func (s *Shell) cmdBaseline(ctx context.Context) {
	if !s.requireLoaded() {
		return
	}
	s.session.BaselineCheck(ctx)
	fmt.Fprintln(s.out, "Baseline check done")
}

func (s *Shell) cmdRun(ctx context.Context, args []string) {
	if !s.requireLoaded() {
		return
	}
	if len(args) == 0 {
		fmt.Fprintln(s.out, "Usage: run <scene|all>")
		return
	}
	if args[0] == "all" {
		verified := s.session.VerifyScenes(ctx)
		fmt.Fprintf(s.out, "Verified %d scenes\n", len(verified))
		return
	}
	sc, ok := s.session.Model().Scene(args[0])
	if !ok {
		fmt.Fprintf(s.out, "Unknown scene: %s\n", args[0])
		return
	}
	res := s.session.VerifyScene(ctx, sc)
	fmt.Fprintf(s.out, "%s: %s (%d findings)\n", res.Name, res.Result, len(res.Findings))
}

func (s *Shell) cmdRead(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "Usage: read <path>")
		return
	}
	value, err := s.session.Read(ctx, args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "%s = %q\n", args[0], value)
}

func (s *Shell) cmdResults() {
	res := s.session.Result()
	if len(res.Scenes) == 0 {
		fmt.Fprintln(s.out, "No scenes verified yet")
		return
	}
	for _, sr := range res.Scenes {
		fmt.Fprintf(s.out, "  %s: %s\n", sr.Name, sr.Result)
	}
	fmt.Fprintf(s.out, "Passed: %d  Failed: %d\n", res.PassCount(), res.FailCount())
}
