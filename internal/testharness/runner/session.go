package runner

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/device"
	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/testharness/loader"
	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/testharness/reporter"
	plog "github.com/Kscope-Devices/android-device-duoqin-qin2pro/pkg/log"
)

// Session is the verification of one device.
type Session struct {
	config    Config
	transport Transport
	model     *device.Model
	report    *reporter.ReportWriter
	events    plog.Logger
	runID     string
	sleep     func(ctx context.Context, d time.Duration) error
	result    *reporter.DeviceResult
}

// NewSession creates a session that writes its findings to report. A nil
// report discards them.
func NewSession(cfg Config, t Transport, id device.Identity, runID string, report *reporter.ReportWriter) *Session {
	if report == nil {
		report = reporter.NewReportWriter(io.Discard)
	}
	events := cfg.EventLogger
	if events == nil {
		events = plog.NoopLogger{}
	}
	return &Session{
		config:    cfg,
		transport: t,
		model:     device.NewModel(id),
		report:    report,
		events:    events,
		runID:     runID,
		sleep:     contextSleep,
		result:    &reporter.DeviceResult{Identity: id, RunID: runID},
	}
}

// Model returns the device model filled by Load.
func (s *Session) Model() *device.Model {
	return s.model
}

// Result returns the results collected so far.
func (s *Session) Result() *reporter.DeviceResult {
	return s.result
}

func (s *Session) run(ctx context.Context, start time.Time) {
	id := s.model.Identity
	dir := filepath.Join(s.config.ReportRoot, reporter.ReportDirName(id, start))
	report, err := reporter.CreateReport(dir)
	if err != nil {
		s.abort(ctx, "report", err)
		return
	}
	s.report = report
	s.result.ReportDir = dir
	defer func() {
		if err := report.Close(); err != nil {
			log.Error().Err(err).Str("dir", dir).Msg("Failed to write report")
			if s.result.Err == nil {
				s.result.Err = fmt.Errorf("write report: %w", err)
			}
		}
	}()
	defer s.RemoveConfigFiles()

	report.Header(id)

	if err := s.Prepare(ctx); err != nil {
		s.abort(ctx, "prepare", err)
		return
	}
	if err := s.FetchConfig(ctx); err != nil {
		s.abort(ctx, "fetch config", err)
		return
	}
	if err := s.Load(ctx); err != nil {
		s.abort(ctx, "load config", err)
		return
	}

	s.BaselineCheck(ctx)
	verified := s.VerifyScenes(ctx)
	if err := ctx.Err(); err != nil {
		s.abort(ctx, "verify scenes", err)
		return
	}

	if s.config.YlogEnabled {
		if err := s.transport.Pull(ctx, s.config.YlogDir, dir); err != nil {
			log.Warn().Err(err).Msg("Failed to pull ylog")
			s.logError(ctx, err, "pull ylog")
		}
	}

	report.Results(verified)
}

func (s *Session) abort(ctx context.Context, step string, err error) {
	s.result.Err = fmt.Errorf("%s: %w", step, err)
	s.logError(ctx, err, step)
}

// Prepare enables ylog, clears old logs and reboots so the run starts from
// a fresh boot. It does nothing if ylog is disabled.
func (s *Session) Prepare(ctx context.Context) error {
	if !s.config.YlogEnabled {
		return nil
	}
	if err := s.rootAndSettle(ctx); err != nil {
		return err
	}
	if err := s.transport.SetProperty(ctx, s.config.YlogProperty, "1"); err != nil {
		return err
	}
	if _, err := s.transport.Shell(ctx, "rm", "-rf", s.config.YlogDir+"/*"); err != nil {
		return err
	}

	log.Info().Str("serial", s.transport.Serial()).Msg("Rebooting device")
	if err := s.transport.RebootAndWait(ctx); err != nil {
		return err
	}
	return s.sleep(ctx, s.config.RebootSettle)
}

// FetchConfig pulls the three configuration documents into the work dir.
func (s *Session) FetchConfig(ctx context.Context) error {
	if err := s.rootAndSettle(ctx); err != nil {
		return err
	}
	for _, name := range s.config.Files.All() {
		if err := s.transport.Pull(ctx, path.Join(s.config.ConfigDir, name), s.config.WorkDir); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) rootAndSettle(ctx context.Context) error {
	if err := s.transport.Root(ctx); err != nil {
		return err
	}
	return s.sleep(ctx, s.config.RootSettle)
}

// Load parses the pulled documents into the device model.
func (s *Session) Load(ctx context.Context) error {
	docs, err := loader.LoadFiles(s.config.WorkDir, s.config.Files)
	if err != nil {
		return err
	}
	if err := loader.NewParser(shellReader{s.transport}).Parse(ctx, docs, s.model); err != nil {
		return err
	}
	log.Info().
		Int("scenes", len(s.model.Scenes())).
		Int("defaults", len(s.model.Defaults())).
		Msg("Configuration loaded")
	return nil
}

// RemoveConfigFiles deletes the documents FetchConfig pulled into WorkDir.
func (s *Session) RemoveConfigFiles() {
	if err := loader.RemoveFiles(s.config.WorkDir, s.config.Files); err != nil {
		log.Warn().Err(err).Msg("Failed to remove configuration files")
	}
}

// BaselineCheck compares the live value of every tunable with a declared
// default and records it as the baseline later restores are checked
// against. Mismatches are reported but fail no scene.
func (s *Session) BaselineCheck(ctx context.Context) {
	for _, def := range s.model.Defaults() {
		if strings.Contains(def.Path, "subsys") {
			continue
		}
		live, ok := s.read(ctx, def.Path)

		if def.Constrained() {
			passed := equalValues(def.Declared, live)
			s.logCheck(ctx, plog.PhaseBaseline, def.Path, def.Declared, live, passed, false)
			if !passed {
				s.report.BaselineMismatch(def.Path, def.Declared, live)
				s.result.Baseline = append(s.result.Baseline, reporter.Finding{
					Phase: "baseline", Path: def.Path, Expected: def.Declared, Actual: live,
				})
			}
		} else {
			s.logCheck(ctx, plog.PhaseBaseline, def.Path, def.Declared, live, true, true)
		}

		if ok {
			def.Observe(live)
		}
	}
}

// VerifyScenes verifies the selected scenes in document order and returns
// them. It stops early if ctx is cancelled.
func (s *Session) VerifyScenes(ctx context.Context) []*device.Scene {
	var verified []*device.Scene
	for _, scene := range s.model.Scenes() {
		if s.config.SceneFilter != nil && !s.config.SceneFilter.MatchString(scene.Name) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		s.VerifyScene(ctx, scene)
		verified = append(verified, scene)
	}
	return verified
}

// VerifyScene enables the scene, checks every tunable holds the scene value,
// disables it again and checks every tunable with a default went back to its
// baseline. Any mismatch marks the scene failed; checking always continues.
// The result is recorded in Result, replacing any earlier run of the scene.
func (s *Session) VerifyScene(ctx context.Context, scene *device.Scene) *reporter.SceneResult {
	ctx = plog.WithScene(ctx, scene.Name)
	start := time.Now()
	sr := &reporter.SceneResult{Name: scene.Name, ID: scene.ID, Tunables: len(scene.Tunables)}
	state := StateIdle

	s.report.SceneStart(scene.Name)

	scene.Result = device.Success
	state = s.transition(ctx, state, StateActivating, "")
	if err := s.toggle(ctx, scene, true); err != nil {
		s.callFailed(ctx, scene, sr, "enable", err)
	}
	s.report.EnterScene(scene.Name)

	state = s.transition(ctx, state, StateCheckingApplied, "")
	for _, t := range scene.Tunables {
		live, _ := s.read(ctx, t.Path)
		passed := equalValues(t.Value, live)
		s.logCheck(ctx, plog.PhaseApplied, t.Path, t.Value, live, passed, false)
		if !passed {
			s.report.AppliedMismatch(t.Path, t.Value, live)
			sr.Findings = append(sr.Findings, reporter.Finding{Phase: "applied", Path: t.Path, Expected: t.Value, Actual: live})
			scene.Fail()
		}
	}

	state = s.transition(ctx, state, StateDeactivating, "")
	if err := s.toggle(ctx, scene, false); err != nil {
		s.callFailed(ctx, scene, sr, "disable", err)
	}
	s.report.ExitScene(scene.Name)

	state = s.transition(ctx, state, StateCheckingRestored, "")
	for _, t := range scene.Tunables {
		def, ok := s.model.Default(t.Path)
		if !ok {
			continue
		}
		expected := def.Expected()
		if !def.Observed && !def.Constrained() {
			s.logCheck(ctx, plog.PhaseRestored, t.Path, expected, "", true, true)
			continue
		}
		live, _ := s.read(ctx, t.Path)
		passed := equalValues(expected, live)
		s.logCheck(ctx, plog.PhaseRestored, t.Path, expected, live, passed, false)
		if !passed {
			s.report.RestoredMismatch(t.Path, expected, live)
			sr.Findings = append(sr.Findings, reporter.Finding{Phase: "restored", Path: t.Path, Expected: expected, Actual: live})
			scene.Fail()
		}
	}

	s.report.SceneEnd(scene.Name)
	s.transition(ctx, state, StateDone, string(scene.Result))

	sr.Result = scene.Result
	sr.Duration = time.Since(start)
	log.Info().Str("scene", scene.Name).Str("result", string(scene.Result)).Msg("Scene verified")
	s.record(sr)
	return sr
}

func (s *Session) record(sr *reporter.SceneResult) {
	for i, prev := range s.result.Scenes {
		if prev.Name == sr.Name {
			s.result.Scenes[i] = sr
			return
		}
	}
	s.result.Scenes = append(s.result.Scenes, sr)
}

func (s *Session) callFailed(ctx context.Context, scene *device.Scene, sr *reporter.SceneResult, action string, err error) {
	log.Warn().Err(err).Str("scene", scene.Name).Msgf("Scene %s call failed", action)
	s.report.CallFailed(scene.Name, action, err)
	s.logError(ctx, err, "scene "+action)
	if sr.Error == "" {
		sr.Error = fmt.Sprintf("%s: %v", action, err)
	}
	scene.Fail()
}

// toggle calls the power service to enable or disable a scene and waits
// for the driver to settle.
func (s *Session) toggle(ctx context.Context, scene *device.Scene, enable bool) error {
	id, err := scene.NumericID()
	if err != nil {
		return err
	}
	flag := "0"
	if enable {
		flag = "1"
	}
	args := []string{
		"service", "call", s.config.PowerService, strconv.Itoa(s.config.PowerCode),
		"i32", strconv.FormatInt(id, 10), "i32", flag,
	}
	log.Info().Str("scene", scene.Name).Strs("cmd", args).Msg("Toggling scene")

	out, callErr := s.transport.Shell(ctx, args...)
	if callErr == nil && !strings.Contains(out, "Parcel") {
		callErr = fmt.Errorf("unexpected service reply: %q", strings.TrimSpace(out))
	}
	if err := s.sleep(ctx, s.config.SceneSettle); err != nil {
		return err
	}
	return callErr
}

// Read returns the trimmed live value of a file on the device.
func (s *Session) Read(ctx context.Context, p string) (string, error) {
	out, err := s.transport.Shell(ctx, "cat", p)
	if err != nil {
		return "", err
	}
	return trimValue(out), nil
}

// read returns the trimmed live value of a sysfs file. A failed read is
// logged and yields an empty value.
func (s *Session) read(ctx context.Context, p string) (string, bool) {
	v, err := s.Read(ctx, p)
	if err != nil {
		log.Warn().Err(err).Str("path", p).Msg("Failed to read value")
		s.logError(ctx, err, "read "+p)
		return "", false
	}
	return v, true
}

func (s *Session) logCheck(ctx context.Context, phase plog.CheckPhase, p, expected, actual string, passed, skipped bool) {
	s.events.Log(plog.Event{
		Timestamp: time.Now(),
		RunID:     s.runID,
		Serial:    s.transport.Serial(),
		Category:  plog.CategoryCheck,
		Scene:     plog.SceneFrom(ctx),
		Check: &plog.CheckEvent{
			Phase:    phase,
			Path:     p,
			Expected: expected,
			Actual:   actual,
			Passed:   passed,
			Skipped:  skipped,
		},
	})
}

func (s *Session) logError(ctx context.Context, err error, what string) {
	s.events.Log(plog.Event{
		Timestamp: time.Now(),
		RunID:     s.runID,
		Serial:    s.transport.Serial(),
		Category:  plog.CategoryError,
		Scene:     plog.SceneFrom(ctx),
		Error:     &plog.ErrorEventData{Message: err.Error(), Context: what},
	})
}

// shellReader reads device files for the parser.
type shellReader struct {
	t Transport
}

func (r shellReader) ReadValue(ctx context.Context, p string) (string, error) {
	return r.t.Shell(ctx, "cat", p)
}
