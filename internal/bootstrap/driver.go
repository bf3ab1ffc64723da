// Package bootstrap drives a freshly booted NixOS installer to a deployed,
// registered host: it trusts and logs into the target, prepares the
// configuration tree, deploys, reconnects after the reboot and registers the
// host's keys with the secrets registry.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"nixstrap/internal/knownhosts"
	"nixstrap/internal/logger"
	"nixstrap/internal/nixconfig"
	"nixstrap/internal/prompt"
	"nixstrap/internal/runs/types"
	"nixstrap/internal/ssh"
	"nixstrap/internal/terminal"
)

// errStopped ends the run early without failing it.
var errStopped = errors.New("stopped by operator")

type stepResult struct {
	status types.StepStatus
	detail string
}

func done(format string, args ...interface{}) stepResult {
	return stepResult{status: types.StepStatusSucceeded, detail: fmt.Sprintf(format, args...)}
}

func skipped(format string, args ...interface{}) stepResult {
	return stepResult{status: types.StepStatusSkipped, detail: fmt.Sprintf(format, args...)}
}

type step struct {
	name string
	fn   func(ctx context.Context) (stepResult, error)
}

type Driver struct {
	session  Session
	prompt   prompt.Prompter
	runner   terminal.Runner
	registry Registry
	journal  Journal
	opts     Options

	now  func() time.Time
	exit func(int)

	run        *types.Run
	listener   *interruptListener
	workDir    string
	tree       *nixconfig.Tree
	host       string
	user       string
	cred       ssh.Credential
	hostKey    string
	deployKey  string
	recipients []string
}

func New(session Session, prompter prompt.Prompter, runner terminal.Runner, reg Registry, journal Journal, opts Options) *Driver {
	opts.setDefaults()

	return &Driver{
		session:  session,
		prompt:   prompter,
		runner:   runner,
		registry: reg,
		journal:  journal,
		opts:     opts,
		now:      time.Now,
		exit:     os.Exit,
	}
}

// RunID is the journal ID of the current or last run.
func (d *Driver) RunID() string {
	if d.run == nil {
		return ""
	}
	return d.run.ID
}

// Host is the configuration host chosen for the target.
func (d *Driver) Host() string {
	return d.host
}

func (d *Driver) steps() []step {
	return []step{
		{"connect", d.connect},
		{"authenticate", d.authenticate},
		{"config-tree", d.openTree},
		{"hardware-config", d.hardwareConfig},
		{"disk-device", d.diskDevice},
		{"deploy", d.deploy},
		{"host-key", d.registerHostKey},
		{"user-key", d.registerUserKey},
		{"secrets", d.rekeySecrets},
		{"rebuild", d.rebuild},
		{"upload", d.upload},
		{"changes", d.reportChanges},
	}
}

// Run executes the whole pipeline once. A step error aborts the run. When
// the operator declines the post-deploy reconnect the run stops early and
// Run returns nil.
func (d *Driver) Run(ctx context.Context) (err error) {
	endpoint := d.session.Endpoint()

	run, err := d.journal.Start(endpoint.String(), "")
	if err != nil {
		return fmt.Errorf("starting run journal: %w", err)
	}
	d.run = run

	logger.Info("Bootstrap run %s against %s", run.ID, endpoint)

	defer func() {
		d.cleanup()
		d.finish(err)
		if errors.Is(err, errStopped) {
			err = nil
		}
	}()

	for _, s := range d.steps() {
		if err := d.runStep(ctx, s); err != nil {
			return err
		}
	}

	logger.Info("Bootstrap of %s finished", endpoint)
	return nil
}

func (d *Driver) runStep(ctx context.Context, s step) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	logger.Debug("Step %s", s.name)
	result, err := s.fn(ctx)

	status, detail := result.status, result.detail
	switch {
	case errors.Is(err, errStopped):
		status, detail = types.StepStatusSkipped, err.Error()
	case err != nil:
		status, detail = types.StepStatusFailed, err.Error()
	}

	if _, jerr := d.journal.RecordStep(d.run.ID, s.name, status, detail); jerr != nil {
		logger.Warn("Failed to record step %s: %v", s.name, jerr)
	}

	if err != nil {
		if errors.Is(err, errStopped) {
			return err
		}
		return fmt.Errorf("%s: %w", s.name, err)
	}
	if status == types.StepStatusSkipped {
		logger.Warn("Skipping %s: %s", s.name, detail)
	}
	return nil
}

func (d *Driver) finish(err error) {
	status := types.RunStatusSucceeded
	switch {
	case errors.Is(err, errStopped):
		status = types.RunStatusAborted
	case errors.Is(err, ErrAborted), errors.Is(err, context.Canceled):
		status = types.RunStatusAborted
	case err != nil:
		status = types.RunStatusFailed
	}

	if ferr := d.journal.Finish(d.run.ID, status); ferr != nil {
		logger.Warn("Failed to finish run %s: %v", d.run.ID, ferr)
	}
}

func (d *Driver) cleanup() {
	if d.listener != nil {
		d.listener.stop()
	}
	if d.workDir == "" || d.opts.KeepWorkDir {
		return
	}
	if err := os.RemoveAll(d.workDir); err != nil {
		logger.Warn("Failed to remove %s: %v", d.workDir, err)
	}
}

func (d *Driver) target() string {
	return d.user + "@" + d.session.Endpoint().String()
}

func (d *Driver) confirm(format string, args ...interface{}) (bool, error) {
	return d.prompt.Confirm(fmt.Sprintf(format, args...))
}

// remote runs command on the target and treats a non-zero exit as fatal.
func (d *Driver) remote(command string) (*ssh.CommandResult, error) {
	result, err := d.session.RunCommand(command)
	if err != nil {
		return nil, err
	}
	if err := result.Err(command); err != nil {
		return nil, err
	}
	return result, nil
}

// trust records key as the endpoint's host key and checks the store agrees.
func (d *Driver) trust(key string) (knownhosts.Result, error) {
	ep := d.session.Endpoint()

	result, err := knownhosts.Reconcile(d.opts.KnownHostsPath, ep.Destination, ep.Port, key)
	if err != nil {
		return result, err
	}
	if err := knownhosts.VerifyText(d.opts.KnownHostsPath, ep.Destination, ep.Port, key); err != nil {
		return result, err
	}

	if result.Updated() {
		logger.Info("Known hosts for %s: %s", ep, result)
	}
	return result, nil
}

func (d *Driver) connect(ctx context.Context) (stepResult, error) {
	key, err := d.session.Connect(ctx)
	if err != nil {
		return stepResult{}, err
	}

	result, err := d.trust(key)
	if err != nil {
		return stepResult{}, err
	}

	d.hostKey = key
	return done("host key %s", result), nil
}

func (d *Driver) openTree(ctx context.Context) (stepResult, error) {
	workDir, err := os.MkdirTemp(d.opts.WorkDir, "nixstrap-")
	if err != nil {
		return stepResult{}, err
	}
	d.workDir = workDir

	runID := d.run.ID
	d.listener = newInterruptListener(workDir, d.opts.InterruptExitCode, func() {
		if err := d.journal.Finish(runID, types.RunStatusInterrupted); err != nil {
			logger.Warn("Failed to mark run %s interrupted: %v", runID, err)
		}
	}, d.exit)
	d.listener.start()

	if d.opts.ConfigPath != "" {
		d.tree, err = nixconfig.Open(ctx, d.runner, d.opts.ConfigPath)
	} else {
		d.tree, err = nixconfig.Clone(ctx, d.runner, d.opts.ConfigRepo, filepath.Join(workDir, "nix-config"))
	}
	if err != nil {
		return stepResult{}, err
	}

	hosts, err := d.tree.Hosts(ctx)
	if err != nil {
		return stepResult{}, err
	}
	hosts = nixconfig.FilterHosts(hosts, d.opts.HostPrefix)
	if len(hosts) == 0 {
		return stepResult{}, fmt.Errorf("%w: prefix %q", ErrNoHostSelected, d.opts.HostPrefix)
	}

	idx, err := d.prompt.Select("Select a configuration host", hosts)
	if err != nil {
		return stepResult{}, err
	}
	d.host = hosts[idx]

	if err := d.journal.SetHost(d.run.ID, d.host); err != nil {
		logger.Warn("Failed to record host for run %s: %v", d.run.ID, err)
	}

	logger.Info("Selected host %s from %s", d.host, d.tree.Path)
	return done("%s at %s", d.host, d.tree.Path), nil
}

func (d *Driver) reportChanges(ctx context.Context) (stepResult, error) {
	changes, err := d.tree.UntrackedChanges(ctx)
	if err != nil {
		return stepResult{}, err
	}
	if len(changes) == 0 {
		return done("working tree clean"), nil
	}

	fmt.Fprintf(d.opts.Out, "📝 Uncommitted changes in %s:\n", d.tree.Path)
	for _, c := range changes {
		fmt.Fprintf(d.opts.Out, "🔸 %s\n", c)
	}

	show, err := d.confirm("Show the detail of those changes?")
	if err != nil {
		return stepResult{}, err
	}
	if show {
		for _, c := range changes {
			if c.Status == "??" {
				continue
			}
			diff, err := d.tree.Diff(ctx, c.Path)
			if err != nil {
				return stepResult{}, err
			}
			fmt.Fprintln(d.opts.Out, diff)
		}
	}

	if !d.opts.KeepWorkDir && d.opts.ConfigPath == "" {
		logger.Warn("The cloned tree in %s is removed on exit; push the changes or rerun with --keep-workdir", d.workDir)
	}
	return done("%d changed file(s)", len(changes)), nil
}

// sameKey compares the key material of two authorized-keys lines.
func sameKey(a, b string) bool {
	fa, fb := strings.Fields(a), strings.Fields(b)
	if len(fa) < 2 || len(fb) < 2 {
		return false
	}
	return fa[0] == fb[0] && fa[1] == fb[1]
}
