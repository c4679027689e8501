package provision

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/vpsinit/internal/config"
	"github.com/rileyhilliard/vpsinit/internal/errors"
	"github.com/rileyhilliard/vpsinit/internal/host"
	"github.com/rileyhilliard/vpsinit/internal/keys"
	"github.com/rileyhilliard/vpsinit/internal/logger"
	"github.com/rileyhilliard/vpsinit/internal/prompt"
	"github.com/rileyhilliard/vpsinit/internal/util"
	"github.com/rileyhilliard/vpsinit/pkg/sshutil"
	"golang.org/x/crypto/ssh"
)

// outputTailLines is how much remote output a failed step keeps.
const outputTailLines = 15

// Observer is told about step progress. All methods are called from the
// goroutine running Run.
type Observer interface {
	StepStarted(index, total int, name StepName, title string)
	StepFinished(index, total int, result StepResult)
}

type nopObserver struct{}

func (nopObserver) StepStarted(int, int, StepName, string) {}
func (nopObserver) StepFinished(int, int, StepResult)      {}

// Options configure a Provisioner.
type Options struct {
	Config *config.Config
	// Dial defaults to sshutil.DialClient.
	Dial     sshutil.DialFunc
	Logger   logger.Logger
	Observer Observer
	// Output receives remote command output as it streams. Nil discards it.
	Output io.Writer
	// Now defaults to time.Now; used for the sshd_config backup suffix.
	Now func() time.Time
}

// Provisioner runs the hardening steps against one server.
type Provisioner struct {
	cfg      *config.Config
	dial     sshutil.DialFunc
	log      logger.Logger
	observer Observer
	output   io.Writer
	now      func() time.Time
}

// New creates a Provisioner.
func New(opts Options) *Provisioner {
	p := &Provisioner{
		cfg:      opts.Config,
		dial:     opts.Dial,
		log:      opts.Logger,
		observer: opts.Observer,
		output:   opts.Output,
		now:      opts.Now,
	}
	if p.cfg == nil {
		p.cfg = config.DefaultConfig()
	}
	if p.dial == nil {
		p.dial = sshutil.DialClient
	}
	if p.log == nil {
		p.log = logger.Noop()
	}
	if p.observer == nil {
		p.observer = nopObserver{}
	}
	if p.output == nil {
		p.output = io.Discard
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// step is one entry of the fixed plan.
type step struct {
	name  StepName
	title string
	needs []StepName
	run   func(ctx context.Context, r *run) (string, error)
}

// run carries state between the steps of one Run call.
type run struct {
	target   sshutil.Target
	creds    *prompt.Credentials
	pwClient sshutil.SSHClient
	keyConn  sshutil.SSHClient
	key      *keys.KeyPair
	signer   ssh.Signer
	report   *Report
	// output of the step in progress
	buf bytes.Buffer
}

func (p *Provisioner) plan() []step {
	return []step{
		{StepUpdate, "Updating packages", nil, p.stepUpdate},
		{StepKeygen, "Generating SSH key", nil, p.stepKeygen},
		{StepCopyKey, "Installing public key on the server", []StepName{StepKeygen}, p.stepCopyKey},
		{StepAlias, "Adding host alias to SSH config", []StepName{StepKeygen}, p.stepAlias},
		{StepHarden, "Disabling password authentication", []StepName{StepKeygen, StepCopyKey}, p.stepHarden},
		{StepRestart, "Restarting SSH daemon", []StepName{StepHarden}, p.stepRestart},
	}
}

// StepNames returns the step names in execution order.
func StepNames() []StepName {
	p := New(Options{})
	var names []StepName
	for _, s := range p.plan() {
		names = append(names, s.name)
	}
	return names
}

// Run provisions target with creds. The returned report is always non-nil;
// the error is non-nil when any step failed or verification did not pass.
func (p *Provisioner) Run(ctx context.Context, target sshutil.Target, creds *prompt.Credentials) (*Report, error) {
	r := &run{
		target: target,
		creds:  creds,
		report: &Report{
			Host:   target.Host,
			User:   target.User,
			Editor: p.cfg.Packages.Editor,
		},
	}
	defer r.close()

	plan := p.plan()
	total := len(plan)
	var stopped *StepResult

	for i, s := range plan {
		idx := i + 1

		if stopped != nil {
			res := StepResult{Name: s.name, Title: s.title, Status: StatusSkipped,
				Reason: fmt.Sprintf("stopped after %s failed", stopped.Name)}
			r.report.Steps = append(r.report.Steps, res)
			p.observer.StepFinished(idx, total, res)
			continue
		}

		if ctx.Err() != nil {
			res := StepResult{Name: s.name, Title: s.title, Status: StatusSkipped, Reason: "interrupted"}
			r.report.Steps = append(r.report.Steps, res)
			p.observer.StepFinished(idx, total, res)
			continue
		}

		if missing := r.unmet(s.needs); missing != "" {
			res := StepResult{Name: s.name, Title: s.title, Status: StatusSkipped,
				Reason: fmt.Sprintf("needs %s", missing)}
			r.report.Steps = append(r.report.Steps, res)
			p.observer.StepFinished(idx, total, res)
			p.log.Warn("skipping %s: %s did not succeed", s.name, missing)
			continue
		}

		p.observer.StepStarted(idx, total, s.name, s.title)
		p.log.Debug("step %d/%d: %s", idx, total, s.name)

		r.buf.Reset()
		start := time.Now()
		detail, err := s.run(ctx, r)
		res := StepResult{
			Name:     s.name,
			Title:    s.title,
			Duration: time.Since(start),
			Detail:   detail,
			Status:   StatusSuccess,
		}
		if err != nil {
			res.Status = StatusFailed
			res.Err = err
			res.Output = util.LastLines(r.buf.String(), outputTailLines)
			p.log.Error("%s failed: %s", s.name, errors.Summary(err))
		}
		r.report.Steps = append(r.report.Steps, res)
		p.observer.StepFinished(idx, total, res)

		if err != nil && !p.cfg.KeepGoing {
			stopped = &r.report.Steps[len(r.report.Steps)-1]
		}
	}

	p.verify(ctx, r)

	if failed := r.report.Failed(); len(failed) > 0 {
		names := make([]string, len(failed))
		for i, f := range failed {
			names[i] = string(f.Name)
		}
		return r.report, errors.New(errors.ErrStep,
			fmt.Sprintf("%s failed: %s", util.Pluralize(len(failed), "Step", "Steps"), strings.Join(names, ", ")),
			"Fix the problem above and run vpsinit again; completed steps are safe to repeat.")
	}
	if err := ctx.Err(); err != nil {
		return r.report, errors.WrapWithCode(err, errors.ErrStep,
			"Interrupted before all steps ran",
			"Run vpsinit again; completed steps are safe to repeat.")
	}
	if r.report.Verify == nil || !r.report.Verify.Success {
		return r.report, errors.New(errors.ErrSSH,
			"Verification connection failed",
			"Test by hand in a new terminal before closing this session.")
	}
	return r.report, nil
}

// unmet returns the first prerequisite that did not succeed.
func (r *run) unmet(needs []StepName) string {
	for _, n := range needs {
		if !r.report.Succeeded(n) {
			return string(n)
		}
	}
	return ""
}

func (r *run) close() {
	if r.pwClient != nil {
		r.pwClient.Close()
	}
	if r.keyConn != nil {
		r.keyConn.Close()
	}
}

func (p *Provisioner) sshOptions() sshutil.Options {
	return sshutil.Options{
		HostKeyChecking: p.cfg.HostKeyChecking,
		KnownHostsPath:  filepath.Join(util.ExpandHome(p.cfg.SSHDir), "known_hosts"),
		Timeout:         p.cfg.ConnectTimeout,
		Logger:          p.log,
	}
}

// passwordClient returns the password-authenticated connection, dialing
// it on first use.
func (p *Provisioner) passwordClient(ctx context.Context, r *run) (sshutil.SSHClient, error) {
	if r.pwClient != nil {
		return r.pwClient, nil
	}
	client, err := p.dial(ctx, r.target, sshutil.Auth{Password: string(r.creds.Password)}, p.sshOptions())
	if err != nil {
		return nil, err
	}
	p.log.Debug("password login to %s", client.GetAddress())
	r.pwClient = client
	return client, nil
}

// stream returns a writer that feeds both the step buffer and the live
// output. Remote stdout and stderr are copied from separate goroutines,
// so writes are serialized.
func (p *Provisioner) stream(r *run) io.Writer {
	return &lockedWriter{w: io.MultiWriter(&r.buf, p.output)}
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(b)
}

func (p *Provisioner) stepUpdate(ctx context.Context, r *run) (string, error) {
	client, err := p.passwordClient(ctx, r)
	if err != nil {
		return "", err
	}

	manager, err := p.detectManager(client)
	if err != nil {
		return "", err
	}
	r.report.Manager = manager

	script, err := UpdateScript(manager, p.cfg.Packages.Editor)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig, "Can't build the update script", "")
	}

	w := p.stream(r)
	code, err := client.ExecInput("bash -s", strings.NewReader(script), w, w)
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", errors.New(errors.ErrExec,
			fmt.Sprintf("Package update with %s exited with code %d", manager, code),
			"Check the output above; another package manager process may hold the lock.")
	}

	if p.cfg.Packages.Editor == "" {
		return fmt.Sprintf("updated with %s", manager), nil
	}
	return fmt.Sprintf("updated with %s, installed %s", manager, p.cfg.Packages.Editor), nil
}

// detectManager returns the configured package manager, or the first of
// PackageManagers present on the server when configured as auto.
func (p *Provisioner) detectManager(client sshutil.SSHClient) (string, error) {
	configured := p.cfg.Packages.Manager
	if configured != "" && configured != "auto" {
		return configured, nil
	}

	for _, pm := range PackageManagers {
		_, _, code, err := client.Exec("command -v " + pm)
		if err != nil {
			return "", err
		}
		if code == 0 {
			p.log.Debug("detected package manager %s", pm)
			return pm, nil
		}
	}
	return "", errors.New(errors.ErrExec,
		"No supported package manager on the server",
		fmt.Sprintf("Supported: %s. Set packages.manager if it lives elsewhere.", strings.Join(PackageManagers, ", ")))
}

func (p *Provisioner) stepKeygen(_ context.Context, r *run) (string, error) {
	params := keys.Params{Type: p.cfg.Key.Type, Bits: p.cfg.Key.Bits}
	kp, err := keys.Ensure(p.cfg.SSHDir, r.target.Host, params, r.creds.Passphrase)
	if err != nil {
		return "", err
	}

	signer, err := keys.LoadSigner(kp.Path, r.creds.Passphrase)
	if err != nil {
		return "", err
	}

	r.key = kp
	r.signer = signer
	r.report.KeyPath = kp.Path
	r.report.KeyCreated = kp.Created

	if kp.Created {
		return fmt.Sprintf("created %s (%s)", kp.Path, kp.Fingerprint), nil
	}
	p.log.Warn("key %s already exists and will be reused", kp.Path)
	return fmt.Sprintf("reusing %s (%s)", kp.Path, kp.Fingerprint), nil
}

func (p *Provisioner) stepCopyKey(ctx context.Context, r *run) (string, error) {
	pub, err := keys.ReadPublicKey(r.key.PublicPath)
	if err != nil {
		return "", err
	}

	client, err := p.passwordClient(ctx, r)
	if err != nil {
		return "", err
	}

	w := p.stream(r)
	code, err := client.ExecInput(AuthorizedKeysCommand, strings.NewReader(pub+"\n"), w, w)
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", errors.New(errors.ErrExec,
			fmt.Sprintf("Installing the key exited with code %d", code),
			"Check that the remote home directory is writable.")
	}
	return strings.TrimSpace(util.LastLines(r.buf.String(), 1)), nil
}

func (p *Provisioner) stepAlias(_ context.Context, r *run) (string, error) {
	path := filepath.Join(util.ExpandHome(p.cfg.SSHDir), "config")
	block := sshutil.HostBlock{
		Hostname:     r.target.Host,
		User:         r.target.User,
		IdentityFile: r.key.Path,
	}
	if r.target.Port != 0 && r.target.Port != 22 {
		block.Port = r.target.Port
	}

	res, err := sshutil.AddHost(path, p.cfg.AliasPrefix, block)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't update %s", path),
			"Check permissions on your SSH config.")
	}

	r.report.Alias = res.Alias
	r.report.AliasReused = res.Reused
	if res.Reused {
		return fmt.Sprintf("%s already points at %s", res.Alias, r.target.Host), nil
	}
	return fmt.Sprintf("added Host %s to %s", res.Alias, path), nil
}

// keyClient opens the key-authenticated connection used from hardening on.
func (p *Provisioner) keyClient(ctx context.Context, r *run) (sshutil.SSHClient, error) {
	if r.keyConn != nil {
		return r.keyConn, nil
	}
	client, err := p.dial(ctx, r.target, sshutil.Auth{Signers: []ssh.Signer{r.signer}}, p.sshOptions())
	if err != nil {
		return nil, err
	}
	p.log.Debug("key login to %s", client.GetAddress())
	r.keyConn = client
	return client, nil
}

func (p *Provisioner) stepHarden(ctx context.Context, r *run) (string, error) {
	client, err := p.keyClient(ctx, r)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrStep,
			"Key login doesn't work, so password login stays enabled",
			"Fix key authentication first; disabling passwords now would lock you out.")
	}

	stamp := p.now().Format(BackupTimeFormat)
	w := p.stream(r)
	code, err := client.ExecInput("bash -s", strings.NewReader(HardenScript(stamp)), w, w)
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", errors.New(errors.ErrExec,
			fmt.Sprintf("Hardening sshd_config exited with code %d", code),
			fmt.Sprintf("The previous config was kept as %s.backup.%s", SSHDConfigPath, stamp))
	}
	return fmt.Sprintf("backup at %s.backup.%s", SSHDConfigPath, stamp), nil
}

func (p *Provisioner) stepRestart(ctx context.Context, r *run) (string, error) {
	client, err := p.keyClient(ctx, r)
	if err != nil {
		return "", err
	}

	w := p.stream(r)
	code, err := client.ExecInput("bash -s", strings.NewReader(RestartScript), w, w)
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", errors.New(errors.ErrExec,
			fmt.Sprintf("Restarting sshd exited with code %d", code),
			"Keep this session open and check: systemctl status ssh")
	}
	return strings.TrimSpace(util.LastLines(r.buf.String(), 1)), nil
}

// verify opens a fresh key-only connection and runs the probe command.
func (p *Provisioner) verify(ctx context.Context, r *run) {
	if r.signer == nil {
		r.report.VerifyReason = "no key available"
		return
	}
	if !r.report.Succeeded(StepCopyKey) {
		r.report.VerifyReason = "key was not installed"
		return
	}

	res := host.Probe(ctx, p.dial, r.target, sshutil.Auth{Signers: []ssh.Signer{r.signer}}, p.sshOptions(), p.cfg.VerifyTimeout)
	r.report.Verify = &res
	if res.Success {
		p.log.Debug("verification took %s", res.Latency)
	} else {
		p.log.Warn("verification failed: %v", res.Error)
	}
}
