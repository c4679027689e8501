package cli

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/vpsinit/internal/errors"
	"github.com/rileyhilliard/vpsinit/internal/host"
	"github.com/rileyhilliard/vpsinit/internal/output"
	"github.com/rileyhilliard/vpsinit/internal/prompt"
	"github.com/rileyhilliard/vpsinit/internal/provision"
	"github.com/rileyhilliard/vpsinit/internal/ui"
	"github.com/rileyhilliard/vpsinit/pkg/sshutil"
	"github.com/spf13/cobra"
)

// errReported is returned once the failure has been shown in the step
// output and summary.
var errReported = stderrors.New("reported")

// provisionCommand runs the six steps against arg and prints the summary.
func (a *app) provisionCommand(cmd *cobra.Command, arg string) error {
	log := a.newLogger("vpsinit")

	cfg, cfgPath, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfgPath != "" {
		log.Debug("using config %s", cfgPath)
	}

	hostname, port, err := sshutil.ParseTarget(arg, cfg.Port)
	if err != nil {
		fmt.Fprint(a.stdout, usageText)
		return errors.WrapWithCode(err, errors.ErrInput,
			fmt.Sprintf("%q isn't a server address", arg),
			"Pass an IPv4 or IPv6 address or a hostname, optionally with :port.")
	}
	target := sshutil.Target{Host: hostname, Port: port, User: cfg.RemoteUser}

	note := ""
	if cfg.KeepGoing {
		note = "keep-going: independent steps run after a failure"
	}
	fmt.Fprint(a.stdout, ui.RenderHeader(ui.HeaderInfo{
		Version: formatVersion(version),
		Target:  target.String(),
		Note:    note,
	}))

	// Secrets are collected before any connection is made; a mismatched
	// confirmation ends the run here.
	creds, err := prompt.Collect(a.prompter(a, log), target.User)
	if err != nil {
		return err
	}
	defer creds.Wipe()
	fmt.Fprintln(a.stdout)

	observer := &stepObserver{display: ui.NewStepDisplay(a.stdout)}
	opts := provision.Options{
		Config:   cfg,
		Dial:     a.dial,
		Logger:   log,
		Observer: observer,
	}
	if a.flags.verbose {
		observer.display.SetStatic(true)
		observer.stream = output.NewStreamHandler(a.stdout, output.NewIndentFormatter())
		opts.Output = observer.stream
	}

	report, runErr := provision.New(opts).Run(cmd.Context(), target, creds)

	fmt.Fprintln(a.stdout)
	fmt.Fprint(a.stdout, ui.RenderSummary(buildSummary(report)))

	if runErr != nil {
		fmt.Fprintln(a.stderr)
		fmt.Fprintln(a.stderr, runErr)
		return errReported
	}
	return nil
}

// stepObserver renders provisioning progress. stream is set in verbose
// mode, where remote output is printed under each step.
type stepObserver struct {
	display *ui.StepDisplay
	stream  *output.StreamHandler
}

func (o *stepObserver) StepStarted(index, total int, _ provision.StepName, title string) {
	o.display.Start(index, total, title)
}

func (o *stepObserver) StepFinished(index, total int, res provision.StepResult) {
	if o.stream != nil {
		_ = o.stream.Flush()
	}
	switch res.Status {
	case provision.StatusSuccess:
		o.display.Succeed(res.Detail)
	case provision.StatusFailed:
		if o.stream != nil {
			// already printed as it streamed
			res.Output = ""
		}
		o.display.Fail("", failureText(res))
	default:
		o.display.Skip(index, total, res.Title, res.Reason)
	}
}

// failureText is what is printed under a failed step: the error with its
// suggestion, then the tail of the remote output.
func failureText(res provision.StepResult) string {
	var b strings.Builder
	if res.Err != nil {
		var e *errors.Error
		if stderrors.As(res.Err, &e) {
			b.WriteString(e.Message)
			if e.Cause != nil {
				b.WriteString("\n")
				b.WriteString(strings.TrimSpace(errors.Summary(e.Cause)))
			}
			if e.Suggestion != "" {
				b.WriteString("\n")
				b.WriteString(e.Suggestion)
			}
		} else {
			b.WriteString(res.Err.Error())
		}
	}
	if out := strings.TrimSpace(res.Output); out != "" {
		b.WriteString("\n")
		b.WriteString(out)
	}
	return b.String()
}

// Warnings printed after every run that touched the server.
var summaryWarnings = []string{
	"Test the new login from a second terminal before closing this session.",
	"Keep the private key safe; it is now the only way in.",
	"Remember the passphrase; it can't be recovered.",
}

// buildSummary turns a report into the closing summary.
func buildSummary(r *provision.Report) ui.Summary {
	s := ui.Summary{OK: r.OK()}
	if s.OK {
		s.Title = fmt.Sprintf("%s is ready", r.Host)
	} else {
		s.Title = fmt.Sprintf("%s is not fully set up", r.Host)
	}

	add := func(status ui.ItemStatus, label, detail string) {
		s.Items = append(s.Items, ui.SummaryItem{Status: status, Label: label, Detail: detail})
	}
	stepStatus := func(name provision.StepName) (ui.ItemStatus, string) {
		res, ok := r.Step(name)
		switch {
		case !ok:
			return ui.ItemSkipped, "not run"
		case res.Status == provision.StatusSuccess:
			return ui.ItemOK, ""
		case res.Status == provision.StatusFailed:
			return ui.ItemFailed, errors.Summary(res.Err)
		default:
			return ui.ItemSkipped, res.Reason
		}
	}

	if st, why := stepStatus(provision.StepUpdate); st == ui.ItemOK {
		detail := "packages updated"
		if r.Manager != "" {
			detail += " with " + r.Manager
		}
		add(st, "server", detail)
		if r.Editor != "" {
			add(st, "editor", r.Editor+" installed")
		}
	} else {
		add(st, "server", why)
	}

	if st, why := stepStatus(provision.StepKeygen); st == ui.ItemOK {
		detail := r.KeyPath
		if !r.KeyCreated {
			detail += " (existing key reused)"
		}
		add(st, "key", detail)
	} else {
		add(st, "key", why)
	}

	if st, why := stepStatus(provision.StepCopyKey); st == ui.ItemOK {
		add(st, "key auth", "public key installed, key login enabled")
	} else {
		add(st, "key auth", why)
	}

	if st, why := stepStatus(provision.StepAlias); st == ui.ItemOK {
		detail := r.Alias
		if r.AliasReused {
			detail += " (already configured)"
		}
		add(st, "alias", detail)
	} else {
		add(st, "alias", why)
	}

	if st, why := stepStatus(provision.StepHarden); st == ui.ItemOK {
		add(st, "password", "password authentication disabled")
	} else {
		add(st, "password", why)
	}

	if st, why := stepStatus(provision.StepRestart); st == ui.ItemOK {
		add(st, "sshd", "restarted")
	} else {
		add(st, "sshd", why)
	}

	switch {
	case r.Verify == nil:
		reason := r.VerifyReason
		if reason == "" {
			reason = "not attempted"
		}
		add(ui.ItemSkipped, "verify", reason)
	case r.Verify.Success:
		add(ui.ItemOK, "verify", fmt.Sprintf("key login works (%s)", r.Verify.Latency.Round(time.Millisecond)))
	default:
		add(ui.ItemFailed, "verify", verifyFailure(r.Verify))
	}

	if !r.Succeeded(provision.StepHarden) && r.Succeeded(provision.StepCopyKey) {
		s.Warnings = append(s.Warnings, "Password login is still enabled on the server.")
	}
	if r.Succeeded(provision.StepCopyKey) || r.Succeeded(provision.StepHarden) {
		s.Warnings = append(s.Warnings, summaryWarnings...)
	}

	if r.Alias != "" && r.Succeeded(provision.StepAlias) {
		s.Next = append(s.Next, "ssh "+r.Alias)
	}
	return s
}

func verifyFailure(res *host.ProbeResult) string {
	var probeErr *host.ProbeError
	if stderrors.As(res.Error, &probeErr) {
		return fmt.Sprintf("%s: %s", probeErr.Reason, probeErr.Reason.Hint())
	}
	return errors.Summary(res.Error)
}
