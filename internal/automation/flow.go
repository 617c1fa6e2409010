// Package automation drives the Gmail sign-in flow on an Android device
// through a WebDriver session, pacing interactions like a person would.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/testsquadco/mailauto/internal/appium"
	"github.com/testsquadco/mailauto/internal/config"
	"github.com/testsquadco/mailauto/internal/driver"
	"github.com/testsquadco/mailauto/internal/history"
	"github.com/testsquadco/mailauto/internal/metrics"
)

// Outcome classifies how a run ended.
type Outcome string

const (
	// OutcomeSuccess means the inbox (or equivalent signed-in state) was
	// reached.
	OutcomeSuccess Outcome = "success"
	// OutcomeBlocked means the provider refused the sign-in (wrong
	// password, security interstitial, blocked app). The run itself
	// completed; the account state is the finding.
	OutcomeBlocked Outcome = "blocked"
	// OutcomeLaunched is the terminal state of a launch-only run.
	OutcomeLaunched Outcome = "launched"
	// OutcomeFailed means a step could not complete at all.
	OutcomeFailed Outcome = "failed"
)

// Flow runs the automation end to end. Zero-value fields are filled in by
// New; tests construct Flow directly with fakes.
type Flow struct {
	Config  *config.Config
	Manager *appium.Manager
	Log     *slog.Logger

	// NewSession opens a WebDriver session against the ready server.
	NewSession func(ctx context.Context) (Session, error)

	// Sleep is swappable so tests run instantly.
	Sleep func(time.Duration)

	Sinks []history.Sink

	rng *rand.Rand
}

// New wires a Flow against a real Appium server and WebDriver client.
func New(cfg *config.Config, mgr *appium.Manager, log *slog.Logger) *Flow {
	if log == nil {
		log = slog.Default()
	}
	cli := driver.New(driver.Config{
		BaseURL: cfg.Endpoint().URL(),
		Logger:  log,
	})
	return &Flow{
		Config:  cfg,
		Manager: mgr,
		Log:     log,
		NewSession: func(ctx context.Context) (Session, error) {
			s, err := cli.NewSession(ctx, cfg.Capabilities())
			if err != nil {
				return nil, err
			}
			return WrapSession(s), nil
		},
	}
}

// Run executes the flow. launchOnly stops after the app is launched and
// verified. The returned error is non-nil only for OutcomeFailed.
func (f *Flow) Run(ctx context.Context, launchOnly bool) (Outcome, error) {
	start := time.Now()
	outcome, err := f.run(ctx, launchOnly)
	metrics.IncRun(string(outcome))
	f.emit(outcome, time.Since(start), err)
	if err != nil {
		f.Log.Error("automation run failed", "outcome", outcome, "error", err)
	} else {
		f.Log.Info("automation run finished", "outcome", outcome,
			"elapsed", time.Since(start).Round(time.Millisecond))
	}
	return outcome, err
}

func (f *Flow) run(ctx context.Context, launchOnly bool) (Outcome, error) {
	if f.Manager != nil {
		if !f.Manager.EnsureRunning(f.Config.Server.StartTimeout) {
			return OutcomeFailed, fmt.Errorf("automation server is not reachable on %s",
				f.Config.Endpoint().Addr())
		}
		// Only a server we launched ourselves gets stopped afterwards.
		defer f.Manager.StopServer()
	}

	sess, err := timeStep("connect", func() (Session, error) {
		return f.NewSession(ctx)
	})
	if err != nil {
		return OutcomeFailed, fmt.Errorf("connect to device: %w", err)
	}
	defer func() {
		if derr := sess.Delete(ctx); derr != nil {
			f.Log.Warn("failed to close webdriver session", "error", derr)
		}
	}()

	if _, err := timeStep("launch_app", func() (struct{}, error) {
		return struct{}{}, f.launchApp(ctx, sess)
	}); err != nil {
		return OutcomeFailed, err
	}

	if launchOnly {
		f.Log.Info("app launched and verified, stopping as requested")
		return OutcomeLaunched, nil
	}

	if _, err := timeStep("sign_in", func() (struct{}, error) {
		return struct{}{}, f.handleSignIn(ctx, sess)
	}); err != nil {
		return OutcomeFailed, err
	}

	if _, err := timeStep("enter_email", func() (struct{}, error) {
		return struct{}{}, f.enterEmail(ctx, sess)
	}); err != nil {
		return OutcomeFailed, err
	}

	if _, err := timeStep("enter_password", func() (struct{}, error) {
		return struct{}{}, f.enterPassword(ctx, sess)
	}); err != nil {
		return OutcomeFailed, err
	}

	outcome, err := timeStep("completion", func() (Outcome, error) {
		return f.checkCompletion(ctx, sess)
	})
	if err != nil {
		return OutcomeFailed, err
	}
	return outcome, nil
}

// timeStep times a named stage and records its duration.
func timeStep[T any](name string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	metrics.ObserveStep(name, time.Since(start).Seconds())
	return v, err
}

// launchApp brings the mail app to the foreground, trying the explicit
// activity first and falling back to plain activation, then verifies the
// app actually came up.
func (f *Flow) launchApp(ctx context.Context, sess Session) error {
	dev := f.Config.Device
	f.Log.Info("launching app", "package", dev.AppPackage)

	launched := false
	if dev.AppActivity != "" {
		if err := sess.StartActivity(ctx, dev.AppPackage, dev.AppActivity); err != nil {
			f.Log.Warn("start_activity failed, falling back to activate_app", "error", err)
		} else {
			launched = true
		}
	}
	if !launched {
		if err := sess.ActivateApp(ctx, dev.AppPackage); err != nil {
			return fmt.Errorf("launch %s: %w", dev.AppPackage, err)
		}
	}
	f.pause(f.Config.Delays.Medium)

	if !f.verifyLaunched(ctx, sess) {
		return fmt.Errorf("could not verify %s is in the foreground", dev.AppPackage)
	}
	return nil
}

// verifyLaunched checks, in order: the foreground package, known UI
// elements, and finally keywords in the page source.
func (f *Flow) verifyLaunched(ctx context.Context, sess Session) bool {
	if pkg, err := sess.CurrentPackage(ctx); err == nil {
		f.Log.Info("foreground package", "package", pkg)
		if pkg == f.Config.Device.AppPackage {
			return true
		}
	} else {
		f.Log.Warn("could not read foreground package", "error", err)
	}

	if el, loc := f.findAny(ctx, sess, launchIndicators); el != nil {
		if shown, err := el.Displayed(ctx); err == nil && shown {
			f.Log.Info("app verified via element", "selector", loc.Value)
			return true
		}
	}

	if src, err := sess.Source(ctx); err == nil {
		lower := strings.ToLower(src)
		for _, kw := range launchKeywords {
			if strings.Contains(lower, kw) {
				f.Log.Info("app verified via page source", "keyword", kw)
				return true
			}
		}
	}
	return false
}

// handleSignIn taps the sign-in entry point when present. Its absence is
// not an error: the device may already be signed in or sitting on the
// email form.
func (f *Flow) handleSignIn(ctx context.Context, sess Session) error {
	f.pause(f.Config.Delays.Short)
	el, loc := f.findAnyDisplayed(ctx, sess, signInButtons)
	if el == nil {
		f.Log.Info("no sign-in button found, assuming already past it")
		return nil
	}
	f.Log.Info("tapping sign-in button", "selector", loc.Value)
	if err := f.tap(ctx, sess, el, "sign-in button"); err != nil {
		return err
	}
	f.pause(f.Config.Delays.Short)
	return nil
}

func (f *Flow) enterEmail(ctx context.Context, sess Session) error {
	email := f.Config.Credentials.Email
	if email == "" {
		return errors.New("no email configured; set credentials.email or " + config.EnvEmail)
	}
	field := f.waitForAny(ctx, sess, emailFields, f.Config.Delays.Medium)
	if field == nil {
		return errors.New("could not find the email input field")
	}
	if err := f.typeText(ctx, field, email, "email field"); err != nil {
		return err
	}
	f.submit(ctx, sess, field, emailNextButtons, "email")
	return nil
}

func (f *Flow) enterPassword(ctx context.Context, sess Session) error {
	password := f.Config.Credentials.Password
	if password == "" {
		return errors.New("no password configured; set credentials.password or " + config.EnvPassword)
	}
	// The password screen animates in after the email submit.
	f.pause(f.Config.Delays.Medium)
	field := f.waitForAny(ctx, sess, passwordFields, f.Config.Delays.Medium)
	if field == nil {
		return errors.New("could not find the password input field")
	}
	if err := f.typeText(ctx, field, password, "password field"); err != nil {
		return err
	}
	f.submit(ctx, sess, field, passwordNextButtons, "password")
	return nil
}

// submit taps the first available continue button, falling back to a
// newline keystroke in the field itself. Best effort: some screens submit
// on their own.
func (f *Flow) submit(ctx context.Context, sess Session, field Element, buttons []locator, what string) {
	f.pause(f.Config.Delays.Short)
	if el, loc := f.findAnyDisplayed(ctx, sess, buttons); el != nil {
		f.Log.Info("tapping continue button", "after", what, "selector", loc.Value)
		if err := f.tap(ctx, sess, el, "continue button"); err == nil {
			f.pause(f.Config.Delays.Short)
			return
		}
	}
	if err := field.SendKeys(ctx, "\n"); err == nil {
		f.Log.Info("submitted with enter key", "after", what)
		f.pause(f.Config.Delays.Short)
		return
	}
	f.Log.Warn("no continue button found, proceeding anyway", "after", what)
}

// checkCompletion classifies the post-submit screen.
func (f *Flow) checkCompletion(ctx context.Context, sess Session) (Outcome, error) {
	f.pause(f.Config.Delays.Long)

	if el, loc := f.findAny(ctx, sess, successIndicators); el != nil {
		f.Log.Info("sign-in reached the inbox", "selector", loc.Value)
		return OutcomeSuccess, nil
	}

	if el, loc := f.findAny(ctx, sess, blockedIndicators); el != nil {
		text, _ := el.Text(ctx)
		f.Log.Warn("sign-in blocked by provider", "selector", loc.Value, "message", text)
		return OutcomeBlocked, nil
	}

	if src, err := sess.Source(ctx); err == nil {
		lower := strings.ToLower(src)
		if strings.Contains(lower, "gmail") || strings.Contains(lower, "inbox") {
			f.Log.Info("sign-in appears successful based on page content")
			return OutcomeSuccess, nil
		}
	}
	return OutcomeFailed, errors.New("could not determine sign-in result")
}

// findAny returns the first candidate that resolves to an element.
func (f *Flow) findAny(ctx context.Context, sess Session, candidates []locator) (Element, locator) {
	for _, loc := range candidates {
		el, err := sess.FindElement(ctx, loc.By, loc.Value)
		if err != nil {
			if !errors.Is(err, driver.ErrNoSuchElement) {
				f.Log.Debug("selector lookup failed", "selector", loc.Value, "error", err)
			}
			continue
		}
		return el, loc
	}
	return nil, locator{}
}

// findAnyDisplayed is findAny restricted to visible elements.
func (f *Flow) findAnyDisplayed(ctx context.Context, sess Session, candidates []locator) (Element, locator) {
	for _, loc := range candidates {
		el, err := sess.FindElement(ctx, loc.By, loc.Value)
		if err != nil {
			continue
		}
		if shown, err := el.Displayed(ctx); err == nil && shown {
			return el, loc
		}
	}
	return nil, locator{}
}

// waitForAny polls the candidates until one appears or the deadline
// passes.
func (f *Flow) waitForAny(ctx context.Context, sess Session, candidates []locator, timeout time.Duration) Element {
	deadline := time.Now().Add(timeout)
	for {
		if el, loc := f.findAny(ctx, sess, candidates); el != nil {
			f.Log.Info("found element", "selector", loc.Value)
			return el
		}
		if time.Now().After(deadline) {
			return nil
		}
		f.sleep(500 * time.Millisecond)
	}
}

// tap aims for the element's center with a little jitter so taps do not
// land on the exact same pixel every run, falling back to a plain click
// when the rectangle is unavailable.
func (f *Flow) tap(ctx context.Context, sess Session, el Element, what string) error {
	if rect, err := el.GetRect(ctx); err == nil && rect.Width > 0 && rect.Height > 0 {
		x := rect.X + rect.Width/2 + f.jitter(5)
		y := rect.Y + rect.Height/2 + f.jitter(5)
		if err := sess.Tap(ctx, x, y); err == nil {
			return nil
		}
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("tap %s: %w", what, err)
	}
	return nil
}

// typeText clears the field then sends the text one character at a time
// with human-paced gaps.
func (f *Flow) typeText(ctx context.Context, el Element, text, what string) error {
	if err := el.Clear(ctx); err != nil {
		f.Log.Debug("clear failed, typing anyway", "field", what, "error", err)
	}
	f.sleep(f.jitterDuration(300*time.Millisecond, 700*time.Millisecond))
	for _, ch := range text {
		if err := el.SendKeys(ctx, string(ch)); err != nil {
			return fmt.Errorf("type into %s: %w", what, err)
		}
		f.sleep(f.jitterDuration(50*time.Millisecond, 150*time.Millisecond))
	}
	f.Log.Info("entered text", "field", what, "chars", len(text))
	return nil
}

// pause sleeps around d with 30 percent jitter.
func (f *Flow) pause(d time.Duration) {
	if d <= 0 {
		return
	}
	spread := d / 3
	f.sleep(f.jitterDuration(d-spread, d+spread))
}

func (f *Flow) sleep(d time.Duration) {
	if f.Sleep != nil {
		f.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (f *Flow) jitter(max int) int {
	return f.rand().Intn(2*max+1) - max
}

func (f *Flow) jitterDuration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(f.rand().Int63n(int64(hi-lo)))
}

func (f *Flow) rand() *rand.Rand {
	if f.rng == nil {
		f.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return f.rng
}

func (f *Flow) emit(outcome Outcome, elapsed time.Duration, err error) {
	if len(f.Sinks) == 0 {
		return
	}
	detail := fmt.Sprintf("elapsed=%s", elapsed.Round(time.Millisecond))
	if err != nil {
		detail = err.Error()
	}
	evt := history.Event{
		Type:       history.EventRunFinished,
		OccurredAt: time.Now().UTC(),
		Record: history.Record{
			Name:     "gmail-signin",
			Endpoint: f.Config.Endpoint().Addr(),
			Outcome:  string(outcome),
			Detail:   detail,
		},
	}
	for _, s := range f.Sinks {
		if serr := s.Send(context.Background(), evt); serr != nil {
			f.Log.Warn("history sink rejected event", "error", serr)
		}
	}
}
