package claim

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"dripper/internal/cooldown"
)

// pageState is one attempt's worth of scripted page behavior. A fake
// page serves states[i] during the i-th navigation, reusing the last
// state when attempts outnumber states.
type pageState struct {
	inputVisible bool
	countdown    string // countdown control text, "" = absent
	fillError    string // error region text before submit
	sendVisible  bool
	submitError  string // error region text after submit
	success      bool   // success banner after submit
	graceSuccess bool   // success banner only after the grace wait
}

type fakePage struct {
	t      *testing.T
	states []pageState

	navs    int
	reloads int

	submitted bool
	graced    bool

	clicked []string
	filled  []string
	waited  []string
}

func (p *fakePage) state() pageState {
	i := p.navs - 1
	if i < 0 {
		i = 0
	}
	if i >= len(p.states) {
		i = len(p.states) - 1
	}
	return p.states[i]
}

func (p *fakePage) Navigate(url string, timeout time.Duration) error {
	p.navs++
	p.submitted = false
	p.graced = false
	return nil
}

func (p *fakePage) WaitVisible(selector string, timeout time.Duration) error {
	p.waited = append(p.waited, selector)
	switch selector {
	case walletInputSelector:
		if !p.state().inputVisible {
			return errors.New("timeout waiting for element")
		}
	case sendButtonSelector:
		if !p.state().sendVisible {
			return errors.New("timeout waiting for element")
		}
	default:
		p.t.Fatalf("unexpected WaitVisible selector %q", selector)
	}
	return nil
}

func (p *fakePage) Locate(selector string) (Element, error) {
	return &fakeElement{page: p, selector: selector}, nil
}

func (p *fakePage) errorText() string {
	if p.submitted {
		return p.state().submitError
	}
	return p.state().fillError
}

func (p *fakePage) successNow() bool {
	st := p.state()
	return st.success || (p.graced && st.graceSuccess)
}

func (p *fakePage) Text(selector string) (string, error) {
	switch selector {
	case countdownSelector:
		return p.state().countdown, nil
	case errorSelector:
		return p.errorText(), nil
	}
	p.t.Fatalf("unexpected Text selector %q", selector)
	return "", nil
}

func (p *fakePage) Count(selector string) (int, error) {
	switch selector {
	case countdownSelector:
		if p.state().countdown != "" {
			return 1, nil
		}
		return 0, nil
	case errorSelector:
		if p.errorText() != "" {
			return 1, nil
		}
		return 0, nil
	}
	for _, s := range successSelectors {
		if selector == s {
			if p.submitted && p.successNow() {
				return 1, nil
			}
			return 0, nil
		}
	}
	p.t.Fatalf("unexpected Count selector %q", selector)
	return 0, nil
}

func (p *fakePage) Reload() error {
	p.reloads++
	return nil
}

type fakeElement struct {
	page     *fakePage
	selector string
}

func (e *fakeElement) Click() error {
	e.page.clicked = append(e.page.clicked, e.selector)
	if e.selector == sendButtonSelector {
		e.page.submitted = true
	}
	return nil
}

func (e *fakeElement) ClearAndFill(text string, perChar time.Duration) error {
	e.page.filled = append(e.page.filled, text)
	return nil
}

func (e *fakeElement) Text() (string, error) {
	return "", nil
}

// newTestClaimer wires a Claimer to a fake page with instant sleeps
// and a fixed clock. The grace wait flips the page's grace flag so a
// late success banner can be scripted.
func newTestClaimer(page *fakePage, opts Options) (*Claimer, time.Time) {
	now := time.Date(2025, 12, 27, 12, 0, 0, 0, time.Local)
	c := New(opts, zap.NewNop())
	c.now = func() time.Time { return now }
	c.sleep = func(d time.Duration) {
		if d == ambiguousGrace {
			page.graced = true
		}
	}
	return c, now
}

const testWallet = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"

func TestRunSuccess(t *testing.T) {
	page := &fakePage{states: []pageState{{inputVisible: true, sendVisible: true, success: true}}}
	page.t = t
	c, _ := newTestClaimer(page, Options{FaucetURL: "http://faucet.test"})

	out := c.Run(page, testWallet)

	if out.Kind != Success {
		t.Fatalf("outcome = %v (%q), want success", out.Kind, out.Detail)
	}
	if out.Detail != "Success" {
		t.Errorf("detail = %q, want Success", out.Detail)
	}
	if page.navs != 1 {
		t.Errorf("navigations = %d, want 1", page.navs)
	}
	if len(page.filled) != 1 || page.filled[0] != testWallet {
		t.Errorf("filled = %v, want one fill of the wallet", page.filled)
	}
	if len(page.clicked) != 2 || page.clicked[0] != walletInputSelector || page.clicked[1] != sendButtonSelector {
		t.Errorf("clicked = %v, want input then send", page.clicked)
	}
}

func TestRunCooldownTimer(t *testing.T) {
	page := &fakePage{states: []pageState{{inputVisible: true, countdown: "Come back in 23h 11m 49s"}}}
	page.t = t
	c, now := newTestClaimer(page, Options{FaucetURL: "http://faucet.test", CooldownWindow: 24 * time.Hour})

	out := c.Run(page, testWallet)

	if out.Kind != CooldownDetected {
		t.Fatalf("outcome = %v, want cooldown", out.Kind)
	}
	want := cooldown.Format(now.Add(-(48*time.Minute + 11*time.Second)))
	if out.Detail != want {
		t.Errorf("detail = %q, want %q", out.Detail, want)
	}
	if page.navs != 1 {
		t.Errorf("navigations = %d, want 1 (cooldown is terminal)", page.navs)
	}
	if len(page.filled) != 0 {
		t.Errorf("filled = %v, probe happens before typing", page.filled)
	}
}

func TestRunCooldownUnparseable(t *testing.T) {
	page := &fakePage{states: []pageState{{inputVisible: true, countdown: "Come back in a little while"}}}
	page.t = t
	c, _ := newTestClaimer(page, Options{FaucetURL: "http://faucet.test"})

	out := c.Run(page, testWallet)

	if out.Kind != CooldownDetected || out.Detail != "unknown" {
		t.Errorf("outcome = %v (%q), want cooldown with unknown detail", out.Kind, out.Detail)
	}
}

func TestRunRateLimitWithoutTimestamp(t *testing.T) {
	page := &fakePage{states: []pageState{{inputVisible: true, fillError: "You are rate limited, try again"}}}
	page.t = t
	c, _ := newTestClaimer(page, Options{FaucetURL: "http://faucet.test"})

	out := c.Run(page, testWallet)

	if out.Kind != CooldownDetected || out.Detail != "unknown" {
		t.Fatalf("outcome = %v (%q), want cooldown with unknown detail", out.Kind, out.Detail)
	}
	if page.navs != 1 {
		t.Errorf("navigations = %d, rate limit is terminal", page.navs)
	}
	for _, sel := range page.clicked {
		if sel == sendButtonSelector {
			t.Error("send clicked despite pre-submit rate limit")
		}
	}
}

func TestRunRateLimitWithTimestamp(t *testing.T) {
	page := &fakePage{states: []pageState{{
		inputVisible: true,
		fillError:    "Rate limit exceeded for this address. Try again after 2025-12-27T10:16:22.",
	}}}
	page.t = t
	c, _ := newTestClaimer(page, Options{FaucetURL: "http://faucet.test", CooldownWindow: 24 * time.Hour})

	out := c.Run(page, testWallet)

	if out.Kind != CooldownDetected {
		t.Fatalf("outcome = %v, want cooldown", out.Kind)
	}
	retryAt := time.Date(2025, 12, 27, 10, 16, 22, 0, time.Local)
	want := cooldown.Format(retryAt.Add(-24 * time.Hour))
	if out.Detail != want {
		t.Errorf("detail = %q, want %q", out.Detail, want)
	}
}

func TestRunRateLimit24HourWording(t *testing.T) {
	page := &fakePage{states: []pageState{{inputVisible: true, fillError: "You can only claim once every 24 hours"}}}
	page.t = t
	c, _ := newTestClaimer(page, Options{FaucetURL: "http://faucet.test"})

	out := c.Run(page, testWallet)

	if out.Kind != CooldownDetected || out.Detail != "unknown" {
		t.Errorf("outcome = %v (%q), want cooldown with unknown detail", out.Kind, out.Detail)
	}
}

func TestRunAmbiguousStateExhaustsRetries(t *testing.T) {
	page := &fakePage{states: []pageState{{inputVisible: true, sendVisible: true}}}
	page.t = t
	c, _ := newTestClaimer(page, Options{FaucetURL: "http://faucet.test", MaxAttempts: 3})

	out := c.Run(page, testWallet)

	if out.Kind != ExhaustedRetries {
		t.Fatalf("outcome = %v, want exhausted", out.Kind)
	}
	if out.Detail != "unknown state" {
		t.Errorf("detail = %q, want unknown state", out.Detail)
	}
	if page.navs != 3 {
		t.Errorf("navigations = %d, want 3", page.navs)
	}
}

func TestRunCaptchaThenSuccess(t *testing.T) {
	page := &fakePage{states: []pageState{
		{inputVisible: true, sendVisible: true, submitError: "Captcha verification failed"},
		{inputVisible: true, sendVisible: true, success: true},
	}}
	page.t = t
	c, _ := newTestClaimer(page, Options{FaucetURL: "http://faucet.test", MaxAttempts: 3})

	out := c.Run(page, testWallet)

	if out.Kind != Success {
		t.Fatalf("outcome = %v (%q), want success", out.Kind, out.Detail)
	}
	if page.navs != 2 {
		t.Errorf("navigations = %d, want exactly 2 attempts", page.navs)
	}
	if page.reloads != 1 {
		t.Errorf("reloads = %d, want exactly 1", page.reloads)
	}
}

func TestRunInputNeverVisible(t *testing.T) {
	page := &fakePage{states: []pageState{{}}}
	page.t = t
	c, _ := newTestClaimer(page, Options{FaucetURL: "http://faucet.test", MaxAttempts: 2})

	out := c.Run(page, testWallet)

	if out.Kind != ExhaustedRetries {
		t.Fatalf("outcome = %v, want exhausted", out.Kind)
	}
	if out.Detail != "wallet address input not visible" {
		t.Errorf("detail = %q", out.Detail)
	}
	if page.navs != 2 {
		t.Errorf("navigations = %d, want 2", page.navs)
	}
}

func TestRunSendNeverVisible(t *testing.T) {
	page := &fakePage{states: []pageState{{inputVisible: true}}}
	page.t = t
	c, _ := newTestClaimer(page, Options{FaucetURL: "http://faucet.test", MaxAttempts: 2})

	out := c.Run(page, testWallet)

	if out.Kind != ExhaustedRetries || out.Detail != "send button not visible" {
		t.Errorf("outcome = %v (%q), want exhausted via send wait", out.Kind, out.Detail)
	}
}

func TestRunGenericErrorThenSuccess(t *testing.T) {
	page := &fakePage{states: []pageState{
		{inputVisible: true, fillError: "Something went wrong"},
		{inputVisible: true, sendVisible: true, success: true},
	}}
	page.t = t
	c, _ := newTestClaimer(page, Options{FaucetURL: "http://faucet.test"})

	out := c.Run(page, testWallet)

	if out.Kind != Success {
		t.Fatalf("outcome = %v (%q), want success on retry", out.Kind, out.Detail)
	}
	if page.navs != 2 {
		t.Errorf("navigations = %d, want 2", page.navs)
	}
}

func TestRunSuccessAfterGraceWait(t *testing.T) {
	page := &fakePage{states: []pageState{{inputVisible: true, sendVisible: true, graceSuccess: true}}}
	page.t = t
	c, _ := newTestClaimer(page, Options{FaucetURL: "http://faucet.test"})

	out := c.Run(page, testWallet)

	if out.Kind != Success {
		t.Fatalf("outcome = %v (%q), want success after grace wait", out.Kind, out.Detail)
	}
	if page.navs != 1 {
		t.Errorf("navigations = %d, want 1", page.navs)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	c := New(Options{FaucetURL: "http://faucet.test"}, nil)

	if c.opts.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", c.opts.MaxAttempts)
	}
	if c.opts.PageLoadTimeout != 30*time.Second {
		t.Errorf("PageLoadTimeout = %v, want 30s", c.opts.PageLoadTimeout)
	}
	if c.opts.InterActionDelay != 2*time.Second {
		t.Errorf("InterActionDelay = %v, want 2s", c.opts.InterActionDelay)
	}
	if c.opts.CooldownWindow != 24*time.Hour {
		t.Errorf("CooldownWindow = %v, want 24h", c.opts.CooldownWindow)
	}
}

func TestOutcomeKindString(t *testing.T) {
	cases := map[OutcomeKind]string{
		Success:          "success",
		CooldownDetected: "cooldown",
		RecoverableError: "recoverable_error",
		ExhaustedRetries: "exhausted_retries",
		OutcomeKind(99):  "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("OutcomeKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
