package claim

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"dripper/internal/cooldown"
)

// Selectors for the faucet page. The send button and result banners
// have no stable attributes and are matched by their text.
const (
	walletInputSelector = "input#wallet-address"
	sendButtonSelector  = "text=Send 0.1 ETH"
	errorSelector       = "p.text-red-600"
	countdownSelector   = "text=Come back in"
)

var successSelectors = []string{
	"text=Transaction successful",
	"text=Your 0.1 ETH has been successfully sent!",
}

const (
	inputWaitTimeout  = 15 * time.Second
	sendWaitTimeout   = 10 * time.Second
	typeDelay         = 50 * time.Millisecond
	fillSettleDelay   = time.Second
	preSubmitDelay    = 500 * time.Millisecond
	submitSettleDelay = 5 * time.Second
	ambiguousGrace    = 5 * time.Second
	attemptBackoff    = 3 * time.Second
)

// Options configures the claim protocol.
type Options struct {
	FaucetURL        string
	MaxAttempts      int           // default 3
	PageLoadTimeout  time.Duration // default 30s
	InterActionDelay time.Duration // default 2s
	CooldownWindow   time.Duration // default 24h
}

func (o *Options) applyDefaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.PageLoadTimeout <= 0 {
		o.PageLoadTimeout = 30 * time.Second
	}
	if o.InterActionDelay <= 0 {
		o.InterActionDelay = 2 * time.Second
	}
	if o.CooldownWindow <= 0 {
		o.CooldownWindow = 24 * time.Hour
	}
}

// Claimer drives the claim protocol for one page and one wallet
// address per Run call. Cooldown and rate-limit signals terminate the
// sequence immediately; every other failure retries up to MaxAttempts
// with a full navigate-fill-submit restart.
type Claimer struct {
	opts Options
	log  *zap.Logger

	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a Claimer. A nil logger is replaced with a no-op one.
func New(opts Options, log *zap.Logger) *Claimer {
	opts.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Claimer{
		opts:  opts,
		log:   log,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// Run executes the claim protocol and returns the terminal outcome.
// It never returns an error; every failure mode is an outcome kind.
func (c *Claimer) Run(page Page, walletAddress string) Outcome {
	log := c.log.With(zap.String("wallet", walletAddress))
	log.Info("starting claim sequence",
		zap.String("faucet", c.opts.FaucetURL),
		zap.Int("max_attempts", c.opts.MaxAttempts))

	lastErr := ""
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		outcome, errText, terminal := c.attempt(page, walletAddress, attempt, log)
		if terminal {
			log.Info("claim sequence finished",
				zap.Int("attempt", attempt),
				zap.Stringer("outcome", outcome.Kind),
				zap.String("detail", outcome.Detail))
			return outcome
		}
		if errText != "" {
			lastErr = errText
		}
		if attempt < c.opts.MaxAttempts {
			log.Info("retrying claim", zap.Int("attempt", attempt), zap.String("last_error", lastErr))
			c.sleep(attemptBackoff)
		}
	}

	if lastErr == "" {
		lastErr = "max retries exceeded"
	}
	log.Warn("claim attempts exhausted", zap.String("last_error", lastErr))
	return Outcome{Kind: ExhaustedRetries, Detail: lastErr}
}

// attempt runs one navigate-fill-submit pass. terminal reports whether
// outcome ends the whole sequence; otherwise errText (possibly empty)
// feeds the retry policy.
func (c *Claimer) attempt(page Page, wallet string, attempt int, log *zap.Logger) (outcome Outcome, errText string, terminal bool) {
	log = log.With(zap.Int("attempt", attempt))

	// Readiness timeouts are tolerated: the UI is often interactive
	// before the page settles.
	if err := page.Navigate(c.opts.FaucetURL, c.opts.PageLoadTimeout); err != nil {
		log.Warn("page readiness not reached, continuing", zap.Error(err))
	}
	c.sleep(c.opts.InterActionDelay)

	if err := page.WaitVisible(walletInputSelector, inputWaitTimeout); err != nil {
		log.Warn("wallet input never became visible", zap.Error(err))
		return Outcome{}, "wallet address input not visible", false
	}

	// The site may render the countdown immediately; probe before
	// touching the form.
	if out, found := c.probeCooldown(page, log); found {
		return out, "", true
	}

	input, err := page.Locate(walletInputSelector)
	if err != nil {
		log.Warn("wallet input lookup failed", zap.Error(err))
		return Outcome{}, "wallet address input not found", false
	}
	if err := input.Click(); err != nil {
		log.Warn("failed to focus wallet input", zap.Error(err))
		return Outcome{}, "could not focus wallet input", false
	}
	if err := input.ClearAndFill(wallet, typeDelay); err != nil {
		log.Warn("failed to type wallet address", zap.Error(err))
		return Outcome{}, "could not fill wallet address", false
	}

	c.sleep(fillSettleDelay)
	if out, text, term := c.checkError(page, log); term {
		return out, "", true
	} else if text != "" {
		return Outcome{}, text, false
	}

	if err := page.WaitVisible(sendButtonSelector, sendWaitTimeout); err != nil {
		log.Warn("send button never became visible", zap.Error(err))
		return Outcome{}, "send button not visible", false
	}
	c.sleep(preSubmitDelay)

	send, err := page.Locate(sendButtonSelector)
	if err != nil {
		log.Warn("send button lookup failed", zap.Error(err))
		return Outcome{}, "send button not found", false
	}
	if err := send.Click(); err != nil {
		log.Warn("failed to click send button", zap.Error(err))
		return Outcome{}, "could not click send button", false
	}
	c.sleep(submitSettleDelay)

	if c.successVisible(page) {
		log.Info("success indicator found")
		return Outcome{Kind: Success, Detail: "Success"}, "", true
	}

	out, text, term := c.checkError(page, log)
	if term {
		return out, "", true
	}
	if text != "" {
		if strings.Contains(strings.ToLower(text), "captcha") {
			log.Warn("captcha challenge reported, reloading page")
			if err := page.Reload(); err != nil {
				log.Warn("page reload failed", zap.Error(err))
			}
		}
		return Outcome{}, text, false
	}

	// Neither success nor error rendered yet. Give the transaction one
	// grace period before declaring the attempt lost.
	log.Info("post-submit state ambiguous, waiting")
	c.sleep(ambiguousGrace)
	if c.successVisible(page) {
		log.Info("success indicator found after grace period")
		return Outcome{Kind: Success, Detail: "Success"}, "", true
	}

	log.Warn("no success or error indicator after submit")
	return Outcome{}, "unknown state", false
}

// probeCooldown checks for the countdown control. When present, the
// sequence ends: the remaining time is mapped back to the claim
// timestamp the site is counting from.
func (c *Claimer) probeCooldown(page Page, log *zap.Logger) (Outcome, bool) {
	n, err := page.Count(countdownSelector)
	if err != nil || n == 0 {
		return Outcome{}, false
	}

	text, err := page.Text(countdownSelector)
	if err != nil {
		log.Warn("countdown present but unreadable", zap.Error(err))
		return Outcome{Kind: CooldownDetected, Detail: "unknown"}, true
	}

	remaining, ok := cooldown.ParseRemaining(text)
	if !ok {
		log.Warn("countdown text did not parse", zap.String("text", text))
		return Outcome{Kind: CooldownDetected, Detail: "unknown"}, true
	}

	detail := cooldown.Format(cooldown.EquivalentLastClaim(c.now(), c.opts.CooldownWindow, remaining))
	log.Info("cooldown active",
		zap.Duration("remaining", remaining),
		zap.String("equivalent_last_claim", detail))
	return Outcome{Kind: CooldownDetected, Detail: detail}, true
}

// checkError inspects the page's error region. Rate-limit text is
// terminal and maps to CooldownDetected; any other text is returned
// for the retry policy.
func (c *Claimer) checkError(page Page, log *zap.Logger) (outcome Outcome, errText string, terminal bool) {
	n, err := page.Count(errorSelector)
	if err != nil || n == 0 {
		return Outcome{}, "", false
	}

	text, err := page.Text(errorSelector)
	if err != nil {
		return Outcome{}, "", false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{}, "", false
	}

	lower := strings.ToLower(text)
	if strings.Contains(lower, "rate limit") || strings.Contains(lower, "24 hour") {
		detail := "unknown"
		if retryAt, ok := cooldown.ParseRetryAfter(text); ok {
			detail = cooldown.Format(retryAt.Add(-c.opts.CooldownWindow))
		}
		log.Info("rate limit reported",
			zap.String("text", text),
			zap.String("equivalent_last_claim", detail))
		return Outcome{Kind: CooldownDetected, Detail: detail}, "", true
	}

	log.Warn("faucet reported an error", zap.String("text", text))
	return Outcome{}, text, false
}

func (c *Claimer) successVisible(page Page) bool {
	for _, sel := range successSelectors {
		if n, err := page.Count(sel); err == nil && n > 0 {
			return true
		}
	}
	return false
}
