package claim

// OutcomeKind classifies how a claim sequence ended.
type OutcomeKind int

const (
	// Success means a success indicator was observed after submit.
	Success OutcomeKind = iota

	// CooldownDetected means the site reported an active cooldown or
	// rate limit. Authoritative, never retried within a run.
	CooldownDetected

	// RecoverableError means a required element never became visible.
	// The attempt failed but the sequence may retry.
	RecoverableError

	// ExhaustedRetries means the retry budget ran out without reaching
	// success or an authoritative cooldown.
	ExhaustedRetries
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case CooldownDetected:
		return "cooldown"
	case RecoverableError:
		return "recoverable_error"
	case ExhaustedRetries:
		return "exhausted_retries"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of one claim sequence for one
// profile. For CooldownDetected, Detail carries the reconstructed
// last-claim timestamp in display format, or "unknown" when the
// cooldown text could not be parsed.
type Outcome struct {
	Kind   OutcomeKind
	Detail string
}
