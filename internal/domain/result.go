package domain

// Outcome names how a cycle ended. Each value is a distinct user-visible status.
type Outcome string

const (
	OutcomeNoData        Outcome = "no_data"
	OutcomeThrottled     Outcome = "throttled"
	OutcomeNoNew         Outcome = "no_new"
	OutcomeNoSubscribers Outcome = "no_subscribers"
	OutcomeAccumulated   Outcome = "accumulated"
	OutcomeSent          Outcome = "sent"
	OutcomeSendFailed    Outcome = "send_failed"
	OutcomeFailed        Outcome = "failed"
)

// CycleResult is the structured response handed back to the scheduler on every run.
type CycleResult struct {
	Success    bool    `json:"success"`
	Outcome    Outcome `json:"outcome"`
	Message    string  `json:"message"`
	StockCount int     `json:"stockCount,omitempty"`
	EmailCount int     `json:"emailCount,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Succeeded builds a successful result.
func Succeeded(outcome Outcome, message string) CycleResult {
	return CycleResult{Success: true, Outcome: outcome, Message: message}
}

// Failed builds a failure result carrying the error detail.
func Failed(outcome Outcome, message string, err error) CycleResult {
	res := CycleResult{Success: false, Outcome: outcome, Message: message}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}
