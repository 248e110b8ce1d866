// Package dispatch drives end-to-end send runs: it renders per-row
// bodies, submits them through a mail.Sender with retry and timeout
// policy, and records one outcome per original CSV row.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zapsend/zapsend/internal/config"
	"github.com/zapsend/zapsend/internal/mail"
	"github.com/zapsend/zapsend/internal/metrics"
	"github.com/zapsend/zapsend/internal/recipients"
	"github.com/zapsend/zapsend/internal/template"
)

// Mode selects how recipients are addressed.
type Mode string

const (
	// ModePersonalized sends one rendered email per valid row,
	// strictly in row order.
	ModePersonalized Mode = "personalized"
	// ModeBCC sends a single unpersonalized email addressing every
	// valid row via BCC.
	ModeBCC Mode = "bcc"
)

// ParseMode validates a mode string from an API request.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePersonalized, ModeBCC:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown dispatch mode: %q", s)
	}
}

// Status is the recorded result for one recipient.
type Status string

const (
	StatusSent    Status = "Sent"
	StatusFailed  Status = "Failed"
	StatusSkipped Status = "Skipped"
)

// Outcome is the per-recipient record of a run. Created exactly once
// per original CSV row and never mutated afterwards.
type Outcome struct {
	Email  string `json:"email"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// State is a run's lifecycle phase.
type State string

const (
	StateIdle      State = "idle"
	StatePreparing State = "preparing"
	StateSending   State = "sending"
	StateComplete  State = "complete"
)

// Progress is one observable step of a run.
type Progress struct {
	State            State   `json:"state"`
	Percent          float64 `json:"percent"`
	CurrentRecipient string  `json:"current_recipient,omitempty"`
}

// Job describes one send run.
type Job struct {
	Mode        Mode
	Subject     string
	Template    *template.Template
	Validation  *recipients.Validation
	Attachments []mail.Attachment
	Banner      *mail.Attachment
	Sender      mail.Sender
	OnProgress  func(Progress)
}

// RunResult is the completed run: every original row accounted for
// exactly once, in valid-row order followed by skipped rows.
type RunResult struct {
	Outcomes   []Outcome
	Summary    recipients.Summary
	StartedAt  time.Time
	FinishedAt time.Time
}

// SentCount returns how many outcomes were accepted by the server.
func (r *RunResult) SentCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusSent {
			n++
		}
	}
	return n
}

// User-facing failure messages. Kept stable because they end up in
// reports and the campaign history.
const (
	authFailedMessage    = "Authentication error. Your app password might have changed. Please log in again."
	connectFailedMessage = "Could not connect to the mail server. Please check your network connection."
	notAcceptedMessage   = "Email was not accepted by the server. The recipient address may be invalid."
	genericFailMessage   = "Failed to send email."
	invalidEmailLabel    = "Invalid Email Entry"
)

// Dispatcher executes jobs sequentially within a run. It is safe for
// concurrent use across runs.
type Dispatcher struct {
	renderer *template.Renderer
	cfg      config.DispatchConfig
	logger   *slog.Logger
}

// New creates a dispatcher with the given retry and timeout tuning.
func New(renderer *template.Renderer, cfg config.DispatchConfig, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		renderer: renderer,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run executes the job to completion. Row-level failures are recorded
// as outcomes, never returned as errors; the error return covers only
// malformed jobs.
func (d *Dispatcher) Run(ctx context.Context, job *Job) (*RunResult, error) {
	if job.Sender == nil {
		return nil, fmt.Errorf("dispatch job has no mail sender")
	}
	if job.Template == nil {
		return nil, fmt.Errorf("dispatch job has no template")
	}
	if job.Validation == nil {
		return nil, fmt.Errorf("dispatch job has no validation result")
	}
	if _, err := ParseMode(string(job.Mode)); err != nil {
		return nil, err
	}

	started := time.Now()
	d.progress(job, Progress{State: StatePreparing, Percent: 0})

	attachments := make([]mail.Attachment, 0, len(job.Attachments)+1)
	attachments = append(attachments, job.Attachments...)
	hasBanner := job.Banner != nil
	if hasBanner {
		banner := *job.Banner
		banner.CID = template.BannerCID
		attachments = append(attachments, banner)
	}

	var outcomes []Outcome
	switch job.Mode {
	case ModeBCC:
		outcomes = d.runBCC(ctx, job, attachments, hasBanner)
	case ModePersonalized:
		outcomes = d.runPersonalized(ctx, job, attachments, hasBanner)
	}

	for _, inv := range job.Validation.Invalid {
		label := inv.Row.Email()
		if label == "" {
			label = invalidEmailLabel
		}
		outcomes = append(outcomes, Outcome{
			Email:  label,
			Status: StatusSkipped,
			Error:  fmt.Sprintf("Missing fields: %s", strings.Join(inv.MissingFields, ", ")),
		})
		metrics.IncEmailsSkipped()
	}

	result := &RunResult{
		Outcomes:   outcomes,
		Summary:    job.Validation.Summary,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}

	sent := result.SentCount()
	runStatus := "failed"
	switch {
	case sent == len(job.Validation.Valid):
		runStatus = "success"
	case sent > 0:
		runStatus = "partial"
	}
	metrics.IncDispatchRuns(string(job.Mode), runStatus)

	d.logger.Info("dispatch run complete",
		"mode", job.Mode,
		"total", result.Summary.Total,
		"sent", sent,
		"skipped", len(job.Validation.Invalid),
		"duration", result.FinishedAt.Sub(started))

	d.progress(job, Progress{State: StateComplete, Percent: 100})
	return result, nil
}

func (d *Dispatcher) runPersonalized(ctx context.Context, job *Job, attachments []mail.Attachment, hasBanner bool) []Outcome {
	valid := job.Validation.Valid
	outcomes := make([]Outcome, 0, len(valid))

	authFailure := ""
	for i, row := range valid {
		addr := row.Email()

		if authFailure != "" {
			// Credentials are known bad, further attempts would
			// only hammer the server.
			outcomes = append(outcomes, Outcome{Email: addr, Status: StatusFailed, Error: authFailure})
			metrics.IncEmailsFailed(string(job.Mode), "auth")
			continue
		}

		d.progress(job, Progress{
			State:            StateSending,
			Percent:          float64(i) / float64(len(valid)) * 100,
			CurrentRecipient: addr,
		})

		html := d.renderer.Render(job.Template, row, hasBanner)
		msg := &mail.Message{
			To:          []string{addr},
			Subject:     job.Subject,
			HTML:        html,
			Attachments: attachments,
		}

		errMsg, kind := d.sendWithRetry(ctx, job, msg, 1, false)
		if errMsg == "" {
			outcomes = append(outcomes, Outcome{Email: addr, Status: StatusSent})
			metrics.IncEmailsSent(string(job.Mode))
		} else {
			outcomes = append(outcomes, Outcome{Email: addr, Status: StatusFailed, Error: errMsg})
			metrics.IncEmailsFailed(string(job.Mode), string(kind))
			if kind == mail.KindAuth {
				authFailure = errMsg
			}
		}

		d.progress(job, Progress{
			State:            StateSending,
			Percent:          float64(i+1) / float64(len(valid)) * 100,
			CurrentRecipient: addr,
		})
	}

	return outcomes
}

func (d *Dispatcher) runBCC(ctx context.Context, job *Job, attachments []mail.Attachment, hasBanner bool) []Outcome {
	valid := job.Validation.Valid
	if len(valid) == 0 {
		return []Outcome{}
	}

	emails := make([]string, len(valid))
	for i, row := range valid {
		emails[i] = row.Email()
	}

	d.progress(job, Progress{
		State:            StateSending,
		Percent:          0,
		CurrentRecipient: fmt.Sprintf("all %d recipients (BCC)", len(emails)),
	})

	html := d.renderer.Render(job.Template, nil, hasBanner)
	msg := &mail.Message{
		Bcc:         emails,
		Subject:     job.Subject,
		HTML:        html,
		Attachments: attachments,
	}

	errMsg, kind := d.sendWithRetry(ctx, job, msg, len(emails), true)
	outcomes := make([]Outcome, len(emails))
	for i, addr := range emails {
		if errMsg == "" {
			outcomes[i] = Outcome{Email: addr, Status: StatusSent}
			metrics.IncEmailsSent(string(job.Mode))
		} else {
			outcomes[i] = Outcome{Email: addr, Status: StatusFailed, Error: errMsg}
			metrics.IncEmailsFailed(string(job.Mode), string(kind))
		}
	}

	return outcomes
}

// sendWithRetry submits one message, retrying transient failures with
// linearly increasing backoff. It returns an empty message on success,
// or the user-facing failure message and its error kind.
func (d *Dispatcher) sendWithRetry(ctx context.Context, job *Job, msg *mail.Message, expected int, bulk bool) (string, mail.Kind) {
	var lastErr error

	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		start := time.Now()
		res, err := d.sendOnce(ctx, job.Sender, msg)
		metrics.ObserveSendDuration(string(job.Mode), time.Since(start).Seconds())

		if err == nil {
			if failMsg := checkAcceptance(res, expected, bulk); failMsg != "" {
				return failMsg, mail.KindOther
			}
			return "", ""
		}

		lastErr = err
		kind := mail.ErrorKind(err)
		d.logger.Warn("send attempt failed",
			"attempt", attempt+1,
			"max_attempts", d.cfg.MaxRetries+1,
			"kind", kind,
			"error", err)

		if kind == mail.KindAuth {
			return authFailedMessage, mail.KindAuth
		}
		if attempt < d.cfg.MaxRetries && kind == mail.KindTransient {
			metrics.IncSendRetries()
			select {
			case <-time.After(d.cfg.RetryBackoff * time.Duration(attempt+1)):
			case <-ctx.Done():
				return ctx.Err().Error(), mail.KindOther
			}
			continue
		}
		break
	}

	if lastErr == nil {
		return genericFailMessage, mail.KindOther
	}
	kind := mail.ErrorKind(lastErr)
	if kind == mail.KindTransient {
		return connectFailedMessage, mail.KindTransient
	}
	return lastErr.Error(), kind
}

// sendOnce bounds a single submission by the configured send timeout.
// On expiry the in-flight send is abandoned, not cancelled; the
// buffered channel lets the goroutine finish without leaking.
func (d *Dispatcher) sendOnce(ctx context.Context, sender mail.Sender, msg *mail.Message) (*mail.Result, error) {
	type sendResult struct {
		res *mail.Result
		err error
	}
	ch := make(chan sendResult, 1)
	go func() {
		res, err := sender.Send(ctx, msg)
		ch <- sendResult{res, err}
	}()

	timer := time.NewTimer(d.cfg.SendTimeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.res, r.err
	case <-timer.C:
		return nil, &mail.SendError{
			Kind:    mail.KindOther,
			Message: fmt.Sprintf("Email send operation timed out after %d seconds", int(d.cfg.SendTimeout.Seconds())),
		}
	case <-ctx.Done():
		return nil, mail.Classify(ctx.Err())
	}
}

// checkAcceptance turns a nominally successful submission into a
// failure when the server rejected or silently dropped recipients.
func checkAcceptance(res *mail.Result, expected int, bulk bool) string {
	if res == nil {
		return notAcceptedMessage
	}
	if len(res.Rejected) > 0 {
		return fmt.Sprintf("Email rejected by server for: %s. The recipient address may be invalid or blocked.",
			strings.Join(res.Rejected, ", "))
	}
	if bulk {
		if len(res.Accepted) < expected {
			return fmt.Sprintf("Only %d out of %d emails were accepted by the server. Some recipients may be invalid.",
				len(res.Accepted), expected)
		}
		return ""
	}
	if len(res.Accepted) == 0 {
		return notAcceptedMessage
	}
	return ""
}

func (d *Dispatcher) progress(job *Job, p Progress) {
	if job.OnProgress != nil {
		job.OnProgress(p)
	}
}
