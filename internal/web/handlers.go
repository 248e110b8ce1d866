package web

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zapsend/zapsend/internal/dispatch"
	"github.com/zapsend/zapsend/internal/history"
	"github.com/zapsend/zapsend/internal/mail"
	"github.com/zapsend/zapsend/internal/metrics"
	"github.com/zapsend/zapsend/internal/recipients"
	"github.com/zapsend/zapsend/internal/report"
	"github.com/zapsend/zapsend/internal/session"
	"github.com/zapsend/zapsend/internal/template"
)

// LoginRequest is the request body for POST /api/login
type LoginRequest struct {
	Email       string `json:"email"`
	AppPassword string `json:"app_password"`
}

// SessionResponse is the response for GET /api/session
type SessionResponse struct {
	Email     string    `json:"email"`
	LoginTime time.Time `json:"login_time"`
}

// SuggestionsRequest is the request body for POST /api/suggestions
type SuggestionsRequest struct {
	EmailContent string `json:"email_content"`
}

// SuggestionsResponse is the response for POST /api/suggestions
type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

// ValidateRequest is the request body for POST /api/validate
type ValidateRequest struct {
	CSV          string `json:"csv"`
	TemplateName string `json:"template_name"`
	TemplateBody string `json:"template_body"`
	Mode         string `json:"mode"`
}

// ValidateResponse is the response for POST /api/validate
type ValidateResponse struct {
	Placeholders []string           `json:"placeholders"`
	Summary      recipients.Summary `json:"summary"`
	Invalid      []InvalidRowView   `json:"invalid"`
}

// InvalidRowView previews one excluded row.
type InvalidRowView struct {
	Email         string   `json:"email"`
	MissingFields []string `json:"missing_fields"`
}

// AttachmentPayload is one base64-encoded file in a dispatch or
// test-send request.
type AttachmentPayload struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

// TestSendRequest is the request body for POST /api/test-send
type TestSendRequest struct {
	To           string              `json:"to"`
	Subject      string              `json:"subject"`
	TemplateName string              `json:"template_name"`
	TemplateBody string              `json:"template_body"`
	Attachments  []AttachmentPayload `json:"attachments"`
	Banner       *AttachmentPayload  `json:"banner"`
}

// DispatchRequest is the request body for POST /api/dispatch
type DispatchRequest struct {
	Mode         string              `json:"mode"`
	Subject      string              `json:"subject"`
	CSV          string              `json:"csv"`
	TemplateName string              `json:"template_name"`
	TemplateBody string              `json:"template_body"`
	Attachments  []AttachmentPayload `json:"attachments"`
	Banner       *AttachmentPayload  `json:"banner"`
}

// DispatchResponse is the response for POST /api/dispatch
type DispatchResponse struct {
	RunID string `json:"run_id"`
}

// HistoryResponse is the response for GET /api/history
type HistoryResponse struct {
	Records []history.CampaignRecord `json:"records"`
	Stats   *history.Stats           `json:"stats"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse acknowledges state-changing requests.
type StatusResponse struct {
	Status string `json:"status"`
}

// handleLogin verifies the credentials by sending a verification email
// to the sender's own address, then issues the session cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !recipients.ValidEmail(req.Email) {
		s.sendError(w, http.StatusBadRequest, "A valid email address is required")
		return
	}
	if req.AppPassword == "" {
		s.sendError(w, http.StatusBadRequest, "app_password is required")
		return
	}

	sender, err := s.newSender(req.Email, req.AppPassword)
	if err != nil {
		metrics.IncLoginAttempts("failure")
		s.sendError(w, http.StatusUnauthorized, loginErrorMessage(err))
		return
	}
	defer sender.Close()

	res, err := sender.Send(r.Context(), &mail.Message{
		To:      []string{req.Email},
		Subject: "✓ Welcome to ZapSend - Account Verified!",
		HTML:    verificationBody(req.Email),
	})
	if err != nil {
		metrics.IncLoginAttempts("failure")
		s.logger.Warn("login verification failed", "email", req.Email, "kind", mail.ErrorKind(err))
		s.sendError(w, http.StatusUnauthorized, loginErrorMessage(err))
		return
	}
	if len(res.Rejected) > 0 || len(res.Accepted) == 0 {
		metrics.IncLoginAttempts("failure")
		s.sendError(w, http.StatusUnauthorized,
			"Verification email was not accepted by the server. Please check your email address and try again.")
		return
	}

	creds := &session.Credentials{
		Email:       req.Email,
		AppPassword: req.AppPassword,
		LoginTime:   time.Now(),
	}
	if err := s.sessions.Issue(w, creds); err != nil {
		s.logger.Error("failed to issue session", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	metrics.IncLoginAttempts("success")
	s.logger.Info("login verified", "email", req.Email)
	s.sendJSON(w, http.StatusOK, SessionResponse{Email: creds.Email, LoginTime: creds.LoginTime})
}

func loginErrorMessage(err error) string {
	switch mail.ErrorKind(err) {
	case mail.KindAuth:
		return "Invalid email or app password. Please check your credentials and ensure app passwords are set up correctly in your email provider's security settings."
	case mail.KindTransient:
		return "Could not connect to the mail server. It might be a network issue or the server is busy. Please try again later."
	default:
		return "An unknown error occurred during verification."
	}
}

func verificationBody(email string) string {
	return fmt.Sprintf(`<div style="font-family: Inter, sans-serif; color: #1a1a1a; line-height: 1.6;">`+
		`<h1 style="margin: 0; font-size: 28px;">Account Verified!</h1>`+
		`<p>Welcome to <strong>ZapSend</strong>! The account %s has been successfully authenticated `+
		`and verified. You're all set to start crafting and sending email campaigns.</p></div>`, email)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	s.sendJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	creds, err := s.sessions.Get(r)
	if err != nil {
		s.sendError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	s.sendJSON(w, http.StatusOK, SessionResponse{Email: creds.Email, LoginTime: creds.LoginTime})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if s.suggester == nil {
		s.sendError(w, http.StatusServiceUnavailable, "Subject suggestions are not enabled")
		return
	}

	var req SuggestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.EmailContent == "" {
		s.sendError(w, http.StatusBadRequest, "email_content is required")
		return
	}

	suggestions, err := s.suggester.Suggest(r.Context(), req.EmailContent)
	if err != nil {
		metrics.IncSuggestRequests("failure")
		s.logger.Warn("suggestion request failed", "error", err)
		s.sendError(w, http.StatusBadGateway, "Failed to generate suggestions")
		return
	}

	metrics.IncSuggestRequests("success")
	s.sendJSON(w, http.StatusOK, SuggestionsResponse{Suggestions: suggestions})
}

// parseJobInputs validates the template/CSV/mode triple shared by the
// validate and dispatch endpoints.
func (s *Server) parseJobInputs(w http.ResponseWriter, name, body, csv, mode string) (*template.Template, *recipients.Validation, dispatch.Mode, bool) {
	parsedMode, err := dispatch.ParseMode(mode)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return nil, nil, "", false
	}

	tmpl, err := template.New(name, body)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return nil, nil, "", false
	}

	list, err := recipients.ParseList(csv)
	if err != nil {
		s.sendError(w, http.StatusUnprocessableEntity, err.Error())
		return nil, nil, "", false
	}
	if !list.HasEmailColumn() {
		s.sendError(w, http.StatusUnprocessableEntity, "CSV must have an Email column")
		return nil, nil, "", false
	}

	v := recipients.Validate(list, parsedMode == dispatch.ModePersonalized, tmpl.Placeholders())
	return tmpl, v, parsedMode, true
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tmpl, v, _, ok := s.parseJobInputs(w, req.TemplateName, req.TemplateBody, req.CSV, req.Mode)
	if !ok {
		return
	}

	invalid := make([]InvalidRowView, len(v.Invalid))
	for i, row := range v.Invalid {
		invalid[i] = InvalidRowView{Email: row.Row.Email(), MissingFields: row.MissingFields}
	}

	placeholders := tmpl.Placeholders()
	if placeholders == nil {
		placeholders = []string{}
	}

	s.sendJSON(w, http.StatusOK, ValidateResponse{
		Placeholders: placeholders,
		Summary:      v.Summary,
		Invalid:      invalid,
	})
}

func decodeAttachments(payloads []AttachmentPayload, banner *AttachmentPayload) ([]mail.Attachment, *mail.Attachment, error) {
	attachments := make([]mail.Attachment, 0, len(payloads))
	for _, p := range payloads {
		content, err := base64.StdEncoding.DecodeString(p.Content)
		if err != nil {
			return nil, nil, fmt.Errorf("attachment %s is not valid base64", p.Filename)
		}
		attachments = append(attachments, mail.Attachment{
			Filename:    p.Filename,
			Content:     content,
			ContentType: p.ContentType,
		})
	}

	if banner == nil {
		return attachments, nil, nil
	}
	content, err := base64.StdEncoding.DecodeString(banner.Content)
	if err != nil {
		return nil, nil, fmt.Errorf("banner %s is not valid base64", banner.Filename)
	}
	contentType := banner.ContentType
	if contentType == "" {
		contentType = "image/png"
	}
	return attachments, &mail.Attachment{
		Filename:    banner.Filename,
		Content:     content,
		ContentType: contentType,
		CID:         template.BannerCID,
	}, nil
}

func (s *Server) handleTestSend(w http.ResponseWriter, r *http.Request) {
	creds := credentialsFrom(r)

	var req TestSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !recipients.ValidEmail(req.To) {
		s.sendError(w, http.StatusBadRequest, "A valid recipient address is required")
		return
	}

	tmpl, err := template.New(req.TemplateName, req.TemplateBody)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	attachments, banner, err := decodeAttachments(req.Attachments, req.Banner)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	if banner != nil {
		attachments = append(attachments, *banner)
	}

	sender, err := s.newSender(creds.Email, creds.AppPassword)
	if err != nil {
		s.sendError(w, http.StatusBadGateway, loginErrorMessage(err))
		return
	}
	defer sender.Close()

	html := s.renderer.Render(tmpl, nil, banner != nil)
	res, err := sender.Send(r.Context(), &mail.Message{
		To:          []string{req.To},
		Subject:     req.Subject,
		HTML:        html,
		Attachments: attachments,
	})
	if err != nil {
		s.sendError(w, http.StatusBadGateway, err.Error())
		return
	}
	if len(res.Rejected) > 0 || len(res.Accepted) == 0 {
		s.sendError(w, http.StatusBadGateway, "Email was not accepted by the server. The recipient address may be invalid.")
		return
	}

	s.sendJSON(w, http.StatusOK, StatusResponse{Status: "sent"})
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	creds := credentialsFrom(r)

	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tmpl, v, mode, ok := s.parseJobInputs(w, req.TemplateName, req.TemplateBody, req.CSV, req.Mode)
	if !ok {
		return
	}

	attachments, banner, err := decodeAttachments(req.Attachments, req.Banner)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.activeMu.Lock()
	if runID, busy := s.activeRuns[creds.Email]; busy {
		s.activeMu.Unlock()
		s.sendJSON(w, http.StatusConflict, DispatchResponse{RunID: runID})
		return
	}
	runID := s.runs.Create(mode, req.Subject, creds.Email)
	s.activeRuns[creds.Email] = runID
	s.activeMu.Unlock()

	sender, err := s.newSender(creds.Email, creds.AppPassword)
	if err != nil {
		s.finishRun(creds.Email, runID)
		s.runs.Fail(runID, err)
		s.sendError(w, http.StatusBadGateway, loginErrorMessage(err))
		return
	}

	job := &dispatch.Job{
		Mode:        mode,
		Subject:     req.Subject,
		Template:    tmpl,
		Validation:  v,
		Attachments: attachments,
		Banner:      banner,
		Sender:      sender,
		OnProgress: func(p dispatch.Progress) {
			s.runs.Progress(runID, p)
		},
	}

	go s.executeRun(runID, creds.Email, job)

	s.sendJSON(w, http.StatusAccepted, DispatchResponse{RunID: runID})
}

// executeRun drives one dispatch run to completion and persists its
// report and campaign record. The run is detached from the request;
// clients observe it through the run endpoints.
func (s *Server) executeRun(runID, sender string, job *dispatch.Job) {
	defer job.Sender.Close()
	defer s.finishRun(sender, runID)

	result, err := s.dispatcher.Run(context.Background(), job)
	if err != nil {
		s.logger.Error("dispatch run failed to start", "run_id", runID, "error", err)
		s.runs.Fail(runID, err)
		return
	}

	rec := &report.Record{
		Outcomes:   result.Outcomes,
		Summary:    result.Summary,
		Subject:    job.Subject,
		FinishedAt: result.FinishedAt,
	}
	if err := s.reports.Save(sender, rec); err != nil {
		s.logger.Error("failed to persist report", "run_id", runID, "error", err)
	}

	campaign := history.NewRecord(result, sender, job.Subject, len(job.Validation.Valid))
	if err := s.campaigns.Create(campaign); err != nil {
		s.logger.Error("failed to persist campaign record", "run_id", runID, "error", err)
	}

	// Completion is published last so observers of a complete run can
	// rely on the persisted report and history being in place.
	s.runs.Complete(runID, result)
}

func (s *Server) finishRun(sender, runID string) {
	s.activeMu.Lock()
	if s.activeRuns[sender] == runID {
		delete(s.activeRuns, sender)
	}
	s.activeMu.Unlock()
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runs.Get(chi.URLParam(r, "id"))
	if !ok {
		s.sendError(w, http.StatusNotFound, "Run not found")
		return
	}
	s.sendJSON(w, http.StatusOK, run)
}

// runRecord resolves a completed run into a report record.
func (s *Server) runRecord(w http.ResponseWriter, r *http.Request) (*report.Record, bool) {
	run, ok := s.runs.Get(chi.URLParam(r, "id"))
	if !ok {
		s.sendError(w, http.StatusNotFound, "Run not found")
		return nil, false
	}
	if run.State != dispatch.StateComplete {
		s.sendError(w, http.StatusConflict, "Run is still in progress")
		return nil, false
	}
	return &report.Record{
		Outcomes:   run.Outcomes,
		Summary:    run.Summary,
		Subject:    run.Subject,
		FinishedAt: run.FinishedAt,
	}, true
}

func (s *Server) handleRunReportText(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.runRecord(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", report.Filename(rec.Subject, rec.FinishedAt, "txt")))
	w.Write([]byte(report.BuildText(rec)))
}

func (s *Server) handleRunReportCSV(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.runRecord(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", report.Filename(rec.Subject, rec.FinishedAt, "csv")))
	w.Write([]byte(report.BuildCSV(rec.Outcomes)))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	creds := credentialsFrom(r)

	rec, err := s.reports.Load(creds.Email)
	if errors.Is(err, report.ErrNotFound) {
		s.sendError(w, http.StatusNotFound, "No report available")
		return
	}
	if err != nil {
		s.logger.Error("failed to load report", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to load report")
		return
	}
	s.sendJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	creds := credentialsFrom(r)

	records, err := s.campaigns.ListBySender(creds.Email, 50)
	if err != nil {
		s.logger.Error("failed to list campaigns", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	stats, err := s.campaigns.StatsBySender(creds.Email)
	if err != nil {
		s.logger.Error("failed to aggregate campaigns", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}

	s.sendJSON(w, http.StatusOK, HistoryResponse{Records: records, Stats: stats})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.version,
		Uptime:  time.Since(s.startTime).String(),
	})
}

// sendJSON writes a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}
