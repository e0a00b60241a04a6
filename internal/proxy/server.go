// Package proxy implements the ticket proxy: it accepts multipart ticket submissions
// from the reporting client and forwards them to the help desk, keeping the desk
// credentials server-side.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ilexum-group/supportkit/internal/models"
)

// Routes served by the proxy
const (
	TicketsPath = "/api/zoho/tickets"
	HealthPath  = "/health"
)

const maxFieldBytes = 1 << 20

// Options configures a Server
type Options struct {
	Addr           string
	Production     bool
	MaxUploadBytes int64
	// RateLimit is the sustained ticket rate per second; zero disables limiting
	RateLimit    float64
	RateBurst    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the ticket proxy
type Server struct {
	opts       Options
	desk       Desk
	ledger     *Ledger
	logger     *zap.Logger
	production bool
	handler    http.Handler
}

// NewServer wires the routes and middleware. The ledger is optional.
func NewServer(opts Options, desk Desk, ledger *Ledger, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 50 << 20
	}
	s := &Server{
		opts:       opts,
		desk:       desk,
		ledger:     ledger,
		logger:     logger.Named("proxy"),
		production: opts.Production,
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	mux := http.NewServeMux()
	mux.Handle("POST "+TicketsPath, s.rateLimited(limiter, http.HandlerFunc(s.handleCreateTicket)))
	mux.HandleFunc("GET "+HealthPath, s.handleHealth)
	mux.HandleFunc("/", s.handleNotFound)

	s.handler = s.logging(s.recovery(cors(mux)))
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Ticket proxy listening", zap.String("addr", s.opts.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down ticket proxy")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

type createTicketResponse struct {
	TicketID string `json:"ticketId"`
	Message  string `json:"message"`
}

type ticketForm struct {
	subject     string
	description string
	customer    string
	hasCustomer bool
	files       []models.Attachment
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	form, err := s.readForm(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var customer *Customer
	if form.hasCustomer {
		customer = &Customer{}
		if err := json.Unmarshal([]byte(form.customer), customer); err != nil {
			s.writeError(w, r, NewValidationError(CodeInvalidCustomer,
				`The "customer" field must be valid JSON.`,
				map[string]any{"raw": truncate(form.customer, 200)}))
			return
		}
	}

	names := make([]string, 0, len(form.files))
	for _, f := range form.files {
		names = append(names, f.Name)
	}
	s.logger.Info("Ticket request received",
		zap.String("request_id", RequestID(r.Context())),
		zap.String("subject", truncate(form.subject, 50)),
		zap.Int("descriptionLength", len(form.description)),
		zap.Int("fileCount", len(form.files)),
		zap.Strings("fileNames", names))

	if form.subject == "" {
		s.writeError(w, r, NewValidationError(CodeSubjectRequired, "subject is required", nil))
		return
	}

	ctx := r.Context()
	ticketID, err := s.desk.CreateTicket(ctx, NewTicket{
		Subject:     form.subject,
		Description: form.description,
		Customer:    customer,
	})
	if err != nil {
		s.writeError(w, r, deskFailure(err))
		return
	}

	for i, f := range form.files {
		s.logger.Info("Adding attachment",
			zap.String("ticketId", ticketID),
			zap.Int("index", i+1),
			zap.Int("total", len(form.files)),
			zap.String("filename", f.Name))
		if err := s.desk.AddAttachment(ctx, ticketID, f); err != nil {
			s.writeError(w, r, deskFailure(err))
			return
		}
	}

	if s.ledger != nil {
		if _, err := s.ledger.Record(ctx, ticketID, form.subject, len(form.files)); err != nil {
			s.logger.Warn("Ticket not recorded in ledger", zap.String("ticketId", ticketID), zap.Error(err))
		}
	}

	s.logger.Info("Ticket created", zap.String("ticketId", ticketID))
	writeJSON(w, http.StatusOK, createTicketResponse{TicketID: ticketID, Message: "Ticket created successfully"})
}

// readForm streams the multipart body so files keep their submission order.
// Files may use any field name.
func (s *Server) readForm(w http.ResponseWriter, r *http.Request) (ticketForm, error) {
	var form ticketForm

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return form, NewValidationError(CodeInvalidForm, "expected a multipart/form-data body", nil)
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		return form, NewValidationError(CodeInvalidForm, "malformed multipart body", nil)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return form, nil
		}
		if err != nil {
			return form, formError(err, s.opts.MaxUploadBytes)
		}

		if part.FileName() == "" {
			value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
			part.Close()
			if err != nil {
				return form, formError(err, s.opts.MaxUploadBytes)
			}
			if len(value) > maxFieldBytes {
				return form, &APIError{
					Status:  http.StatusRequestEntityTooLarge,
					Code:    CodePayloadTooLarge,
					Message: "field " + part.FormName() + " exceeds 1 MB",
				}
			}
			switch part.FormName() {
			case "subject":
				form.subject = strings.TrimSpace(string(value))
			case "description":
				form.description = string(value)
			case "customer":
				form.customer = string(value)
				form.hasCustomer = form.customer != ""
			}
			continue
		}

		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return form, formError(err, s.opts.MaxUploadBytes)
		}
		contentType := part.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		form.files = append(form.files, models.Attachment{
			Name:        part.FileName(),
			ContentType: contentType,
			Data:        data,
		})
	}
}

func formError(err error, limit int64) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &APIError{
			Status:  http.StatusRequestEntityTooLarge,
			Code:    CodePayloadTooLarge,
			Message: "upload exceeds " + strconv.FormatInt(limit>>20, 10) + " MB",
		}
	}
	return NewValidationError(CodeInvalidForm, "malformed multipart body", nil)
}

// deskFailure maps an upstream rejection to 502; anything else stays internal
func deskFailure(err error) error {
	var deskErr *DeskError
	if errors.As(err, &deskErr) {
		details := map[string]any{"operation": deskErr.Op}
		if deskErr.StatusCode != 0 {
			details["status"] = deskErr.StatusCode
		}
		return NewExternalServiceError(CodeExternalService, deskErr.Message, details)
	}
	return err
}

type healthResponse struct {
	Status     string      `json:"status"`
	LastTicket *lastTicket `json:"lastTicket,omitempty"`
}

type lastTicket struct {
	TicketID  string `json:"ticketId"`
	CreatedAt string `json:"createdAt"`
}

// handleHealth reports ok, plus the newest ledger entry when a ledger is configured
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.ledger != nil {
		recent, err := s.ledger.Recent(r.Context(), 1)
		if err != nil {
			s.logger.Warn("Ledger unavailable", zap.Error(err))
		} else if len(recent) > 0 {
			resp.LastTicket = &lastTicket{
				TicketID:  recent[0].TicketID,
				CreatedAt: recent[0].CreatedAt.Format(time.RFC3339Nano),
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, &APIError{Status: http.StatusNotFound, Code: CodeNotFound, Message: "Route not found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
