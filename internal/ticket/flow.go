package ticket

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ilexum-group/supportkit/internal/console"
	"github.com/ilexum-group/supportkit/internal/models"
	"github.com/ilexum-group/supportkit/internal/utils"
)

// State is a stage of the submit flow
type State string

// Submit flow states
const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateSubmitting State = "submitting"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
)

// SuccessMessage is reported on a successful submission
const SuccessMessage = "Ticket submitted successfully"

// Sender submits an assembled ticket and returns its id
type Sender interface {
	Submit(subject, description string, attachments []models.Attachment) (string, error)
}

// Flow runs validate, assemble and submit for one ticket form. Only one submission
// runs at a time; after success or failure a new one may start.
type Flow struct {
	assembler *Assembler
	sender    Sender

	mu    sync.Mutex
	state State
	err   error
}

// NewFlow creates a Flow in the idle state
func NewFlow(assembler *Assembler, sender Sender) *Flow {
	return &Flow{assembler: assembler, sender: sender, state: StateIdle}
}

// State returns the current state
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Err returns the error of the last failed submission, if any
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Submit validates the payload, assembles the attachments and sends the ticket
func (f *Flow) Submit(payload models.TicketPayload) (models.SubmitResult, error) {
	if err := f.begin(); err != nil {
		return models.SubmitResult{}, err
	}
	defer f.unwind()

	payload.Title = strings.TrimSpace(payload.Title)
	payload.Description = strings.TrimSpace(payload.Description)
	// goes through the console so the trace lands in the bundle's console logs
	console.Log("[SubmitTicket] Start", map[string]any{
		"title":      truncate(payload.Title, 50),
		"imageCount": len(payload.Images),
		"hasVideo":   payload.Video != nil,
	})

	if payload.Title == "" {
		err := &ValidationError{Field: "title", Message: "Please enter a title"}
		f.finish(StateFailed, err)
		return models.SubmitResult{Success: false, Message: err.Message}, err
	}
	f.transition(StateSubmitting)

	assembled, err := f.assembler.Assemble(payload)
	if err != nil {
		f.finish(StateFailed, err)
		return models.SubmitResult{Success: false, Message: err.Error()}, err
	}

	id, err := f.sender.Submit(payload.Title, payload.Description, assembled.Attachments)
	if err != nil {
		utils.LogError("Submit failed", map[string]string{"error": err.Error()})
		f.finish(StateFailed, err)
		return models.SubmitResult{Success: false, Message: err.Error()}, err
	}

	f.finish(StateSuccess, nil)
	return models.SubmitResult{
		Success:         true,
		Message:         SuccessMessage,
		TicketID:        id,
		Title:           payload.Title,
		Description:     payload.Description,
		ImageCount:      assembled.ImageCount,
		HasVideo:        assembled.HasVideo,
		ConsoleLogCount: len(assembled.Bundle.ConsoleLogs),
		NetworkLogCount: len(assembled.Bundle.NetworkLogs),
	}, nil
}

func (f *Flow) begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateValidating || f.state == StateSubmitting {
		return ErrSubmitInProgress
	}
	f.state = StateValidating
	f.err = nil
	return nil
}

// unwind fails a submission left in flight by a panic, then lets the panic continue
func (f *Flow) unwind() {
	r := recover()
	if r == nil {
		return
	}
	f.mu.Lock()
	if f.state == StateValidating || f.state == StateSubmitting {
		f.state = StateFailed
		f.err = fmt.Errorf("ticket submission panicked: %v", r)
	}
	f.mu.Unlock()
	panic(r)
}

func (f *Flow) transition(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *Flow) finish(s State, err error) {
	f.mu.Lock()
	f.state = s
	f.err = err
	f.mu.Unlock()
}
