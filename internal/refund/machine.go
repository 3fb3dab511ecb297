// internal/refund/machine.go
package refund

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rmvrefund/rmv-refund/api/schemas"
)

// Browser is the set of page primitives the claim flow needs. It is
// implemented by *browser.Session.
type Browser interface {
	Open(ctx context.Context, url string) error
	AcceptCookieBanner(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	WaitAndClick(ctx context.Context, selector string) error
	TypeInto(ctx context.Context, selector, value string) error
	SelectOption(ctx context.Context, selector, value string) error
	WaitVisible(ctx context.Context, selector string) error
	WaitForDisappearance(ctx context.Context, selector string) error
	ReadText(ctx context.Context, selector string) (string, error)
	ScrollIntoView(ctx context.Context, selector string) error
	WaitForText(ctx context.Context, selector string) (string, error)
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Settings holds the run options that do not come from the journey itself.
type Settings struct {
	URL string
	// GuidelinesAgreed is the configured consent; nil means ask.
	GuidelinesAgreed *bool
	// RunID tags logs and the result. A new one is generated when empty.
	RunID string
}

// Claim drives one refund claim through the form. A Claim runs once.
type Claim struct {
	browser  Browser
	prompt   Confirmer
	settings Settings
	logger   *zap.Logger

	req      schemas.JourneyRequest
	ticket   schemas.TicketProfile
	personal schemas.PersonalProfile

	state       schemas.State
	failedAt    schemas.State
	history     []schemas.State
	observation schemas.JourneyObservation
}

// NewClaim checks that the inputs are complete. The personal profile must
// come from schemas.NewPersonalProfile.
func NewClaim(b Browser, prompt Confirmer, settings Settings, req schemas.JourneyRequest,
	ticket schemas.TicketProfile, personal schemas.PersonalProfile, logger *zap.Logger) (*Claim, error) {

	if b == nil || prompt == nil {
		return nil, fmt.Errorf("claim needs a browser and a prompt")
	}
	if err := Validate(settings, req, personal); err != nil {
		return nil, err
	}
	if settings.RunID == "" {
		settings.RunID = uuid.NewString()
	}

	return &Claim{
		browser:  b,
		prompt:   prompt,
		settings: settings,
		logger:   logger.Named("refund").With(zap.String("run_id", settings.RunID)),
		req:      req,
		ticket:   ticket,
		personal: personal,
		state:    schemas.StateStart,
		failedAt: schemas.StateStart,
		history:  []schemas.State{schemas.StateStart},
	}, nil
}

// Validate reports the first missing or invalid input as a configuration
// error. NewClaim runs the same checks.
func Validate(settings Settings, req schemas.JourneyRequest, personal schemas.PersonalProfile) error {
	if settings.URL == "" {
		return schemas.NewClaimError(schemas.KindConfiguration, "new claim", "", errors.New("claim form url is empty"))
	}
	if personal.SiteCode() == "" {
		return schemas.NewClaimError(schemas.KindConfiguration, "new claim", "",
			fmt.Errorf("salutation %q has no site code", personal.Salutation))
	}
	for _, field := range []struct{ name, value string }{
		{"start station", req.StartStation},
		{"end station", req.EndStation},
		{"date", req.Date},
		{"time", req.Time},
	} {
		if field.value == "" {
			return schemas.NewClaimError(schemas.KindConfiguration, "new claim", "", fmt.Errorf("%s is required", field.name))
		}
	}
	return nil
}

// step is one page of the form.
type step struct {
	state schemas.State
	title string
	run   func(ctx context.Context) error
}

func (c *Claim) steps() []step {
	return []step{
		{schemas.StateRouteAndTime, "Step 1: Choose the connection", c.routeAndTime},
		{schemas.StateJourneyConfirmed, "Step 2: Journey selection", c.confirmJourney},
		{schemas.StateDelayDetails, "Step 3: Arrival details", c.delayDetails},
		{schemas.StateTicketDetails, "Step 4: Ticket", c.ticketDetails},
		{schemas.StatePersonalDetails, "Step 5: Address", c.personalDetails},
	}
}

// Run executes the steps in order and stops at the first failure. A nil
// error with an aborted result means the user declined to submit.
func (c *Claim) Run(ctx context.Context) (*schemas.SubmissionResult, error) {
	if c.state != schemas.StateStart {
		return nil, fmt.Errorf("claim already ran (state %s)", c.state)
	}
	c.logger.Info("Starting refund claim.",
		zap.String("start", c.req.StartStation),
		zap.String("end", c.req.EndStation),
		zap.String("date", c.req.Date),
		zap.String("time", c.req.Time),
	)

	if err := c.open(ctx); err != nil {
		return nil, c.abort(err)
	}
	for _, s := range c.steps() {
		c.enter(s.state)
		c.logger.Info(s.title)
		if err := s.run(ctx); err != nil {
			return nil, c.abort(err)
		}
	}

	c.enter(schemas.StateAwaitingSubmitDecision)
	submit, err := c.decideSubmit(ctx)
	if err != nil {
		return nil, c.abort(err)
	}
	result := &schemas.SubmissionResult{
		RunID:              c.settings.RunID,
		ScheduledDeparture: c.observation.ScheduledDeparture,
		ScheduledArrival:   c.observation.ScheduledArrival,
	}
	if !submit {
		c.logger.Info("Not submitting.")
		c.enter(schemas.StateAborted)
		result.Aborted = true
		return result, nil
	}

	id, err := c.submit(ctx)
	if err != nil {
		return nil, c.abort(err)
	}
	c.enter(schemas.StateSubmitted)
	result.ConfirmationID = id
	return result, nil
}

func (c *Claim) enter(s schemas.State) {
	c.logger.Debug("State transition.", zap.Stringer("from", c.state), zap.Stringer("to", s))
	c.state = s
	c.history = append(c.history, s)
}

// abort records where the run stopped and moves to Aborted.
func (c *Claim) abort(err error) error {
	c.failedAt = c.state
	c.logger.Error("Claim aborted.", zap.Stringer("state", c.state), zap.Error(err))
	c.enter(schemas.StateAborted)
	return err
}

// State returns the current state.
func (c *Claim) State() schemas.State { return c.state }

// FailedAt returns the state a failed run was in when it stopped.
func (c *Claim) FailedAt() schemas.State { return c.failedAt }

// History returns every state entered so far, starting with Start.
func (c *Claim) History() []schemas.State {
	return append([]schemas.State(nil), c.history...)
}

// Observation returns the journey read in step 2.
func (c *Claim) Observation() schemas.JourneyObservation { return c.observation }

// RunID returns the run id used for logs and the result.
func (c *Claim) RunID() string { return c.settings.RunID }
