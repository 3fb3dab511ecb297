// internal/refund/steps.go
package refund

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rmvrefund/rmv-refund/api/schemas"
)

func (c *Claim) open(ctx context.Context) error {
	if err := c.browser.Open(ctx, c.settings.URL); err != nil {
		return err
	}
	return c.browser.AcceptCookieBanner(ctx, selCookieAccept)
}

// pickStation types a station name and takes the first suggestion. The next
// field is only touched once the suggestion list has closed.
func (c *Claim) pickStation(ctx context.Context, field, suggestion, name string) error {
	if err := c.browser.TypeInto(ctx, field, name); err != nil {
		return err
	}
	if err := c.browser.WaitAndClick(ctx, suggestion); err != nil {
		return err
	}
	return c.browser.WaitForDisappearance(ctx, suggestion)
}

func (c *Claim) routeAndTime(ctx context.Context) error {
	if err := c.pickStation(ctx, selStartStation, selStartSuggestion, c.req.StartStation); err != nil {
		return err
	}
	if err := c.pickStation(ctx, selEndStation, selEndSuggestion, c.req.EndStation); err != nil {
		return err
	}
	if err := c.browser.TypeInto(ctx, selTripDate, c.req.Date); err != nil {
		return err
	}
	if err := c.browser.TypeInto(ctx, selTripTime, c.req.Time); err != nil {
		return err
	}
	return c.browser.Click(ctx, selStep1Next)
}

func (c *Claim) confirmJourney(ctx context.Context) error {
	if err := c.browser.WaitVisible(ctx, selRouteGroup); err != nil {
		return err
	}

	var obs schemas.JourneyObservation
	for _, field := range []struct {
		selector string
		dst      *string
	}{
		{within(selRouteGroup, selStopDate), &obs.ObservedDate},
		{within(selRouteGroup, selStopDeparture), &obs.ScheduledDeparture},
		{within(selRouteGroup, selStopArrival), &obs.ScheduledArrival},
	} {
		text, err := c.browser.ReadText(ctx, field.selector)
		if err != nil {
			return err
		}
		*field.dst = text
	}
	c.observation = obs

	if err := Check(obs, c.req); err != nil {
		return err
	}
	c.logger.Info(fmt.Sprintf("Journey found. Date=%s Departure=%s Arrival=%s",
		obs.ObservedDate, obs.ScheduledDeparture, obs.ScheduledArrival))

	// Clicks near the bottom edge of the page get lost, so scroll past the
	// results to the cancel button first.
	selectLink := within(selRouteGroup, selJourneySelect)
	if err := c.browser.ScrollIntoView(ctx, selCancelButton); err != nil {
		return err
	}
	if err := c.browser.ScrollIntoView(ctx, selectLink); err != nil {
		return err
	}
	return c.browser.Click(ctx, selectLink)
}

func (c *Claim) delayDetails(ctx context.Context) error {
	if c.req.WasCancelled {
		if err := c.browser.WaitAndClick(ctx, selOutageOption); err != nil {
			return err
		}
	}

	if c.req.HasArrival() {
		if err := c.browser.TypeInto(ctx, selActualArrival, c.req.ArrivalTime); err != nil {
			return err
		}
	} else {
		c.logger.Info("No arrival time - saying we did not travel")
		if err := c.browser.WaitAndClick(ctx, selDidNotTravel); err != nil {
			return err
		}
	}
	return c.browser.Click(ctx, selNextStep)
}

func (c *Claim) ticketDetails(ctx context.Context) error {
	t := c.ticket
	if err := c.browser.SelectOption(ctx, selTicketType, t.TicketType); err != nil {
		return err
	}
	if err := c.browser.TypeInto(ctx, selExpiryDate, t.ExpiryDate); err != nil {
		return err
	}
	for _, sel := range []struct{ selector, value string }{
		{selCustomerGroup, t.CustomerGroup},
		{selTicketDetail, t.TicketDetail},
		{selPriceCategory, t.PriceCategory},
	} {
		if err := c.browser.SelectOption(ctx, sel.selector, sel.value); err != nil {
			return err
		}
	}
	return c.browser.Click(ctx, selNextStep)
}

func (c *Claim) personalDetails(ctx context.Context) error {
	p := c.personal
	if err := c.browser.SelectOption(ctx, selFormOfAddress, p.SiteCode()); err != nil {
		return err
	}
	for _, field := range []struct{ selector, value string }{
		{selFirstName, p.FirstName},
		{selLastName, p.LastName},
		{selEmail, p.Email},
		{selEmailConfirmation, p.Email},
		{selPhone, p.Phone},
		{selStreet, p.Street},
		{selZip, p.Zip},
		{selCity, p.City},
	} {
		if err := c.browser.TypeInto(ctx, field.selector, field.value); err != nil {
			return err
		}
	}
	if err := c.browser.Click(ctx, selNextStep); err != nil {
		return err
	}
	return c.acceptGuidelines(ctx)
}

// acceptGuidelines takes consent from the configuration, or asks when none
// is configured. Without consent the run ends before the submit decision.
func (c *Claim) acceptGuidelines(ctx context.Context) error {
	var accepted bool
	if c.settings.GuidelinesAgreed != nil {
		accepted = *c.settings.GuidelinesAgreed
	} else {
		var err error
		accepted, err = c.prompt.Confirm(ctx, "Do you accept the guidelines?")
		if err != nil {
			return fmt.Errorf("guidelines prompt: %w", err)
		}
	}
	if !accepted {
		return schemas.NewClaimError(schemas.KindGuidelinesNotAccepted, "accept guidelines", selGuidelinesAgreed,
			fmt.Errorf("guidelines must be accepted first"))
	}
	// The summary page loads after the address page, so wait for the checkbox.
	return c.browser.WaitAndClick(ctx, selGuidelinesAgreed)
}

func (c *Claim) decideSubmit(ctx context.Context) (bool, error) {
	if c.req.AutoSubmit {
		return true, nil
	}
	ok, err := c.prompt.Confirm(ctx, "Do you want to continue?")
	if err != nil {
		return false, fmt.Errorf("submit prompt: %w", err)
	}
	return ok, nil
}

// submit fires the final click. From here on the claim may exist on the
// server, so a missing confirmation is an extraction error, not a timeout,
// and so is an interrupt.
func (c *Claim) submit(ctx context.Context) (string, error) {
	c.logger.Info("Submit")
	if err := c.browser.Click(ctx, selNextStep); err != nil {
		if ctx.Err() != nil {
			return "", schemas.NewClaimError(schemas.KindExtraction, schemas.OpSubmit, selNextStep, err)
		}
		return "", schemas.NewClaimError(schemas.KindOf(err), schemas.OpSubmit, selNextStep, err)
	}

	text, err := c.browser.WaitForText(ctx, selConfirmation)
	if err != nil {
		return "", schemas.NewClaimError(schemas.KindExtraction, "read confirmation", selConfirmation, err)
	}

	id, err := ExtractConfirmationID(text)
	if err != nil {
		return "", err
	}
	c.logger.Info("Confirmation no: "+id, zap.String("confirmation_id", id))
	return id, nil
}
