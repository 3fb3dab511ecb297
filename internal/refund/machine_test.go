// internal/refund/machine_test.go
package refund

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rmvrefund/rmv-refund/api/schemas"
)

const testURL = "https://claims.example/ten-min-step1.action"

func testRequest() schemas.JourneyRequest {
	return schemas.JourneyRequest{
		StartStation: "Wiesbaden Hbf",
		EndStation:   "Frankfurt (Main) Hauptbahnhof",
		Date:         "01.03.2024",
		Time:         "08:15",
		ArrivalTime:  "09:05",
	}
}

func testTicket() schemas.TicketProfile {
	return schemas.TicketProfile{
		TicketType:    "TT_JAHRESKARTE",
		ExpiryDate:    "31.12.2024",
		CustomerGroup: "ERW",
		TicketDetail:  "TD_1",
		PriceCategory: "PK_3",
	}
}

func testPersonal(t *testing.T) schemas.PersonalProfile {
	t.Helper()
	p, err := schemas.NewPersonalProfile(schemas.PersonalProfile{
		Salutation: schemas.SalutationFrau,
		FirstName:  "Erika",
		LastName:   "Mustermann",
		Email:      "erika@example.org",
		Phone:      "0611 123456",
		Street:     "Hauptstr. 1",
		Zip:        "65183",
		City:       "Wiesbaden",
	})
	require.NoError(t, err)
	return p
}

// pageTexts is what the fake site renders for the journey and confirmation.
func pageTexts(date, departure string) map[string]string {
	return map[string]string{
		within(selRouteGroup, selStopDate):      date,
		within(selRouteGroup, selStopDeparture): departure,
		within(selRouteGroup, selStopArrival):   "08:52",
		selConfirmation:                         "Ihre Vorgangsnummer lautet VG12345",
	}
}

func boolPtr(b bool) *bool { return &b }

func newTestClaim(t *testing.T, b Browser, prompt Confirmer, settings Settings, req schemas.JourneyRequest) *Claim {
	t.Helper()
	if settings.URL == "" {
		settings.URL = testURL
	}
	c, err := NewClaim(b, prompt, settings, req, testTicket(), testPersonal(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

// fullFlow is every browser call of a submitted claim with an arrival time.
func fullFlow() []action {
	group := func(sel string) string { return within(selRouteGroup, sel) }
	return []action{
		{"open", "", testURL},
		{"cookies", selCookieAccept, ""},
		// Step 1
		{"type", selStartStation, "Wiesbaden Hbf"},
		{"waitclick", selStartSuggestion, ""},
		{"gone", selStartSuggestion, ""},
		{"type", selEndStation, "Frankfurt (Main) Hauptbahnhof"},
		{"waitclick", selEndSuggestion, ""},
		{"gone", selEndSuggestion, ""},
		{"type", selTripDate, "01.03.2024"},
		{"type", selTripTime, "08:15"},
		{"click", selStep1Next, ""},
		// Step 2
		{"visible", selRouteGroup, ""},
		{"read", group(selStopDate), ""},
		{"read", group(selStopDeparture), ""},
		{"read", group(selStopArrival), ""},
		{"scroll", selCancelButton, ""},
		{"scroll", group(selJourneySelect), ""},
		{"click", group(selJourneySelect), ""},
		// Step 3
		{"type", selActualArrival, "09:05"},
		{"click", selNextStep, ""},
		// Step 4
		{"select", selTicketType, "TT_JAHRESKARTE"},
		{"type", selExpiryDate, "31.12.2024"},
		{"select", selCustomerGroup, "ERW"},
		{"select", selTicketDetail, "TD_1"},
		{"select", selPriceCategory, "PK_3"},
		{"click", selNextStep, ""},
		// Step 5
		{"select", selFormOfAddress, "MS"},
		{"type", selFirstName, "Erika"},
		{"type", selLastName, "Mustermann"},
		{"type", selEmail, "erika@example.org"},
		{"type", selEmailConfirmation, "erika@example.org"},
		{"type", selPhone, "0611 123456"},
		{"type", selStreet, "Hauptstr. 1"},
		{"type", selZip, "65183"},
		{"type", selCity, "Wiesbaden"},
		{"click", selNextStep, ""},
		{"waitclick", selGuidelinesAgreed, ""},
		// Submit
		{"click", selNextStep, ""},
		{"waittext", selConfirmation, ""},
	}
}

func TestClaimScenarios(t *testing.T) {
	t.Run("A_SubmittedWithConfirmationID", func(t *testing.T) {
		b := newFakeBrowser(pageTexts("01.03.2024", "08:15"))
		prompt := &mockConfirmer{}
		prompt.On("Confirm", mock.Anything, "Do you want to continue?").Return(true, nil).Once()

		c := newTestClaim(t, b, prompt, Settings{GuidelinesAgreed: boolPtr(true), RunID: "run-a"}, testRequest())
		res, err := c.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, "VG12345", res.ConfirmationID)
		assert.Equal(t, "08:15", res.ScheduledDeparture)
		assert.Equal(t, "08:52", res.ScheduledArrival)
		assert.Equal(t, "run-a", res.RunID)
		assert.True(t, res.Submitted())
		assert.Equal(t, schemas.StateSubmitted, c.State())

		if diff := cmp.Diff(fullFlow(), b.actions); diff != "" {
			t.Errorf("browser calls mismatch (-want +got):\n%s", diff)
		}
		prompt.AssertExpectations(t)
	})

	t.Run("B_DateMismatchAbortsAtJourneyConfirmed", func(t *testing.T) {
		b := newFakeBrowser(pageTexts("02.03.2024", "08:15"))
		prompt := &mockConfirmer{}

		c := newTestClaim(t, b, prompt, Settings{GuidelinesAgreed: boolPtr(true)}, testRequest())
		res, err := c.Run(context.Background())
		require.Error(t, err)
		assert.Nil(t, res)
		assert.True(t, schemas.IsKind(err, schemas.KindPrecondition), "got %v", err)
		assert.Contains(t, err.Error(), "02.03.2024")

		assert.Equal(t, schemas.StateJourneyConfirmed, c.FailedAt())
		assert.Equal(t, schemas.StateAborted, c.State())

		// The last page interaction is the third read; nothing is clicked afterwards.
		last := b.actions[len(b.actions)-1]
		assert.Equal(t, action{"read", within(selRouteGroup, selStopArrival), ""}, last)
		assert.False(t, b.touched(selTicketType))
		assert.False(t, b.touched(selFormOfAddress))
		prompt.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
	})

	t.Run("B_DepartureMismatch", func(t *testing.T) {
		b := newFakeBrowser(pageTexts("01.03.2024", "08:16"))
		c := newTestClaim(t, b, &mockConfirmer{}, Settings{GuidelinesAgreed: boolPtr(true)}, testRequest())

		_, err := c.Run(context.Background())
		assert.True(t, schemas.IsKind(err, schemas.KindPrecondition), "got %v", err)
		assert.Contains(t, err.Error(), "departure time (08:16)")
		assert.False(t, b.touched(within(selRouteGroup, selJourneySelect)))
	})

	t.Run("C_CancelledWithoutArrival", func(t *testing.T) {
		req := testRequest()
		req.ArrivalTime = ""
		req.WasCancelled = true
		req.AutoSubmit = true

		b := newFakeBrowser(pageTexts("01.03.2024", "08:15"))
		c := newTestClaim(t, b, &mockConfirmer{}, Settings{GuidelinesAgreed: boolPtr(true)}, req)
		_, err := c.Run(context.Background())
		require.NoError(t, err)

		var step3 []action
		for i, a := range b.actions {
			if a.Selector == selOutageOption {
				step3 = b.actions[i : i+3]
				break
			}
		}
		want := []action{
			{"waitclick", selOutageOption, ""},
			{"waitclick", selDidNotTravel, ""},
			{"click", selNextStep, ""},
		}
		if diff := cmp.Diff(want, step3); diff != "" {
			t.Errorf("delay details mismatch (-want +got):\n%s", diff)
		}
		assert.False(t, b.touched(selActualArrival))
	})

	t.Run("D_GuidelinesDeclined", func(t *testing.T) {
		b := newFakeBrowser(pageTexts("01.03.2024", "08:15"))
		prompt := &mockConfirmer{}
		prompt.On("Confirm", mock.Anything, "Do you accept the guidelines?").Return(false, nil).Once()

		c := newTestClaim(t, b, prompt, Settings{}, testRequest())
		res, err := c.Run(context.Background())
		require.Error(t, err)
		assert.Nil(t, res)
		assert.True(t, schemas.IsKind(err, schemas.KindGuidelinesNotAccepted), "got %v", err)

		assert.Equal(t, schemas.StatePersonalDetails, c.FailedAt())
		assert.NotContains(t, c.History(), schemas.StateAwaitingSubmitDecision)
		assert.False(t, b.touched(selGuidelinesAgreed))
		assert.False(t, b.touched(selConfirmation))
		prompt.AssertExpectations(t)
	})
}

func TestClaimSubmitDecision(t *testing.T) {
	t.Run("DeclinedIsAbortedWithoutError", func(t *testing.T) {
		b := newFakeBrowser(pageTexts("01.03.2024", "08:15"))
		prompt := &mockConfirmer{}
		prompt.On("Confirm", mock.Anything, "Do you accept the guidelines?").Return(true, nil).Once()
		prompt.On("Confirm", mock.Anything, "Do you want to continue?").Return(false, nil).Once()

		c := newTestClaim(t, b, prompt, Settings{}, testRequest())
		res, err := c.Run(context.Background())
		require.NoError(t, err)
		require.NotNil(t, res)

		assert.True(t, res.Aborted)
		assert.Empty(t, res.ConfirmationID)
		assert.Equal(t, "08:52", res.ScheduledArrival)
		assert.False(t, res.Submitted())
		assert.Equal(t, schemas.StateAborted, c.State())
		assert.False(t, b.touched(selConfirmation))
		// The guidelines box is still ticked before the decision.
		assert.True(t, b.touched(selGuidelinesAgreed))
		prompt.AssertExpectations(t)
	})

	t.Run("AutoSubmitSkipsPrompt", func(t *testing.T) {
		req := testRequest()
		req.AutoSubmit = true
		b := newFakeBrowser(pageTexts("01.03.2024", "08:15"))
		prompt := &mockConfirmer{}

		c := newTestClaim(t, b, prompt, Settings{GuidelinesAgreed: boolPtr(true)}, req)
		res, err := c.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "VG12345", res.ConfirmationID)
		prompt.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
	})

	t.Run("ConfiguredRefusalDoesNotPrompt", func(t *testing.T) {
		b := newFakeBrowser(pageTexts("01.03.2024", "08:15"))
		prompt := &mockConfirmer{}

		c := newTestClaim(t, b, prompt, Settings{GuidelinesAgreed: boolPtr(false)}, testRequest())
		_, err := c.Run(context.Background())
		assert.True(t, schemas.IsKind(err, schemas.KindGuidelinesNotAccepted), "got %v", err)
		prompt.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
	})

	t.Run("PromptErrorAborts", func(t *testing.T) {
		b := newFakeBrowser(pageTexts("01.03.2024", "08:15"))
		prompt := &mockConfirmer{}
		prompt.On("Confirm", mock.Anything, "Do you want to continue?").Return(false, errors.New("stdin closed")).Once()

		c := newTestClaim(t, b, prompt, Settings{GuidelinesAgreed: boolPtr(true)}, testRequest())
		_, err := c.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stdin closed")
		assert.Equal(t, schemas.StateAwaitingSubmitDecision, c.FailedAt())
	})

	t.Run("InterruptedWhileWaitingForConfirmation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b := newFakeBrowser(pageTexts("01.03.2024", "08:15"))
		b.during["waittext "+selConfirmation] = func() error {
			cancel()
			return fmt.Errorf("wait for text: %w", ctx.Err())
		}
		req := testRequest()
		req.AutoSubmit = true

		c := newTestClaim(t, b, &mockConfirmer{}, Settings{GuidelinesAgreed: boolPtr(true)}, req)
		_, err := c.Run(ctx)
		require.Error(t, err)

		last := b.actions[len(b.actions)-2]
		assert.Equal(t, action{Op: "click", Selector: selNextStep}, last, "the submit click fired before the wait")
		assert.Equal(t, schemas.KindExtraction, schemas.KindOf(err))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("InterruptedDuringSubmitClick", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b := newFakeBrowser(pageTexts("01.03.2024", "08:15"))
		submitted := false
		b.during["click "+selNextStep] = func() error {
			// Only the last next-step click is the submit.
			if !b.touched(selGuidelinesAgreed) {
				return nil
			}
			submitted = true
			cancel()
			return ctx.Err()
		}
		req := testRequest()
		req.AutoSubmit = true

		c := newTestClaim(t, b, &mockConfirmer{}, Settings{GuidelinesAgreed: boolPtr(true)}, req)
		_, err := c.Run(ctx)
		require.True(t, submitted)
		assert.Equal(t, schemas.KindExtraction, schemas.KindOf(err))
		assert.False(t, b.touched(selConfirmation))
	})

	t.Run("SubmitClickFailsWithSubmitHint", func(t *testing.T) {
		b := newFakeBrowser(pageTexts("01.03.2024", "08:15"))
		b.during["click "+selNextStep] = func() error {
			if !b.touched(selGuidelinesAgreed) {
				return nil
			}
			return schemas.NewClaimError(schemas.KindTimeout, "click", selNextStep, context.DeadlineExceeded)
		}
		req := testRequest()
		req.AutoSubmit = true

		c := newTestClaim(t, b, &mockConfirmer{}, Settings{GuidelinesAgreed: boolPtr(true)}, req)
		_, err := c.Run(context.Background())
		require.Error(t, err)
		assert.Equal(t, schemas.KindTimeout, schemas.KindOf(err))
		assert.NotEqual(t, schemas.Hint(schemas.KindTimeout), schemas.HintFor(err))
		assert.Contains(t, schemas.HintFor(err), "may or may not have been filed")
	})
}

func TestClaimConfirmationFailures(t *testing.T) {
	t.Run("EmptyConfirmationText", func(t *testing.T) {
		texts := pageTexts("01.03.2024", "08:15")
		texts[selConfirmation] = "   "
		req := testRequest()
		req.AutoSubmit = true

		c := newTestClaim(t, newFakeBrowser(texts), &mockConfirmer{}, Settings{GuidelinesAgreed: boolPtr(true)}, req)
		_, err := c.Run(context.Background())
		assert.True(t, schemas.IsKind(err, schemas.KindExtraction), "got %v", err)
	})

	t.Run("ConfirmationNeverAppears", func(t *testing.T) {
		b := newFakeBrowser(pageTexts("01.03.2024", "08:15"))
		b.failOn["waittext "+selConfirmation] = schemas.NewClaimError(schemas.KindTimeout, "wait for text", selConfirmation, context.DeadlineExceeded)
		req := testRequest()
		req.AutoSubmit = true

		c := newTestClaim(t, b, &mockConfirmer{}, Settings{GuidelinesAgreed: boolPtr(true)}, req)
		_, err := c.Run(context.Background())
		require.Error(t, err)
		// The submit click already fired, so the run reports an ambiguous outcome.
		assert.Equal(t, schemas.KindExtraction, schemas.KindOf(err))
		assert.Equal(t, schemas.StateAwaitingSubmitDecision, c.FailedAt())
	})
}

func TestClaimStepOrdering(t *testing.T) {
	wantHistory := []schemas.State{
		schemas.StateStart,
		schemas.StateRouteAndTime,
		schemas.StateJourneyConfirmed,
		schemas.StateDelayDetails,
		schemas.StateTicketDetails,
		schemas.StatePersonalDetails,
		schemas.StateAwaitingSubmitDecision,
		schemas.StateSubmitted,
	}

	for _, tc := range []struct {
		name      string
		arrival   string
		cancelled bool
	}{
		{"ArrivalNotCancelled", "09:05", false},
		{"ArrivalCancelled", "09:05", true},
		{"NoArrivalNotCancelled", "", false},
		{"NoArrivalCancelled", "", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := testRequest()
			req.ArrivalTime = tc.arrival
			req.WasCancelled = tc.cancelled
			req.AutoSubmit = true

			b := newFakeBrowser(pageTexts("01.03.2024", "08:15"))
			c := newTestClaim(t, b, &mockConfirmer{}, Settings{GuidelinesAgreed: boolPtr(true)}, req)
			_, err := c.Run(context.Background())
			require.NoError(t, err)

			if diff := cmp.Diff(wantHistory, c.History()); diff != "" {
				t.Errorf("state history mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tc.cancelled, b.touched(selOutageOption))
			assert.Equal(t, tc.arrival != "", b.touched(selActualArrival))
			assert.Equal(t, tc.arrival == "", b.touched(selDidNotTravel))
		})
	}
}

func TestClaimStopsAtFirstFailure(t *testing.T) {
	for _, tc := range []struct {
		name     string
		failKey  string
		kind     schemas.ErrorKind
		failedAt schemas.State
	}{
		{"Navigation", "open ", schemas.KindNavigation, schemas.StateStart},
		{"Suggestion", "waitclick " + selStartSuggestion, schemas.KindTimeout, schemas.StateRouteAndTime},
		{"ResultsMissing", "visible " + selRouteGroup, schemas.KindTimeout, schemas.StateJourneyConfirmed},
		{"TicketOption", "select " + selCustomerGroup, schemas.KindTimeout, schemas.StateTicketDetails},
		{"NextButton", "click " + selNextStep, schemas.KindElementNotFound, schemas.StateDelayDetails},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := newFakeBrowser(pageTexts("01.03.2024", "08:15"))
			b.failOn[tc.failKey] = schemas.NewClaimError(tc.kind, "fake", "", nil)

			c := newTestClaim(t, b, &mockConfirmer{}, Settings{GuidelinesAgreed: boolPtr(true)}, testRequest())
			_, err := c.Run(context.Background())
			require.Error(t, err)
			assert.Equal(t, tc.kind, schemas.KindOf(err))
			assert.Equal(t, tc.failedAt, c.FailedAt())

			// No retry: the failing call is the last one made.
			last := b.actions[len(b.actions)-1]
			assert.Equal(t, tc.failKey, last.Op+" "+last.Selector)
		})
	}
}

func TestClaimRunsOnce(t *testing.T) {
	req := testRequest()
	req.AutoSubmit = true
	c := newTestClaim(t, newFakeBrowser(pageTexts("01.03.2024", "08:15")), &mockConfirmer{}, Settings{GuidelinesAgreed: boolPtr(true)}, req)
	_, err := c.Run(context.Background())
	require.NoError(t, err)

	_, err = c.Run(context.Background())
	assert.ErrorContains(t, err, "already ran")
}

func TestNewClaimValidation(t *testing.T) {
	personal := testPersonal(t)
	b := newFakeBrowser(nil)

	_, err := NewClaim(b, &mockConfirmer{}, Settings{URL: testURL}, testRequest(), testTicket(),
		schemas.PersonalProfile{Salutation: "Dr."}, zaptest.NewLogger(t))
	assert.True(t, schemas.IsKind(err, schemas.KindConfiguration), "got %v", err)

	req := testRequest()
	req.Date = ""
	_, err = NewClaim(b, &mockConfirmer{}, Settings{URL: testURL}, req, testTicket(), personal, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "date is required")

	_, err = NewClaim(b, &mockConfirmer{}, Settings{}, testRequest(), testTicket(), personal, zaptest.NewLogger(t))
	assert.True(t, schemas.IsKind(err, schemas.KindConfiguration), "got %v", err)

	c, err := NewClaim(b, &mockConfirmer{}, Settings{URL: testURL}, testRequest(), testTicket(), personal, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.NotEmpty(t, c.RunID())
	assert.Empty(t, b.actions, "constructing a claim must not touch the browser")
}
