// api/schemas/refund.go
package schemas

import (
	"fmt"
	"strings"
)

// -- Claim Input Schemas --

// JourneyRequest describes the journey a refund is claimed for. It is resolved
// once (from flags, prompts and the route table) before the run starts and is
// never modified afterwards.
type JourneyRequest struct {
	StartStation string `json:"startStation"`
	EndStation   string `json:"endStation"`
	// Date is rendered exactly as the site shows it: dd.mm.yyyy.
	Date string `json:"date"`
	// Time is the scheduled departure, hh:mm.
	Time string `json:"time"`
	// ArrivalTime is the actual arrival, hh:mm. Empty means the journey was not taken.
	ArrivalTime  string `json:"arrivalTime,omitempty"`
	WasCancelled bool   `json:"wasCancelled"`
	AutoSubmit   bool   `json:"autoSubmit"`
}

// HasArrival reports whether an actual arrival time was supplied.
func (r JourneyRequest) HasArrival() bool {
	return strings.TrimSpace(r.ArrivalTime) != ""
}

// TicketProfile holds the static selection codes for the ticket page.
type TicketProfile struct {
	TicketType    string `json:"ticketType" mapstructure:"ticket_type"`
	ExpiryDate    string `json:"expiryDate" mapstructure:"expiry_date"`
	CustomerGroup string `json:"customerGroup" mapstructure:"customer_group"`
	TicketDetail  string `json:"ticketDetail" mapstructure:"ticket_detail"`
	PriceCategory string `json:"priceCategory" mapstructure:"price_category"`
}

// Salutation is the form of address accepted by the claim form.
type Salutation string

const (
	SalutationHerr Salutation = "Herr"
	SalutationFrau Salutation = "Frau"
)

// salutationCodes maps each accepted salutation to the option value used by the site.
var salutationCodes = map[Salutation]string{
	SalutationHerr: "MR",
	SalutationFrau: "MS",
}

// ValidSalutations lists the accepted salutations in display order.
func ValidSalutations() []Salutation {
	return []Salutation{SalutationHerr, SalutationFrau}
}

// SiteCode returns the site's option value for the salutation.
func (s Salutation) SiteCode() (string, bool) {
	code, ok := salutationCodes[s]
	return code, ok
}

// PersonalProfile holds the claimant's contact details. Use NewPersonalProfile
// to construct one; the zero value has no valid salutation.
type PersonalProfile struct {
	Salutation Salutation `json:"salutation"`
	FirstName  string     `json:"firstName"`
	LastName   string     `json:"lastName"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone"`
	Street     string     `json:"street"`
	Zip        string     `json:"zip"`
	City       string     `json:"city"`

	siteCode string
}

// NewPersonalProfile validates the salutation and derives its site code.
// Any salutation other than Herr or Frau is a configuration error.
func NewPersonalProfile(p PersonalProfile) (PersonalProfile, error) {
	code, ok := p.Salutation.SiteCode()
	if !ok {
		valid := make([]string, 0, len(salutationCodes))
		for _, s := range ValidSalutations() {
			valid = append(valid, string(s))
		}
		return PersonalProfile{}, NewClaimError(KindConfiguration, "personal profile", "",
			fmt.Errorf("salutation %q is not valid, it must be one of: %s", p.Salutation, strings.Join(valid, ",")))
	}
	p.siteCode = code
	return p, nil
}

// SiteCode returns the derived salutation code (MR or MS). It is empty for a
// profile that was not built with NewPersonalProfile.
func (p PersonalProfile) SiteCode() string {
	return p.siteCode
}

// -- Claim Output Schemas --

// JourneyObservation is what the journey selection page shows for the first
// matching connection.
type JourneyObservation struct {
	ObservedDate       string `json:"observedDate"`
	ScheduledDeparture string `json:"scheduledDeparture"`
	ScheduledArrival   string `json:"scheduledArrival"`
}

// SubmissionResult is the outcome of a run that got as far as the submit decision.
type SubmissionResult struct {
	RunID string `json:"runId"`
	// ConfirmationID is empty when the run was aborted before submission.
	ConfirmationID     string `json:"confirmationId,omitempty"`
	ScheduledDeparture string `json:"scheduledDeparture"`
	ScheduledArrival   string `json:"scheduledArrival"`
	Aborted            bool   `json:"aborted"`
}

// Submitted reports whether the claim was filed and a confirmation id captured.
func (r *SubmissionResult) Submitted() bool {
	return r != nil && !r.Aborted && r.ConfirmationID != ""
}

// -- Run State --

// State is a position in the claim form flow. States only ever move forward.
type State int

const (
	StateStart State = iota
	StateRouteAndTime
	StateJourneyConfirmed
	StateDelayDetails
	StateTicketDetails
	StatePersonalDetails
	StateAwaitingSubmitDecision
	StateSubmitted
	StateAborted
)

var stateNames = [...]string{
	StateStart:                  "Start",
	StateRouteAndTime:           "RouteAndTime",
	StateJourneyConfirmed:       "JourneyConfirmed",
	StateDelayDetails:           "DelayDetails",
	StateTicketDetails:          "TicketDetails",
	StatePersonalDetails:        "PersonalDetails",
	StateAwaitingSubmitDecision: "AwaitingSubmitDecision",
	StateSubmitted:              "Submitted",
	StateAborted:                "Aborted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSubmitted || s == StateAborted
}
