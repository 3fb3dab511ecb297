// internal/refund/selectors.go
package refund

// CSS selectors of the RMV "10-Minuten-Garantie" claim form. They are the
// only knowledge this package has of the site's markup.
const (
	selCookieAccept = "#cookie-bar a.cb-enable"

	// Step 1: connection.
	selStartStation    = "input#startStation"
	selStartSuggestion = "div#startResult > div.station"
	selEndStation      = "input#endStation"
	selEndSuggestion   = "div#endResult > div.station"
	selTripDate        = "input#tripDate"
	selTripTime        = "input#tripTime"
	selStep1Next       = `button[name="action:step1-next"]`

	// Step 2: journey selection. The row selectors are relative to the route group.
	selRouteGroup    = "#ten-min-step2 #routesTable div.route-group:first-of-type"
	selStopDate      = "ul.route-stop:first-child li.stop-date"
	selStopDeparture = "ul.route-stop:first-child li.stop-departure"
	selStopArrival   = "ul.route-stop:last-child li.stop-arrival"
	selJourneySelect = "ul.route-stop:last-child li.stop-helper a"
	selCancelButton  = "#cancelButton"

	// Step 3: delay details.
	selOutageOption  = "label.widgetRadio[for=delayedOptionsOUTAGE]"
	selActualArrival = "input#actualArrival"
	selDidNotTravel  = "#alternative"

	// Step 4: ticket.
	selTicketType    = "#ten-min-step4 #ticketType"
	selExpiryDate    = "#ticketDetails input#selectedExpiryDate"
	selCustomerGroup = "#selectedCustomerGroup"
	selTicketDetail  = "#selectedTicketDetail"
	selPriceCategory = "#selectedPriceCategory"

	// Step 5: address and consent.
	selFormOfAddress     = "select#formOfAddress"
	selFirstName         = "input#firstName"
	selLastName          = "input#lastName"
	selEmail             = "input#email"
	selEmailConfirmation = "input#emailConfirmation"
	selPhone             = "input#phoneNo"
	selStreet            = "input#streetNumber"
	selZip               = "input#zip"
	selCity              = "input#city"
	selGuidelinesAgreed  = "input#guidelinesAgreed"

	// Shared "next" button of steps 3 to 6; on the summary page it submits.
	selNextStep = "button#nextStep"

	// Confirmation page.
	selConfirmation = "#ten-min-step7 div#embeddedContent p strong"
)

// within scopes a relative selector to the first route group.
func within(parent, child string) string {
	return parent + " " + child
}
