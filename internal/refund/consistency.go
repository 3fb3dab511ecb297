// internal/refund/consistency.go
package refund

import (
	"fmt"

	"github.com/rmvrefund/rmv-refund/api/schemas"
)

// Check compares the journey the site offers with the one requested. Both
// the date and the departure time must match exactly as rendered; any
// difference means a claim would be filed for the wrong train.
func Check(obs schemas.JourneyObservation, req schemas.JourneyRequest) error {
	if obs.ObservedDate != req.Date {
		return schemas.NewClaimError(schemas.KindPrecondition, "journey selection", selRouteGroup,
			fmt.Errorf("the journey date (%s) is not the same as the input date (%s)", obs.ObservedDate, req.Date))
	}
	if obs.ScheduledDeparture != req.Time {
		return schemas.NewClaimError(schemas.KindPrecondition, "journey selection", selRouteGroup,
			fmt.Errorf("the journey departure time (%s) is not the same as the input time (%s)", obs.ScheduledDeparture, req.Time))
	}
	return nil
}
