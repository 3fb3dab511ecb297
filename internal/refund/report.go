// internal/refund/report.go
package refund

import (
	"fmt"

	"github.com/rmvrefund/rmv-refund/api/schemas"
)

// FormatOutcome renders the one-line record of a run, e.g.
//
//	01.03.2024: Wiesbaden Hbf -> Frankfurt Hbf, 08:15-08:52, actual arrival:09:05 cancelled=false vorgang=VG12345
//
// The confirmation id is empty for a run that was not submitted.
func FormatOutcome(req schemas.JourneyRequest, res *schemas.SubmissionResult) string {
	var arrival, id string
	if res != nil {
		arrival = res.ScheduledArrival
		id = res.ConfirmationID
	}
	return fmt.Sprintf("%s: %s -> %s, %s-%s, actual arrival:%s cancelled=%t vorgang=%s",
		req.Date,
		req.StartStation, req.EndStation,
		req.Time, arrival,
		req.ArrivalTime,
		req.WasCancelled,
		id,
	)
}
