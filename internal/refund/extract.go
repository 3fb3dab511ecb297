// internal/refund/extract.go
package refund

import (
	"errors"
	"strings"

	"github.com/rmvrefund/rmv-refund/api/schemas"
)

// ExtractConfirmationID returns the last whitespace separated token of the
// confirmation page's announcement, e.g. "Ihre Vorgangsnummer lautet VG12345"
// yields "VG12345".
func ExtractConfirmationID(text string) (string, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", schemas.NewClaimError(schemas.KindExtraction, "extract confirmation id", selConfirmation,
			errors.New("confirmation text is empty"))
	}
	return fields[len(fields)-1], nil
}
