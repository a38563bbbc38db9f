package audit

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/mindwell-app/mindwell-server/internal/utils"
)

// LogRecorder writes attempts to the structured log instead of a store. Used
// when the server runs without a database.
type LogRecorder struct{}

func NewLogRecorder() *LogRecorder {
	return &LogRecorder{}
}

func (LogRecorder) Record(ctx context.Context, attempt *Attempt) error {
	log.Info().
		Str("identifier", utils.Value(attempt.Identifier)).
		Str("ip", attempt.IP).
		Bool("success", attempt.Success).
		Str("reason", attempt.Reason).
		Msg("login attempt")
	return nil
}
