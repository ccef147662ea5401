package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// HandleSendEmailTask processes queued emails. Delivery is logged only until an
// SMTP relay is provisioned for the portal.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	slog.InfoContext(ctx, "send email",
		slog.String("to", payload.To),
		slog.String("subject", payload.Subject))
	return nil
}
