package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/richd0tcom/waypoint/internal/audit"
	"github.com/richd0tcom/waypoint/internal/domain"
	"github.com/richd0tcom/waypoint/internal/metrics"
)

// Tracker advances command lifecycle from uplinks. When an uplink
// carries an Ack field it names the exact command; otherwise the most
// recent PUBLISHED command for the device is assumed delivered, which
// is correct only while at most one command is outstanding.
type Tracker struct {
	commands domain.CommandStore
	feed     *audit.Feed
	log      *slog.Logger
	now      func() time.Time
}

func NewTracker(commands domain.CommandStore, feed *audit.Feed, log *slog.Logger) *Tracker {
	return &Tracker{
		commands: commands,
		feed:     feed,
		log:      log,
		now:      time.Now,
	}
}

// OnUplink is invoked once per inbound telemetry message. Best effort:
// correlation failures are logged, never propagated, and races with a
// concurrent dispatch are tolerated.
func (t *Tracker) OnUplink(ctx context.Context, imei string, rec *domain.TelemetryRecord) {
	var (
		cmd  *domain.DeviceCommand
		mode string
		err  error
	)

	if rec != nil && rec.Ack != "" {
		cmd, err = t.commands.FindPublished(ctx, imei, rec.Ack)
		mode = "ack"
	} else {
		cmd, err = t.commands.LatestPublished(ctx, imei)
		mode = "heuristic"
	}
	if err != nil {
		t.log.Warn("command correlation lookup failed", "imei", imei, "error", err)
		return
	}
	if cmd == nil {
		return
	}

	at := t.now().UTC()
	if err := t.commands.MarkDelivered(ctx, cmd.CmdID, at); err != nil {
		t.log.Warn("failed to mark command delivered", "imei", imei, "cmd_id", cmd.CmdID, "error", err)
		return
	}

	metrics.IncCorrelation(mode)
	t.feed.Emit(audit.Event{Kind: audit.KindDelivered, IMEI: imei, CmdID: cmd.CmdID, Command: cmd.Command})
	t.log.Info("command delivered", "imei", imei, "command", cmd.Command, "cmd_id", cmd.CmdID, "mode", mode)
}
