package notification

import (
	"context"
	"fmt"

	"meetuply/internal/domain"
	"meetuply/internal/events"
)

// Subscribe wires the service to the domain event bus: every state
// transition that affects a user becomes a persisted notification.
func Subscribe(bus *events.Bus, svc *Service) {
	bus.Subscribe(func(ctx context.Context, e events.Event) {
		switch ev := e.(type) {
		case events.ParticipantJoined:
			svc.Notify(ctx, ev.OrganizerID, domain.NotifMemberJoined,
				"New participant",
				fmt.Sprintf("Someone joined %q", ev.Title),
				map[string]int64{"event_id": ev.EventID, "user_id": ev.UserID})

		case events.ParticipantLeft:
			svc.Notify(ctx, ev.UserID, domain.NotifMemberLeft,
				"You left the event",
				fmt.Sprintf("You are no longer signed up for %q", ev.Title),
				map[string]int64{"event_id": ev.EventID})

		case events.ParticipantKicked:
			svc.Notify(ctx, ev.UserID, domain.NotifMemberKicked,
				"Removed from event",
				fmt.Sprintf("The organizer removed you from %q", ev.Title),
				map[string]int64{"event_id": ev.EventID})

		case events.ParticipantConfirmed:
			svc.Notify(ctx, ev.UserID, domain.NotifMemberConfirmed,
				"Attendance confirmed",
				fmt.Sprintf("Your attendance at %q was confirmed", ev.Title),
				map[string]int64{"event_id": ev.EventID})

		case events.EventCancelled:
			svc.NotifyMany(ctx, ev.ParticipantIDs, domain.NotifEventCancelled,
				"Event cancelled",
				fmt.Sprintf("%q was cancelled; your payment has been refunded", ev.Title),
				map[string]int64{"event_id": ev.EventID})

		case events.EventUnpublished:
			svc.NotifyMany(ctx, ev.ParticipantIDs, domain.NotifEventCancelled,
				"Event withdrawn",
				fmt.Sprintf("%q was withdrawn by the organizer; your payment has been refunded", ev.Title),
				map[string]int64{"event_id": ev.EventID})

		case events.EventUpdated:
			svc.NotifyMany(ctx, ev.ParticipantIDs, domain.NotifEventUpdated,
				"Event updated",
				fmt.Sprintf("%q was updated", ev.Title),
				map[string]int64{"event_id": ev.EventID})

		case events.PaymentSucceeded:
			svc.Notify(ctx, ev.UserID, domain.NotifPaymentSucceeded,
				"Payment confirmed",
				fmt.Sprintf("Your payment of %d coins was confirmed", ev.Amount),
				map[string]int64{"event_id": ev.EventID})

		case events.PaymentFailed:
			svc.Notify(ctx, ev.UserID, domain.NotifPaymentFailed,
				"Payment failed",
				ev.Reason,
				map[string]int64{"event_id": ev.EventID})

		case events.TransferCompleted:
			svc.Notify(ctx, ev.OrganizerID, domain.NotifTransferCompleted,
				"Payout sent",
				fmt.Sprintf("Your share of %d coins is on its way to your card", ev.Amount),
				map[string]int64{"event_id": ev.EventID})

		case events.CoinsRefunded:
			svc.Notify(ctx, ev.UserID, domain.NotifCoinsRefunded,
				"Refund issued",
				fmt.Sprintf("%d coins were refunded to you", ev.Amount),
				map[string]int64{"event_id": ev.EventID})
		}
	})
}
