package events

// Domain events emitted by the lifecycle, participant and payment
// services after each state transition. Listeners react independently;
// emitters never know who is subscribed.

type Event interface {
	Name() string
}

type EventPublished struct {
	EventID     int64
	OrganizerID int64
	Title       string
}

func (EventPublished) Name() string { return "event.published" }

type EventUnpublished struct {
	EventID        int64
	OrganizerID    int64
	Title          string
	ParticipantIDs []int64
}

func (EventUnpublished) Name() string { return "event.unpublished" }

type EventCancelled struct {
	EventID        int64
	OrganizerID    int64
	Title          string
	ParticipantIDs []int64
}

func (EventCancelled) Name() string { return "event.cancelled" }

type EventUpdated struct {
	EventID        int64
	Title          string
	ParticipantIDs []int64
}

func (EventUpdated) Name() string { return "event.updated" }

type ParticipantJoined struct {
	EventID     int64
	UserID      int64
	OrganizerID int64
	Title       string
}

func (ParticipantJoined) Name() string { return "participant.joined" }

type ParticipantLeft struct {
	EventID        int64
	UserID         int64
	Title          string
	ParticipantIDs []int64
}

func (ParticipantLeft) Name() string { return "participant.left" }

type ParticipantKicked struct {
	EventID int64
	UserID  int64
	Title   string
}

func (ParticipantKicked) Name() string { return "participant.kicked" }

type ParticipantConfirmed struct {
	EventID int64
	UserID  int64
	Title   string
}

func (ParticipantConfirmed) Name() string { return "participant.confirmed" }

type PaymentSucceeded struct {
	EventID int64
	UserID  int64
	Amount  int64
	Product string
}

func (PaymentSucceeded) Name() string { return "payment.succeeded" }

type PaymentFailed struct {
	EventID int64
	UserID  int64
	Amount  int64
	Reason  string
}

func (PaymentFailed) Name() string { return "payment.failed" }

type TransferCompleted struct {
	EventID     int64
	OrganizerID int64
	Amount      int64
}

func (TransferCompleted) Name() string { return "transfer.completed" }

type CoinsRefunded struct {
	EventID int64
	UserID  int64
	Amount  int64
}

func (CoinsRefunded) Name() string { return "coins.refunded" }
