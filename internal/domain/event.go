package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventKind tags the state change an EventRecord describes.
type EventKind string

const (
	EventResourceChange EventKind = "ResourceChange"
	EventTrade          EventKind = "Trade"
	EventPurchase       EventKind = "Purchase"
	EventRefund         EventKind = "Refund"
	EventTake           EventKind = "Take"
	EventMaritimeTrade  EventKind = "MaritimeTrade"
	EventMonopoly       EventKind = "Monopoly"
	EventDevCardPlayed  EventKind = "DevCardPlayed"
	EventPlayerAdded    EventKind = "PlayerAdded"
	EventPlayerRemoved  EventKind = "PlayerRemoved"
	EventGameStarted    EventKind = "GameStarted"
	EventGameDeleted    EventKind = "GameDeleted"
	EventGeneric        EventKind = "Generic"
)

// UndoDescriptor is a replayable request that reverses the action an event records.
// The core never interprets it.
type UndoDescriptor struct {
	Method   string          `json:"method"`
	Route    string          `json:"route"`
	Body     json.RawMessage `json:"body,omitempty"`
	BodyKind string          `json:"body_kind"`
	Token    string          `json:"token"`
}

// EventDraft collects the fields of an event before a Game seals it with a
// sequence number. Drafts are values; every With* call returns a modified copy.
type EventDraft struct {
	kind         EventKind
	player       string
	counterparty string
	delta        Resources
	counterDelta Resources
	resource     *ResourceKind
	entitlement  *EntitlementKind
	devCard      *DevCardKind
	amount       int
	message      string
	undo         *UndoDescriptor
}

// NewEvent starts a draft for the given kind and acting player.
func NewEvent(kind EventKind, player string) EventDraft {
	return EventDraft{kind: kind, player: player}
}

func (d EventDraft) WithCounterparty(name string) EventDraft {
	d.counterparty = name
	return d
}

// WithDelta records the acting player's resource change.
func (d EventDraft) WithDelta(delta Resources) EventDraft {
	d.delta = delta
	return d
}

// WithCounterDelta records the counterparty's resource change.
func (d EventDraft) WithCounterDelta(delta Resources) EventDraft {
	d.counterDelta = delta
	return d
}

func (d EventDraft) WithResource(k ResourceKind) EventDraft {
	d.resource = &k
	return d
}

func (d EventDraft) WithEntitlement(k EntitlementKind) EventDraft {
	d.entitlement = &k
	return d
}

func (d EventDraft) WithDevCard(k DevCardKind) EventDraft {
	d.devCard = &k
	return d
}

func (d EventDraft) WithAmount(n int) EventDraft {
	d.amount = n
	return d
}

func (d EventDraft) WithMessage(msg string) EventDraft {
	d.message = msg
	return d
}

func (d EventDraft) WithUndo(u UndoDescriptor) EventDraft {
	body := append(json.RawMessage(nil), u.Body...)
	u.Body = body
	d.undo = &u
	return d
}

// Kind returns the draft's kind.
func (d EventDraft) Kind() EventKind { return d.kind }

// Seal freezes the draft into an EventRecord carrying seq. Only the Game that
// owns the sequence counter should call it.
func (d EventDraft) Seal(gameKey string, seq uint64, at time.Time) *EventRecord {
	return &EventRecord{
		id:      uuid.New(),
		seq:     seq,
		game:    gameKey,
		at:      at,
		payload: d,
	}
}

// EventRecord is one immutable entry of a game's event log. A single record is
// shared by reference across every ledger queue; it exposes only getters.
type EventRecord struct {
	id      uuid.UUID
	seq     uint64
	game    string
	at      time.Time
	payload EventDraft
}

func (e *EventRecord) ID() uuid.UUID { return e.id }
func (e *EventRecord) Seq() uint64 { return e.seq }
func (e *EventRecord) Game() string { return e.game }
func (e *EventRecord) At() time.Time { return e.at }
func (e *EventRecord) Kind() EventKind { return e.payload.kind }
func (e *EventRecord) Player() string { return e.payload.player }
func (e *EventRecord) Counterparty() string { return e.payload.counterparty }
func (e *EventRecord) Delta() Resources { return e.payload.delta }
func (e *EventRecord) CounterDelta() Resources { return e.payload.counterDelta }
func (e *EventRecord) Amount() int { return e.payload.amount }
func (e *EventRecord) Message() string { return e.payload.message }

// Resource returns the resource kind the event concerns, if any.
func (e *EventRecord) Resource() (ResourceKind, bool) {
	if e.payload.resource == nil {
		return 0, false
	}
	return *e.payload.resource, true
}

func (e *EventRecord) Entitlement() (EntitlementKind, bool) {
	if e.payload.entitlement == nil {
		return 0, false
	}
	return *e.payload.entitlement, true
}

func (e *EventRecord) DevCard() (DevCardKind, bool) {
	if e.payload.devCard == nil {
		return 0, false
	}
	return *e.payload.devCard, true
}

// Undo returns a copy of the undo descriptor, if the event has one.
func (e *EventRecord) Undo() (UndoDescriptor, bool) {
	if e.payload.undo == nil {
		return UndoDescriptor{}, false
	}
	u := *e.payload.undo
	u.Body = append(json.RawMessage(nil), u.Body...)
	return u, true
}

type eventJSON struct {
	ID           uuid.UUID        `json:"id"`
	Seq          uint64           `json:"seq"`
	Game         string           `json:"game"`
	Kind         EventKind        `json:"kind"`
	Player       string           `json:"player,omitempty"`
	Counterparty string           `json:"counterparty,omitempty"`
	Delta        *Resources       `json:"delta,omitempty"`
	CounterDelta *Resources       `json:"counter_delta,omitempty"`
	Resource     *ResourceKind    `json:"resource,omitempty"`
	Entitlement  *EntitlementKind `json:"entitlement,omitempty"`
	DevCard      *DevCardKind     `json:"dev_card,omitempty"`
	Amount       int              `json:"amount,omitempty"`
	Message      string           `json:"message,omitempty"`
	Undo         *UndoDescriptor  `json:"undo,omitempty"`
	At           time.Time        `json:"at"`
}

func (e *EventRecord) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		ID:           e.id,
		Seq:          e.seq,
		Game:         e.game,
		Kind:         e.payload.kind,
		Player:       e.payload.player,
		Counterparty: e.payload.counterparty,
		Resource:     e.payload.resource,
		Entitlement:  e.payload.entitlement,
		DevCard:      e.payload.devCard,
		Amount:       e.payload.amount,
		Message:      e.payload.message,
		Undo:         e.payload.undo,
		At:           e.at,
	}
	if !e.payload.delta.IsZero() {
		d := e.payload.delta
		out.Delta = &d
	}
	if !e.payload.counterDelta.IsZero() {
		d := e.payload.counterDelta
		out.CounterDelta = &d
	}
	return json.Marshal(out)
}
