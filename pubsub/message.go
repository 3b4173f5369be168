package pubsub

// Kind identifies the event a Message carries — the tagged union
// delivered to a Subscriber's consumer channel.
type Kind int

const (
	// KindMessage is a plain channel publish.
	KindMessage Kind = iota
	// KindPMessage is a pattern-matched publish.
	KindPMessage
	// KindSubscribed acknowledges a channel or pattern subscription.
	KindSubscribed
	// KindUnsubscribed acknowledges a channel or pattern unsubscription.
	KindUnsubscribed
	// KindDropped reports how many message/pmessage events the bounded
	// queue discarded since the backlog last drained to empty.
	KindDropped
	// KindConnected fires once the connection is up and, on a reconnect,
	// after the tracked subscribe/psubscribe sets have been replayed.
	KindConnected
	// KindDisconnected fires on every connection loss, including a fatal
	// one that leaves Err set and the Subscriber unusable afterward.
	KindDisconnected
	// KindHandoff is delivered to the outgoing consumer during
	// ControllingProcess, carrying the Token the outgoing consumer confirms
	// via Subscriber.AckHandoff before the handoff completes (or the
	// handoff timeout elapses, whichever comes first).
	KindHandoff
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindPMessage:
		return "pmessage"
	case KindSubscribed:
		return "subscribed"
	case KindUnsubscribed:
		return "unsubscribed"
	case KindDropped:
		return "dropped"
	case KindConnected:
		return "connected"
	case KindDisconnected:
		return "disconnected"
	case KindHandoff:
		return "handoff"
	}
	return "unknown"
}

// Message is the single type delivered on a Subscriber's consumer channel.
// Only the fields relevant to Kind are populated.
type Message struct {
	Kind Kind

	Channel string // KindMessage, KindSubscribed, KindUnsubscribed
	Pattern string // KindPMessage, KindSubscribed, KindUnsubscribed (pattern form)
	Payload []byte // KindMessage, KindPMessage

	Dropped int // KindDropped

	Token string // KindHandoff

	Err error // KindDisconnected
}
