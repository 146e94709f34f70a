package store

// ConversationID identifies a conversation as the (DID, contact) pair.
// All higher-level queries group messages by it.
type ConversationID struct {
	DID     string
	Contact string
}

// Message is one row of the messages table. RemoteID is 0 while outbound
// delivery is pending and set once the provider confirms the message.
// Exactly one of Delivered / DeliveryInProgress models the outbound
// lifecycle; Unread is meaningful only for incoming messages.
type Message struct {
	ID                 int64
	RemoteID           int64
	Date               int64 // seconds since epoch
	Incoming           bool
	DID                string
	Contact            string
	Body               string
	Unread             bool
	Delivered          bool
	DeliveryInProgress bool

	// Draft marks a pseudo-message synthesized from a draft row in
	// conversation listings. Draft pseudo-messages never occupy a
	// messages-table row.
	Draft bool
}

// Conversation returns the conversation this message belongs to.
func (m *Message) Conversation() ConversationID {
	return ConversationID{DID: m.DID, Contact: m.Contact}
}

// moreRecentThan compares two messages by the display ordering key
// (delivery_in_progress, date, remote_id, id). A message currently being
// sent always sorts as most recent even if its timestamp predates a
// remote-confirmed message inserted out of order; remote id and row id
// break timestamp ties deterministically, since the provider clock is
// coarser than the local one.
func (m *Message) moreRecentThan(o *Message) bool {
	if m.DeliveryInProgress != o.DeliveryInProgress {
		return m.DeliveryInProgress
	}
	if m.Date != o.Date {
		return m.Date > o.Date
	}
	if m.RemoteID != o.RemoteID {
		return m.RemoteID > o.RemoteID
	}
	return m.ID > o.ID
}

// Draft is one row of the drafts table: unsent text for a conversation.
// At most one row exists per conversation.
type Draft struct {
	ID      int64
	DID     string
	Contact string
	Body    string
}

// Conversation returns the conversation this draft belongs to.
func (d *Draft) Conversation() ConversationID {
	return ConversationID{DID: d.DID, Contact: d.Contact}
}

// Tombstone records that a (did, remote_id) pair was deleted remotely.
// Its presence blocks re-insertion of the message on the next sync unless
// the sync explicitly retrieves deleted messages.
type Tombstone struct {
	ID       int64
	RemoteID int64
	DID      string
}
