package store

import "testing"

type staticResolver map[string]string

func (r staticResolver) DisplayName(number string) string { return r[number] }

func TestMostRecentOrdering(t *testing.T) {
	s := testStore(t)

	// A confirmed message with a newer date...
	seed(t, s, &Message{RemoteID: 50, Date: 2000, DID: conv.DID, Contact: conv.Contact, Body: "confirmed", Delivered: true})
	// ...loses to one still being sent, even with an older date.
	sending := seed(t, s, &Message{Date: 1000, DID: conv.DID, Contact: conv.Contact, Body: "sending", DeliveryInProgress: true})

	m, err := s.MostRecent(conv)
	if err != nil {
		t.Fatal(err)
	}
	if m.ID != sending {
		t.Errorf("most recent = %q, want the in-progress message", m.Body)
	}
}

func TestMostRecentOrderingTieBreaks(t *testing.T) {
	s := testStore(t)

	// Same date: higher remote id wins.
	seed(t, s, &Message{RemoteID: 10, Date: 1000, DID: conv.DID, Contact: conv.Contact, Body: "older", Delivered: true})
	seed(t, s, &Message{RemoteID: 20, Date: 1000, DID: conv.DID, Contact: conv.Contact, Body: "newer", Delivered: true})

	m, err := s.MostRecent(conv)
	if err != nil {
		t.Fatal(err)
	}
	if m.Body != "newer" {
		t.Errorf("most recent = %q, want remote-id tie break to pick newer", m.Body)
	}

	// Same date and remote id: higher row id wins.
	other := ConversationID{DID: conv.DID, Contact: "5550001111"}
	seed(t, s, &Message{Date: 1000, DID: other.DID, Contact: other.Contact, Body: "first", Delivered: true})
	second := seed(t, s, &Message{Date: 1000, DID: other.DID, Contact: other.Contact, Body: "second", Delivered: true})
	m, err = s.MostRecent(other)
	if err != nil {
		t.Fatal(err)
	}
	if m.ID != second {
		t.Errorf("most recent id = %d, want row-id tie break to pick %d", m.ID, second)
	}
}

func TestMostRecentPerConversationUnfiltered(t *testing.T) {
	s := testStore(t)

	a := ConversationID{DID: "5551234567", Contact: "5550000001"}
	b := ConversationID{DID: "5551234567", Contact: "5550000002"}
	seed(t, s, &Message{RemoteID: 1, Date: 100, DID: a.DID, Contact: a.Contact, Body: "old", Delivered: true})
	seed(t, s, &Message{RemoteID: 2, Date: 200, DID: a.DID, Contact: a.Contact, Body: "a latest", Delivered: true})
	seed(t, s, &Message{RemoteID: 3, Date: 300, DID: b.DID, Contact: b.Contact, Body: "b latest", Delivered: true})

	listing, err := s.MostRecentPerConversation([]string{"5551234567"}, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(listing) != 2 {
		t.Fatalf("got %d entries, want 2", len(listing))
	}
	// Most recent conversation first.
	if listing[0].Body != "b latest" || listing[1].Body != "a latest" {
		t.Errorf("listing = [%q, %q], want [b latest, a latest]", listing[0].Body, listing[1].Body)
	}
}

func TestMostRecentPerConversationOutOfScopeDID(t *testing.T) {
	s := testStore(t)

	seed(t, s, &Message{RemoteID: 1, Date: 100, DID: "5559990000", Contact: "5550000001", Body: "x", Delivered: true})
	listing, err := s.MostRecentPerConversation([]string{"5551234567"}, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(listing) != 0 {
		t.Errorf("got %d entries for out-of-scope DID, want 0", len(listing))
	}
}

func TestFilterMatchesBody(t *testing.T) {
	s := testStore(t)

	seed(t, s, &Message{RemoteID: 1, Date: 100, DID: conv.DID, Contact: conv.Contact, Body: "meet for Lunch?", Delivered: true})
	seed(t, s, &Message{RemoteID: 2, Date: 200, DID: conv.DID, Contact: conv.Contact, Body: "unrelated", Delivered: true})

	listing, err := s.MostRecentPerConversation([]string{conv.DID}, "lunch", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(listing) != 1 {
		t.Fatalf("got %d entries, want 1", len(listing))
	}
	// The filter picks the most recent matching row, not the overall one.
	if listing[0].Body != "meet for Lunch?" {
		t.Errorf("entry = %q, want the case-insensitive lunch match", listing[0].Body)
	}
}

func TestFilterMatchesDigits(t *testing.T) {
	s := testStore(t)

	seed(t, s, &Message{RemoteID: 1, Date: 100, DID: conv.DID, Contact: conv.Contact, Body: "hello", Delivered: true})

	// "(987)" carries digits that occur in the contact number.
	listing, err := s.MostRecentPerConversation([]string{conv.DID}, "(987)", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(listing) != 1 {
		t.Errorf("got %d entries, want digit filter to match contact", len(listing))
	}
}

func TestFilterContactNameFallback(t *testing.T) {
	s := testStore(t)

	seed(t, s, &Message{RemoteID: 1, Date: 100, DID: conv.DID, Contact: conv.Contact, Body: "hello", Delivered: true})

	resolver := staticResolver{conv.Contact: "Alice Jones"}
	listing, err := s.MostRecentPerConversation([]string{conv.DID}, "alice", resolver)
	if err != nil {
		t.Fatal(err)
	}
	if len(listing) != 1 {
		t.Fatalf("got %d entries, want name fallback to keep the conversation", len(listing))
	}
	if listing[0].Body != "hello" {
		t.Errorf("entry = %q, want the unconditional most recent row", listing[0].Body)
	}

	// Without a matching name the conversation is dropped.
	listing, err = s.MostRecentPerConversation([]string{conv.DID}, "zzz", resolver)
	if err != nil {
		t.Fatal(err)
	}
	if len(listing) != 0 {
		t.Errorf("got %d entries, want 0 when nothing matches", len(listing))
	}
}

func TestDraftOverlayReplacesEntry(t *testing.T) {
	s := testStore(t)

	seed(t, s, &Message{RemoteID: 1, Date: 100, DID: conv.DID, Contact: conv.Contact, Body: "real message", Delivered: true})
	if err := s.SetDraft(conv, "half-typed reply"); err != nil {
		t.Fatal(err)
	}

	listing, err := s.MostRecentPerConversation([]string{conv.DID}, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(listing) != 1 {
		t.Fatalf("got %d entries, want 1", len(listing))
	}
	if !listing[0].Draft || listing[0].Body != "half-typed reply" {
		t.Errorf("entry = %+v, want the draft pseudo-message", listing[0])
	}
}

func TestDraftOverlayAddsConversation(t *testing.T) {
	s := testStore(t)

	// A draft in a conversation with no messages at all.
	if err := s.SetDraft(conv, "first words"); err != nil {
		t.Fatal(err)
	}
	listing, err := s.MostRecentPerConversation([]string{conv.DID}, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(listing) != 1 || !listing[0].Draft {
		t.Fatalf("listing = %+v, want a single draft entry", listing)
	}
}

func TestDraftOverlayMultipleConversations(t *testing.T) {
	s := testStore(t)

	// One conversation with a real message and a draft on top, another
	// holding only a draft. The draft-only row is older, so the overlay
	// handles it first.
	withMsg := ConversationID{DID: conv.DID, Contact: "5550000009"}
	draftOnly := ConversationID{DID: conv.DID, Contact: "5550000001"}
	seed(t, s, &Message{RemoteID: 1, Date: 100, DID: withMsg.DID, Contact: withMsg.Contact, Body: "real message", Delivered: true})
	if err := s.SetDraft(draftOnly, "new thread"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetDraft(withMsg, "reply in progress"); err != nil {
		t.Fatal(err)
	}

	listing, err := s.MostRecentPerConversation([]string{conv.DID}, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(listing) != 2 {
		t.Fatalf("got %d entries, want one per conversation", len(listing))
	}
	bodies := map[string]string{}
	for _, m := range listing {
		if !m.Draft {
			t.Errorf("entry %q is not a draft pseudo-message", m.Body)
		}
		bodies[m.Contact] = m.Body
	}
	if bodies[withMsg.Contact] != "reply in progress" {
		t.Errorf("entry for %s = %q, want its own draft", withMsg.Contact, bodies[withMsg.Contact])
	}
	if bodies[draftOnly.Contact] != "new thread" {
		t.Errorf("entry for %s = %q, want the draft-only conversation kept", draftOnly.Contact, bodies[draftOnly.Contact])
	}
}

func TestDraftOverlayFiltered(t *testing.T) {
	s := testStore(t)

	seed(t, s, &Message{RemoteID: 1, Date: 100, DID: conv.DID, Contact: conv.Contact, Body: "nothing relevant", Delivered: true})
	if err := s.SetDraft(conv, "about the groceries"); err != nil {
		t.Fatal(err)
	}

	// A matching draft surfaces the conversation even though its last
	// real message fails the filter.
	listing, err := s.MostRecentPerConversation([]string{conv.DID}, "groceries", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(listing) != 1 || !listing[0].Draft {
		t.Fatalf("listing = %+v, want the matching draft entry", listing)
	}

	// Neither message nor draft matching drops the conversation.
	listing, err = s.MostRecentPerConversation([]string{conv.DID}, "weather", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(listing) != 0 {
		t.Errorf("got %d entries, want 0 when neither message nor draft matches", len(listing))
	}
}

func TestConversationMessagesChronological(t *testing.T) {
	s := testStore(t)

	seed(t, s, &Message{RemoteID: 2, Date: 200, DID: conv.DID, Contact: conv.Contact, Body: "second", Delivered: true})
	seed(t, s, &Message{RemoteID: 1, Date: 100, DID: conv.DID, Contact: conv.Contact, Body: "first", Delivered: true})

	msgs, err := s.ConversationMessages(conv, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Body != "first" || msgs[1].Body != "second" {
		t.Errorf("order = %v, want chronological", msgs)
	}

	msgs, err = s.ConversationMessages(conv, "sec")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Body != "second" {
		t.Errorf("filtered = %v, want only the matching message", msgs)
	}
}

func TestUnreadSinceLastOutgoing(t *testing.T) {
	s := testStore(t)

	// Last outgoing at t=100.
	seed(t, s, &Message{RemoteID: 1, Date: 50, DID: conv.DID, Contact: conv.Contact, Body: "out early", Delivered: true})
	seed(t, s, &Message{RemoteID: 2, Date: 100, DID: conv.DID, Contact: conv.Contact, Body: "out last", Delivered: true})
	// Incoming before, at, and after that point.
	seed(t, s, &Message{RemoteID: 3, Date: 60, Incoming: true, DID: conv.DID, Contact: conv.Contact, Body: "before", Unread: true, Delivered: true})
	seed(t, s, &Message{RemoteID: 4, Date: 100, Incoming: true, DID: conv.DID, Contact: conv.Contact, Body: "at", Unread: true, Delivered: true})
	seed(t, s, &Message{RemoteID: 5, Date: 150, Incoming: true, DID: conv.DID, Contact: conv.Contact, Body: "after", Unread: true, Delivered: true})
	// Read messages never count.
	seed(t, s, &Message{RemoteID: 6, Date: 160, Incoming: true, DID: conv.DID, Contact: conv.Contact, Body: "read", Unread: false, Delivered: true})

	msgs, err := s.UnreadSinceLastOutgoing(conv)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2 (at and after the last outgoing)", len(msgs))
	}
	if msgs[0].Body != "at" || msgs[1].Body != "after" {
		t.Errorf("order = [%q, %q], want ascending [at, after]", msgs[0].Body, msgs[1].Body)
	}
}

func TestUnreadSinceLastOutgoingNoOutgoing(t *testing.T) {
	s := testStore(t)

	seed(t, s, &Message{RemoteID: 1, Date: 10, Incoming: true, DID: conv.DID, Contact: conv.Contact, Body: "a", Unread: true, Delivered: true})
	seed(t, s, &Message{RemoteID: 2, Date: 20, Incoming: true, DID: conv.DID, Contact: conv.Contact, Body: "b", Unread: true, Delivered: true})

	msgs, err := s.UnreadSinceLastOutgoing(conv)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Errorf("got %d messages, want all unread when nothing was ever sent", len(msgs))
	}
}
