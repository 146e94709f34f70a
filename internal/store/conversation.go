package store

import (
	"database/sql"
	"sort"
	"strings"
	"time"
)

// NameResolver looks up a display name for a counterpart number. Lookups
// may hit an external directory, so the query engine caches results for
// the duration of one listing call.
type NameResolver interface {
	DisplayName(number string) string
}

const (
	orderMostRecent    = "ORDER BY delivery_in_progress DESC, date DESC, remote_id DESC, id DESC"
	orderChronological = "ORDER BY delivery_in_progress ASC, date ASC, remote_id ASC, id ASC"
)

// Conversations returns every ConversationID with at least one message
// for the given DID set.
func (s *Store) Conversations(dids []string) ([]ConversationID, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()
	return s.conversations(dids)
}

func (s *Store) conversations(dids []string) ([]ConversationID, error) {
	if len(dids) == 0 {
		return nil, nil
	}
	q, args := inClause("SELECT DISTINCT did, contact FROM messages WHERE did IN", dids)
	rows, err := s.db.Query(q+" ORDER BY did, contact", args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []ConversationID
	for rows.Next() {
		var c ConversationID
		if err := rows.Scan(&c.DID, &c.Contact); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// MostRecent returns the conversation's most recent message by display
// ordering, or nil if the conversation has none.
func (s *Store) MostRecent(conv ConversationID) (*Message, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()
	return s.mostRecent(conv)
}

func (s *Store) mostRecent(conv ConversationID) (*Message, error) {
	m, err := scanMessage(s.db.QueryRow(`
		SELECT `+messageColumns+` FROM messages
		WHERE did = ? AND contact = ? `+orderMostRecent+` LIMIT 1`,
		conv.DID, conv.Contact))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// mostRecentMatching returns the conversation's most recent message whose
// body contains the filter (case-insensitive). When the filter carries
// digits, a contact or DID containing those digits also matches. Only the
// match anchors are added around the otherwise-parameterized argument.
func (s *Store) mostRecentMatching(conv ConversationID, filter string) (*Message, error) {
	q := `SELECT ` + messageColumns + ` FROM messages
		WHERE did = ? AND contact = ? AND (body LIKE ?`
	args := []any{conv.DID, conv.Contact, "%" + filter + "%"}
	if digits := digitsOf(filter); digits != "" {
		q += " OR contact LIKE ? OR did LIKE ?"
		args = append(args, "%"+digits+"%", "%"+digits+"%")
	}
	q += ") " + orderMostRecent + " LIMIT 1"

	m, err := scanMessage(s.db.QueryRow(q, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// MostRecentPerConversation assembles the conversation listing: one entry
// per conversation in the DID set, each the most recent message matching
// the filter, with drafts overlaid. An empty filter includes everything.
//
// With a filter active, a conversation whose messages all fail the filter
// is still included when the resolved contact display name contains the
// filter; otherwise it is dropped unless its draft matches.
func (s *Store) MostRecentPerConversation(dids []string, filter string, resolver NameResolver) ([]Message, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()

	convs, err := s.conversations(dids)
	if err != nil {
		return nil, err
	}

	lowered := strings.ToLower(filter)
	names := map[string]string{}
	resolve := func(number string) string {
		if name, ok := names[number]; ok {
			return name
		}
		name := ""
		if resolver != nil {
			name = resolver.DisplayName(number)
		}
		names[number] = name
		return name
	}

	byConv := map[ConversationID]int{}
	var out []Message
	take := func(m *Message) {
		byConv[m.Conversation()] = len(out)
		out = append(out, *m)
	}

	for _, conv := range convs {
		if filter == "" {
			m, err := s.mostRecent(conv)
			if err != nil {
				return nil, err
			}
			if m != nil {
				take(m)
			}
			continue
		}

		m, err := s.mostRecentMatching(conv, filter)
		if err != nil {
			return nil, err
		}
		if m != nil {
			take(m)
			continue
		}

		// No message matches; fall back to the unconditional most
		// recent row, accepted only when the contact's display name
		// contains the filter.
		m, err = s.mostRecent(conv)
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}
		if strings.Contains(strings.ToLower(resolve(conv.Contact)), lowered) {
			take(m)
		}
	}

	// Draft overlay: a matching draft replaces the conversation's entry,
	// or joins the list when the conversation had no entry at all. New
	// entries are appended so the byConv indexes stay valid; the final
	// sort puts them in place.
	drafts, err := s.draftsFor(dids)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	for _, d := range drafts {
		if d.Body == "" {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(d.Body), lowered) {
			continue
		}
		pseudo := Message{
			Date:    now,
			DID:     d.DID,
			Contact: d.Contact,
			Body:    d.Body,
			Draft:   true,
		}
		if i, ok := byConv[d.Conversation()]; ok {
			out[i] = pseudo
		} else {
			byConv[d.Conversation()] = len(out)
			out = append(out, pseudo)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].moreRecentThan(&out[j])
	})
	return out, nil
}

// ConversationMessages returns a conversation's messages in chronological
// order, optionally restricted to bodies containing the filter.
func (s *Store) ConversationMessages(conv ConversationID, filter string) ([]Message, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()

	q := `SELECT ` + messageColumns + ` FROM messages WHERE did = ? AND contact = ?`
	args := []any{conv.DID, conv.Contact}
	if filter != "" {
		q += " AND body LIKE ?"
		args = append(args, "%"+filter+"%")
	}
	q += " " + orderChronological

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// UnreadSinceLastOutgoing returns the conversation's incoming unread
// messages timestamped at or after the last outgoing message (all of them
// when nothing was ever sent), in chronological order. Strictly older
// incoming messages count as already acknowledged by that reply.
func (s *Store) UnreadSinceLastOutgoing(conv ConversationID) ([]Message, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()

	var lastOutgoing int64
	if err := s.db.QueryRow(`
		SELECT COALESCE(MAX(date), 0) FROM messages
		WHERE did = ? AND contact = ? AND incoming = 0`,
		conv.DID, conv.Contact).Scan(&lastOutgoing); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT `+messageColumns+` FROM messages
		WHERE did = ? AND contact = ? AND incoming = 1 AND unread = 1 AND date >= ?
		`+orderChronological,
		conv.DID, conv.Contact, lastOutgoing)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// inClause builds "prefix (?,?,...)" plus its argument slice.
func inClause(prefix string, values []string) (string, []any) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return prefix + " (" + placeholders + ")", args
}

// digitsOf strips everything but digits; empty when the string has none.
func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
