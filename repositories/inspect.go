package repositories

import (
	"fmt"
	"strings"
	"time"

	"peerchat/codec"
	"peerchat/domain"
)

// RecordView is a human readable rendering of one stored record. Secret key
// material and message bodies are never included.
type RecordView struct {
	Key       string
	Type      string
	Timestamp string
	Detail    string
}

// Describe decodes a raw key/value pair as written by RoomHistoryRepository
// or MessageRepository.
func Describe(key string, val []byte) RecordView {
	view := RecordView{Key: key, Type: "RAW", Timestamp: "-", Detail: fmt.Sprintf("Size: %d bytes", len(val))}

	switch {
	case key == keyNickname:
		var record nicknameRecord
		if err := codec.Unmarshal(val, &record); err != nil {
			view.Detail = "Error: unmarshal failed"
			return view
		}
		view.Type = "NICKNAME"
		view.Detail = record.Nickname
	case key == keySecretKey:
		var record secretKeyRecord
		if err := codec.Unmarshal(val, &record); err != nil {
			view.Detail = "Error: unmarshal failed"
			return view
		}
		view.Type = "SECRET_KEY"
		view.Detail = "plain"
		if record.Sealed != "" {
			view.Detail = "sealed"
		}
	case strings.HasPrefix(key, prefixVisited):
		var record visitedRecord
		if err := codec.Unmarshal(val, &record); err != nil {
			view.Detail = "Error: unmarshal failed"
			return view
		}
		view.Type = "VISITED"
		view.Timestamp = time.Unix(0, record.LastVisited).UTC().Format(time.DateTime)
		ticket, err := domain.DeserializeTicket(record.Ticket)
		if err != nil {
			view.Detail = "Error: invalid ticket"
			return view
		}
		view.Detail = fmt.Sprintf("%s (%d bootstrap peers)", ticket.Name(), len(ticket.Bootstrap()))
	case strings.HasPrefix(key, prefixMessage):
		var record messageRecord
		if err := codec.Unmarshal(val, &record); err != nil {
			view.Detail = "Error: unmarshal failed"
			return view
		}
		view.Type = "MESSAGE"
		view.Timestamp = time.Unix(0, record.SentAt).UTC().Format(time.DateTime)
		view.Detail = fmt.Sprintf("from %s, %d bytes", record.Nickname, len(record.Text))
	}
	return view
}
