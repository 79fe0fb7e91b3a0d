package denylist

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"
)

const entryVersionV1 = 1

// Entry is an active block on one IP. A nil ExpiresAt means the block is
// permanent.
type Entry struct {
	IP        string
	Reason    string
	BlockedAt time.Time
	ExpiresAt *time.Time
}

// Permanent reports whether the entry never expires.
func (e *Entry) Permanent() bool {
	return e.ExpiresAt == nil
}

func (e *Entry) expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

func encodeEntry(e *Entry) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(entryVersionV1)

	var expiresAt int64
	if e.ExpiresAt != nil {
		expiresAt = e.ExpiresAt.UnixNano()
	}
	if err := binary.Write(&buf, binary.BigEndian, e.BlockedAt.UnixNano()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, expiresAt); err != nil {
		return nil, err
	}

	for _, s := range []string{e.IP, e.Reason} {
		if len(s) > 65535 {
			return nil, errors.New("block entry field too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(s))); err != nil {
			return nil, err
		}
		buf.WriteString(s)
	}

	return buf.Bytes(), nil
}

func decodeEntry(data []byte) (*Entry, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != entryVersionV1 {
		return nil, errors.New("invalid block entry version")
	}

	var blockedAt, expiresAt int64
	if err := binary.Read(reader, binary.BigEndian, &blockedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expiresAt); err != nil {
		return nil, err
	}

	fields := make([]string, 2)
	for i := range fields {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		fields[i] = string(raw)
	}

	entry := &Entry{
		IP:        fields[0],
		Reason:    fields[1],
		BlockedAt: time.Unix(0, blockedAt),
	}
	if expiresAt != 0 {
		t := time.Unix(0, expiresAt)
		entry.ExpiresAt = &t
	}
	return entry, nil
}
