package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	recordFormatVersionCurrent = 1

	flagHasPrevious = 1 << 0
)

// The rotation counter is encoded big-endian at bytes [1:5], directly after
// the format version byte. The conditional-update script depends on this
// offset; moving it is a format version bump.

var errRecordCorrupt = errors.New("session record corrupt")

// Encode serializes a Record to the current binary format. SessionID is not
// part of the blob; it is the store key.
func Encode(r *Record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordFormatVersionCurrent)

	if err := binary.Write(&buf, binary.BigEndian, r.RotationCount); err != nil {
		return nil, err
	}
	buf.WriteByte(byte(r.Status))

	var flags byte
	if r.HasPrevious {
		flags |= flagHasPrevious
	}
	buf.WriteByte(flags)

	buf.Write(r.CurrentTokenHash[:])
	if r.HasPrevious {
		buf.Write(r.PreviousTokenHash[:])
	}

	for _, ts := range []int64{r.CreatedAt, r.ExpiresAt, r.RotatedAt, r.RevokedAt} {
		if err := binary.Write(&buf, binary.BigEndian, ts); err != nil {
			return nil, err
		}
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{"revoked reason", r.RevokedReason},
		{"user id", r.UserID},
		{"provider", r.Provider},
		{"user agent", r.UserAgent},
		{"ip", r.IP},
	} {
		if len(field.value) > 255 {
			return nil, errors.New(field.name + " too long")
		}
		buf.WriteByte(byte(len(field.value)))
		buf.WriteString(field.value)
	}

	return buf.Bytes(), nil
}

// Decode deserializes a binary record blob. The caller sets SessionID.
func Decode(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, errRecordCorrupt
	}
	if version != recordFormatVersionCurrent {
		return nil, errRecordCorrupt
	}

	r := &Record{}

	if err := binary.Read(reader, binary.BigEndian, &r.RotationCount); err != nil {
		return nil, errRecordCorrupt
	}

	status, err := reader.ReadByte()
	if err != nil {
		return nil, errRecordCorrupt
	}
	if status > byte(StatusExpired) {
		return nil, errRecordCorrupt
	}
	r.Status = Status(status)

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, errRecordCorrupt
	}

	if _, err := io.ReadFull(reader, r.CurrentTokenHash[:]); err != nil {
		return nil, errRecordCorrupt
	}
	if flags&flagHasPrevious != 0 {
		r.HasPrevious = true
		if _, err := io.ReadFull(reader, r.PreviousTokenHash[:]); err != nil {
			return nil, errRecordCorrupt
		}
	}

	for _, dst := range []*int64{&r.CreatedAt, &r.ExpiresAt, &r.RotatedAt, &r.RevokedAt} {
		if err := binary.Read(reader, binary.BigEndian, dst); err != nil {
			return nil, errRecordCorrupt
		}
	}

	for _, dst := range []*string{&r.RevokedReason, &r.UserID, &r.Provider, &r.UserAgent, &r.IP} {
		length, err := reader.ReadByte()
		if err != nil {
			return nil, errRecordCorrupt
		}
		raw := make([]byte, length)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, errRecordCorrupt
		}
		*dst = string(raw)
	}

	if reader.Len() != 0 {
		return nil, errRecordCorrupt
	}

	return r, nil
}
