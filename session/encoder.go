package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// formatVersion is the first byte of every stored blob. The rotate script in
// store.go parses the same layout and must change with it.
const formatVersion = 1

var errInvalidFormat = errors.New("invalid session format")

// Encode serializes s as:
//
//	version(1) | len(userID)(1) | userID | status(1) | refreshHash(32) | createdAt(8) | expiresAt(8)
func Encode(s *Session) ([]byte, error) {
	if len(s.UserID) == 0 || len(s.UserID) > 255 {
		return nil, errors.New("userID must be 1..255 bytes")
	}

	var buf bytes.Buffer
	buf.Grow(2 + len(s.UserID) + 1 + 32 + 16)

	buf.WriteByte(formatVersion)
	buf.WriteByte(byte(len(s.UserID)))
	buf.WriteString(s.UserID)
	buf.WriteByte(s.Status)
	buf.Write(s.RefreshHash[:])

	var ts [16]byte
	binary.BigEndian.PutUint64(ts[:8], uint64(s.CreatedAt))
	binary.BigEndian.PutUint64(ts[8:], uint64(s.ExpiresAt))
	buf.Write(ts[:])

	return buf.Bytes(), nil
}

// Decode parses a blob produced by Encode. SessionID is not part of the blob
// and is left empty.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, errInvalidFormat
	}

	userLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if userLen == 0 {
		return nil, errInvalidFormat
	}
	userID := make([]byte, userLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}

	s := &Session{UserID: string(userID)}

	if s.Status, err = reader.ReadByte(); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, s.RefreshHash[:]); err != nil {
		return nil, err
	}

	var ts [16]byte
	if _, err := io.ReadFull(reader, ts[:]); err != nil {
		return nil, err
	}
	s.CreatedAt = int64(binary.BigEndian.Uint64(ts[:8]))
	s.ExpiresAt = int64(binary.BigEndian.Uint64(ts[8:]))

	if reader.Len() != 0 {
		return nil, errInvalidFormat
	}

	return s, nil
}
