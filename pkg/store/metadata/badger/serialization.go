package badger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/marmos91/dittowopi/pkg/store/metadata"
)

// Serialization Strategy
// ======================
//
// File records are stored as JSON: human-readable when inspecting the
// database and tolerant of added fields. The schema marker is a 4-byte
// big-endian integer.

func encodeFile(file *metadata.FileRecord) ([]byte, error) {
	data, err := json.Marshal(file)
	if err != nil {
		return nil, fmt.Errorf("failed to encode file record: %w", err)
	}
	return data, nil
}

func decodeFile(data []byte) (*metadata.FileRecord, error) {
	var file metadata.FileRecord
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode file record: %w", err)
	}
	return &file, nil
}

func encodeUint32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return buf
}

func decodeUint32(data []byte) (uint32, error) {
	if len(data) != 4 {
		return 0, fmt.Errorf("invalid uint32 length: %d", len(data))
	}
	return binary.BigEndian.Uint32(data), nil
}
