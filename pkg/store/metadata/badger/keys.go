package badger

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so keys are prefixed to organize data types
// into logical namespaces.
//
// Data Type        Prefix   Key Format          Value Type
// ===========================================================
// File Records     "f:"     f:<fileID>          FileRecord (JSON)
// Schema Version   "cfg:"   cfg:schema          uint32 (binary)
//
// File Records (f:)
//   - One entry per document
//   - Point lookup by id: O(1)
//   - Listing is a prefix scan over "f:", which yields ids in byte order
//   - Example: f:550e8400-e29b-41d4-a716-446655440000

const (
	prefixFile   = "f:"
	keySchemaRaw = "cfg:schema"
)

// schemaVersion is bumped when the on-disk record format changes.
const schemaVersion uint32 = 1

func keyFile(id string) []byte {
	return []byte(prefixFile + id)
}

func keyFilePrefix() []byte {
	return []byte(prefixFile)
}

func keySchema() []byte {
	return []byte(keySchemaRaw)
}
