package objectstore

import "encoding/json"

// jsonMarshal/jsonUnmarshal isolate the on-disk commit-record encoding from
// the canonical codec used for patches and checkpoints: commit metadata is
// local bookkeeping for one store implementation, not something peers need
// to compare byte-for-byte, so plain JSON is the right tool here.
func jsonMarshal(v any) ([]byte, error)       { return json.Marshal(v) }
func jsonUnmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
