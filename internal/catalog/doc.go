// Package catalog provides the read-only Variation Index and the selection
// value types shared by every other varsel package.
//
// All other internal packages import catalog; catalog imports nothing internal.
//
// Key design constraints:
//   - Ids are positive int64 newtypes; ValueID 0 (NoValue) is the empty option
//   - An Index never changes after NewIndex returns
//   - Variation order is the declaration order and is part of the contract
//   - Cache keys and fingerprints use canonical JSON (sorted keys, NFC strings)
package catalog
