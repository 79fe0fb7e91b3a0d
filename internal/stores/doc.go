// Package stores provides short-lived record stores for the security flows:
// consumed-token markers, two-factor challenges and two-factor method
// selections.
//
// # Design
//
// Each store persists a small record in a [kv.Store] under its own key
// namespace. Single-use is enforced by the store primitive itself: markers
// are written with SetNX and challenges are consumed by Delete, whose result
// tells exactly one caller that it won.
//
// # What this package must NOT do
//
//   - Import authguard or any sibling internal package except internal/kv.
//   - Hold plaintext codes; challenges store only the code hash.
package stores
