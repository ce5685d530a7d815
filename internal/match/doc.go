// Package match classifies untrusted autofill field hierarchies and
// ranks vault entries against a requesting domain or application.
//
// Classification and matching are pure functions over values handed in
// by the caller; the package holds no vault state and never touches the
// encrypted blob.
package match
