// Package ir provides the term and statement types shared by every other
// occgraph package.
//
// This package contains value types only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Terms are comparable, so Statement can be used as a map key
//   - NO float terms - use Int for numbers
//   - Strings are NFC normalized at construction and at serialization
//   - A nil Context means the default graph
package ir
