// Package models defines the core domain models for travelspend.
//
// # Models
//
//   - Traveler: a named participant who can accrue expenses
//   - Expense: a monetary record attributed to exactly one traveler
//
// Both models live as schemaless documents in the document store. The helpers in
// this package convert between the typed models and their document fields so the
// rest of the code never touches raw field maps.
//
// # Design Principles
//
// 1. **Store is the system of record**: ids are assigned by the store, never here
// 2. **Denormalized names are caches**: Expense.TravelerName is copied at write time
// 3. **No rename**: travelers have no update operation, so the copied name cannot drift
package models
