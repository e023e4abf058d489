// Package gate is the per-request admission pipeline.
//
// Admit runs four steps in order and stops at the first rejection:
//
//  1. Extract the credential (X-API-Key, then Authorization: Bearer, or the
//     session cookie for session routes).
//  2. Resolve it to an identity through the API key or session authority.
//  3. Check the route's minimum tier, if any.
//  4. On metered routes, consume one operation from the monthly quota.
//
// The outcome is a value: *Admission or *Rejection. Nothing in the pipeline
// panics or relies on error types to carry the rejection reason. Translation
// to HTTP happens in Middleware.
package gate
