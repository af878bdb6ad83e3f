// Package mongostore persists entitlement records in MongoDB, one document
// per user keyed by the user id.
//
// Increment is a FindOneAndUpdate whose filter carries the cap check as an
// $expr, so the check and the $inc are one atomic document update.
// Decrement uses an update pipeline to floor the counter at zero.
package mongostore
