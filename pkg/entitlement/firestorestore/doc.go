// Package firestorestore persists entitlement records in Cloud Firestore, one
// document per user in the userSubscriptions collection.
//
// Every mutation runs inside a Firestore transaction. Firestore retries a
// transaction whose read set changed before commit, so the cap check in
// Increment always sees the counter it is about to bump.
package firestorestore
