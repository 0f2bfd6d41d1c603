// Package notify decides, per event and per user, whether an error
// notification email goes out, and sends it when it does.
//
// The decision logic is split in two layers. Decide is the pure core:
// given the event facts, one user's settings, and the delivery config it
// returns a Decision with a reason code, and can be unit-tested without
// any observability harness. Handler is the side-effecting shell around
// it: repository lookups, throttling, logging, and the actual mail
// sends.
package notify
