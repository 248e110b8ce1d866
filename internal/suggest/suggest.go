// Package suggest generates subject-line suggestions for an email
// body.
package suggest

import "context"

// Suggester proposes subject lines for the given email content. It
// always returns exactly three suggestions on success.
type Suggester interface {
	Suggest(ctx context.Context, emailContent string) ([]string, error)
}
