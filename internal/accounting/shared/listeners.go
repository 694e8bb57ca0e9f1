package shared

import "context"

// ChangeListener is notified after a committed change to a record that
// feeds the financial statements.
type ChangeListener func(ctx context.Context, entity string, id int64)
