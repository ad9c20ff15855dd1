package repository

import (
	"context"
	"errors"

	"jwz/internal/database"
	"jwz/internal/store"
	"jwz/internal/ulid"
)

// resolveMessagePrefix implements spec.md §4.7: resolve a user-supplied
// identifier (full or a prefix of one) to the unique full message
// identifier it names.
func resolveMessagePrefix(ctx context.Context, idx *database.Index, input string) (string, error) {
	if input == "" || !ulid.Valid(input) {
		return "", store.ErrInvalidMessageID
	}

	if _, err := idx.FindMessageByID(ctx, input); err == nil {
		return input, nil
	} else if !errors.Is(err, store.ErrMessageNotFound) {
		return "", err
	}

	matches, err := idx.FindMessagesByPrefix(ctx, input)
	if err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", store.ErrMessageNotFound
	case 1:
		return matches[0].ID, nil
	default:
		return "", store.ErrMessageIDAmbiguous
	}
}
