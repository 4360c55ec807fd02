package pipeline

import (
	"context"
	"log"

	"github.com/gcbaptista/go-dupfinder/internal/errors"
	"github.com/gcbaptista/go-dupfinder/internal/session"
)

// Drive runs stage to exhaustion and closes it with save=true. If Open fails
// the session's credential is cleared and the error returned without Close.
// GetNext results are discarded; the loop exists for its progress observations.
func Drive(ctx context.Context, stage Stage, sess *session.Session) error {
	if err := stage.Open(ctx); err != nil {
		sess.ClearCredential()
		return err
	}

	read := 0
	for {
		if _, err := stage.GetNext(); err != nil {
			if errors.Is(err, errors.ErrExhausted) {
				break
			}
			return err
		}
		read++
	}
	log.Printf("Read stage exhausted after %d documents", read)

	return stage.Close(ctx, true)
}
