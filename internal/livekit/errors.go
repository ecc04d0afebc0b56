package livekit

import (
	"errors"
	"strings"

	"github.com/twitchtv/twirp"

	"liveroom/backend/internal/apperr"
)

// ErrAlreadyExists is returned when the media service already runs the requested job.
var ErrAlreadyExists = errors.New("media job already exists")

// classify turns a LiveKit API error into the service's error taxonomy.
// notFound is returned for unknown resources so callers pick the right category.
func classify(err error, notFound error) error {
	if err == nil {
		return nil
	}
	var terr twirp.Error
	if errors.As(err, &terr) {
		switch terr.Code() {
		case twirp.NotFound:
			if notFound != nil {
				return notFound
			}
		case twirp.AlreadyExists:
			return ErrAlreadyExists
		}
		return apperr.Wrap(apperr.CodeExternalService, terr.Msg(), err)
	}
	if strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return ErrAlreadyExists
	}
	return apperr.External(err)
}
