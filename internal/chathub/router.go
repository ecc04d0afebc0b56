package chathub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"liveroom/backend/internal/apperr"
	"liveroom/backend/internal/localization"
	"liveroom/backend/internal/models"
	"liveroom/backend/internal/presence"
)

var errNotJoined = apperr.New(apperr.CodeBadRequest, "join a session first")

// Handle decodes one inbound frame and routes it. Every failure is answered
// on c with the request id of the frame that caused it.
func (h *Hub) Handle(c presence.Conn, raw []byte) {
	var in models.Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		h.fail(c, "", apperr.New(apperr.CodeBadRequest, "malformed frame"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.opts.RequestTimeout)
	defer cancel()

	var err error
	switch in.Type {
	case models.InJoin:
		err = h.handleJoin(ctx, c, in)
	case models.InLeave:
		h.leave(ctx, c)
		h.reply(c, in, models.EvLeft, "", nil)
	case models.InChat:
		err = h.handleChat(ctx, c, in)
	case models.InHistory:
		err = h.handleHistory(ctx, c, in)
	case models.InSignal:
		err = h.handleSignal(ctx, c, in)
	case models.InUpdateStatus:
		err = h.handleUpdateStatus(ctx, c, in)
	case models.InStartRecording:
		err = h.handleStartRecording(ctx, c, in)
	case models.InStopRecording:
		err = h.handleStopRecording(ctx, c, in)
	case models.InRecordingStatus:
		err = h.handleRecordingStatus(ctx, c, in)
	case models.InPing:
		h.reply(c, in, models.EvPong, "", nil)
	default:
		err = apperr.New(apperr.CodeBadRequest, fmt.Sprintf("unknown message type %q", in.Type))
	}

	if err != nil {
		h.log.Debug().Err(err).
			Str("connection_id", c.ID()).
			Str("type", string(in.Type)).
			Msg("request rejected")
		h.fail(c, in.RequestID, err)
	}
}

func (h *Hub) handleJoin(ctx context.Context, c presence.Conn, in models.Inbound) error {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" && in.JoinCode != "" {
		id, err := h.resolveCode(ctx, in.JoinCode)
		if err != nil {
			return err
		}
		sessionID = id
	}
	if sessionID == "" {
		return apperr.New(apperr.CodeBadRequest, "session_id or join_code is required")
	}

	identity := c.Identity()
	prev, wasPresent := h.Presence.Lookup(c.ID())
	rejoin := wasPresent && prev.SessionID == sessionID
	if wasPresent && !rejoin {
		h.leave(ctx, c)
	}

	session, err := h.Presence.Join(ctx, c, sessionID, strings.TrimSpace(in.DisplayName))
	if err != nil {
		return err
	}
	entry, _ := h.Presence.Lookup(c.ID())

	if activated, err := h.Lifecycle.ActivateOnHostJoin(ctx, identity, session); err != nil {
		h.log.Error().Err(err).Str("session_id", session.ID).Msg("activate on host join failed")
	} else {
		session = activated
	}

	history, err := h.Chat.History(ctx, session.ID, h.opts.HistoryLimit)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", session.ID).Msg("load history failed")
		history = []models.ChatMessage{}
	}

	data := JoinedData{
		Session: session,
		Present: h.Presence.Present(session.ID),
		History: history,
	}
	if h.Recordings != nil {
		data.Recordings = h.Recordings.Active(session.ID)
	}
	if h.Tokens != nil {
		token, err := h.Tokens.Generate(models.RoomName(session.ID), identity.ID, entry.DisplayName, identity.IsHostOf(session))
		if err != nil {
			h.log.Error().Err(err).Str("session_id", session.ID).Msg("media token failed")
		} else {
			data.MediaURL = h.opts.MediaURL
			data.MediaToken = token
		}
	}
	h.reply(c, in, models.EvJoined, session.ID, data)

	if rejoin {
		return nil
	}
	ev := models.Event{Type: models.EvParticipantJoined, SessionID: session.ID, Data: entry.Participant()}
	if err := h.Bus.ToSessionExcept(ctx, session.ID, c.ID(), ev); err != nil {
		h.log.Error().Err(err).Str("session_id", session.ID).Msg("broadcast participant_joined failed")
	}
	h.announce(ctx, session.ID, h.Localizer.Format(localization.KeyParticipantJoined, entry.DisplayName))
	return nil
}

func (h *Hub) handleChat(ctx context.Context, c presence.Conn, in models.Inbound) error {
	entry, ok := h.Presence.Lookup(c.ID())
	if !ok {
		return errNotJoined
	}
	msg, err := h.Chat.PostMessage(ctx, entry.SessionID, c.Identity(), entry.DisplayName, in.Body)
	if err != nil {
		return err
	}
	h.reply(c, in, models.EvAck, entry.SessionID, msg)
	return nil
}

func (h *Hub) handleHistory(ctx context.Context, c presence.Conn, in models.Inbound) error {
	entry, ok := h.Presence.Lookup(c.ID())
	if !ok {
		return errNotJoined
	}
	msgs, err := h.Chat.History(ctx, entry.SessionID, in.Limit)
	if err != nil {
		return err
	}
	h.reply(c, in, models.EvHistory, entry.SessionID, msgs)
	return nil
}

func (h *Hub) handleSignal(ctx context.Context, c presence.Conn, in models.Inbound) error {
	if in.Target == "" {
		return apperr.New(apperr.CodeBadRequest, "target is required")
	}
	h.Signaling.Forward(ctx, c.ID(), in.Target, in.SignalKind, in.Payload)
	return nil
}

func (h *Hub) handleUpdateStatus(ctx context.Context, c presence.Conn, in models.Inbound) error {
	sessionID, err := h.targetSession(c, in)
	if err != nil {
		return err
	}
	session, err := h.Lifecycle.UpdateStatus(ctx, c.Identity(), sessionID, in.Status)
	if err != nil {
		return err
	}
	h.reply(c, in, models.EvAck, session.ID, session)
	return nil
}

func (h *Hub) handleStartRecording(ctx context.Context, c presence.Conn, in models.Inbound) error {
	sessionID, err := h.targetSession(c, in)
	if err != nil {
		return err
	}
	job, err := h.Recordings.Start(ctx, c.Identity(), sessionID, in.FileName)
	if err != nil {
		return err
	}
	h.reply(c, in, models.EvAck, sessionID, job)
	return nil
}

func (h *Hub) handleStopRecording(ctx context.Context, c presence.Conn, in models.Inbound) error {
	if in.JobID == "" {
		return apperr.New(apperr.CodeBadRequest, "job_id is required")
	}
	job, err := h.Recordings.Stop(ctx, c.Identity(), in.JobID)
	if err != nil {
		return err
	}
	h.reply(c, in, models.EvAck, job.SessionID, job)
	return nil
}

func (h *Hub) handleRecordingStatus(ctx context.Context, c presence.Conn, in models.Inbound) error {
	if in.JobID == "" {
		return apperr.New(apperr.CodeBadRequest, "job_id is required")
	}
	status, err := h.Recordings.Status(ctx, in.JobID)
	if err != nil {
		return err
	}
	h.reply(c, in, models.EvRecordingStatus, "", status)
	return nil
}

// targetSession is the explicit session of the request, or the one the
// connection is present in.
func (h *Hub) targetSession(c presence.Conn, in models.Inbound) (string, error) {
	if in.SessionID != "" {
		return in.SessionID, nil
	}
	entry, ok := h.Presence.Lookup(c.ID())
	if !ok {
		return "", errNotJoined
	}
	return entry.SessionID, nil
}
