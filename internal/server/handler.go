package server

import (
	"errors"
	"fmt"

	"github.com/ChronosX88/newsd/internal/backend"
	"github.com/ChronosX88/newsd/internal/models"
	"github.com/ChronosX88/newsd/internal/protocol"
)

type handlerFunc func(cmd protocol.Command, kind protocol.AnswerKind) (protocol.Answer, error)

// Handler binds decoded commands to the storage backend. A handler returns
// exactly one answer or an error; an error means the connection has to go.
type Handler struct {
	handlers map[protocol.CommandKind]handlerFunc
	backend  backend.StorageBackend
}

func NewHandler(b backend.StorageBackend) *Handler {
	h := &Handler{}
	h.backend = b
	h.handlers = map[protocol.CommandKind]handlerFunc{
		protocol.CommandListNewsgroups:  h.handleListNewsgroups,
		protocol.CommandCreateNewsgroup: h.handleCreateNewsgroup,
		protocol.CommandDeleteNewsgroup: h.handleDeleteNewsgroup,
		protocol.CommandListArticles:    h.handleListArticles,
		protocol.CommandCreateArticle:   h.handleCreateArticle,
		protocol.CommandDeleteArticle:   h.handleDeleteArticle,
		protocol.CommandGetArticle:      h.handleGetArticle,
	}
	return h
}

func (h *Handler) Handle(cmd protocol.Command) (protocol.Answer, error) {
	handler, ok := h.handlers[cmd.Kind]
	if !ok {
		return protocol.Answer{}, &protocol.ProtocolError{Reason: protocol.ReasonUnknownCommand, Byte: byte(cmd.Kind)}
	}
	if err := cmd.Validate(); err != nil {
		return protocol.Answer{}, err
	}
	kind, _ := cmd.Kind.Answer()
	return handler(cmd, kind)
}

func (h *Handler) handleListNewsgroups(cmd protocol.Command, kind protocol.AnswerKind) (protocol.Answer, error) {
	groups, err := h.backend.ListNewsgroups()
	if err != nil {
		return protocol.Answer{}, err
	}
	params := make([]protocol.Param, 0, 1+2*len(groups))
	params = append(params, protocol.Number(int32(len(groups))))
	for _, g := range groups {
		params = append(params, protocol.Number(g.ID), protocol.Text(g.Name))
	}
	return protocol.Ack(kind, params...), nil
}

func (h *Handler) handleCreateNewsgroup(cmd protocol.Command, kind protocol.AnswerKind) (protocol.Answer, error) {
	name := cmd.Params[0].Text
	g, err := h.backend.CreateNewsgroup(name)
	if err != nil {
		if errors.Is(err, backend.ErrInvalidName) {
			return protocol.Answer{}, &protocol.ProtocolError{
				Reason: protocol.ReasonInvalidParams,
				Byte:   byte(cmd.Kind),
				Detail: "empty newsgroup name",
			}
		}
		return nak(cmd, kind, err)
	}
	return protocol.Ack(kind, protocol.Number(g.ID)), nil
}

func (h *Handler) handleDeleteNewsgroup(cmd protocol.Command, kind protocol.AnswerKind) (protocol.Answer, error) {
	if err := h.backend.DeleteNewsgroup(cmd.Params[0].Num); err != nil {
		return nak(cmd, kind, err)
	}
	return protocol.Ack(kind), nil
}

func (h *Handler) handleListArticles(cmd protocol.Command, kind protocol.AnswerKind) (protocol.Answer, error) {
	articles, err := h.backend.ListArticles(cmd.Params[0].Num)
	if err != nil {
		return nak(cmd, kind, err)
	}
	params := make([]protocol.Param, 0, 1+2*len(articles))
	params = append(params, protocol.Number(int32(len(articles))))
	for _, a := range articles {
		params = append(params, protocol.Number(a.ID), protocol.Text(a.Title))
	}
	return protocol.Ack(kind, params...), nil
}

func (h *Handler) handleCreateArticle(cmd protocol.Command, kind protocol.AnswerKind) (protocol.Answer, error) {
	a, err := h.backend.CreateArticle(cmd.Params[0].Num, cmd.Params[1].Text, cmd.Params[2].Text, cmd.Params[3].Text)
	if err != nil {
		return nak(cmd, kind, err)
	}
	return protocol.Ack(kind, protocol.Number(a.ID)), nil
}

func (h *Handler) handleDeleteArticle(cmd protocol.Command, kind protocol.AnswerKind) (protocol.Answer, error) {
	if err := h.backend.DeleteArticle(cmd.Params[0].Num, cmd.Params[1].Num); err != nil {
		return nak(cmd, kind, err)
	}
	return protocol.Ack(kind), nil
}

func (h *Handler) handleGetArticle(cmd protocol.Command, kind protocol.AnswerKind) (protocol.Answer, error) {
	a, err := h.backend.GetArticle(cmd.Params[0].Num, cmd.Params[1].Num)
	if err != nil {
		return nak(cmd, kind, err)
	}
	return protocol.Ack(kind, articleParams(a)...), nil
}

func articleParams(a models.Article) []protocol.Param {
	return []protocol.Param{protocol.Text(a.Title), protocol.Text(a.Author), protocol.Text(a.Text)}
}

// nak turns a backend outcome into a Nak answer. Text the store refuses is a
// protocol error; other errors outside the contract are passed through.
func nak(cmd protocol.Command, kind protocol.AnswerKind, err error) (protocol.Answer, error) {
	switch {
	case errors.Is(err, backend.ErrInvalidText):
		return protocol.Answer{}, &protocol.ProtocolError{Reason: protocol.ReasonInvalidText, Byte: byte(cmd.Kind)}
	case errors.Is(err, backend.ErrNewsgroupExists):
		return protocol.Nak(kind, protocol.ErrNgAlreadyExists), nil
	case errors.Is(err, backend.ErrNoSuchNewsgroup):
		return protocol.Nak(kind, protocol.ErrNgDoesNotExist), nil
	case errors.Is(err, backend.ErrNoSuchArticle):
		return protocol.Nak(kind, protocol.ErrArtDoesNotExist), nil
	default:
		return protocol.Answer{}, fmt.Errorf("backend: %w", err)
	}
}
