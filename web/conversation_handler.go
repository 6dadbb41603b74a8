package web

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/nebulahq/nebula/types"
)

type createConversationReqBody struct {
	OtherUserID string `json:"otherUserId"`
	Content     string `json:"content"`
}

func (h *Handler) createConversation(w http.ResponseWriter, r *http.Request) {
	var reqBody createConversationReqBody
	if err := decodeJSON(r, &reqBody); err != nil {
		h.respondErr(w, err)
		return
	}

	created, err := h.Service.CreateConversation(r.Context(), types.CreateConversation{
		OtherUserID: reqBody.OtherUserID,
		Content:     reqBody.Content,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, created, http.StatusCreated)
}

func (h *Handler) conversations(w http.ResponseWriter, r *http.Request) {
	pageArgs, err := parsePageArgs(r.URL.Query())
	if err != nil {
		h.respondErr(w, err)
		return
	}

	page, err := h.Service.Conversations(r.Context(), types.ListConversations{PageArgs: pageArgs})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, page, http.StatusOK)
}

type conversationRespBody struct {
	Conversation types.Conversation        `json:"conversation"`
	Messages     types.Page[types.Message] `json:"messages"`
}

func (h *Handler) showConversation(w http.ResponseWriter, r *http.Request) {
	pageArgs, err := parsePageArgs(r.URL.Query())
	if err != nil {
		h.respondErr(w, err)
		return
	}

	var out conversationRespBody

	ctx := r.Context()
	conversationID := r.PathValue("conversationID")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Conversation, err = h.Service.Conversation(gctx, types.RetrieveConversation{
			ConversationID: conversationID,
		})
		return err
	})

	g.Go(func() error {
		var err error
		out.Messages, err = h.Service.Messages(gctx, types.ListMessages{
			ConversationID: conversationID,
			PageArgs:       pageArgs,
		})
		return err
	})

	if err := g.Wait(); err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, out, http.StatusOK)
}

func (h *Handler) messages(w http.ResponseWriter, r *http.Request) {
	pageArgs, err := parsePageArgs(r.URL.Query())
	if err != nil {
		h.respondErr(w, err)
		return
	}

	page, err := h.Service.Messages(r.Context(), types.ListMessages{
		ConversationID: r.PathValue("conversationID"),
		PageArgs:       pageArgs,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, page, http.StatusOK)
}

type createMessageReqBody struct {
	Content string            `json:"content"`
	Type    types.MessageType `json:"type"`
}

func (h *Handler) createMessage(w http.ResponseWriter, r *http.Request) {
	var reqBody createMessageReqBody
	if err := decodeJSON(r, &reqBody); err != nil {
		h.respondErr(w, err)
		return
	}

	msg, err := h.Service.CreateMessage(r.Context(), types.CreateMessage{
		ConversationID: r.PathValue("conversationID"),
		Content:        reqBody.Content,
		Type:           reqBody.Type,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, msg, http.StatusCreated)
}

func (h *Handler) markConversationRead(w http.ResponseWriter, r *http.Request) {
	err := h.Service.MarkConversationRead(r.Context(), types.MarkConversationRead{
		ConversationID: r.PathValue("conversationID"),
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
