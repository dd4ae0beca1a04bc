package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// maxMessageLen bounds a direct message, in bytes.
const maxMessageLen = 1000

func (a *API) listConversations(w http.ResponseWriter, r *http.Request) {
	me, ok := a.authorize(w, r, "userId")
	if !ok {
		return
	}
	convs, err := a.DB.ListConversations(r.Context(), me.ID)
	if err != nil {
		a.respondStorageError(w, err, "Could not list conversations")
		return
	}
	if convs == nil {
		convs = []Conversation{}
	}
	a.respond(w, http.StatusOK, convs)
}

func (a *API) createConversation(w http.ResponseWriter, r *http.Request) {
	type request struct {
		ParticipantIDs []int64 `json:"participantIds" validate:"min=1,dive,gt=0"`
		GroupTitle     string  `json:"groupTitle" validate:"max=100"`
		Content        string  `json:"content" validate:"required,max=1000"`
	}
	me, ok := a.authorize(w, r, "userId")
	if !ok {
		return
	}
	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}

	conv, err := a.DB.CreateConversation(r.Context(), me.ID, NewConversation{
		ParticipantIDs: body.ParticipantIDs,
		GroupTitle:     strings.TrimSpace(body.GroupTitle),
		Content:        body.Content,
	})
	if err != nil {
		a.respondStorageError(w, err, "Could not create conversation")
		return
	}
	a.respond(w, http.StatusOK, conv)
}

// addParticipant adds the path user to the group chat whose id is the
// request body. Only a participant may add others.
func (a *API) addParticipant(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.pathValueID(w, r, "userId")
	if !ok {
		return
	}
	me, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	var groupID int64
	if err := json.NewDecoder(r.Body).Decode(&groupID); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return
	}
	if groupID <= 0 {
		a.respondError(w, http.StatusBadRequest, errors.New("non-positive group id"), "Invalid id")
		return
	}

	conv, err := a.DB.AddParticipant(r.Context(), me.ID, userID, groupID)
	if err != nil {
		a.respondStorageError(w, err, "Could not add participant")
		return
	}
	a.respond(w, http.StatusOK, conv)
}

func (a *API) listGroupMessages(w http.ResponseWriter, r *http.Request) {
	groupID, ok := a.pathValueID(w, r, "groupId")
	if !ok {
		return
	}
	me, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	msgs, err := a.DB.ListGroupMessages(r.Context(), me.ID, groupID)
	if err != nil {
		a.respondStorageError(w, err, "Could not list messages")
		return
	}
	if msgs == nil {
		msgs = []DirectMessage{}
	}
	a.respond(w, http.StatusOK, msgs)
}

// sendMessage posts the plain text request body to a group chat.
func (a *API) sendMessage(w http.ResponseWriter, r *http.Request) {
	groupID, ok := a.pathValueID(w, r, "groupId")
	if !ok {
		return
	}
	me, ok := a.authorize(w, r, "userId")
	if !ok {
		return
	}
	b, err := io.ReadAll(io.LimitReader(r.Body, maxMessageLen+1))
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not read request body")
		return
	}
	content := strings.TrimSpace(string(b))
	switch {
	case content == "":
		a.respondError(w, http.StatusBadRequest, errors.New("empty message"), "Message is empty")
		return
	case len(b) > maxMessageLen:
		a.respondError(w, http.StatusBadRequest, errors.New("message too long"), "Message is too long")
		return
	}

	msg, err := a.DB.SendMessage(r.Context(), me.ID, groupID, content)
	if err != nil {
		a.respondStorageError(w, err, "Could not send message")
		return
	}
	a.respond(w, http.StatusOK, msg)
}
