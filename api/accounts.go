package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/wolftalk/wolftalk/validator"
)

// Headers set by the Shibboleth service provider in front of the server.
// Requests that reach the server without passing through it are anonymous.
const (
	HeaderUnityID = "X-Shib-Eptid"
	headerName    = "X-Shib-FirstName"
	headerEmail   = "X-Shib-Email"
)

var errNoIdentity = errors.New("request carries no SSO identity")

func ssoUnityID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderUnityID))
}

// currentUser loads the user named by the SSO header. Anonymous requests and
// unknown users are answered with 401.
func (a *API) currentUser(w http.ResponseWriter, r *http.Request) (Profile, bool) {
	unityID := ssoUnityID(r)
	if unityID == "" {
		a.respondError(w, http.StatusUnauthorized, errNoIdentity, "Not signed in")
		return Profile{}, false
	}
	p, err := a.DB.GetUser(r.Context(), unityID)
	if errors.Is(err, ErrNotFound) {
		a.respondError(w, http.StatusUnauthorized, err, "Not signed in")
		return Profile{}, false
	}
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not load profile")
		return Profile{}, false
	}
	return p, true
}

// authorize loads the signed-in user and checks that they are the user whose
// id is the path value name.
func (a *API) authorize(w http.ResponseWriter, r *http.Request, name string) (Profile, bool) {
	id, ok := a.pathValueID(w, r, name)
	if !ok {
		return Profile{}, false
	}
	me, ok := a.currentUser(w, r)
	if !ok {
		return Profile{}, false
	}
	if me.ID != id {
		a.respondError(w, http.StatusForbidden, errors.New("path user is not the signed-in user"), "Forbidden")
		return Profile{}, false
	}
	return me, true
}

// getProfile returns the signed-in user, creating their record on first
// sight. Without an SSO identity it answers 404, which clients treat as
// signed out.
func (a *API) getProfile(w http.ResponseWriter, r *http.Request) {
	unityID := ssoUnityID(r)
	if unityID == "" {
		a.respondError(w, http.StatusNotFound, errNoIdentity, "Not signed in")
		return
	}
	if errs := a.Val.Validate(unityID, "unityid"); len(errs) > 0 {
		a.respondError(w, http.StatusBadRequest, validator.Errors(errs), "Invalid SSO identity")
		return
	}

	p, err := a.DB.EnsureUser(r.Context(), Profile{
		UnityID:     unityID,
		DisplayName: strings.TrimSpace(r.Header.Get(headerName)),
		Email:       strings.TrimSpace(r.Header.Get(headerEmail)),
		IsStudent:   true,
	})
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not load profile")
		return
	}
	a.respond(w, http.StatusOK, p)
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	type request struct {
		DisplayName  string `json:"displayName" validate:"max=100"`
		Department   string `json:"department" validate:"max=100"`
		DepartmentID *int64 `json:"departmentId"`
		Email        string `json:"email" validate:"omitempty,email"`
	}
	me, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	p, err := a.DB.UpdateProfile(r.Context(), me.UnityID, ProfileUpdate{
		DisplayName:  strings.TrimSpace(body.DisplayName),
		Department:   strings.TrimSpace(body.Department),
		DepartmentID: body.DepartmentID,
		Email:        strings.TrimSpace(body.Email),
	})
	if err != nil {
		a.respondStorageError(w, err, "Could not update profile")
		return
	}
	a.respond(w, http.StatusOK, p)
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	p, err := a.DB.GetUser(r.Context(), r.PathValue("unityId"))
	if err != nil {
		a.respondStorageError(w, err, "Could not get user")
		return
	}
	a.respond(w, http.StatusOK, p)
}

func (a *API) addFriend(w http.ResponseWriter, r *http.Request) {
	me, ok := a.authorize(w, r, "id")
	if !ok {
		return
	}
	friendID, ok := a.pathValueID(w, r, "friendId")
	if !ok {
		return
	}
	if friendID == me.ID {
		a.respondError(w, http.StatusBadRequest, errors.New("self friend request"), "You cannot befriend yourself.")
		return
	}

	st, err := a.DB.AddFriend(r.Context(), me.ID, friendID)
	if err != nil {
		a.respondStorageError(w, err, "Could not add friend")
		return
	}
	msg := "Friend request sent."
	if st == Friends {
		msg = "Friend request accepted."
	}
	a.respondText(w, http.StatusOK, msg)
}

func (a *API) friendStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	friendID, ok := a.pathValueID(w, r, "friendId")
	if !ok {
		return
	}
	st, err := a.DB.FriendStatus(r.Context(), id, friendID)
	if err != nil {
		a.respondStorageError(w, err, "Could not get friend status")
		return
	}
	a.respondText(w, http.StatusOK, string(st))
}

func (a *API) listFriends(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	friends, err := a.DB.ListFriends(r.Context(), id)
	if err != nil {
		a.respondStorageError(w, err, "Could not list friends")
		return
	}
	if friends == nil {
		friends = []User{}
	}
	a.respond(w, http.StatusOK, friends)
}
