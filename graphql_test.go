package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type gqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func doGraphQL(t *testing.T, url, token, query string, variables map[string]interface{}) gqlResponse {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{"query": query, "variables": variables})
	require.NoError(t, err)

	req, err := http.NewRequest("POST", url+"/graphql", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out gqlResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func gqlSignup(t *testing.T, url, username, password string) (token string, userID int64) {
	t.Helper()
	out := doGraphQL(t, url, "", `
		mutation($u: String!, $p: String!) {
			signup(username: $u, password: $p) { token user { id username profiles { id name avatar } } }
		}`, map[string]interface{}{"u": username, "p": password})
	require.Empty(t, out.Errors)

	var payload struct {
		Token string `json:"token"`
		User  struct {
			ID       int64 `json:"id"`
			Profiles []struct {
				Name string `json:"name"`
			} `json:"profiles"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(out.Data["signup"], &payload))
	require.NotEmpty(t, payload.Token)
	require.Len(t, payload.User.Profiles, 1)
	require.Equal(t, defaultProfileName, payload.User.Profiles[0].Name)
	return payload.Token, payload.User.ID
}

func TestGraphQLSignupAndLogin(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.Router())
	defer srv.Close()

	token, userID := gqlSignup(t, srv.URL, "alice", "secret1")
	require.NotEmpty(t, token)

	out := doGraphQL(t, srv.URL, "", `
		mutation { login(username: "alice", password: "secret1") { token user { id } } }`, nil)
	require.Empty(t, out.Errors)
	var login struct {
		User struct {
			ID int64 `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(out.Data["login"], &login))
	require.Equal(t, userID, login.User.ID)

	out = doGraphQL(t, srv.URL, "", `
		mutation { login(username: "alice", password: "wrong") { token } }`, nil)
	require.NotEmpty(t, out.Errors)
}

func TestGraphQLMe(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.Router())
	defer srv.Close()

	// anonymous me errors
	out := doGraphQL(t, srv.URL, "", `{ me { id username } }`, nil)
	require.NotEmpty(t, out.Errors)
	require.Contains(t, out.Errors[0].Message, "authentication required")

	token, _ := gqlSignup(t, srv.URL, "alice", "secret1")
	out = doGraphQL(t, srv.URL, token, `{ me { id username profiles { name } } }`, nil)
	require.Empty(t, out.Errors)
	var me struct {
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(out.Data["me"], &me))
	require.Equal(t, "alice", me.Username)

	// a tampered token degrades to anonymous rather than failing the request
	out = doGraphQL(t, srv.URL, token[:len(token)-2]+"xx", `{ me { id } }`, nil)
	require.NotEmpty(t, out.Errors)
	require.Contains(t, out.Errors[0].Message, "authentication required")
}

func TestGraphQLProfileMutationsPersist(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.Router())
	defer srv.Close()

	token, _ := gqlSignup(t, srv.URL, "alice", "secret1")

	out := doGraphQL(t, srv.URL, token, `
		mutation { createProfile(name: "Kids") { id name avatar } }`, nil)
	require.Empty(t, out.Errors)
	var kids Profile
	require.NoError(t, json.Unmarshal(out.Data["createProfile"], &kids))
	require.Equal(t, "Kids", kids.Name)

	// visible through me, i.e. actually persisted
	out = doGraphQL(t, srv.URL, token, `{ me { profiles { id name } } }`, nil)
	require.Empty(t, out.Errors)
	var me struct {
		Profiles []Profile `json:"profiles"`
	}
	require.NoError(t, json.Unmarshal(out.Data["me"], &me))
	require.Len(t, me.Profiles, 2)
	require.Equal(t, "Kids", me.Profiles[1].Name)

	out = doGraphQL(t, srv.URL, token, `
		mutation($id: Int!) { updateProfile(id: $id, avatar: "/assets/avatars/custom.png") { id name avatar } }`,
		map[string]interface{}{"id": kids.ID})
	require.Empty(t, out.Errors)
	var updated Profile
	require.NoError(t, json.Unmarshal(out.Data["updateProfile"], &updated))
	require.Equal(t, "Kids", updated.Name)
	require.Equal(t, "/assets/avatars/custom.png", updated.Avatar)

	out = doGraphQL(t, srv.URL, token, `
		mutation($id: Int!) { deleteProfile(id: $id) }`,
		map[string]interface{}{"id": kids.ID})
	require.Empty(t, out.Errors)

	// deleting again reports the not-found error
	out = doGraphQL(t, srv.URL, token, `
		mutation($id: Int!) { deleteProfile(id: $id) }`,
		map[string]interface{}{"id": kids.ID})
	require.NotEmpty(t, out.Errors)
}

func TestGraphQLProfileMutationsRequireAuth(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.Router())
	defer srv.Close()

	out := doGraphQL(t, srv.URL, "", `mutation { createProfile(name: "Kids") { id } }`, nil)
	require.NotEmpty(t, out.Errors)
	require.Contains(t, out.Errors[0].Message, "authentication required")
}
