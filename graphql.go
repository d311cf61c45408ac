package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql"
)

// AuthPayload is returned by the signup/login mutations.
type AuthPayload struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`
}

var errAuthRequired = errors.New("authentication required")

// gqlUserID pulls the authenticated user id out of the resolver context.
func gqlUserID(p graphql.ResolveParams) (int64, error) {
	id, ok := p.Context.Value(ctxUserID).(int64)
	if !ok {
		return 0, errAuthRequired
	}
	return id, nil
}

// newGraphQLSchema wires the schema against the store. The profile mutations
// go through the same registry as the REST endpoints, so changes made here
// are visible to /api/auth/me and vice versa.
func (a *App) newGraphQLSchema() (graphql.Schema, error) {
	profileType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Profile",
		Fields: graphql.Fields{
			"id":     &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"userId": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"name":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"avatar": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	userType := graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"username": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"profiles": &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(profileType)))},
		},
	})

	authPayloadType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AuthPayload",
		Fields: graphql.Fields{
			"token": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"user":  &graphql.Field{Type: graphql.NewNonNull(userType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"me": &graphql.Field{
				Type: userType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					userID, err := gqlUserID(p)
					if err != nil {
						return nil, err
					}
					user, err := a.Store.GetUserByID(userID)
					if err != nil {
						return nil, err
					}
					if user == nil {
						return nil, errors.New("user not found")
					}
					profiles, err := a.Store.ListProfiles(user.ID)
					if err != nil {
						return nil, err
					}
					return newUserResponse(user, profiles), nil
				},
			},
		},
	})

	credentialArgs := graphql.FieldConfigArgument{
		"username": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
		"password": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
	}

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"signup": &graphql.Field{
				Type: graphql.NewNonNull(authPayloadType),
				Args: credentialArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					username, _ := p.Args["username"].(string)
					password, _ := p.Args["password"].(string)
					username = strings.TrimSpace(username)
					if username == "" || password == "" {
						return nil, errors.New("username and password are required")
					}
					user, profiles, err := a.signup(username, password)
					if err != nil {
						return nil, err
					}
					token, err := issueToken(user.ID)
					if err != nil {
						return nil, err
					}
					return &AuthPayload{Token: token, User: newUserResponse(user, profiles)}, nil
				},
			},
			"login": &graphql.Field{
				Type: graphql.NewNonNull(authPayloadType),
				Args: credentialArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					username, _ := p.Args["username"].(string)
					password, _ := p.Args["password"].(string)
					user, err := a.authenticate(username, password)
					if err != nil {
						return nil, err
					}
					profiles, err := a.Store.ListProfiles(user.ID)
					if err != nil {
						return nil, err
					}
					token, err := issueToken(user.ID)
					if err != nil {
						return nil, err
					}
					return &AuthPayload{Token: token, User: newUserResponse(user, profiles)}, nil
				},
			},
			"createProfile": &graphql.Field{
				Type: graphql.NewNonNull(profileType),
				Args: graphql.FieldConfigArgument{
					"name":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"avatar": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					userID, err := gqlUserID(p)
					if err != nil {
						return nil, err
					}
					name, _ := p.Args["name"].(string)
					profile, err := a.Store.AddProfile(userID, name)
					if err != nil {
						return nil, err
					}
					if avatar, ok := p.Args["avatar"].(string); ok && avatar != "" {
						profile, err = a.Store.UpdateProfile(userID, profile.ID, nil, &avatar)
						if err != nil {
							return nil, err
						}
					}
					return profile, nil
				},
			},
			"updateProfile": &graphql.Field{
				Type: graphql.NewNonNull(profileType),
				Args: graphql.FieldConfigArgument{
					"id":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"name":   &graphql.ArgumentConfig{Type: graphql.String},
					"avatar": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					userID, err := gqlUserID(p)
					if err != nil {
						return nil, err
					}
					id, _ := p.Args["id"].(int)
					var name, avatar *string
					if v, ok := p.Args["name"].(string); ok {
						name = &v
					}
					if v, ok := p.Args["avatar"].(string); ok {
						avatar = &v
					}
					return a.Store.UpdateProfile(userID, int64(id), name, avatar)
				},
			},
			"deleteProfile": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					userID, err := gqlUserID(p)
					if err != nil {
						return nil, err
					}
					id, _ := p.Args["id"].(int)
					if err := a.Store.DeleteProfile(userID, int64(id)); err != nil {
						return false, err
					}
					return true, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: queryType, Mutation: mutationType})
}

type graphqlRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// HandleGraphQL serves POST /graphql. A bad or expired bearer token does not
// fail the request; the resolvers see an anonymous context instead.
func (a *App) HandleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req graphqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	ctx := r.Context()
	if userID, ok := requestUserID(r); ok {
		ctx = context.WithValue(ctx, ctxUserID, userID)
	}

	result := graphql.Do(graphql.Params{
		Schema:         a.schema,
		RequestString:  req.Query,
		OperationName:  req.OperationName,
		VariableValues: req.Variables,
		Context:        ctx,
	})
	writeJSON(w, http.StatusOK, result)
}
