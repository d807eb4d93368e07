package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newRankingFixture(t *testing.T) (*RankingClient, *httptest.Server, *[]string) {
	t.Helper()
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch {
		case r.URL.Path == "/auth":
			if r.Header.Get("X-Amz-Target") != "AWSCognitoIdentityProviderService.InitiateAuth" {
				http.Error(w, "bad target", http.StatusBadRequest)
				return
			}
			var req struct {
				AuthFlow       string
				ClientId       string
				AuthParameters map[string]string
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if req.AuthFlow != "USER_PASSWORD_AUTH" || req.ClientId != "client-1" ||
				req.AuthParameters["USERNAME"] != "svc" || req.AuthParameters["PASSWORD"] != "pw" {
				http.Error(w, "bad credentials", http.StatusUnauthorized)
				return
			}
			io.WriteString(w, `{"AuthenticationResult":{"IdToken":"tok-123"}}`)
		case strings.HasSuffix(r.URL.Path, "/statuses/confirmed"):
			if r.Header.Get("Authorization") != "tok-123" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			io.WriteString(w, `{}`)
		case strings.HasSuffix(r.URL.Path, "/statuses/completed"):
			if r.Header.Get("Authorization") != "tok-123" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			var req MatchRankingRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if len(req.Teams) != 2 || req.Teams[0].Rank != 0 {
				http.Error(w, "bad submission", http.StatusBadRequest)
				return
			}
			io.WriteString(w, `{"ratings":{"alice":1512}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	client := NewRankingClient(RankingConfig{
		APIURL:       srv.URL,
		AuthURL:      srv.URL + "/auth",
		AuthClientID: "client-1",
		AuthUsername: "svc",
		AuthPassword: "pw",
	})
	return client, srv, &paths
}

func TestRankingConfirmMatch(t *testing.T) {
	client, _, paths := newRankingFixture(t)

	if err := client.ConfirmMatch(context.Background(), "game1", "match1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	want := []string{"/auth", "/games/game1/matches/match1/statuses/confirmed"}
	if len(*paths) != len(want) || (*paths)[0] != want[0] || (*paths)[1] != want[1] {
		t.Errorf("paths = %v, want %v", *paths, want)
	}
}

func TestRankingCompleteMatch(t *testing.T) {
	client, _, _ := newRankingFixture(t)

	payload, err := client.CompleteMatch(context.Background(), "game1", "match1", MatchRankingRequest{
		Server:     "eu-1",
		GameLength: 93.5,
		Teams: []TeamRanking{
			{Rank: 0, Players: []PlayerRanking{{PlayerID: "alice", Score: 5}}},
			{Rank: 1, Players: []PlayerRanking{{PlayerID: "bob", Score: 2}}},
		},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if payload != `{"ratings":{"alice":1512}}` {
		t.Errorf("payload = %q", payload)
	}
}

func TestRankingAuthFailure(t *testing.T) {
	client, _, _ := newRankingFixture(t)
	client.cfg.AuthPassword = "wrong"

	if err := client.ConfirmMatch(context.Background(), "game1", "match1"); err == nil {
		t.Error("confirm succeeded with bad credentials")
	}
}

func TestRankingNon2xxIsError(t *testing.T) {
	client, _, _ := newRankingFixture(t)

	// The fixture rejects submissions whose first team is not rank 0.
	_, err := client.CompleteMatch(context.Background(), "game1", "match1", MatchRankingRequest{
		Teams: []TeamRanking{{Rank: 1}, {Rank: 0}},
	})
	if err == nil {
		t.Error("4xx response did not surface as an error")
	}
}
