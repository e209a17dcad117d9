//go:build integration_test

package demo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/qrally/internal/api"
	"github.com/victornm/qrally/internal/domain"
)

const (
	baseURL = "http://localhost:8080/v1"
)

func TestGame(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		host    = "quizmaster"
		players = []string{"alice", "bob", "carol"}
		wg      = new(sync.WaitGroup)
	)

	// Create the session first so subscribers know the join code.
	var created struct {
		SessionID string `json:"session_id"`
		JoinCode  string `json:"join_code"`
		JoinToken string `json:"join_token"`
	}
	post(t, ctx, "/sessions", map[string]any{
		"host_id": host,
		"quiz_id": "quiz-1",
	}, &created)
	t.Logf("Session %s created with join code %s", created.SessionID, created.JoinCode)

	rc := makeRedis(t)
	subscribeSession(t, rc, wg, created.JoinCode)
	for _, p := range players {
		subscribePlayer(t, rc, wg, p)
	}

	// Everyone piles into the lobby concurrently.
	{
		var eg errgroup.Group
		for _, p := range players {
			p := p
			eg.Go(func() error {
				return tryPost(ctx, fmt.Sprintf("/sessions/%s/join", created.JoinCode), map[string]any{
					"player_id": p,
					"nickname":  p,
				}, nil)
			})
		}
		require.NoError(t, eg.Wait())
	}

	post(t, ctx, fmt.Sprintf("/sessions/%s/start", created.JoinCode), map[string]any{
		"host_id": host,
	}, nil)

	for {
		var question api.Question
		get(t, ctx, fmt.Sprintf("/sessions/%s/question", created.JoinCode), &question)
		t.Logf("Question %d/%d: %s", question.Position, question.Total, question.Prompt)

		var eg errgroup.Group
		for _, p := range players {
			p := p
			eg.Go(func() error {
				return tryPost(ctx, fmt.Sprintf("/sessions/%s/answers", created.JoinCode), map[string]any{
					"player_id":   p,
					"question_id": question.QuestionID,
					"selected":    []int{0},
				}, nil)
			})
		}
		require.NoError(t, eg.Wait())

		var adv struct {
			Phase string `json:"phase"`
		}
		post(t, ctx, fmt.Sprintf("/sessions/%s/advance", created.JoinCode), map[string]any{
			"host_id": host,
		}, &adv)

		var results api.Results
		get(t, ctx, fmt.Sprintf("/sessions/%s/results", created.JoinCode), &results)
		t.Logf("Leaderboard after %s:\n%s", question.QuestionID, formatLeaderboard(results.Leaderboard))

		post(t, ctx, fmt.Sprintf("/sessions/%s/advance", created.JoinCode), map[string]any{
			"host_id": host,
		}, &adv)
		if adv.Phase == string(domain.PhaseEnd) {
			break
		}
	}

	wg.Wait()
}

func subscribeSession(t *testing.T, rc redis.UniversalClient, wg *sync.WaitGroup, code string) {
	wg.Add(1)
	sub := subscribeRedis(t, rc, fmt.Sprintf("local:session:%s", code))
	go func() {
		defer wg.Done()

		for msg := range sub {
			var n api.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				t.Logf("unmarshal notification: %v", err)
				continue
			}
			t.Logf("session channel: %s", n.Event)

			if n.Event == domain.EventNameSessionEnded {
				return
			}
		}
	}()
}

func subscribePlayer(t *testing.T, rc redis.UniversalClient, wg *sync.WaitGroup, player string) {
	wg.Add(1)
	sub := subscribeRedis(t, rc, fmt.Sprintf("local:player:%s", player))
	go func() {
		defer wg.Done()

		for msg := range sub {
			var n api.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				t.Logf("unmarshal notification: %v", err)
				continue
			}

			b, _ := json.Marshal(n.Data)
			var recap api.PlayerRecap
			if err := json.Unmarshal(b, &recap); err != nil {
				t.Logf("unmarshal recap: %v", err)
				continue
			}

			t.Logf("%s finished rank %d with %d points", player, recap.Rank, recap.TotalScore)
			return
		}
	}()
}

func subscribeRedis(t *testing.T, rc redis.UniversalClient, channel string) <-chan *redis.Message {
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	t.Cleanup(cancel)

	sub := rc.Subscribe(ctx, channel)
	t.Cleanup(func() { sub.Close() })

	c := make(chan *redis.Message)
	go func() {
		defer close(c)

		for {
			msg, err := sub.ReceiveMessage(ctx)
			if err != nil {
				t.Log(err)
				return
			}

			c <- msg
		}
	}()

	return c
}

func makeRedis(t *testing.T) redis.UniversalClient {
	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{"localhost:6379"},
	})
	t.Cleanup(func() { r.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Ping(ctx).Err(); err != nil {
		t.Fatal(err)
	}

	return r
}

func post(t *testing.T, ctx context.Context, path string, body, out any) {
	t.Helper()
	require.NoError(t, tryPost(ctx, path, body, out))
}

func tryPost(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return do(req, out)
}

func get(t *testing.T, ctx context.Context, path string, out any) {
	t.Helper()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
	require.NoError(t, err)
	require.NoError(t, do(req, out))
}

func do(req *http.Request, out any) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e json.RawMessage
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, e)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func formatLeaderboard(entries []api.LeaderboardEntry) string {
	var s string
	for _, e := range entries {
		s += fmt.Sprintf("#%d %s: %d\n", e.Rank, e.Nickname, e.Score)
	}
	return s
}
