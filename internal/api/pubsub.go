package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/qrally/internal/domain"
	"github.com/victornm/qrally/internal/event"
)

const maxConcurrent = 100

type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func (a *API) subscribe(eb *event.Bus) {
	eb.Subscribe(domain.EventNameLobbyUpdated, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventLobbyUpdated)
		return a.publishToSession(ctx, ev.JoinCode, e.Name(), lobbyPayload(ev.Lobby))
	})

	eb.Subscribe(domain.EventNameQuestionStarted, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventQuestionStarted)
		return a.publishToSession(ctx, ev.JoinCode, e.Name(), questionPayload(ev.Question))
	})

	eb.Subscribe(domain.EventNameResultsReady, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventResultsReady)
		return a.publishToSession(ctx, ev.JoinCode, e.Name(), resultsPayload(ev.Results))
	})

	eb.Subscribe(domain.EventNameSessionEnded, func(ctx context.Context, e event.Event) error {
		return a.publishSessionEnded(ctx, e.(domain.EventSessionEnded))
	})
}

// publishSessionEnded fans out the shared recap on the session channel and a
// personal recap to each player's channel.
func (a *API) publishSessionEnded(ctx context.Context, e domain.EventSessionEnded) error {
	if err := a.publishToSession(ctx, e.JoinCode, e.Name(), endPayload(e.Recap)); err != nil {
		return err
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, r := range e.Players {
		r := r
		eg.Go(func() error {
			return a.publish(ctx, fmt.Sprintf("%s:player:%s", a.prefix, r.PlayerID), e.Name(), playerRecapPayload(r))
		})
	}

	return eg.Wait()
}

func (a *API) publishToSession(ctx context.Context, joinCode, event string, data any) error {
	return a.publish(ctx, fmt.Sprintf("%s:session:%s", a.prefix, joinCode), event, data)
}

func (a *API) publish(ctx context.Context, channel, event string, data any) error {
	b, err := json.Marshal(Notification{
		Event: event,
		Data:  data,
	})
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}
