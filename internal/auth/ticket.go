package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"guildhall/internal/cache"
	"guildhall/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// WSTicketTTL bounds how long a websocket ticket stays redeemable.
const WSTicketTTL = 30 * time.Second

func wsTicketKey(ticket string) string {
	return fmt.Sprintf("ws_ticket:%s", ticket)
}

// IssueWSTicket stores a short-lived single-use ticket for caller. Browsers cannot
// set headers on websocket upgrades, so the ticket travels as a query parameter.
func (g *Guard) IssueWSTicket(ctx context.Context, caller Caller) (string, error) {
	if g.redis == nil {
		return "", models.NewInternalError(errors.New("websocket tickets require redis"))
	}
	ticket := uuid.NewString()
	if err := cache.SetJSON(ctx, g.redis, wsTicketKey(ticket), caller, WSTicketTTL); err != nil {
		return "", models.NewInternalError(err)
	}
	return ticket, nil
}

// RedeemWSTicket consumes a ticket and returns its caller.
func (g *Guard) RedeemWSTicket(ctx context.Context, ticket string) (Caller, error) {
	if g.redis == nil || ticket == "" {
		return Caller{}, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
	}
	raw, err := g.redis.GetDel(ctx, wsTicketKey(ticket)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Caller{}, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
		}
		return Caller{}, models.NewInternalError(err)
	}
	caller, err := decodeCaller(raw)
	if err != nil {
		return Caller{}, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
	}
	return caller, nil
}

func decodeCaller(raw []byte) (Caller, error) {
	var caller Caller
	err := json.Unmarshal(raw, &caller)
	return caller, err
}
