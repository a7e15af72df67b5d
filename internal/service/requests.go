package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/hexhub/platform/internal/domain"
)

// Request bodies of the mutation routes. Undo descriptors carry the same
// shapes so a replay goes through the normal route.

// ResourcesRequest grants (positive) or charges (negative) resources.
type ResourcesRequest struct {
	Delta domain.Resources `json:"delta"`
}

// TradeRequest swaps Give from the caller for Get from With.
type TradeRequest struct {
	With string           `json:"with"`
	Give domain.Resources `json:"give"`
	Get  domain.Resources `json:"get"`
}

// TakeRequest moves Amount of Resource from From to the caller.
type TakeRequest struct {
	From     string              `json:"from"`
	Resource domain.ResourceKind `json:"resource"`
	Amount   int                 `json:"amount"`
}

// MaritimeRequest trades Ratio of Give to the bank for one Get. A zero ratio
// uses the game's default; gold always converts one to one.
type MaritimeRequest struct {
	Give  domain.ResourceKind `json:"give"`
	Get   domain.ResourceKind `json:"get"`
	Ratio int                 `json:"ratio,omitempty"`
}

// PurchaseRequest buys or refunds one item: "settlement", "city", "road" or
// "devcard". Refunding a dev card names the card.
type PurchaseRequest struct {
	Item    string              `json:"item"`
	DevCard *domain.DevCardKind `json:"dev_card,omitempty"`
}

// PlayRequest plays one development card. YearOfPlenty takes two resources,
// Monopoly takes one.
type PlayRequest struct {
	Card      domain.DevCardKind    `json:"card"`
	Resources []domain.ResourceKind `json:"resources,omitempty"`
	Resource  *domain.ResourceKind  `json:"resource,omitempty"`
}

const itemDevCard = "devcard"

// item is a parsed PurchaseRequest.Item.
type item struct {
	devCard     bool
	entitlement domain.EntitlementKind
}

func parseItem(s string) (item, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == itemDevCard || name == "dev_card" {
		return item{devCard: true}, nil
	}
	k, err := domain.ParseEntitlementKind(name)
	if err != nil {
		return item{}, domain.ErrValidation(fmt.Sprintf("unknown item %q", s))
	}
	return item{entitlement: k}, nil
}

func (it item) String() string {
	if it.devCard {
		return itemDevCard
	}
	return it.entitlement.String()
}

// Undo body kinds.
const (
	BodyResources = "resources"
	BodyTrade     = "trade"
	BodyTake      = "take"
	BodyPurchase  = "purchase"
	BodyRefund    = "refund"
)

// PlayerRoute builds the path of a per-player action.
func PlayerRoute(game, player, action string) string {
	return fmt.Sprintf("/games/%s/players/%s/%s", url.PathEscape(game), url.PathEscape(player), action)
}

func undo(game, player, action, kind string, body any) domain.UndoDescriptor {
	raw, err := json.Marshal(body)
	if err != nil {
		// Request types marshal infallibly.
		panic(fmt.Sprintf("marshal undo body: %v", err))
	}
	return domain.UndoDescriptor{
		Method:   http.MethodPost,
		Route:    PlayerRoute(game, player, action),
		Body:     raw,
		BodyKind: kind,
		Token:    uuid.NewString(),
	}
}
