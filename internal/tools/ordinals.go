package tools

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/charmbracelet/log"
	"github.com/google/jsonschema-go/jsonschema"

	"go.ordinalsmcp/internal/ordiscan"
)

// Tool names exposed by the Ordiscan catalog.
const (
	ToolRuneBalance   = "get_rune_balance"
	ToolBRC20Balance  = "get_brc20_balance"
	ToolRunesActivity = "get_runes_activity"
	ToolBRC20Activity = "get_brc20_activity"
)

// AddressAPI is the outbound address-data service. *ordiscan.Client
// satisfies it.
type AddressAPI interface {
	RuneBalances(ctx context.Context, address string) (json.RawMessage, error)
	BRC20Balances(ctx context.Context, address string) (json.RawMessage, error)
	RunesActivity(ctx context.Context, address string, opts ordiscan.ActivityOptions) (json.RawMessage, error)
	BRC20Activity(ctx context.Context, address string, opts ordiscan.ActivityOptions) (json.RawMessage, error)
}

type addressArgs struct {
	Address string `json:"address"`
}

type activityArgs struct {
	Address string `json:"address"`
	Page    *int   `json:"page,omitempty"`
	Sort    string `json:"sort,omitempty"`
}

func (a activityArgs) options() ordiscan.ActivityOptions {
	return ordiscan.ActivityOptions{Page: a.Page, Sort: a.Sort}
}

// NewOrdinalsRegistry returns a registry holding the four address tools.
func NewOrdinalsRegistry(api AddressAPI, logger *log.Logger) (*Registry, error) {
	reg := NewRegistry()
	for _, d := range OrdinalsTools(api, logger) {
		if err := reg.Register(d); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// OrdinalsTools describes the Runes and BRC-20 balance and activity tools.
func OrdinalsTools(api AddressAPI, logger *log.Logger) []Descriptor {
	return []Descriptor{
		{
			Name:        ToolRuneBalance,
			Description: "Returns Runes balance for a specific Bitcoin address.",
			Schema:      addressSchema(),
			Handler: Typed(func(ctx context.Context, args addressArgs) Result {
				return respond(logger, "rune balance", args.Address, func() (json.RawMessage, error) {
					return api.RuneBalances(ctx, args.Address)
				})
			}),
		},
		{
			Name:        ToolBRC20Balance,
			Description: "Returns BRC-20 token balances for a specific Bitcoin address.",
			Schema:      addressSchema(),
			Handler: Typed(func(ctx context.Context, args addressArgs) Result {
				return respond(logger, "brc-20 balance", args.Address, func() (json.RawMessage, error) {
					return api.BRC20Balances(ctx, args.Address)
				})
			}),
		},
		{
			Name:        ToolRunesActivity,
			Description: "Returns Runes transaction history for a Bitcoin address.",
			Schema:      activitySchema(),
			Handler: Typed(func(ctx context.Context, args activityArgs) Result {
				return respond(logger, "runes activity", args.Address, func() (json.RawMessage, error) {
					return api.RunesActivity(ctx, args.Address, args.options())
				})
			}),
		},
		{
			Name:        ToolBRC20Activity,
			Description: "Returns BRC-20 transaction history for a Bitcoin address.",
			Schema:      activitySchema(),
			Handler: Typed(func(ctx context.Context, args activityArgs) Result {
				return respond(logger, "brc-20 activity", args.Address, func() (json.RawMessage, error) {
					return api.BRC20Activity(ctx, args.Address, args.options())
				})
			}),
		},
	}
}

// respond performs one outbound call and shapes its outcome. Failures are
// logged and returned as failure results.
func respond(logger *log.Logger, what, address string, call func() (json.RawMessage, error)) Result {
	data, err := call()
	if err != nil {
		logger.Error(what+" error", "address", address, "error", err)
		return Failure(err)
	}
	text, err := Render(data)
	if err != nil {
		logger.Error(what+" error", "address", address, "error", err)
		return Failure(fmt.Errorf("%w: %v", ordiscan.ErrMalformedResponse, err))
	}
	return Text(text)
}

func addressProperty() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Description: "Bitcoin address to query",
		MinLength:   intPtr(1),
	}
}

func addressSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"address": addressProperty(),
		},
		Required: []string{"address"},
	}
}

func activitySchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"address": addressProperty(),
			"page": {
				Type:        "integer",
				Description: "Page number (optional)",
			},
			"sort": {
				Type:        "string",
				Description: "Sort order",
				Enum:        []any{ordiscan.SortNewest, ordiscan.SortOldest},
			},
		},
		Required: []string{"address"},
	}
}

func intPtr(v int) *int { return &v }
