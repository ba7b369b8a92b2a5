// Package pricing resolves the effective unit price of a variant at the
// instant of the request: the minimum of the base price and every matching
// active price-list entry.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-commerce-checkout.git/internal/redisx"
)

const SourceBase = "base"

type Query struct {
	VariantID       string
	Quantity        int
	CurrencyCode    string
	CustomerGroupID *string
}

type Result struct {
	Amount decimal.Decimal `json:"amount"`
	Source string          `json:"source"` // "base" or "price_list:<name>"
}

// Candidate is one price offer considered during resolution.
type Candidate struct {
	Amount decimal.Decimal
	Source string
}

// Store loads price inputs. BasePrice returns commerce.ErrNotFound when the
// variant has no price in the given currency.
type Store interface {
	BasePrice(ctx context.Context, variantID, currencyCode string) (decimal.Decimal, error)
	ActiveListPrices(ctx context.Context, q Query, now time.Time) ([]Candidate, error)
}

type Resolver struct {
	Store Store
	Redis *redis.Client // nil disables the cache
	Log   zerolog.Logger
}

func NewResolver(store Store, rdb *redis.Client, log zerolog.Logger) *Resolver {
	return &Resolver{Store: store, Redis: rdb, Log: log.With().Str("component", "pricing").Logger()}
}

func (r *Resolver) Resolve(ctx context.Context, q Query) (Result, error) {
	key := cacheKey(q)
	if r.Redis != nil {
		if s, err := r.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			var res Result
			if json.Unmarshal([]byte(s), &res) == nil {
				return res, nil
			}
		}
	}

	res, err := r.resolve(ctx, q, time.Now().UTC())
	if err != nil {
		return Result{}, err
	}

	if r.Redis != nil {
		if b, err := json.Marshal(res); err == nil {
			if err := r.Redis.Set(ctx, key, b, redisx.TTLPrice).Err(); err != nil {
				r.Log.Debug().Err(err).Msg("price cache set failed")
			}
		}
	}
	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, q Query, now time.Time) (Result, error) {
	base, err := r.Store.BasePrice(ctx, q.VariantID, q.CurrencyCode)
	if err != nil {
		return Result{}, err
	}
	lists, err := r.Store.ActiveListPrices(ctx, q, now)
	if err != nil {
		return Result{}, err
	}
	return Best(Candidate{Amount: base, Source: SourceBase}, lists), nil
}

// Best picks the minimum amount among the base price and all list
// candidates; the base wins ties so a list never claims credit for
// matching the regular price.
func Best(base Candidate, lists []Candidate) Result {
	win := base
	for _, c := range lists {
		if c.Amount.LessThan(win.Amount) {
			win = c
		}
	}
	return Result{Amount: win.Amount, Source: win.Source}
}

func cacheKey(q Query) string {
	group := "-"
	if q.CustomerGroupID != nil {
		group = *q.CustomerGroupID
	}
	return fmt.Sprintf(redisx.KeyPrice, q.VariantID, q.Quantity, q.CurrencyCode, group)
}
