// Package analytics computes read-only summaries, trend series and category
// breakdowns over a caller's transactions.
package analytics

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/period"
	"fintrack/internal/storage"
)

// Reader is the slice of the store the aggregator needs.
type Reader interface {
	FindAccounts(ctx context.Context, owner string) ([]core.Account, error)
	FindTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error)
	AggregateTransactions(ctx context.Context, by storage.GroupBy, f storage.TransactionFilter) ([]storage.AggregateRow, error)
}

type (
	Summary struct {
		Period            period.Name           `json:"period"`
		StartDate         time.Time             `json:"startDate"`
		EndDate           time.Time             `json:"endDate"`
		Income            core.Money            `json:"income"`
		Expenses          core.Money            `json:"expenses"`
		Balance           core.Money            `json:"balance"`
		TotalBalance      core.Money            `json:"totalBalance"`
		TransactionCount  int                   `json:"transactionCount"`
		CategoryBreakdown map[string]core.Money `json:"categoryBreakdown"`
	}

	// TrendQuery selects a trend series. An empty Type means expense and an
	// empty Granularity follows the period name.
	TrendQuery struct {
		period.Query
		Type        core.TransactionType
		Granularity period.Granularity
	}

	AccountSubtotal struct {
		ID    string     `json:"id"`
		Name  string     `json:"name"`
		Color string     `json:"color,omitempty"`
		Total core.Money `json:"total"`
		Count int        `json:"count"`
	}

	TrendPoint struct {
		Period   string            `json:"period"`
		Total    core.Money        `json:"total"`
		Count    int               `json:"count"`
		Average  core.Money        `json:"average"`
		Accounts []AccountSubtotal `json:"accounts,omitempty"`

		bucket period.Bucket
	}

	CategoryStat struct {
		Category   string     `json:"category"`
		Total      core.Money `json:"total"`
		Count      int        `json:"count"`
		Percentage Percent    `json:"percentage"`
	}

	AccountStat struct {
		ID               string           `json:"id"`
		Name             string           `json:"name"`
		Type             core.AccountType `json:"type"`
		Balance          core.Money       `json:"balance"`
		Color            string           `json:"color"`
		TransactionCount int              `json:"transactionCount"`
	}
)

// Percent is a percentage held at two decimal places.
type Percent struct {
	decimal.Decimal
}

func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(p.StringFixed(2)), nil
}

func (p *Percent) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return fmt.Errorf("invalid percentage: %w", err)
	}
	p.Decimal = d
	return nil
}

var hundred = decimal.NewFromInt(100)

// Aggregator never writes; every method is safe for concurrent use.
type Aggregator struct {
	store    Reader
	resolver *period.Resolver
}

func NewAggregator(store Reader, resolver *period.Resolver) *Aggregator {
	return &Aggregator{store: store, resolver: resolver}
}

func (a *Aggregator) Resolver() *period.Resolver { return a.resolver }

func (a *Aggregator) Summary(ctx context.Context, owner string, q period.Query) (Summary, error) {
	rng := a.resolver.Resolve(q)
	txs, err := a.store.FindTransactions(ctx, filterFor(owner, q.AccountID, "", rng))
	if err != nil {
		return Summary{}, fmt.Errorf("summary transactions: %w", err)
	}
	accounts, err := a.store.FindAccounts(ctx, owner)
	if err != nil {
		return Summary{}, fmt.Errorf("summary accounts: %w", err)
	}

	s := Summary{
		Period:            rng.Period,
		StartDate:         rng.Start,
		EndDate:           rng.End,
		TransactionCount:  len(txs),
		CategoryBreakdown: map[string]core.Money{},
	}
	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			s.Income = s.Income.Add(tx.Amount)
		case core.Expense:
			s.Expenses = s.Expenses.Add(tx.Amount)
			s.CategoryBreakdown[tx.Category] = s.CategoryBreakdown[tx.Category].Add(tx.Amount)
		}
	}
	s.Balance = s.Income.Sub(s.Expenses)

	for _, acc := range accounts {
		if !acc.Active || (q.AccountID != "" && acc.ID != q.AccountID) {
			continue
		}
		s.TotalBalance = s.TotalBalance.Add(acc.Balance)
	}
	return s, nil
}

// Trends buckets the selected transactions and returns the buckets in
// chronological order.
func (a *Aggregator) Trends(ctx context.Context, owner string, q TrendQuery) ([]TrendPoint, error) {
	typ := q.Type
	if typ == "" {
		typ = core.Expense
	}
	if !typ.Valid() {
		return nil, core.Invalid("type", core.ErrInvalidType)
	}
	g := q.Granularity
	if g == "" {
		g = period.Granularity(period.ParseName(string(q.Period)))
	}
	g, err := period.ParseGranularity(string(g))
	if err != nil {
		return nil, err
	}

	rng := a.resolver.TrendRange(q.Query)
	txs, err := a.store.FindTransactions(ctx, filterFor(owner, q.AccountID, typ, rng))
	if err != nil {
		return nil, fmt.Errorf("trend transactions: %w", err)
	}
	if len(txs) == 0 {
		return []TrendPoint{}, nil
	}
	accounts, err := a.store.FindAccounts(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("trend accounts: %w", err)
	}
	refs := core.RefIndex(accounts)

	loc := a.resolver.Location()
	points := map[string]*TrendPoint{}
	subtotals := map[string]map[string]*AccountSubtotal{}
	for _, tx := range txs {
		b := period.BucketFor(tx.Date, g, loc)
		p, ok := points[b.Key]
		if !ok {
			p = &TrendPoint{Period: b.Key, bucket: b}
			points[b.Key] = p
			subtotals[b.Key] = map[string]*AccountSubtotal{}
		}
		p.Total = p.Total.Add(tx.Amount)
		p.Count++

		sub, ok := subtotals[b.Key][tx.AccountID]
		if !ok {
			ref, found := refs[tx.AccountID]
			if !found {
				ref = core.MissingRef(tx.AccountID)
			}
			sub = &AccountSubtotal{ID: ref.ID, Name: ref.Name, Color: ref.Color}
			subtotals[b.Key][tx.AccountID] = sub
		}
		sub.Total = sub.Total.Add(tx.Amount)
		sub.Count++
	}

	out := make([]TrendPoint, 0, len(points))
	for key, p := range points {
		p.Average = p.Total.DivRound(int64(p.Count))
		for _, sub := range subtotals[key] {
			p.Accounts = append(p.Accounts, *sub)
		}
		sort.Slice(p.Accounts, func(i, j int) bool {
			if p.Accounts[i].Total.Cents != p.Accounts[j].Total.Cents {
				return p.Accounts[i].Total.Cents > p.Accounts[j].Total.Cents
			}
			return p.Accounts[i].ID < p.Accounts[j].ID
		})
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].bucket.Less(out[j].bucket) })
	return out, nil
}

// Categories breaks expenses in the resolved range down by category,
// largest first.
func (a *Aggregator) Categories(ctx context.Context, owner string, q period.Query) ([]CategoryStat, error) {
	rng := a.resolver.Resolve(q)
	rows, err := a.store.AggregateTransactions(ctx, storage.GroupByCategory, filterFor(owner, q.AccountID, core.Expense, rng))
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}

	var total core.Money
	for _, r := range rows {
		total = total.Add(r.Sum)
	}

	out := make([]CategoryStat, 0, len(rows))
	for _, r := range rows {
		out = append(out, CategoryStat{
			Category:   r.Key,
			Total:      r.Sum,
			Count:      r.Count,
			Percentage: percentOf(r.Sum, total),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

// AccountStats lists every account of owner with the number of
// transactions it is the source of.
func (a *Aggregator) AccountStats(ctx context.Context, owner string) ([]AccountStat, error) {
	accounts, err := a.store.FindAccounts(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("account stats accounts: %w", err)
	}
	rows, err := a.store.AggregateTransactions(ctx, storage.GroupByAccount, storage.TransactionFilter{Owner: owner})
	if err != nil {
		return nil, fmt.Errorf("account stats counts: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Key] = r.Count
	}

	out := make([]AccountStat, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, AccountStat{
			ID:               acc.ID,
			Name:             acc.Name,
			Type:             acc.Type,
			Balance:          acc.Balance,
			Color:            acc.Color,
			TransactionCount: counts[acc.ID],
		})
	}
	return out, nil
}

func percentOf(part, total core.Money) Percent {
	if total.Cents == 0 {
		return Percent{Decimal: decimal.Zero}
	}
	d := decimal.NewFromInt(part.Cents).Mul(hundred).Div(decimal.NewFromInt(total.Cents))
	return Percent{Decimal: d.Round(2)}
}

func filterFor(owner, accountID string, typ core.TransactionType, rng period.Range) storage.TransactionFilter {
	return storage.TransactionFilter{
		Owner:     owner,
		Type:      typ,
		AccountID: strings.TrimSpace(accountID),
		From:      rng.Start,
		To:        rng.End,
	}
}
