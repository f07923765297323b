// Package analytics computes query-time derived signals from the canonical
// store. Both aggregators are pure functions over already-loaded rows; they
// never write.
package analytics

import (
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseTx is one insider purchase as loaded for cluster detection.
type PurchaseTx struct {
	Ticker      string          `json:"ticker"`
	CompanyName string          `json:"company_name"`
	InsiderID   int64           `json:"insider_id"`
	InsiderName string          `json:"insider_name"`
	Value       decimal.Decimal `json:"value"`
	Date        time.Time       `json:"date"`
}

// ClusterInsider is one distinct buyer inside a cluster.
type ClusterInsider struct {
	Name       string          `json:"name"`
	TotalValue decimal.Decimal `json:"total_value"`
	Purchases  int             `json:"purchases"`
}

// Cluster is a company where minBuyers or more distinct insiders bought
// within the window.
type Cluster struct {
	Ticker      string           `json:"ticker"`
	CompanyName string           `json:"company_name"`
	BuyerCount  int              `json:"buyer_count"`
	TotalValue  decimal.Decimal  `json:"total_value"`
	Insiders    []ClusterInsider `json:"insiders"`
}

// DetectClusters groups purchases by company and surfaces companies with at
// least minBuyers distinct insiders. Repeat purchases by one insider fold
// into that insider's total rather than counting as extra buyers.
//
// Ordering is part of the contract: clusters sort by distinct-buyer count
// descending, ties broken by aggregate value descending (then ticker for
// determinism); insiders within a cluster sort by their value descending.
func DetectClusters(purchases []PurchaseTx, minBuyers, limit int) []Cluster {
	if minBuyers < 1 {
		minBuyers = 1
	}

	type buyerAgg struct {
		name  string
		value decimal.Decimal
		count int
	}
	type companyAgg struct {
		name   string
		buyers map[string]*buyerAgg
		order  []string
	}

	byTicker := make(map[string]*companyAgg)
	var tickerOrder []string

	for _, tx := range purchases {
		if tx.Ticker == "" {
			continue
		}
		comp, ok := byTicker[tx.Ticker]
		if !ok {
			comp = &companyAgg{name: tx.CompanyName, buyers: make(map[string]*buyerAgg)}
			byTicker[tx.Ticker] = comp
			tickerOrder = append(tickerOrder, tx.Ticker)
		}

		key := insiderKey(tx)
		buyer, ok := comp.buyers[key]
		if !ok {
			buyer = &buyerAgg{name: tx.InsiderName}
			comp.buyers[key] = buyer
			comp.order = append(comp.order, key)
		}
		buyer.value = buyer.value.Add(tx.Value)
		buyer.count++
	}

	clusters := make([]Cluster, 0)
	for _, ticker := range tickerOrder {
		comp := byTicker[ticker]
		if len(comp.buyers) < minBuyers {
			continue
		}

		cluster := Cluster{
			Ticker:      ticker,
			CompanyName: comp.name,
			BuyerCount:  len(comp.buyers),
		}
		for _, key := range comp.order {
			buyer := comp.buyers[key]
			cluster.TotalValue = cluster.TotalValue.Add(buyer.value)
			cluster.Insiders = append(cluster.Insiders, ClusterInsider{
				Name:       buyer.name,
				TotalValue: buyer.value,
				Purchases:  buyer.count,
			})
		}
		sort.SliceStable(cluster.Insiders, func(i, j int) bool {
			return cluster.Insiders[i].TotalValue.GreaterThan(cluster.Insiders[j].TotalValue)
		})
		clusters = append(clusters, cluster)
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		if clusters[i].BuyerCount != clusters[j].BuyerCount {
			return clusters[i].BuyerCount > clusters[j].BuyerCount
		}
		if !clusters[i].TotalValue.Equal(clusters[j].TotalValue) {
			return clusters[i].TotalValue.GreaterThan(clusters[j].TotalValue)
		}
		return clusters[i].Ticker < clusters[j].Ticker
	})

	if limit > 0 && len(clusters) > limit {
		clusters = clusters[:limit]
	}
	return clusters
}

// insiderKey identifies a buyer for dedup: CIK-backed ID when persisted,
// exact name otherwise. Distinct people sharing an identical name with no
// CIK merge into one buyer; that matches the resolver's accepted limitation.
func insiderKey(tx PurchaseTx) string {
	if tx.InsiderID != 0 {
		return "id:" + strconv.FormatInt(tx.InsiderID, 10)
	}
	return "name:" + tx.InsiderName
}
