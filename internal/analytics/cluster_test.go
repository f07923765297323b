package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func purchase(ticker, company string, insiderID int64, insider string, value int64) PurchaseTx {
	return PurchaseTx{
		Ticker:      ticker,
		CompanyName: company,
		InsiderID:   insiderID,
		InsiderName: insider,
		Value:       decimal.NewFromInt(value),
		Date:        time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestDetectClustersMinBuyers(t *testing.T) {
	purchases := []PurchaseTx{
		purchase("TICK", "Tick Corp", 1, "Alice Adams", 500_000),
		purchase("TICK", "Tick Corp", 2, "Bob Brown", 300_000),
		purchase("OTHR", "Other Inc", 3, "Carol Cruz", 100_000),
	}

	clusters := DetectClusters(purchases, 2, 20)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}

	c := clusters[0]
	if c.Ticker != "TICK" {
		t.Errorf("expected ticker TICK, got %s", c.Ticker)
	}
	if c.BuyerCount != 2 {
		t.Errorf("expected 2 buyers, got %d", c.BuyerCount)
	}
	if !c.TotalValue.Equal(decimal.NewFromInt(800_000)) {
		t.Errorf("expected total value 800000, got %s", c.TotalValue)
	}
	if len(c.Insiders) != 2 {
		t.Fatalf("expected 2 insiders, got %d", len(c.Insiders))
	}
	if c.Insiders[0].Name != "Alice Adams" || c.Insiders[1].Name != "Bob Brown" {
		t.Errorf("insiders not ordered by value: %s, %s", c.Insiders[0].Name, c.Insiders[1].Name)
	}
}

func TestDetectClustersRepeatPurchasesFold(t *testing.T) {
	purchases := []PurchaseTx{
		purchase("TICK", "Tick Corp", 1, "Alice Adams", 100_000),
		purchase("TICK", "Tick Corp", 1, "Alice Adams", 200_000),
		purchase("TICK", "Tick Corp", 2, "Bob Brown", 50_000),
	}

	clusters := DetectClusters(purchases, 2, 20)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}

	c := clusters[0]
	if c.BuyerCount != 2 {
		t.Errorf("repeat purchases must not add buyers: got %d", c.BuyerCount)
	}
	if c.Insiders[0].Name != "Alice Adams" {
		t.Fatalf("expected Alice Adams first, got %s", c.Insiders[0].Name)
	}
	if !c.Insiders[0].TotalValue.Equal(decimal.NewFromInt(300_000)) {
		t.Errorf("expected folded value 300000, got %s", c.Insiders[0].TotalValue)
	}
	if c.Insiders[0].Purchases != 2 {
		t.Errorf("expected 2 purchases, got %d", c.Insiders[0].Purchases)
	}
}

func TestDetectClustersOrdering(t *testing.T) {
	purchases := []PurchaseTx{
		// Two buyers, small value.
		purchase("AAA", "AAA Corp", 1, "A One", 10_000),
		purchase("AAA", "AAA Corp", 2, "A Two", 10_000),
		// Three buyers wins over value.
		purchase("BBB", "BBB Corp", 3, "B One", 1_000),
		purchase("BBB", "BBB Corp", 4, "B Two", 1_000),
		purchase("BBB", "BBB Corp", 5, "B Three", 1_000),
		// Two buyers, larger value than AAA.
		purchase("CCC", "CCC Corp", 6, "C One", 500_000),
		purchase("CCC", "CCC Corp", 7, "C Two", 500_000),
	}

	clusters := DetectClusters(purchases, 2, 20)
	if len(clusters) != 3 {
		t.Fatalf("expected 3 clusters, got %d", len(clusters))
	}
	want := []string{"BBB", "CCC", "AAA"}
	for i, ticker := range want {
		if clusters[i].Ticker != ticker {
			t.Errorf("position %d: expected %s, got %s", i, ticker, clusters[i].Ticker)
		}
	}
}

func TestDetectClustersTickerTiebreak(t *testing.T) {
	purchases := []PurchaseTx{
		purchase("ZZZ", "Z Corp", 1, "Z One", 100),
		purchase("ZZZ", "Z Corp", 2, "Z Two", 100),
		purchase("AAA", "A Corp", 3, "A One", 100),
		purchase("AAA", "A Corp", 4, "A Two", 100),
	}

	clusters := DetectClusters(purchases, 2, 20)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	if clusters[0].Ticker != "AAA" || clusters[1].Ticker != "ZZZ" {
		t.Errorf("equal clusters must order by ticker: got %s, %s", clusters[0].Ticker, clusters[1].Ticker)
	}
}

func TestDetectClustersLimit(t *testing.T) {
	purchases := []PurchaseTx{
		purchase("AAA", "A Corp", 1, "A One", 100),
		purchase("AAA", "A Corp", 2, "A Two", 100),
		purchase("BBB", "B Corp", 3, "B One", 100),
		purchase("BBB", "B Corp", 4, "B Two", 100),
		purchase("CCC", "C Corp", 5, "C One", 100),
		purchase("CCC", "C Corp", 6, "C Two", 100),
	}

	clusters := DetectClusters(purchases, 2, 2)
	if len(clusters) != 2 {
		t.Fatalf("expected limit of 2 clusters, got %d", len(clusters))
	}
}

func TestDetectClustersNameFallback(t *testing.T) {
	// Without persisted IDs, identical names merge into one buyer.
	purchases := []PurchaseTx{
		purchase("TICK", "Tick Corp", 0, "John Smith", 100),
		purchase("TICK", "Tick Corp", 0, "John Smith", 100),
		purchase("TICK", "Tick Corp", 0, "Jane Doe", 100),
	}

	clusters := DetectClusters(purchases, 2, 20)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if clusters[0].BuyerCount != 2 {
		t.Errorf("expected 2 distinct buyers by name, got %d", clusters[0].BuyerCount)
	}
}

func TestDetectClustersEmptyTickerIgnored(t *testing.T) {
	purchases := []PurchaseTx{
		purchase("", "Mystery Co", 1, "A One", 100),
		purchase("", "Mystery Co", 2, "A Two", 100),
	}

	if got := DetectClusters(purchases, 2, 20); len(got) != 0 {
		t.Errorf("expected no clusters for blank tickers, got %d", len(got))
	}
}
