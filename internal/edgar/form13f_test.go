package edgar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const infoTableXML = `<?xml version="1.0"?>
<informationTable xmlns="http://www.sec.gov/edgar/document/thirteenf/informationtable">
  <infoTable>
    <nameOfIssuer>APPLE INC</nameOfIssuer>
    <titleOfClass>COM</titleOfClass>
    <cusip>037833100</cusip>
    <value>915560</value>
    <shrsOrPrnAmt>
      <sshPrnamt>4000000</sshPrnamt>
      <sshPrnamtType>SH</sshPrnamtType>
    </shrsOrPrnAmt>
    <votingAuthority>
      <Sole>3500000</Sole>
      <Shared>400000</Shared>
      <None>100000</None>
    </votingAuthority>
  </infoTable>
  <infoTable>
    <nameOfIssuer>BAD ROW</nameOfIssuer>
    <titleOfClass>COM</titleOfClass>
    <cusip>1234</cusip>
    <value>100</value>
    <shrsOrPrnAmt>
      <sshPrnamt>500</sshPrnamt>
      <sshPrnamtType>SH</sshPrnamtType>
    </shrsOrPrnAmt>
  </infoTable>
  <infoTable>
    <nameOfIssuer>COCA COLA CO</nameOfIssuer>
    <titleOfClass>COM</titleOfClass>
    <cusip>191216100X</cusip>
    <value>25000</value>
    <shrsOrPrnAmt>
      <sshPrnamt>350000</sshPrnamt>
      <sshPrnamtType>SH</sshPrnamtType>
    </shrsOrPrnAmt>
    <votingAuthority>
      <Sole>350000</Sole>
      <Shared>0</Shared>
      <None>0</None>
    </votingAuthority>
  </infoTable>
</informationTable>`

func TestDecodeInformationTable(t *testing.T) {
	holdings, err := decodeInformationTable([]byte(infoTableXML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The 4-char CUSIP row is dropped.
	if len(holdings) != 2 {
		t.Fatalf("expected 2 holdings, got %d", len(holdings))
	}

	apple := holdings[0]
	if apple.CUSIP != "037833100" {
		t.Errorf("cusip = %q", apple.CUSIP)
	}
	if apple.Value != 915_560_000 {
		t.Errorf("value not scaled from thousands: %d", apple.Value)
	}
	if apple.Shares != 4_000_000 {
		t.Errorf("shares = %d", apple.Shares)
	}
	if apple.VotingSole != 3_500_000 || apple.VotingShared != 400_000 || apple.VotingNone != 100_000 {
		t.Errorf("voting = %d/%d/%d", apple.VotingSole, apple.VotingShared, apple.VotingNone)
	}

	// Overlong CUSIPs truncate to the 9-char identifier.
	if holdings[1].CUSIP != "191216100" {
		t.Errorf("cusip not truncated: %q", holdings[1].CUSIP)
	}
}

func TestFetch13FHoldings(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/1067983/000106798326000030/index.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"directory": {"item": [
			{"name": "primary_doc.xml"},
			{"name": "0001067983-26-000030-index.htm"},
			{"name": "infotable.xml"}
		]}}`))
	})
	mux.HandleFunc("/1067983/000106798326000030/infotable.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(infoTableXML))
	})
	mux.HandleFunc("/1067983/000106798326000030/primary_doc.xml", func(w http.ResponseWriter, r *http.Request) {
		t.Error("primary_doc.xml must be skipped")
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := testClient(ts)
	holdings, err := c.Fetch13FHoldings(context.Background(), "1067983", "0001067983-26-000030")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(holdings) != 2 {
		t.Fatalf("expected 2 holdings, got %d", len(holdings))
	}
	if holdings[0].IssuerName != "APPLE INC" {
		t.Errorf("issuer = %q", holdings[0].IssuerName)
	}
}

func TestFetch13FHoldingsNoTable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"directory": {"item": [{"name": "primary_doc.xml"}, {"name": "cover.htm"}]}}`))
	}))
	defer ts.Close()

	c := testClient(ts)
	if _, err := c.Fetch13FHoldings(context.Background(), "1067983", "0001067983-26-000030"); err == nil {
		t.Fatal("expected error when no information table document exists")
	}
}
