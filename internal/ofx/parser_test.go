package ofx

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sample OFX data for testing.
const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>VND
<BANKACCTFROM>
<BANKID>970436
<ACCTID>0011004455667
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240301000000[0:GMT]
<DTEND>20240331000000[0:GMT]
<STMTTRN>
<TRNTYPE>ATM
<DTPOSTED>20240311030000[0:GMT]
<TRNAMT>-2000000
<FITID>VCB0311A
<NAME>ATM WITHDRAWAL VCB HOAN KIEM
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240310050000[0:GMT]
<TRNAMT>-45000
<FITID>VCB0310A
<NAME>POS PURCHASE HIGHLANDS COFFEE
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240310060000[0:GMT]
<TRNAMT>15000000
<FITID>VCB0310B
<NAME>SALARY MARCH
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240310200000[0:GMT]
<TRNAMT>-120000
<FITID>VCB0311B
<NAME>DEBIT
<MEMO>GRAB TAXI
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>12835000
<DTASOF>20240331000000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

const sampleCreditCardOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>USD
<CCACCTFROM>
<ACCTID>4111111111111111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240110120000[0:GMT]
<TRNAMT>-45.99
<FITID>CC2024011001
<NAME>AMAZON.COM*RT4Y7HG2
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-45.99
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func TestParseFile(t *testing.T) {
	tests := []struct {
		name          string
		ofxData       string
		expectedCount int
		expectedError bool
	}{
		{name: "valid bank statement", ofxData: sampleBankOFX, expectedCount: 4},
		{name: "valid credit card statement", ofxData: sampleCreditCardOFX, expectedCount: 1},
		{name: "leading blank lines", ofxData: "\n\n  " + sampleCreditCardOFX, expectedCount: 1},
		{name: "invalid OFX data", ofxData: "not valid OFX", expectedError: true},
		{name: "empty OFX", ofxData: "", expectedError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := NewParser().ParseFile(context.Background(), strings.NewReader(tt.ofxData))
			if tt.expectedError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, entries, tt.expectedCount)
		})
	}
}

func TestParseBankEntries(t *testing.T) {
	entries, err := NewParser().ParseFile(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	require.Len(t, entries, 4)

	// Sorted by posting time, not file order
	assert.Equal(t, []string{"VCB0310A", "VCB0310B", "VCB0311B", "VCB0311A"}, []string{
		entries[0].FitID, entries[1].FitID, entries[2].FitID, entries[3].FitID,
	})

	coffee := entries[0]
	assert.Equal(t, "HIGHLANDS COFFEE", coffee.Payee)
	assert.True(t, coffee.Amount.Equal(decimal.NewFromInt(-45000)))
	assert.True(t, coffee.IsDebit())
	assert.Equal(t, "DEBIT", coffee.Type)
	assert.Equal(t, "0011004455667", coffee.Account)
	assert.Equal(t, time.Date(2024, 3, 10, 5, 0, 0, 0, time.UTC), coffee.Date.UTC())

	assert.False(t, entries[1].IsDebit(), "salary is a credit")
	assert.Equal(t, "GRAB TAXI", entries[2].Payee, "generic NAME falls back to MEMO")
	assert.Equal(t, "ATM", entries[3].Type)
}

func TestParseCreditCardEntries(t *testing.T) {
	entries, err := NewParser().ParseFile(context.Background(), strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "4111111111111111", entries[0].Account)
	assert.Equal(t, "-45.99", entries[0].Amount.String())
}

func TestExtractPayee(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name     string
		tx       ofxgo.Transaction
		expected string
	}{
		{"remove POS prefix", ofxgo.Transaction{Name: "POS PURCHASE STARBUCKS"}, "STARBUCKS"},
		{"remove Vietnamese prefix", ofxgo.Transaction{Name: "THANH TOAN CIRCLE K"}, "CIRCLE K"},
		{"strip posting date", ofxgo.Transaction{Name: "03/10 PHO 24"}, "PHO 24"},
		{"keep clean name", ofxgo.Transaction{Name: "NETFLIX.COM"}, "NETFLIX.COM"},
		{"trim whitespace", ofxgo.Transaction{Name: "  SHOPEE  "}, "SHOPEE"},
		{"payee wins", ofxgo.Transaction{Name: "DEBIT", Payee: &ofxgo.Payee{Name: "Bach Hoa Xanh"}}, "Bach Hoa Xanh"},
		{"memo for empty name", ofxgo.Transaction{Memo: "Tien dien"}, "Tien dien"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parser.extractPayee(tt.tx))
		})
	}
}

func TestGetAccounts(t *testing.T) {
	parser := NewParser()

	accounts, err := parser.GetAccounts(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	assert.Equal(t, []string{"0011004455667"}, accounts)

	accounts, err = parser.GetAccounts(context.Background(), strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)
	assert.Equal(t, []string{"4111111111111111"}, accounts)
}
