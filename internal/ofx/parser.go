// Package ofx reads OFX/QFX bank statements and books their debits into
// the ledger.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

// Entry is one statement transaction. Amount is signed: debits are negative.
type Entry struct {
	Date    time.Time
	Amount  decimal.Decimal
	FitID   string
	Type    string
	Payee   string
	Memo    string
	Account string
}

// IsDebit reports whether money left the account.
func (e Entry) IsDebit() bool {
	return e.Amount.IsNegative()
}

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Parser implements OFX/QFX file parsing.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{logger: slog.Default()}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// SEVERITY must be upper case
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// SGML exports sometimes drop the closing bracket of bare tags
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

func (p *Parser) parse(reader io.Reader) (*ofxgo.Response, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}
	return resp, nil
}

// ParseFile parses an OFX/QFX file and returns its entries ordered by
// posting date.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]Entry, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			entries = append(entries, p.convertList(stmt.BankTranList, string(stmt.BankAcctFrom.AcctID))...)
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			entries = append(entries, p.convertList(stmt.BankTranList, string(stmt.CCAcctFrom.AcctID))...)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})

	p.logger.Info("Parsed OFX file",
		"entries", len(entries),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return entries, nil
}

func (p *Parser) convertList(list *ofxgo.TransactionList, accountID string) []Entry {
	if list == nil {
		return nil
	}
	entries := make([]Entry, 0, len(list.Transactions))
	for _, tx := range list.Transactions {
		entries = append(entries, p.convertTransaction(tx, accountID))
	}
	return entries
}

// convertTransaction converts an OFX transaction to an Entry.
func (p *Parser) convertTransaction(tx ofxgo.Transaction, accountID string) Entry {
	return Entry{
		FitID:   string(tx.FiTID),
		Date:    tx.DtPosted.Time,
		Amount:  decimal.NewFromBigRat(&tx.TrnAmt.Rat, 2),
		Type:    tx.TrnType.String(),
		Payee:   p.extractPayee(tx),
		Memo:    strings.TrimSpace(string(tx.Memo)),
		Account: accountID,
	}
}

var payeePrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
	"THANH TOAN ",
	"TT ",
}

// extractPayee tries to get a clean payee name from OFX data.
func (p *Parser) extractPayee(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := string(tx.Name)
	if tx.Memo != "" && (name == "" || isGenericDescription(name)) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	for _, prefix := range payeePrefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Leading "MM/DD " posting dates
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

// isGenericDescription checks if a transaction name is too generic.
func isGenericDescription(name string) bool {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}

// GetAccounts extracts unique account IDs from the OFX file.
func (p *Parser) GetAccounts(_ context.Context, reader io.Reader) ([]string, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	accountMap := make(map[string]bool)
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankAcctFrom.AcctID != "" {
			accountMap[string(stmt.BankAcctFrom.AcctID)] = true
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.CCAcctFrom.AcctID != "" {
			accountMap[string(stmt.CCAcctFrom.AcctID)] = true
		}
	}

	accounts := make([]string, 0, len(accountMap))
	for acct := range accountMap {
		accounts = append(accounts, acct)
	}
	sort.Strings(accounts)
	return accounts, nil
}
