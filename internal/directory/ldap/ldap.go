package ldap

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/expirywatch/expirywatch/internal/config"
	"github.com/expirywatch/expirywatch/internal/directory"
	"github.com/expirywatch/expirywatch/internal/model"
)

var accountAttributes = []string{
	"sAMAccountName",
	"displayName",
	"givenName",
	"mail",
	"userAccountControl",
	"pwdLastSet",
}

const (
	userFilter       = "(&(objectClass=user)(objectCategory=person))"
	resultantPSOAttr = "msDS-ResultantPSO"
	psoMaxAgeAttr    = "msDS-MaximumPasswordAge"
)

// Directory is an LDAP-backed account and policy source for an Active
// Directory style tree. It satisfies both directory.Service and
// directory.PolicyService.
type Directory struct {
	conn   *ldap.Conn
	domain string
}

var (
	_ directory.Service       = (*Directory)(nil)
	_ directory.PolicyService = (*Directory)(nil)
)

// Connect dials and binds the directory connection.
func Connect(cfg config.LDAPConfig, searchRoot string) (*Directory, error) {
	conn, err := ldap.DialURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial directory: %w", err)
	}
	conn.SetTimeout(cfg.Timeout)

	if cfg.StartTLS {
		if err := conn.StartTLS(nil); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if cfg.BindDN != "" {
		if err := conn.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to bind as %s: %w", cfg.BindDN, err)
		}
	}

	return &Directory{conn: conn, domain: domainDN(searchRoot)}, nil
}

func (d *Directory) Close() error {
	return d.conn.Close()
}

func (d *Directory) Search(ctx context.Context, scope string) ([]model.Account, error) {
	req := ldap.NewSearchRequest(
		scope,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		userFilter,
		accountAttributes,
		nil,
	)

	res, err := d.conn.SearchWithPaging(req, 500)
	if err != nil {
		return nil, fmt.Errorf("directory search under %s failed: %w", scope, err)
	}

	accounts := make([]model.Account, 0, len(res.Entries))
	for _, entry := range res.Entries {
		accounts = append(accounts, entryToAccount(entry))
	}
	return accounts, nil
}

func (d *Directory) Lookup(ctx context.Context, id string) (*model.Account, error) {
	req := ldap.NewSearchRequest(
		d.domain,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 0, false,
		fmt.Sprintf("(&(objectClass=user)(sAMAccountName=%s))", ldap.EscapeFilter(id)),
		accountAttributes,
		nil,
	)

	res, err := d.conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("directory lookup of %s failed: %w", id, err)
	}
	if len(res.Entries) == 0 {
		return nil, fmt.Errorf("account %s not found", id)
	}

	acct := entryToAccount(res.Entries[0])
	return &acct, nil
}

func (d *Directory) DefaultPolicy(ctx context.Context) (*model.PasswordPolicy, error) {
	req := ldap.NewSearchRequest(
		d.domain,
		ldap.ScopeBaseObject, ldap.NeverDerefAliases, 1, 0, false,
		"(objectClass=domain)",
		[]string{"maxPwdAge"},
		nil,
	)

	res, err := d.conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("domain policy query failed: %w", err)
	}
	if len(res.Entries) == 0 {
		return nil, fmt.Errorf("domain object %s not found", d.domain)
	}

	interval, _ := strconv.ParseInt(res.Entries[0].GetAttributeValue("maxPwdAge"), 10, 64)
	return &model.PasswordPolicy{
		Name:   "domain default",
		MaxAge: intervalToMaxAge(interval),
	}, nil
}

func (d *Directory) AccountPolicy(ctx context.Context, id string) (*model.PasswordPolicy, error) {
	req := ldap.NewSearchRequest(
		d.domain,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 0, false,
		fmt.Sprintf("(&(objectClass=user)(sAMAccountName=%s))", ldap.EscapeFilter(id)),
		[]string{resultantPSOAttr},
		nil,
	)

	res, err := d.conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("fine-grained policy query for %s failed: %w", id, err)
	}
	if len(res.Entries) == 0 {
		return nil, nil
	}

	psoDN := res.Entries[0].GetAttributeValue(resultantPSOAttr)
	if psoDN == "" {
		return nil, nil
	}

	psoReq := ldap.NewSearchRequest(
		psoDN,
		ldap.ScopeBaseObject, ldap.NeverDerefAliases, 1, 0, false,
		"(objectClass=msDS-PasswordSettings)",
		[]string{"cn", psoMaxAgeAttr},
		nil,
	)
	psoRes, err := d.conn.Search(psoReq)
	if err != nil {
		return nil, fmt.Errorf("policy object %s query failed: %w", psoDN, err)
	}
	if len(psoRes.Entries) == 0 {
		return nil, nil
	}

	entry := psoRes.Entries[0]
	interval, _ := strconv.ParseInt(entry.GetAttributeValue(psoMaxAgeAttr), 10, 64)
	return &model.PasswordPolicy{
		Name:   entry.GetAttributeValue("cn"),
		MaxAge: intervalToMaxAge(interval),
	}, nil
}

func entryToAccount(entry *ldap.Entry) model.Account {
	uac, _ := strconv.ParseInt(entry.GetAttributeValue("userAccountControl"), 10, 64)
	lastSet, _ := strconv.ParseInt(entry.GetAttributeValue("pwdLastSet"), 10, 64)

	return model.Account{
		ID:                   entry.GetAttributeValue("sAMAccountName"),
		Name:                 entry.GetAttributeValue("displayName"),
		GivenName:            entry.GetAttributeValue("givenName"),
		Email:                entry.GetAttributeValue("mail"),
		Enabled:              uac&uacAccountDisable == 0,
		PasswordLastSet:      filetimeToTime(lastSet),
		PasswordNeverExpires: uac&uacDontExpirePassword != 0,
		PasswordExpired:      uac&uacPasswordExpired != 0,
	}
}

// domainDN reduces a search root to its domain naming context by keeping
// only the DC components.
func domainDN(searchRoot string) string {
	parts := strings.Split(searchRoot, ",")
	dcs := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(part)), "dc=") {
			dcs = append(dcs, strings.TrimSpace(part))
		}
	}
	if len(dcs) == 0 {
		return searchRoot
	}
	return strings.Join(dcs, ",")
}
